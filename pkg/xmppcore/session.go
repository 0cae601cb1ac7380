package xmppcore

// RFC 3921 §3 Session Establishment. Dropped from RFC 6120/6121, but kept
// here and still advertised (Features.Session) because deployed clients
// still send the IQ before considering themselves ready.

const SessionNS = "urn:ietf:params:xml:ns:xmpp-session"

const SessionSessionElementName = SessionNS + " session"

// IsSessionRequest reports whether iqPayload is the empty <session/>
// element a client sends once it has bound a resource.
func IsSessionRequest(iqPayload *Element) bool {
	return iqPayload != nil && iqPayload.Namespace() == SessionNS && iqPayload.Name() == "session"
}
