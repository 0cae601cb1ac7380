package xmppcore

// RFC 6120 §5 STARTTLS Negotiation.

const TLSNS = "urn:ietf:params:xml:ns:xmpp-tls"

const TLSStartTLSElementName = TLSNS + " starttls"

// TLSProceedElement builds the <proceed/> sent when the server accepts the
// STARTTLS request and is about to perform the handshake.
func TLSProceedElement() *Element {
	return NewElement(TLSNS, "proceed")
}

// TLSFailureElement builds the <failure/> sent when STARTTLS cannot
// proceed; the stream is closed immediately afterwards (RFC 6120 §5.4.3).
func TLSFailureElement() *Element {
	return NewElement(TLSNS, "failure")
}
