package xmppcore

// RFC 6120 §7 Resource Binding.

const BindNS = "urn:ietf:params:xml:ns:xmpp-bind"

const BindBindElementName = BindNS + " bind"

// ParseBindResource extracts the client-requested resourcepart from a
// <bind><resource>...</resource></bind> IQ payload. An empty, present
// <resource/> or its absence both mean "server-generated resource".
func ParseBindResource(bindEl *Element) string {
	res := bindEl.Child("resource")
	if res == nil {
		return ""
	}
	return res.Text()
}

// BindResultElement builds the <bind><jid>...</jid></bind> IQ result
// payload carrying the full JID the server assigned.
func BindResultElement(jid JID) *Element {
	return NewElement(BindNS, "bind").WithChild(NewElement("", "jid").WithText(jid.FullString()))
}
