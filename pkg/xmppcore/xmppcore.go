// Package xmppcore contains all things required by XMPP Core (RFC 6120):
// addressing, the stanza wire model, the streaming decoder, session state
// and the stream-level and stanza-level error vocabularies.
package xmppcore

const (
	StreamsNS       = "urn:ietf:params:xml:ns:xmpp-streams"
	JabberStreamsNS = "http://etherx.jabber.org/streams"
	JabberClientNS  = "jabber:client"
	JabberServerNS  = "jabber:server"
)
