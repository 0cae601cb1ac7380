// Package xmppping implements XEP-0199: XMPP Ping.
package xmppping

import "github.com/technologistkj/mina-vysper/pkg/xmppcore"

const NS = "urn:xmpp:ping"

const ElementName = NS + " ping"

// IsPing reports whether iqPayload is a <ping/> request.
func IsPing(iqPayload *xmppcore.Element) bool {
	return iqPayload != nil && iqPayload.Namespace() == NS && iqPayload.Name() == "ping"
}

// Module answers XEP-0199 pings with an empty result, satisfying
// router.Module by structural typing (no import of pkg/router needed).
type Module struct{}

// NewModule creates a ping-answering module.
func NewModule() Module { return Module{} }

func (Module) Namespace() string { return NS }

func (Module) HandleIQ(from xmppcore.JID, iq, payload *xmppcore.Element) *xmppcore.Element {
	if xmppcore.IQType(iq) != xmppcore.IQTypeGet || !IsPing(payload) {
		return nil
	}
	return xmppcore.ResultIQ(iq, xmppcore.JID{}, xmppcore.JID{}, nil)
}
