package xmppim

import (
	"strconv"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
)

const ClientPresenceElementName = xmppcore.JabberClientNS + " presence"

// RFC 6121 §4.7.1 presence types. The zero value ("") means "available".
const (
	PresenceTypeError        = "error"
	PresenceTypeProbe        = "probe"
	PresenceTypeSubscribe    = "subscribe"
	PresenceTypeSubscribed   = "subscribed"
	PresenceTypeUnavailable  = "unavailable"
	PresenceTypeUnsubscribe  = "unsubscribe"
	PresenceTypeUnsubscribed = "unsubscribed"
)

// IsPresence reports whether el is a <presence/> stanza.
func IsPresence(el *xmppcore.Element) bool {
	return el.Name() == "presence"
}

// PresenceType returns the stanza's type attribute ("" for available).
func PresenceType(el *xmppcore.Element) string {
	return el.AttrOrEmpty("type")
}

// IsAvailable reports whether the presence stanza announces availability
// (RFC 6121 §4.7.1: no type attribute means "available").
func IsAvailable(el *xmppcore.Element) bool {
	return PresenceType(el) == ""
}

// PresenceShow returns the text of the <show/> child (RFC 6121 §4.7.2.1),
// one of "away", "chat", "dnd", "xa", or "" for the default.
func PresenceShow(el *xmppcore.Element) string {
	show := el.Child("show")
	if show == nil {
		return ""
	}
	return show.Text()
}

// PresenceStatus returns the text of the <status/> child.
func PresenceStatus(el *xmppcore.Element) string {
	status := el.Child("status")
	if status == nil {
		return ""
	}
	return status.Text()
}

// PresencePriority returns the numeric <priority/> value, defaulting to 0
// per RFC 6121 §4.7.2.3.
func PresencePriority(el *xmppcore.Element) int8 {
	prio := el.Child("priority")
	if prio == nil {
		return 0
	}
	v, err := strconv.Atoi(prio.Text())
	if err != nil || v < -128 || v > 127 {
		return 0
	}
	return int8(v)
}

// NewPresence builds a <presence/> stanza with the routing attributes set.
func NewPresence(id, presenceType string, from, to xmppcore.JID) *xmppcore.Element {
	p := xmppcore.NewElement(xmppcore.JabberClientNS, "presence")
	if id != "" {
		p = p.WithAttr("", "id", id)
	}
	if presenceType != "" {
		p = p.WithAttr("", "type", presenceType)
	}
	if !from.IsEmpty() {
		p = p.WithAttr("", "from", from.FullString())
	}
	if !to.IsEmpty() {
		p = p.WithAttr("", "to", to.FullString())
	}
	return p
}
