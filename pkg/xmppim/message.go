// Package xmppim implements the instant-messaging and presence stanza
// semantics of RFC 6121, XEP-0115 capabilities and the roster.
package xmppim

import (
	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
)

const (
	ClientMessageElementName        = xmppcore.JabberClientNS + " message"
	ClientMessageBodyElementName    = xmppcore.JabberClientNS + " body"
	ClientMessageSubjectElementName = xmppcore.JabberClientNS + " subject"
	ClientMessageThreadElementName  = xmppcore.JabberClientNS + " thread"
)

// RFC 6121 §5.2.2 message types.
const (
	MessageTypeChat      = "chat"
	MessageTypeError     = "error"
	MessageTypeGroupChat = "groupchat"
	MessageTypeHeadline  = "headline"
	MessageTypeNormal    = "normal"
)

// IsMessage reports whether el is a <message/> stanza.
func IsMessage(el *xmppcore.Element) bool {
	return el.Name() == "message"
}

// MessageType returns the stanza's type attribute, defaulting to "normal"
// per RFC 6121 §5.2.2.
func MessageType(el *xmppcore.Element) string {
	if t := el.AttrOrEmpty("type"); t != "" {
		return t
	}
	return MessageTypeNormal
}

// MessageBody returns the text of the message's <body/> child, if any.
func MessageBody(el *xmppcore.Element) string {
	body := el.Child("body")
	if body == nil {
		return ""
	}
	return body.Text()
}

// MessageThread returns the text of the message's <thread/> child, if any.
func MessageThread(el *xmppcore.Element) string {
	thread := el.Child("thread")
	if thread == nil {
		return ""
	}
	return thread.Text()
}

// NewMessage builds a <message/> stanza with the routing attributes set.
func NewMessage(id, msgType string, from, to xmppcore.JID) *xmppcore.Element {
	msg := xmppcore.NewElement(xmppcore.JabberClientNS, "message")
	if id != "" {
		msg = msg.WithAttr("", "id", id)
	}
	if msgType != "" {
		msg = msg.WithAttr("", "type", msgType)
	}
	if !from.IsEmpty() {
		msg = msg.WithAttr("", "from", from.FullString())
	}
	if !to.IsEmpty() {
		msg = msg.WithAttr("", "to", to.FullString())
	}
	return msg
}

// WithBody returns a copy of msg with a <body/> child appended.
func WithBody(msg *xmppcore.Element, body string) *xmppcore.Element {
	return msg.WithChild(xmppcore.NewElement("", "body").WithText(body))
}
