package xmppcore

// RFC 6120 §8.2.3 IQ Semantics.

const ClientIQElementName = JabberClientNS + " iq"

// Standard IQ types.
const (
	IQTypeGet    = "get"
	IQTypeSet    = "set"
	IQTypeResult = "result"
	IQTypeError  = "error"
)

// IsIQ reports whether el is an <iq/> stanza.
func IsIQ(el *Element) bool {
	return el.Name() == "iq"
}

// IQType returns the stanza's type attribute.
func IQType(el *Element) string {
	return el.AttrOrEmpty("type")
}

// IQPayload returns the single child element carrying the IQ's semantic
// payload (RFC 6120 §8.2.3: get/set stanzas MUST contain exactly one child
// element; result/error MAY contain zero or one).
func IQPayload(el *Element) *Element {
	children := el.Children()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// NewIQ builds an empty <iq/> stanza with the routing attributes set.
func NewIQ(id, iqType string, from, to JID) *Element {
	iq := NewElement(JabberClientNS, "iq")
	if id != "" {
		iq = iq.WithAttr("", "id", id)
	}
	iq = iq.WithAttr("", "type", iqType)
	if !from.IsEmpty() {
		iq = iq.WithAttr("", "from", from.FullString())
	}
	if !to.IsEmpty() {
		iq = iq.WithAttr("", "to", to.FullString())
	}
	return iq
}

// ResultIQ builds the <iq type='result'/> reply to request, preserving id
// and setting from/to to the given JIDs (each omitted when empty).
func ResultIQ(request *Element, from, to JID, payload *Element) *Element {
	result := NewIQ(request.AttrOrEmpty("id"), IQTypeResult, from, to)
	if payload != nil {
		result = result.WithChild(payload)
	}
	return result
}
