package xmppcore

// RFC 6120 §8 Stanzas, §8.3 Stanza Errors.

const StanzasNS = "urn:ietf:params:xml:ns:xmpp-stanzas"

// RFC 6120 §8.3.2 error types.
const (
	StanzaErrorTypeAuth     = "auth"
	StanzaErrorTypeCancel   = "cancel"
	StanzaErrorTypeContinue = "continue"
	StanzaErrorTypeModify   = "modify"
	StanzaErrorTypeWait     = "wait"
)

// StanzaErrorCondition is one of the defined application conditions
// (RFC 6120 §8.3.3).
type StanzaErrorCondition string

const (
	StanzaErrorConditionBadRequest            StanzaErrorCondition = "bad-request"
	StanzaErrorConditionConflict              StanzaErrorCondition = "conflict"
	StanzaErrorConditionFeatureNotImplemented StanzaErrorCondition = "feature-not-implemented"
	StanzaErrorConditionForbidden             StanzaErrorCondition = "forbidden"
	StanzaErrorConditionItemNotFound          StanzaErrorCondition = "item-not-found"
	StanzaErrorConditionNotAcceptable         StanzaErrorCondition = "not-acceptable"
	StanzaErrorConditionNotAllowed            StanzaErrorCondition = "not-allowed"
	StanzaErrorConditionNotAuthorized         StanzaErrorCondition = "not-authorized"
	StanzaErrorConditionRecipientUnavailable  StanzaErrorCondition = "recipient-unavailable"
	StanzaErrorConditionServiceUnavailable    StanzaErrorCondition = "service-unavailable"
)

// conditionErrorType is the conventional type associated with each
// condition per RFC 6120 §8.3.3, used when a caller doesn't pin one down
// explicitly.
var conditionErrorType = map[StanzaErrorCondition]string{
	StanzaErrorConditionBadRequest:            StanzaErrorTypeModify,
	StanzaErrorConditionConflict:              StanzaErrorTypeCancel,
	StanzaErrorConditionFeatureNotImplemented: StanzaErrorTypeCancel,
	StanzaErrorConditionForbidden:             StanzaErrorTypeAuth,
	StanzaErrorConditionItemNotFound:          StanzaErrorTypeCancel,
	StanzaErrorConditionNotAcceptable:         StanzaErrorTypeModify,
	StanzaErrorConditionNotAllowed:            StanzaErrorTypeCancel,
	StanzaErrorConditionNotAuthorized:         StanzaErrorTypeAuth,
	StanzaErrorConditionRecipientUnavailable:  StanzaErrorTypeWait,
	StanzaErrorConditionServiceUnavailable:    StanzaErrorTypeCancel,
}

// StanzaError is a recoverable error: the sender is replied to with a
// stanza of the same kind, type='error', carrying this element.
type StanzaError struct {
	By        string
	Type      string
	Condition StanzaErrorCondition
	Text      string
}

// NewStanzaError builds a StanzaError with the conventional type for
// condition.
func NewStanzaError(condition StanzaErrorCondition) StanzaError {
	return StanzaError{Type: conditionErrorType[condition], Condition: condition}
}

// Element renders the stanza error as its wire element.
func (e StanzaError) Element() *Element {
	root := NewElement("", "error")
	if e.By != "" {
		root = root.WithAttr("", "by", e.By)
	}
	typ := e.Type
	if typ == "" {
		typ = StanzaErrorTypeCancel
	}
	root = root.WithAttr("", "type", typ)
	root = root.WithChild(NewElement(StanzasNS, string(e.Condition)))
	if e.Text != "" {
		root = root.WithChild(NewElement(StanzasNS, "text").WithText(e.Text))
	}
	return root
}

func (e StanzaError) Error() string {
	return string(e.Condition)
}

// ErrorReply builds the conventional <iq|message|presence type='error'>
// reply to a stanza that failed, copying its id, setting from/to to the
// given JIDs (each omitted when empty; callers pass the original's to/from
// swapped) and attaching the error element. This is shared by the router
// and every module.
func ErrorReply(original *Element, from, to JID, serr StanzaError) *Element {
	reply := NewElement(JabberClientNS, original.Name())
	if id, ok := original.Attr("id"); ok {
		reply = reply.WithAttr("", "id", id)
	}
	reply = reply.WithAttr("", "type", "error")
	if !from.IsEmpty() {
		reply = reply.WithAttr("", "from", from.FullString())
	}
	if !to.IsEmpty() {
		reply = reply.WithAttr("", "to", to.FullString())
	}
	reply = reply.WithChild(serr.Element())
	return reply
}
