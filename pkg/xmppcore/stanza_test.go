package xmppcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStanzaErrorElementRendering(t *testing.T) {
	serr := NewStanzaError(StanzaErrorConditionFeatureNotImplemented)
	rendered := serr.Element().String()
	assert.Contains(t, rendered, `type="cancel"`)
	assert.Contains(t, rendered, `<feature-not-implemented xmlns="urn:ietf:params:xml:ns:xmpp-stanzas"/>`)
}

func TestStanzaErrorElementWithTextAndBy(t *testing.T) {
	serr := StanzaError{By: "vysper.org", Type: StanzaErrorTypeModify, Condition: StanzaErrorConditionBadRequest, Text: "malformed"}
	rendered := serr.Element().String()
	assert.Contains(t, rendered, `by="vysper.org"`)
	assert.Contains(t, rendered, `type="modify"`)
	assert.Contains(t, rendered, `<text xmlns="urn:ietf:params:xml:ns:xmpp-stanzas">malformed</text>`)
}

func TestNewStanzaErrorPicksConventionalType(t *testing.T) {
	assert.Equal(t, StanzaErrorTypeAuth, NewStanzaError(StanzaErrorConditionForbidden).Type)
	assert.Equal(t, StanzaErrorTypeCancel, NewStanzaError(StanzaErrorConditionItemNotFound).Type)
	assert.Equal(t, StanzaErrorTypeWait, NewStanzaError(StanzaErrorConditionRecipientUnavailable).Type)
}

func TestErrorReplySwapsFromAndTo(t *testing.T) {
	sender, _ := New("user1", "vysper.org", "tablet")
	server, _ := New("", "vysper.org", "")
	original := NewIQ("req1", IQTypeGet, sender, server)

	reply := ErrorReply(original, server, sender, NewStanzaError(StanzaErrorConditionServiceUnavailable))
	assert.Equal(t, "iq", reply.Name())
	assert.Equal(t, "req1", reply.AttrOrEmpty("id"))
	assert.Equal(t, "error", reply.AttrOrEmpty("type"))
	assert.Equal(t, "vysper.org", reply.AttrOrEmpty("from"))
	assert.Equal(t, "user1@vysper.org/tablet", reply.AttrOrEmpty("to"))
	assert.NotNil(t, reply.Child("error"))
}
