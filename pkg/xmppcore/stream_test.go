package xmppcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamErrorElementRendering(t *testing.T) {
	err := StreamError{Condition: StreamErrorConditionBadFormat}
	assert.Equal(t,
		`<stream:error xmlns:stream="http://etherx.jabber.org/streams"><bad-format xmlns="urn:ietf:params:xml:ns:xmpp-streams"/></stream:error>`,
		err.Element().String())
}

func TestStreamErrorElementWithText(t *testing.T) {
	err := StreamError{Condition: StreamErrorConditionHostUnknown, Text: "no such vhost"}
	rendered := err.Element().String()
	assert.Contains(t, rendered, `<host-unknown xmlns="urn:ietf:params:xml:ns:xmpp-streams"/>`)
	assert.Contains(t, rendered, `<text xmlns="urn:ietf:params:xml:ns:xmpp-streams">no such vhost</text>`)
}

func TestStreamErrorImplementsError(t *testing.T) {
	err := StreamError{Condition: StreamErrorConditionNotWellFormed}
	assert.Equal(t, "not-well-formed", err.Error())

	withText := StreamError{Condition: StreamErrorConditionPolicyViolation, Text: "too many stanzas"}
	assert.Equal(t, "policy-violation: too many stanzas", withText.Error())
}

func TestFeaturesElementStartTLSOnly(t *testing.T) {
	f := Features{StartTLS: true, StartTLSRequired: true}
	rendered := f.Element().String()
	assert.Contains(t, rendered, `<starttls xmlns="urn:ietf:params:xml:ns:xmpp-tls">`)
	assert.Contains(t, rendered, "<required/>")
	assert.NotContains(t, rendered, "mechanism")
}

func TestFeaturesElementMechanisms(t *testing.T) {
	f := Features{Mechanisms: []string{"PLAIN", "SCRAM-SHA-1"}}
	rendered := f.Element().String()
	assert.Contains(t, rendered, `<mechanisms xmlns="urn:ietf:params:xml:ns:xmpp-sasl">`)
	assert.Contains(t, rendered, "<mechanism>PLAIN</mechanism>")
	assert.Contains(t, rendered, "<mechanism>SCRAM-SHA-1</mechanism>")
}

func TestFeaturesElementBindAndSession(t *testing.T) {
	f := Features{Bind: true, Session: true}
	rendered := f.Element().String()
	assert.Contains(t, rendered, `<bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"/>`)
	assert.Contains(t, rendered, `<session xmlns="urn:ietf:params:xml:ns:xmpp-session"/>`)
}
