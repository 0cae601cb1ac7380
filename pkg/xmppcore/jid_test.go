package xmppcore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJIDEmpty(t *testing.T) {
	jid := JID{}
	assert.Equal(t, "", jid.Local)
	assert.Equal(t, "", jid.Domain)
	assert.Equal(t, "", jid.Resource)
	assert.Equal(t, "", jid.Bare())
	assert.Equal(t, "/", jid.Full())
	assert.True(t, jid.IsEmpty())
	assert.False(t, jid.IsBare())
	assert.False(t, jid.IsFull())
}

func TestJIDDomain(t *testing.T) {
	jid := JID{Domain: "localhost"}
	assert.Equal(t, "localhost", jid.Bare())
	assert.Equal(t, "localhost/", jid.Full())
	assert.False(t, jid.IsEmpty())
	assert.True(t, jid.IsBare())
	assert.False(t, jid.IsFull())
}

func TestJIDBare(t *testing.T) {
	jid := JID{Local: "user", Domain: "localhost"}
	assert.Equal(t, "user@localhost", jid.Bare())
	assert.Equal(t, "user@localhost/", jid.Full())
	assert.False(t, jid.IsEmpty())
	assert.True(t, jid.IsBare())
	assert.False(t, jid.IsFull())
}

func TestJIDFull(t *testing.T) {
	jid := JID{Local: "user", Domain: "localhost", Resource: "PC"}
	assert.Equal(t, "user@localhost", jid.Bare())
	assert.Equal(t, "user@localhost/PC", jid.Full())
	assert.False(t, jid.IsEmpty())
	assert.False(t, jid.IsBare())
	assert.True(t, jid.IsFull())
}

func TestParseJIDRoundTrip(t *testing.T) {
	jid, err := ParseJID("user1@vysper.org/tablet")
	assert.NoError(t, err)
	assert.Equal(t, "user1", jid.Local)
	assert.Equal(t, "vysper.org", jid.Domain)
	assert.Equal(t, "tablet", jid.Resource)
	assert.Equal(t, "user1@vysper.org/tablet", jid.FullString())

	again, err := ParseJID(jid.FullString())
	assert.NoError(t, err)
	assert.True(t, jid.Equals(again))
}

func TestParseJIDBareDomainOnly(t *testing.T) {
	jid, err := ParseJID("vysper.org")
	assert.NoError(t, err)
	assert.Equal(t, "vysper.org", jid.Domain)
	assert.True(t, jid.IsBare())
	assert.Equal(t, "vysper.org", jid.FullString())
}

func TestParseJIDRequiresDomain(t *testing.T) {
	_, err := ParseJID("user@")
	assert.Error(t, err)
}

func TestJIDDomainCaseNormalized(t *testing.T) {
	jid, err := New("User1", "VYSPER.ORG", "Tablet")
	assert.NoError(t, err)
	assert.Equal(t, "vysper.org", jid.Domain)
}

func TestJIDEqualsIsComponentWise(t *testing.T) {
	a, _ := New("user1", "vysper.org", "tablet")
	b, _ := New("user1", "vysper.org", "tablet")
	c, _ := New("user1", "vysper.org", "phone")
	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
}

func TestJIDToBareAndToFull(t *testing.T) {
	full, _ := New("user1", "vysper.org", "tablet")
	bare := full.ToBare()
	assert.True(t, bare.IsBare())
	assert.Equal(t, "user1@vysper.org", bare.Bare())

	rebound, err := bare.ToFull("phone")
	assert.NoError(t, err)
	assert.Equal(t, "user1@vysper.org/phone", rebound.FullString())
}

func TestJIDLocalpartLengthLimit(t *testing.T) {
	huge := strings.Repeat("a", MaxPartBytes+1)
	_, err := New(huge, "vysper.org", "")
	assert.Error(t, err)
}
