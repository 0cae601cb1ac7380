package s2s

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKeyIsDeterministic(t *testing.T) {
	secret := DialbackSecret("shared-secret")
	k1 := GenerateKey(secret, "vysper.org", "otherhost.example", "stream-1")
	k2 := GenerateKey(secret, "vysper.org", "otherhost.example", "stream-1")
	assert.Equal(t, k1, k2)
}

func TestGenerateKeyDiffersPerStream(t *testing.T) {
	secret := DialbackSecret("shared-secret")
	k1 := GenerateKey(secret, "vysper.org", "otherhost.example", "stream-1")
	k2 := GenerateKey(secret, "vysper.org", "otherhost.example", "stream-2")
	assert.NotEqual(t, k1, k2)
}

func TestVerifyKeyRoundTrips(t *testing.T) {
	secret := DialbackSecret("shared-secret")
	key := GenerateKey(secret, "vysper.org", "otherhost.example", "stream-1")
	assert.True(t, VerifyKey(secret, "vysper.org", "otherhost.example", "stream-1", key))
	assert.False(t, VerifyKey(secret, "vysper.org", "otherhost.example", "stream-1", key+"x"))
}

func TestPortString(t *testing.T) {
	assert.Equal(t, "5269", portString(5269))
	assert.Equal(t, "0", portString(0))
	assert.Equal(t, "1", portString(1))
}

func TestTrimTrailingDot(t *testing.T) {
	assert.Equal(t, "xmpp.example.com", trimTrailingDot("xmpp.example.com."))
	assert.Equal(t, "xmpp.example.com", trimTrailingDot("xmpp.example.com"))
}
