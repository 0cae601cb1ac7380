package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
	"github.com/technologistkj/mina-vysper/pkg/xmppim"
)

func TestAccountManagementVerifyPlain(t *testing.T) {
	accounts := NewAccountManagement()
	accounts.AddAccount("user1", "secret")

	authorized, ok, err := accounts.VerifyPlain("", "user1", "secret")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user1", authorized)

	_, ok, err = accounts.VerifyPlain("", "user1", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccountManagementScramSHA1CredentialsDeterministic(t *testing.T) {
	accounts := NewAccountManagement()
	accounts.AddAccount("user1", "secret")

	salt1, iter1, key1, ok := accounts.ScramSHA1Credentials("user1")
	require.True(t, ok)
	salt2, iter2, key2, _ := accounts.ScramSHA1Credentials("user1")
	assert.Equal(t, salt1, salt2)
	assert.Equal(t, iter1, iter2)
	assert.Equal(t, key1, key2)
}

func TestRosterManagerSetAndGet(t *testing.T) {
	roster := NewRosterManager()
	owner, _ := xmppcore.New("user1", "vysper.org", "")
	contact, _ := xmppcore.New("user2", "vysper.org", "")

	roster.Set(owner, xmppim.RosterItem{JID: contact, Subscription: xmppim.RosterItemSubscriptionBoth})
	items, ver := roster.Get(owner)
	require.Len(t, items, 1)
	assert.Equal(t, "user2@vysper.org", items[0].JID.Bare())
	assert.Equal(t, "1", ver)
	assert.True(t, roster.Subscribed(owner, contact))
}

func TestRosterManagerRemove(t *testing.T) {
	roster := NewRosterManager()
	owner, _ := xmppcore.New("user1", "vysper.org", "")
	contact, _ := xmppcore.New("user2", "vysper.org", "")

	roster.Set(owner, xmppim.RosterItem{JID: contact, Subscription: xmppim.RosterItemSubscriptionBoth})
	roster.Set(owner, xmppim.RosterItem{JID: contact, Subscription: xmppim.RosterItemSubscriptionRemove})

	items, _ := roster.Get(owner)
	assert.Len(t, items, 0)
	assert.False(t, roster.Subscribed(owner, contact))
}

func TestOfflineStoreEnqueueAndDrain(t *testing.T) {
	store := NewOfflineStore()
	owner, _ := xmppcore.New("user1", "vysper.org", "")
	msg := xmppcore.NewElement(xmppcore.JabberClientNS, "message")

	store.Enqueue(owner, msg)
	store.Enqueue(owner, msg)

	pending := store.Drain(owner)
	assert.Len(t, pending, 2)

	assert.Empty(t, store.Drain(owner))
}
