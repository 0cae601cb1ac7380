package storage

import (
	"strconv"
	"sync"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
	"github.com/technologistkj/mina-vysper/pkg/xmppim"
)

// RosterManager is an in-memory roster store keyed by bare-JID owner.
type RosterManager struct {
	mu    sync.RWMutex
	items map[string]map[string]xmppim.RosterItem
	ver   map[string]int
}

// NewRosterManager creates an empty roster store.
func NewRosterManager() *RosterManager {
	return &RosterManager{
		items: make(map[string]map[string]xmppim.RosterItem),
		ver:   make(map[string]int),
	}
}

// Get returns owner's roster items and the current roster version.
func (r *RosterManager) Get(owner xmppcore.JID) ([]xmppim.RosterItem, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bare := owner.Bare()
	byContact := r.items[bare]
	items := make([]xmppim.RosterItem, 0, len(byContact))
	for _, it := range byContact {
		items = append(items, it)
	}
	return items, strconv.Itoa(r.ver[bare])
}

// Set inserts or updates a single roster item, or removes it when
// item.Subscription is "remove" (RFC 6121 §2.5).
func (r *RosterManager) Set(owner xmppcore.JID, item xmppim.RosterItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bare := owner.Bare()
	byContact, ok := r.items[bare]
	if !ok {
		byContact = make(map[string]xmppim.RosterItem)
		r.items[bare] = byContact
	}
	if item.Subscription == xmppim.RosterItemSubscriptionRemove {
		delete(byContact, item.JID.Bare())
	} else {
		byContact[item.JID.Bare()] = item
	}
	r.ver[bare]++
}

// Subscribed reports whether contact is present in owner's roster with a
// subscription that would receive owner's presence broadcasts (RFC 6121
// §4.3: "from" or "both").
func (r *RosterManager) Subscribed(owner, contact xmppcore.JID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[owner.Bare()][contact.Bare()]
	if !ok {
		return false
	}
	return item.Subscription == xmppim.RosterItemSubscriptionFrom || item.Subscription == xmppim.RosterItemSubscriptionBoth
}

// SubscribersOf returns every contact in owner's roster whose subscription
// state means it should receive owner's presence broadcasts ("from" or
// "both").
func (r *RosterManager) SubscribersOf(owner xmppcore.JID) []xmppcore.JID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []xmppcore.JID
	for _, item := range r.items[owner.Bare()] {
		if item.Subscription == xmppim.RosterItemSubscriptionFrom || item.Subscription == xmppim.RosterItemSubscriptionBoth {
			out = append(out, item.JID)
		}
	}
	return out
}
