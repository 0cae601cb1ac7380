package storage

import (
	"sync"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
)

// OfflineStore holds stanzas addressed to a bare JID with no available
// resource, released the next time that user binds a resource (RFC 6121
// §8.5.2.2 offline message handling is server-policy defined; this
// implementation queues and replays in receipt order).
type OfflineStore struct {
	mu    sync.Mutex
	queue map[string][]*xmppcore.Element
}

// NewOfflineStore creates an empty offline store.
func NewOfflineStore() *OfflineStore {
	return &OfflineStore{queue: make(map[string][]*xmppcore.Element)}
}

// Enqueue stores stanza for later delivery to owner.
func (s *OfflineStore) Enqueue(owner xmppcore.JID, stanza *xmppcore.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bare := owner.Bare()
	s.queue[bare] = append(s.queue[bare], stanza)
}

// Drain removes and returns all stanzas queued for owner, in receipt
// order.
func (s *OfflineStore) Drain(owner xmppcore.JID) []*xmppcore.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	bare := owner.Bare()
	pending := s.queue[bare]
	delete(s.queue, bare)
	return pending
}
