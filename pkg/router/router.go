// Package router implements the stanza router (SPEC_FULL.md §4.7): local
// delivery with resource selection, module namespace dispatch, offline
// hand-off, and forwarding of non-local stanzas to the S2S layer.
package router

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
	"github.com/technologistkj/mina-vysper/pkg/xmppim"
)

// LocalSession is a bound client session capable of receiving stanzas.
type LocalSession interface {
	JID() xmppcore.JID
	Send(stanza *xmppcore.Element)
	Priority() int8
}

// RosterStore is the subset of storage.RosterManager the router needs: to
// decide whether a bare-JID presence broadcast reaches a given contact, to
// materialize an incoming subscription request against the recipient's
// roster, and to serve <iq/>-driven roster get/set on the owner's behalf.
type RosterStore interface {
	Get(owner xmppcore.JID) ([]xmppim.RosterItem, string)
	Set(owner xmppcore.JID, item xmppim.RosterItem)
	Subscribed(owner, contact xmppcore.JID) bool
	SubscribersOf(owner xmppcore.JID) []xmppcore.JID
}

// OfflineStore is the subset of storage.OfflineStore the router needs to
// hand off undeliverable messages.
type OfflineStore interface {
	Enqueue(owner xmppcore.JID, stanza *xmppcore.Element)
}

// S2SDispatcher forwards a stanza to a remote domain, establishing a
// dialback link on demand if one doesn't exist yet.
type S2SDispatcher interface {
	Forward(to xmppcore.JID, stanza *xmppcore.Element) error
}

// Module intercepts <iq/> stanzas whose payload matches a namespace it has
// registered for (SPEC_FULL.md §4.7 point 3), e.g. XMPP Ping or Entity
// Time. It returns the reply to send back, or nil when it does not answer
// the IQ; the router then routes the IQ as if no module had matched. There
// is no separate signal for a module that replies asynchronously.
type Module interface {
	Namespace() string
	HandleIQ(from xmppcore.JID, iq *xmppcore.Element, payload *xmppcore.Element) *xmppcore.Element
}

// boundSession pairs a session with the order it was bound in, so a tie
// among equal-priority resources can be broken deterministically instead of
// relying on Go's randomized map iteration order.
type boundSession struct {
	session LocalSession
	seq     int64
}

// Router is the single dispatch point every accepted stanza passes
// through.
type Router struct {
	localDomain string
	log         *logrus.Entry

	mu       sync.RWMutex
	sessions map[string]map[string]boundSession // bare JID -> resource -> session
	nextSeq  int64

	modules map[string]Module // namespace -> module

	roster  RosterStore
	offline OfflineStore
	s2s     S2SDispatcher
}

// New creates a Router serving localDomain.
func New(localDomain string, roster RosterStore, offline OfflineStore, s2s S2SDispatcher, log *logrus.Entry) *Router {
	return &Router{
		localDomain: localDomain,
		log:         log,
		sessions:    make(map[string]map[string]boundSession),
		modules:     make(map[string]Module),
		roster:      roster,
		offline:     offline,
		s2s:         s2s,
	}
}

// RegisterModule adds a namespace-scoped IQ module.
func (r *Router) RegisterModule(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.Namespace()] = m
}

// Bind registers a session under its full JID, making it reachable.
func (r *Router) Bind(s LocalSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bare := s.JID().Bare()
	byResource, ok := r.sessions[bare]
	if !ok {
		byResource = make(map[string]boundSession)
		r.sessions[bare] = byResource
	}
	r.nextSeq++
	byResource[s.JID().Resource] = boundSession{session: s, seq: r.nextSeq}
}

// Unbind removes a session, e.g. on disconnect.
func (r *Router) Unbind(s LocalSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bare := s.JID().Bare()
	byResource, ok := r.sessions[bare]
	if !ok {
		return
	}
	delete(byResource, s.JID().Resource)
	if len(byResource) == 0 {
		delete(r.sessions, bare)
	}
}

// Roster returns owner's roster items and version, delegated to the
// configured RosterStore.
func (r *Router) Roster(owner xmppcore.JID) ([]xmppim.RosterItem, string) {
	return r.roster.Get(owner)
}

// SetRosterItem upserts (or, per RosterItemSubscriptionRemove, deletes) a
// roster item for owner.
func (r *Router) SetRosterItem(owner xmppcore.JID, item xmppim.RosterItem) {
	r.roster.Set(owner, item)
}

// Route dispatches stanza per SPEC_FULL.md §4.7. from is the sender's
// already-authorized full JID, used to build error replies.
func (r *Router) Route(from xmppcore.JID, stanza *xmppcore.Element) error {
	toStr := stanza.AttrOrEmpty("to")
	if toStr == "" {
		return r.routeLocalBare(from, from.ToBare(), stanza)
	}
	to, err := xmppcore.ParseJID(toStr)
	if err != nil {
		return errors.Wrap(err, "router: invalid to attribute")
	}

	if to.Domain != r.localDomain {
		return r.s2s.Forward(to, stanza)
	}

	if xmppcore.IsIQ(stanza) {
		if payload := xmppcore.IQPayload(stanza); payload != nil {
			if reply := r.dispatchModule(from, to, stanza, payload); reply != nil {
				r.deliverOrBounce(from, to, reply)
				return nil
			}
		}
	}

	if to.IsFull() {
		return r.routeFull(from, to, stanza)
	}
	return r.routeLocalBare(from, to, stanza)
}

func (r *Router) dispatchModule(from, to xmppcore.JID, iq, payload *xmppcore.Element) *xmppcore.Element {
	r.mu.RLock()
	m, ok := r.modules[payload.Namespace()]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return m.HandleIQ(from, iq, payload)
}

// deliverOrBounce sends a module-produced reply back through the router,
// swallowing the (rare) case where the original sender has since vanished.
func (r *Router) deliverOrBounce(from, to xmppcore.JID, reply *xmppcore.Element) {
	if reply.AttrOrEmpty("to") == "" {
		reply = reply.WithAttr("", "to", from.FullString())
	}
	if reply.AttrOrEmpty("from") == "" {
		reply = reply.WithAttr("", "from", to.FullString())
	}
	if err := r.Route(to, reply); err != nil {
		r.log.WithError(err).Warn("router: failed to deliver module reply")
	}
}

func (r *Router) routeFull(from, to xmppcore.JID, stanza *xmppcore.Element) error {
	r.mu.RLock()
	session, ok := r.sessions[to.Bare()][to.Resource]
	r.mu.RUnlock()
	if !ok {
		if xmppcore.IsIQ(stanza) {
			return errServiceUnavailable(from, to, stanza, r)
		}
		return nil
	}
	session.session.Send(stanza)
	return nil
}

func (r *Router) routeLocalBare(from, to xmppcore.JID, stanza *xmppcore.Element) error {
	r.mu.RLock()
	byResource := r.sessions[to.Bare()]
	sessions := make([]boundSession, 0, len(byResource))
	for _, s := range byResource {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	switch {
	case xmppim.IsPresence(stanza):
		r.broadcastPresence(from, to, stanza, sessions)
		return nil
	case xmppcore.IsIQ(stanza):
		// A bare-JID <iq/> has no resource to select among; RFC 6121 §8.5.3
		// treats this the same whether or not any resource is bound.
		return errServiceUnavailable(from, to, stanza, r)
	case xmppim.IsMessage(stanza):
		return r.routeMessageToBare(from, to, stanza, sessions)
	default:
		return nil
	}
}

// broadcastPresence delivers to every bound resource, or - per SPEC_FULL.md
// §4.7 - materializes a subscribe request against the recipient's roster
// when no resource is bound to receive it directly.
func (r *Router) broadcastPresence(from, to xmppcore.JID, stanza *xmppcore.Element, sessions []boundSession) {
	if len(sessions) == 0 {
		if xmppim.PresenceType(stanza) == xmppim.PresenceTypeSubscribe {
			r.materializeSubscription(from, to)
		}
		return
	}
	for _, s := range sessions {
		s.session.Send(stanza)
	}
}

// materializeSubscription records that from asked to subscribe to to's
// presence, so the request survives until to's roster is next inspected
// (RFC 6121 §3.1.4).
func (r *Router) materializeSubscription(from, to xmppcore.JID) {
	items, _ := r.roster.Get(to)
	for _, it := range items {
		if it.JID.Bare() == from.Bare() {
			it.Ask = xmppim.RosterItemAskSubscribe
			r.roster.Set(to, it)
			return
		}
	}
	r.roster.Set(to, xmppim.RosterItem{
		JID:          from.ToBare(),
		Subscription: xmppim.RosterItemSubscriptionNone,
		Ask:          xmppim.RosterItemAskSubscribe,
	})
}

// routeMessageToBare applies the highest-priority-resource selection
// policy (SPEC_FULL.md §4.7): deliver to the single highest-priority
// available resource, breaking ties by the bind sequence number Bind
// assigns each session so the most recently bound resource wins
// regardless of map iteration order.
func (r *Router) routeMessageToBare(from, to xmppcore.JID, stanza *xmppcore.Element, sessions []boundSession) error {
	if len(sessions) == 0 {
		if xmppim.MessageType(stanza) == xmppim.MessageTypeChat || xmppim.MessageType(stanza) == xmppim.MessageTypeNormal {
			r.offline.Enqueue(to, stanza)
		}
		return nil
	}

	var best boundSession
	for _, s := range sessions {
		if best.session == nil ||
			s.session.Priority() > best.session.Priority() ||
			(s.session.Priority() == best.session.Priority() && s.seq > best.seq) {
			best = s
		}
	}
	best.session.Send(stanza)
	return nil
}

// BroadcastAvailability sends presence (an available or unavailable
// announcement) from owner to every roster contact subscribed to owner's
// presence, per RFC 6121 §4.4.2.
func (r *Router) BroadcastAvailability(owner xmppcore.JID, presence *xmppcore.Element) {
	for _, contact := range r.roster.SubscribersOf(owner) {
		if err := r.Route(owner, presence.WithAttr("", "to", contact.FullString())); err != nil {
			r.log.WithError(err).Warn("router: failed to broadcast availability")
		}
	}
}

func errServiceUnavailable(from, to xmppcore.JID, stanza *xmppcore.Element, r *Router) error {
	reply := xmppcore.ErrorReply(stanza, to, from, xmppcore.NewStanzaError(xmppcore.StanzaErrorConditionServiceUnavailable))
	if err := r.Route(to, reply); err != nil {
		r.log.WithError(err).Warn("router: failed to deliver service-unavailable bounce")
	}
	return nil
}
