package router

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
	"github.com/technologistkj/mina-vysper/pkg/xmppim"
)

type fakeSession struct {
	jid      xmppcore.JID
	priority int8
	inbox    []*xmppcore.Element
}

func (s *fakeSession) JID() xmppcore.JID     { return s.jid }
func (s *fakeSession) Priority() int8        { return s.priority }
func (s *fakeSession) Send(el *xmppcore.Element) { s.inbox = append(s.inbox, el) }

type fakeRoster struct {
	subscribers map[string][]xmppcore.JID
	items       map[string]map[string]xmppim.RosterItem
}

func (r *fakeRoster) Get(owner xmppcore.JID) ([]xmppim.RosterItem, string) {
	byContact := r.items[owner.Bare()]
	items := make([]xmppim.RosterItem, 0, len(byContact))
	for _, it := range byContact {
		items = append(items, it)
	}
	return items, ""
}

func (r *fakeRoster) Set(owner xmppcore.JID, item xmppim.RosterItem) {
	if r.items == nil {
		r.items = map[string]map[string]xmppim.RosterItem{}
	}
	byContact, ok := r.items[owner.Bare()]
	if !ok {
		byContact = map[string]xmppim.RosterItem{}
		r.items[owner.Bare()] = byContact
	}
	if item.Subscription == xmppim.RosterItemSubscriptionRemove {
		delete(byContact, item.JID.Bare())
		return
	}
	byContact[item.JID.Bare()] = item
}

func (r *fakeRoster) Subscribed(owner, contact xmppcore.JID) bool {
	for _, j := range r.subscribers[owner.Bare()] {
		if j.Bare() == contact.Bare() {
			return true
		}
	}
	return false
}

func (r *fakeRoster) SubscribersOf(owner xmppcore.JID) []xmppcore.JID {
	return r.subscribers[owner.Bare()]
}

type fakeOffline struct {
	queued []*xmppcore.Element
}

func (o *fakeOffline) Enqueue(owner xmppcore.JID, stanza *xmppcore.Element) {
	o.queued = append(o.queued, stanza)
}

type fakeS2S struct {
	sent []*xmppcore.Element
}

func (s *fakeS2S) Forward(to xmppcore.JID, stanza *xmppcore.Element) error {
	s.sent = append(s.sent, stanza)
	return nil
}

func newTestRouter() (*Router, *fakeRoster, *fakeOffline, *fakeS2S) {
	roster := &fakeRoster{subscribers: map[string][]xmppcore.JID{}}
	offline := &fakeOffline{}
	s2s := &fakeS2S{}
	log := logrus.NewEntry(logrus.New())
	return New("vysper.org", roster, offline, s2s, log), roster, offline, s2s
}

func TestRouteFullJIDDeliversDirectly(t *testing.T) {
	r, _, _, _ := newTestRouter()
	to, _ := xmppcore.New("user2", "vysper.org", "phone")
	sess := &fakeSession{jid: to}
	r.Bind(sess)

	from, _ := xmppcore.New("user1", "vysper.org", "tablet")
	msg := xmppim.NewMessage("1", xmppim.MessageTypeChat, from, to)

	require.NoError(t, r.Route(from, msg))
	assert.Len(t, sess.inbox, 1)
}

func TestRouteMessageToBarePicksHighestPriority(t *testing.T) {
	r, _, _, _ := newTestRouter()
	low, _ := xmppcore.New("user2", "vysper.org", "phone")
	high, _ := xmppcore.New("user2", "vysper.org", "desktop")
	lowSess := &fakeSession{jid: low, priority: 1}
	highSess := &fakeSession{jid: high, priority: 10}
	r.Bind(lowSess)
	r.Bind(highSess)

	from, _ := xmppcore.New("user1", "vysper.org", "tablet")
	bare, _ := xmppcore.New("user2", "vysper.org", "")
	msg := xmppim.NewMessage("1", xmppim.MessageTypeChat, from, bare)

	require.NoError(t, r.Route(from, msg))
	assert.Len(t, highSess.inbox, 1)
	assert.Len(t, lowSess.inbox, 0)
}

func TestRouteMessageToBarePicksMostRecentlyBoundOnTie(t *testing.T) {
	r, _, _, _ := newTestRouter()
	first, _ := xmppcore.New("user2", "vysper.org", "phone")
	second, _ := xmppcore.New("user2", "vysper.org", "desktop")
	firstSess := &fakeSession{jid: first, priority: 5}
	secondSess := &fakeSession{jid: second, priority: 5}
	r.Bind(firstSess)
	r.Bind(secondSess)

	from, _ := xmppcore.New("user1", "vysper.org", "tablet")
	bare, _ := xmppcore.New("user2", "vysper.org", "")
	msg := xmppim.NewMessage("1", xmppim.MessageTypeChat, from, bare)

	require.NoError(t, r.Route(from, msg))
	assert.Len(t, secondSess.inbox, 1)
	assert.Len(t, firstSess.inbox, 0)
}

func TestPresenceSubscribeMaterializesRosterAsk(t *testing.T) {
	r, roster, _, _ := newTestRouter()
	from, _ := xmppcore.New("user1", "vysper.org", "tablet")
	to, _ := xmppcore.New("user2", "vysper.org", "")

	presence := xmppim.NewPresence("", xmppim.PresenceTypeSubscribe, from, to)
	require.NoError(t, r.Route(from, presence))

	items, _ := roster.Get(to)
	require.Len(t, items, 1)
	assert.Equal(t, xmppim.RosterItemAskSubscribe, items[0].Ask)
}

func TestRouteMessageToBareNoSessionGoesOffline(t *testing.T) {
	r, _, offline, _ := newTestRouter()
	from, _ := xmppcore.New("user1", "vysper.org", "tablet")
	bare, _ := xmppcore.New("user2", "vysper.org", "")
	msg := xmppim.NewMessage("1", xmppim.MessageTypeChat, from, bare)

	require.NoError(t, r.Route(from, msg))
	assert.Len(t, offline.queued, 1)
}

func TestRouteToRemoteDomainForwardsToS2S(t *testing.T) {
	r, _, _, s2s := newTestRouter()
	from, _ := xmppcore.New("user1", "vysper.org", "tablet")
	remote, _ := xmppcore.New("user3", "otherhost.example", "")
	msg := xmppim.NewMessage("1", xmppim.MessageTypeChat, from, remote)

	require.NoError(t, r.Route(from, msg))
	assert.Len(t, s2s.sent, 1)
}

func TestRouteIQToBareIsServiceUnavailable(t *testing.T) {
	r, _, _, _ := newTestRouter()
	from, _ := xmppcore.New("user1", "vysper.org", "tablet")
	sess := &fakeSession{jid: from}
	r.Bind(sess)

	bare, _ := xmppcore.New("user2", "vysper.org", "")
	iq := xmppcore.NewIQ("1", xmppcore.IQTypeGet, from, bare).WithChild(xmppcore.NewElement("urn:xmpp:ping", "ping"))

	require.NoError(t, r.Route(from, iq))
	require.Len(t, sess.inbox, 1)
	assert.Equal(t, "error", sess.inbox[0].AttrOrEmpty("type"))
}

func TestBroadcastAvailabilitySendsToSubscribers(t *testing.T) {
	r, roster, _, _ := newTestRouter()
	owner, _ := xmppcore.New("user1", "vysper.org", "tablet")
	contact, _ := xmppcore.New("user2", "vysper.org", "")
	contactSession := &fakeSession{jid: xmppcore.JID{Local: "user2", Domain: "vysper.org", Resource: "phone"}}
	r.Bind(contactSession)
	roster.subscribers[owner.Bare()] = []xmppcore.JID{contact}

	presence := xmppim.NewPresence("", "", owner, xmppcore.JID{})
	r.BroadcastAvailability(owner, presence)

	assert.Len(t, contactSession.inbox, 1)
}
