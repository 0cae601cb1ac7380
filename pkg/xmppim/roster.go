package xmppim

import "github.com/technologistkj/mina-vysper/pkg/xmppcore"

// RFC 6121 §2 Roster.

const RosterNS = "jabber:iq:roster"

const RosterQueryElementName = RosterNS + " query"

const RosterItemAskSubscribe = "subscribe"

// RFC 6121 §3.1.2 subscription states.
const (
	RosterItemSubscriptionBoth   = "both"
	RosterItemSubscriptionFrom   = "from"
	RosterItemSubscriptionNone   = "none"
	RosterItemSubscriptionRemove = "remove"
	RosterItemSubscriptionTo     = "to"
)

// RosterItem is a single contact in a user's roster.
type RosterItem struct {
	JID          xmppcore.JID
	Name         string
	Subscription string
	Ask          string
	Groups       []string
}

// Element renders a roster item as its wire element.
func (it RosterItem) Element() *xmppcore.Element {
	el := xmppcore.NewElement("", "item").WithAttr("", "jid", it.JID.FullString())
	if it.Name != "" {
		el = el.WithAttr("", "name", it.Name)
	}
	if it.Subscription != "" {
		el = el.WithAttr("", "subscription", it.Subscription)
	}
	if it.Ask != "" {
		el = el.WithAttr("", "ask", it.Ask)
	}
	for _, g := range it.Groups {
		el = el.WithChild(xmppcore.NewElement("", "group").WithText(g))
	}
	return el
}

// ParseRosterItem reads a roster item from its wire element.
func ParseRosterItem(el *xmppcore.Element) (RosterItem, error) {
	jid, err := xmppcore.ParseJID(el.AttrOrEmpty("jid"))
	if err != nil {
		return RosterItem{}, err
	}
	it := RosterItem{
		JID:          jid,
		Name:         el.AttrOrEmpty("name"),
		Subscription: el.AttrOrEmpty("subscription"),
		Ask:          el.AttrOrEmpty("ask"),
	}
	for _, g := range el.Children() {
		if g.Name() == "group" {
			it.Groups = append(it.Groups, g.Text())
		}
	}
	return it, nil
}

// IsRosterGet reports whether iqPayload is a roster <query/> request.
func IsRosterGet(iqPayload *xmppcore.Element) bool {
	return iqPayload != nil && iqPayload.Namespace() == RosterNS && iqPayload.Name() == "query"
}

// RosterResultElement builds the <query/> result payload listing items.
func RosterResultElement(ver string, items []RosterItem) *xmppcore.Element {
	q := xmppcore.NewElement(RosterNS, "query")
	if ver != "" {
		q = q.WithAttr("", "ver", ver)
	}
	for _, it := range items {
		q = q.WithChild(it.Element())
	}
	return q
}
