// Package xmppdisco implements XEP-0030 Service Discovery.
package xmppdisco

import "github.com/technologistkj/mina-vysper/pkg/xmppcore"

const (
	InfoNS  = "http://jabber.org/protocol/disco#info"
	ItemsNS = "http://jabber.org/protocol/disco#items"
)

const (
	InfoQueryElementName  = InfoNS + " query"
	ItemsQueryElementName = ItemsNS + " query"
)

// https://xmpp.org/registrar/disco-categories.html
const (
	IdentityCategoryAccount       = "account"
	IdentityCategoryAuth          = "auth"
	IdentityCategoryAutomation    = "automation"
	IdentityCategoryClient        = "client"
	IdentityCategoryCollaboration = "collaboration"
	IdentityCategoryComponent     = "component"
	IdentityCategoryConference    = "conference"
	IdentityCategoryDirectory     = "directory"
	IdentityCategoryGateway       = "gateway"
	IdentityCategoryHeadline      = "headline"
	IdentityCategoryHierarchy     = "hierarchy"
	IdentityCategoryProxy         = "proxy"
	IdentityCategoryPubsub        = "pubsub"
	IdentityCategoryServer        = "server"
	IdentityCategoryStore         = "store"
)

// Identity is a single <identity/> advertised in a disco#info result.
type Identity struct {
	Category string
	Type     string
	Name     string
}

func (i Identity) Element() *xmppcore.Element {
	el := xmppcore.NewElement("", "identity").
		WithAttr("", "category", i.Category).
		WithAttr("", "type", i.Type)
	if i.Name != "" {
		el = el.WithAttr("", "name", i.Name)
	}
	return el
}

// Item is a single <item/> advertised in a disco#items result.
type Item struct {
	JID  xmppcore.JID
	Name string
	Node string
}

func (it Item) Element() *xmppcore.Element {
	el := xmppcore.NewElement("", "item").WithAttr("", "jid", it.JID.FullString())
	if it.Name != "" {
		el = el.WithAttr("", "name", it.Name)
	}
	if it.Node != "" {
		el = el.WithAttr("", "node", it.Node)
	}
	return el
}

// IsInfoGet reports whether iqPayload is a disco#info query.
func IsInfoGet(iqPayload *xmppcore.Element) bool {
	return iqPayload != nil && iqPayload.Namespace() == InfoNS && iqPayload.Name() == "query"
}

// IsItemsGet reports whether iqPayload is a disco#items query.
func IsItemsGet(iqPayload *xmppcore.Element) bool {
	return iqPayload != nil && iqPayload.Namespace() == ItemsNS && iqPayload.Name() == "query"
}

// QueryNode returns the node= attribute of a disco query, if any.
func QueryNode(iqPayload *xmppcore.Element) string {
	return iqPayload.AttrOrEmpty("node")
}

// InfoResultElement builds a disco#info <query/> result.
func InfoResultElement(node string, identities []Identity, features []string) *xmppcore.Element {
	q := xmppcore.NewElement(InfoNS, "query")
	if node != "" {
		q = q.WithAttr("", "node", node)
	}
	for _, id := range identities {
		q = q.WithChild(id.Element())
	}
	for _, f := range features {
		q = q.WithChild(xmppcore.NewElement("", "feature").WithAttr("", "var", f))
	}
	return q
}

// ItemsResultElement builds a disco#items <query/> result.
func ItemsResultElement(node string, items []Item) *xmppcore.Element {
	q := xmppcore.NewElement(ItemsNS, "query")
	if node != "" {
		q = q.WithAttr("", "node", node)
	}
	for _, it := range items {
		q = q.WithChild(it.Element())
	}
	return q
}
