package xmppim

import "github.com/technologistkj/mina-vysper/pkg/xmppcore"

// XEP-0115: Entity Capabilities.

const CapsNS = "http://jabber.org/protocol/caps"

const CapsCElementName = CapsNS + " c"

// CapsC is the <c/> capabilities hash advertised in a presence broadcast.
type CapsC struct {
	Hash string
	Node string
	Ver  string
}

// Element renders the capabilities hash.
func (c CapsC) Element() *xmppcore.Element {
	return xmppcore.NewElement(CapsNS, "c").
		WithAttr("", "hash", c.Hash).
		WithAttr("", "node", c.Node).
		WithAttr("", "ver", c.Ver)
}

// ParseCapsC extracts a CapsC from a presence stanza's <c/> child, if any.
func ParseCapsC(presence *xmppcore.Element) (CapsC, bool) {
	c := presence.ChildNamespace("c", CapsNS)
	if c == nil {
		return CapsC{}, false
	}
	return CapsC{
		Hash: c.AttrOrEmpty("hash"),
		Node: c.AttrOrEmpty("node"),
		Ver:  c.AttrOrEmpty("ver"),
	}, true
}
