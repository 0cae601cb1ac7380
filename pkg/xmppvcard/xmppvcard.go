// Package xmppvcard implements XEP-0054: vcard-temp.
package xmppvcard

import "github.com/technologistkj/mina-vysper/pkg/xmppcore"

const (
	NS          = "vcard-temp"
	ElementName = NS + " vCard"
)

// VCard holds the small subset of vcard-temp fields parsed into named
// fields (FN, NICKNAME); every other child is preserved verbatim in Extra so
// a parse/render round trip doesn't lose data. This package keeps no vCard
// store of its own.
type VCard struct {
	FullName string
	Nickname string
	Extra    []*xmppcore.Element
}

// IsVCardIQ reports whether iqPayload is a vCard get/set.
func IsVCardIQ(iqPayload *xmppcore.Element) bool {
	return iqPayload != nil && iqPayload.Namespace() == NS && iqPayload.Name() == "vCard"
}

// ParseVCard reads a VCard from its wire element.
func ParseVCard(el *xmppcore.Element) VCard {
	v := VCard{}
	for _, c := range el.Children() {
		switch c.Name() {
		case "FN":
			v.FullName = c.Text()
		case "NICKNAME":
			v.Nickname = c.Text()
		default:
			v.Extra = append(v.Extra, c)
		}
	}
	return v
}

// Element renders the VCard as its wire element.
func (v VCard) Element() *xmppcore.Element {
	el := xmppcore.NewElement(NS, "vCard")
	if v.FullName != "" {
		el = el.WithChild(xmppcore.NewElement("", "FN").WithText(v.FullName))
	}
	if v.Nickname != "" {
		el = el.WithChild(xmppcore.NewElement("", "NICKNAME").WithText(v.Nickname))
	}
	for _, extra := range v.Extra {
		el = el.WithChild(extra)
	}
	return el
}
