// Package xmppversion implements XEP-0092: Software Version.
package xmppversion

import "github.com/technologistkj/mina-vysper/pkg/xmppcore"

const NS = "jabber:iq:version"

const ElementName = NS + " query"

// IsVersionGet reports whether iqPayload is a software version request.
func IsVersionGet(iqPayload *xmppcore.Element) bool {
	return iqPayload != nil && iqPayload.Namespace() == NS && iqPayload.Name() == "query"
}

// ResultElement builds the <query/> result payload.
func ResultElement(name, version, os string) *xmppcore.Element {
	q := xmppcore.NewElement(NS, "query").
		WithChild(xmppcore.NewElement("", "name").WithText(name)).
		WithChild(xmppcore.NewElement("", "version").WithText(version))
	if os != "" {
		q = q.WithChild(xmppcore.NewElement("", "os").WithText(os))
	}
	return q
}

// Module answers XEP-0092 software version requests with a fixed
// name/version/os triple, satisfying router.Module by structural typing.
type Module struct {
	Name    string
	Version string
	OS      string
}

// NewModule creates a version-answering module reporting name/version/os.
func NewModule(name, version, os string) Module {
	return Module{Name: name, Version: version, OS: os}
}

func (m Module) Namespace() string { return NS }

func (m Module) HandleIQ(from xmppcore.JID, iq, payload *xmppcore.Element) *xmppcore.Element {
	if xmppcore.IQType(iq) != xmppcore.IQTypeGet || !IsVersionGet(payload) {
		return nil
	}
	return xmppcore.ResultIQ(iq, xmppcore.JID{}, xmppcore.JID{}, ResultElement(m.Name, m.Version, m.OS))
}
