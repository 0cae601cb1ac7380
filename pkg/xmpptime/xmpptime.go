// Package xmpptime implements XEP-0202: Entity Time.
package xmpptime

import (
	"fmt"
	"time"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
)

const NS = "urn:xmpp:time"

const ElementName = NS + " time"

// IsTimeGet reports whether iqPayload is an entity time request.
func IsTimeGet(iqPayload *xmppcore.Element) bool {
	return iqPayload != nil && iqPayload.Namespace() == NS && iqPayload.Name() == "time"
}

// ResultElement builds the <time/> result payload for instant, expressed
// per XEP-0202: <tzo/> as the local UTC offset and <utc/> in UTC with
// second precision, both RFC 3339-formatted.
func ResultElement(instant time.Time) *xmppcore.Element {
	_, offset := instant.Zone()
	tzo := formatOffset(offset)
	return xmppcore.NewElement(NS, "time").
		WithChild(xmppcore.NewElement("", "tzo").WithText(tzo)).
		WithChild(xmppcore.NewElement("", "utc").WithText(instant.UTC().Format("2006-01-02T15:04:05Z")))
}

// Module answers XEP-0202 entity time requests with the local clock,
// satisfying router.Module by structural typing.
type Module struct{}

// NewModule creates a time-answering module.
func NewModule() Module { return Module{} }

func (Module) Namespace() string { return NS }

func (Module) HandleIQ(from xmppcore.JID, iq, payload *xmppcore.Element) *xmppcore.Element {
	if xmppcore.IQType(iq) != xmppcore.IQTypeGet || !IsTimeGet(payload) {
		return nil
	}
	return xmppcore.ResultIQ(iq, xmppcore.JID{}, xmppcore.JID{}, ResultElement(time.Now()))
}

func formatOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	return fmt.Sprintf("%s%02d:%02d", sign, h, m)
}
