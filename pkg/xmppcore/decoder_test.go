package xmppcore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecoderEmitsStreamOpenThenTopLevelElements covers the basic contract:
// the header closes into a StreamOpen carrying only its own attributes, and
// each direct child of the stream is materialized whole on its own Next
// call, in order.
func TestDecoderEmitsStreamOpenThenTopLevelElements(t *testing.T) {
	r := strings.NewReader(`<stream:stream xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' to='vysper.org' version='1.0'>
		<iq id='1' type='get'><ping xmlns='urn:xmpp:ping'/></iq>
		<presence/>
	</stream:stream>`)
	d := NewDecoder(r)

	open := d.Next()
	require.Equal(t, StreamOpen, open.Kind)
	assert.Equal(t, "stream", open.Element.Name())
	assert.Equal(t, JabberStreamsNS, open.Element.Namespace())
	assert.Equal(t, "vysper.org", open.Element.AttrOrEmpty("to"))
	assert.Nil(t, open.Element.Children())

	iq := d.Next()
	require.Equal(t, TopLevelElement, iq.Kind)
	assert.Equal(t, "iq", iq.Element.Name())
	ping := iq.Element.Child("ping")
	require.NotNil(t, ping)
	assert.Equal(t, "urn:xmpp:ping", ping.Namespace())

	presence := d.Next()
	require.Equal(t, TopLevelElement, presence.Kind)
	assert.Equal(t, "presence", presence.Element.Name())

	closed := d.Next()
	assert.Equal(t, StreamClose, closed.Kind)
}

// TestDecoderResolvesPrefixDeclaredOnlyOnStreamHeader is the regression test
// for a decoder that forgot namespace-prefix bindings between Next calls: a
// real dialback peer declares xmlns:db once on <stream:stream> and then
// sends <db:result/> using that prefix rather than re-declaring xmlns= on
// every element. Namespace() must resolve to the full URI, never the raw
// "db" prefix string.
func TestDecoderResolvesPrefixDeclaredOnlyOnStreamHeader(t *testing.T) {
	r := strings.NewReader(`<stream:stream xmlns='jabber:server' xmlns:stream='http://etherx.jabber.org/streams' xmlns:db='jabber:server:dialback' from='vysper.org' to='remote.example' version='1.0'>
		<db:result from='vysper.org' to='remote.example'>somekey</db:result>
	</stream:stream>`)
	d := NewDecoder(r)

	require.Equal(t, StreamOpen, d.Next().Kind)

	result := d.Next()
	require.Equal(t, TopLevelElement, result.Kind)
	assert.Equal(t, "result", result.Element.Name())
	assert.Equal(t, "jabber:server:dialback", result.Element.Namespace())
	assert.Equal(t, "somekey", result.Element.Text())
}

// TestDecoderDropsWhitespaceBetweenTopLevelElements confirms text nodes
// occurring outside of any element being materialized (the indentation
// between stanzas) never surface as their own outcome.
func TestDecoderDropsWhitespaceBetweenTopLevelElements(t *testing.T) {
	r := strings.NewReader("<stream:stream xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams'>\n\n   <presence/>\n\n</stream:stream>")
	d := NewDecoder(r)

	require.Equal(t, StreamOpen, d.Next().Kind)

	only := d.Next()
	require.Equal(t, TopLevelElement, only.Kind)
	assert.Equal(t, "presence", only.Element.Name())

	assert.Equal(t, StreamClose, d.Next().Kind)
}

// TestDecoderRejectsDoctype covers the RFC 6120 §11.4 profile restriction:
// a DOCTYPE declaration is well-formed XML but forbidden on an XMPP stream.
func TestDecoderRejectsDoctype(t *testing.T) {
	r := strings.NewReader(`<stream:stream xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams'>
		<!DOCTYPE foo>
	</stream:stream>`)
	d := NewDecoder(r)

	require.Equal(t, StreamOpen, d.Next().Kind)

	bad := d.Next()
	require.Equal(t, DecodeError, bad.Kind)
	assert.Equal(t, UnsupportedXML, bad.ErrKind)
}

// TestDecoderResetStartsFreshEpoch covers the STARTTLS/SASL restart path: a
// prefix scope from the old epoch must not leak into the new one, and the
// new stream's own header is expected again from the start.
func TestDecoderResetStartsFreshEpoch(t *testing.T) {
	first := strings.NewReader(`<stream:stream xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' xmlns:db='jabber:server:dialback'>`)
	d := NewDecoder(first)
	require.Equal(t, StreamOpen, d.Next().Kind)

	second := strings.NewReader(`<stream:stream xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams'>
		<db:result>somekey</db:result>
	</stream:stream>`)
	d.Reset(second)

	reopened := d.Next()
	require.Equal(t, StreamOpen, reopened.Kind)

	unresolved := d.Next()
	require.Equal(t, TopLevelElement, unresolved.Kind)
	assert.Equal(t, "db", unresolved.Element.Namespace())
}
