package session

import (
	"crypto/tls"
	"encoding/base64"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technologistkj/mina-vysper/internal/storage"
	"github.com/technologistkj/mina-vysper/pkg/router"
	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
	"github.com/technologistkj/mina-vysper/pkg/xmppim"
)

type nopRoster struct{}

func (nopRoster) Get(owner xmppcore.JID) ([]xmppim.RosterItem, string) { return nil, "" }
func (nopRoster) Set(owner xmppcore.JID, item xmppim.RosterItem)       {}
func (nopRoster) Subscribed(owner, contact xmppcore.JID) bool          { return false }
func (nopRoster) SubscribersOf(owner xmppcore.JID) []xmppcore.JID      { return nil }

type nopOffline struct{}

func (nopOffline) Enqueue(owner xmppcore.JID, stanza *xmppcore.Element) {}

type nopS2S struct{}

func (nopS2S) Forward(to xmppcore.JID, stanza *xmppcore.Element) error { return nil }

func newTestSession(t *testing.T, tlsConfig *tls.Config) (*Session, net.Conn) {
	t.Helper()
	accounts := storage.NewAccountManagement()
	accounts.AddAccount("juliet", "R0m30")
	r := router.New("vysper.org", storage.NewRosterManager(), nopOffline{}, nopS2S{}, logrus.NewEntry(logrus.New()))

	serverConn, clientConn := net.Pipe()
	s := New("test-1", "vysper.org", serverConn, tlsConfig, r, accounts, logrus.NewEntry(logrus.New()))
	go s.Run()
	return s, clientConn
}

func readAvailable(t *testing.T, conn net.Conn, timeout time.Duration) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, 4096)
	var out strings.Builder
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return out.String()
}

// TestStreamOpenAdvertisesSASLWithoutTLS exercises the negotiation path when
// no TLS certificate is configured: the server must skip STARTTLS and offer
// mechanisms directly instead of stalling forever waiting for a
// never-to-be-requested upgrade.
func TestStreamOpenAdvertisesSASLWithoutTLS(t *testing.T) {
	_, conn := newTestSession(t, nil)
	defer conn.Close()

	_, err := conn.Write([]byte("<stream:stream to='vysper.org' xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' version='1.0'>"))
	require.NoError(t, err)

	out := readAvailable(t, conn, 500*time.Millisecond)
	assert.Contains(t, out, "<stream:stream")
	assert.Contains(t, out, "PLAIN")
	assert.NotContains(t, out, "starttls")
}

// TestStreamOpenRejectsUnknownVirtualHost checks the to= guard fires before
// any feature negotiation happens.
func TestStreamOpenRejectsUnknownVirtualHost(t *testing.T) {
	_, conn := newTestSession(t, nil)
	defer conn.Close()

	_, err := conn.Write([]byte("<stream:stream to='other.example' xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' version='1.0'>"))
	require.NoError(t, err)

	out := readAvailable(t, conn, 500*time.Millisecond)
	assert.Contains(t, out, "host-unknown")
}

// TestFeaturesTransitionsAcrossNegotiation checks the boolean-flag state
// machine directly: a stream restart after STARTTLS or SASL success must not
// re-advertise a step the client already completed.
func TestFeaturesTransitionsAcrossNegotiation(t *testing.T) {
	s, conn := newTestSession(t, &tls.Config{})
	defer conn.Close()

	f := s.features()
	assert.True(t, f.StartTLS)
	assert.Empty(t, f.Mechanisms)

	s.encrypted = true
	f = s.features()
	assert.False(t, f.StartTLS)
	assert.NotEmpty(t, f.Mechanisms)

	s.authenticated = true
	f = s.features()
	assert.True(t, f.Bind)
	assert.True(t, f.Session)

	s.bound = true
	f = s.features()
	assert.False(t, f.Bind)
	assert.Empty(t, f.Mechanisms)
}

// TestHandleBindAssignsResourceAndBinds drives handleIQ directly to avoid
// round-tripping SASL through the pipe, confirming the router gets a bound
// session under the client-requested resource.
func TestHandleBindAssignsResourceAndBinds(t *testing.T) {
	s, conn := newTestSession(t, nil)
	defer conn.Close()

	jid, err := xmppcore.New("juliet", "vysper.org", "")
	require.NoError(t, err)
	s.jid = jid
	s.authenticated = true

	iq := xmppcore.NewIQ("bind1", xmppcore.IQTypeSet, xmppcore.JID{}, xmppcore.JID{}).
		WithChild(xmppcore.NewElement(xmppcore.BindNS, "bind").
			WithChild(xmppcore.NewElement("", "resource").WithText("balcony")))

	outCh := make(chan string, 1)
	go func() { outCh <- readAvailable(t, conn, 200*time.Millisecond) }()

	done := make(chan struct{})
	s.actorCh <- func() { s.handleIQ(iq); close(done) }
	<-done
	<-outCh

	assert.True(t, s.bound)
	assert.Equal(t, "balcony", s.jid.Resource)
}

// TestHandleRosterGetReturnsItems drives handleIQ directly, confirming a
// roster query reaches the router's RosterStore instead of falling through
// to routeStanza's service-unavailable default.
func TestHandleRosterGetReturnsItems(t *testing.T) {
	s, conn := newTestSession(t, nil)
	defer conn.Close()

	jid, err := xmppcore.New("juliet", "vysper.org", "balcony")
	require.NoError(t, err)
	s.jid = jid
	s.authenticated = true
	s.bound = true
	s.router.SetRosterItem(jid, xmppim.RosterItem{
		JID:          xmppcore.JID{Local: "romeo", Domain: "vysper.org"},
		Subscription: xmppim.RosterItemSubscriptionBoth,
	})

	iq := xmppcore.NewIQ("roster1", xmppcore.IQTypeGet, xmppcore.JID{}, xmppcore.JID{}).
		WithChild(xmppcore.NewElement(xmppim.RosterNS, "query"))

	outCh := make(chan string, 1)
	go func() { outCh <- readAvailable(t, conn, 200*time.Millisecond) }()

	done := make(chan struct{})
	s.actorCh <- func() { s.handleIQ(iq); close(done) }
	<-done

	out := <-outCh
	assert.Contains(t, out, "romeo@vysper.org")
	assert.Contains(t, out, "both")
}

// TestHandleSASLOverCleartextWithTLSRequiredFails confirms a client can't
// skip STARTTLS by jumping straight to <auth/>.
func TestHandleSASLOverCleartextWithTLSRequiredFails(t *testing.T) {
	s, conn := newTestSession(t, &tls.Config{})
	defer conn.Close()

	auth := xmppcore.NewElement(xmppcore.SASLNS, "auth").WithAttr("", "mechanism", "PLAIN")
	outCh := make(chan string, 1)
	go func() { outCh <- readAvailable(t, conn, 200*time.Millisecond) }()

	done := make(chan struct{})
	s.actorCh <- func() { s.handleSASL(auth); close(done) }
	<-done

	out := <-outCh
	assert.Contains(t, out, "encryption-required")
}

// TestSASLFailureClosesStreamAfterFiveAttempts covers the consecutive
// failure limit: a client that keeps guessing wrong credentials gets
// disconnected instead of allowed to retry forever.
func TestSASLFailureClosesStreamAfterFiveAttempts(t *testing.T) {
	s, conn := newTestSession(t, nil)
	defer conn.Close()

	badAuth := base64.StdEncoding.EncodeToString([]byte("\x00baduser\x00badpass"))
	auth := xmppcore.NewElement(xmppcore.SASLNS, "auth").WithAttr("", "mechanism", "PLAIN").WithText(badAuth)

	outCh := make(chan string, 1)
	go func() { outCh <- readAvailable(t, conn, 500*time.Millisecond) }()

	for i := 0; i < maxSASLFailures; i++ {
		done := make(chan struct{})
		s.actorCh <- func() { s.handleSASL(auth); close(done) }
		<-done
	}
	<-outCh

	assert.Equal(t, maxSASLFailures, s.saslFailures)
	assert.True(t, s.closed)
}

// TestHandleBindRejectsSecondBind covers RFC 6120 §7.2's already-bound
// error.
func TestHandleBindRejectsSecondBind(t *testing.T) {
	s, conn := newTestSession(t, nil)
	defer conn.Close()

	jid, err := xmppcore.New("juliet", "vysper.org", "balcony")
	require.NoError(t, err)
	s.jid = jid
	s.authenticated = true
	s.bound = true

	iq := xmppcore.NewIQ("bind2", xmppcore.IQTypeSet, xmppcore.JID{}, xmppcore.JID{}).
		WithChild(xmppcore.NewElement(xmppcore.BindNS, "bind"))

	outCh := make(chan string, 1)
	go func() { outCh <- readAvailable(t, conn, 200*time.Millisecond) }()

	done := make(chan struct{})
	s.actorCh <- func() { s.handleIQ(iq); close(done) }
	<-done

	out := <-outCh
	assert.Contains(t, out, "not-allowed")
}
