// Package session implements the per-connection client session state
// machine (SPEC_FULL.md §4.5): stream negotiation, STARTTLS, SASL, resource
// binding, and stanza hand-off to the router. Every session owns a single
// actor goroutine - reads are pumped in from a background goroutine as
// closures on actorCh, the same mailbox shape the teacher used in its
// c2sStream, so no two goroutines ever touch session state concurrently.
package session

import (
	"crypto/tls"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/technologistkj/mina-vysper/pkg/router"
	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
	"github.com/technologistkj/mina-vysper/pkg/xmppim"
	"github.com/technologistkj/mina-vysper/pkg/xmppsasl"
)

// mailboxSize bounds a session's actor mailbox, standing in for the
// per-session outbound queue depth SPEC_FULL.md §5 requires (default 256
// stanzas; the mailbox also carries inbound decode events, so this is
// shared capacity rather than a queue reserved solely for outbound Sends).
const mailboxSize = 256

// TLSConfig supplies the certificate used once STARTTLS is negotiated.
type TLSConfig interface {
	Config() *tls.Config
}

// Session drives one client connection end to end.
type Session struct {
	id     string
	domain string
	log    *logrus.Entry

	conn      net.Conn
	tlsConfig *tls.Config

	decoder *xmppcore.Decoder
	writer  *writer

	router      *router.Router
	credentials xmppsasl.CredentialStore

	actorCh chan func()
	closeCh chan struct{}
	once    sync.Once

	streamOpened  bool
	encrypted     bool
	authenticated bool
	bound         bool
	closed        bool

	jid      xmppcore.JID
	priority int8
	mech     xmppsasl.Mechanism
	streamID string

	saslFailures int
}

// New creates a Session for an already-accepted connection. Call Run to
// start pumping events.
func New(id, domain string, conn net.Conn, tlsConfig *tls.Config, r *router.Router, credentials xmppsasl.CredentialStore, log *logrus.Entry) *Session {
	s := &Session{
		id:          id,
		domain:      domain,
		log:         log,
		conn:        conn,
		tlsConfig:   tlsConfig,
		decoder:     xmppcore.NewDecoder(conn),
		router:      r,
		credentials: credentials,
		actorCh:     make(chan func(), mailboxSize),
		closeCh:     make(chan struct{}),
	}
	s.writer = newWriter(conn)
	return s
}

// JID implements router.LocalSession.
func (s *Session) JID() xmppcore.JID { return s.jid }

// Priority implements router.LocalSession.
func (s *Session) Priority() int8 { return s.priority }

// Send implements router.LocalSession: stanzas from the router are
// serialized onto the actor mailbox like everything else, so a delivery
// racing a client-initiated close can't write to a torn-down connection.
// A full mailbox means the session isn't draining its outbound traffic
// fast enough; per SPEC_FULL.md §5 that closes the session with a
// policy-violation stream error rather than blocking the caller (which
// would otherwise let one stalled client back up every session routing
// through it).
func (s *Session) Send(stanza *xmppcore.Element) {
	select {
	case s.actorCh <- func() { s.writer.writeElement(stanza) }:
	case <-s.closeCh:
	default:
		s.overflow()
	}
}

func (s *Session) overflow() {
	s.log.Warn("session: outbound queue overflow, closing")
	s.sendStreamError(xmppcore.StreamErrorConditionPolicyViolation, "outbound queue overflow")
	s.close()
}

// Run pumps decode events until the stream closes or a fatal error occurs.
// It blocks the calling goroutine; callers run it in its own goroutine per
// connection.
func (s *Session) Run() {
	go s.pumpReads()
	for {
		select {
		case f := <-s.actorCh:
			f()
			if s.closed {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// pumpReads is the sole owner of s.decoder; every outcome it produces is
// handed to the actor loop as a closure so mutation of session state stays
// single-threaded, matching the teacher's doRead/actorCh split.
func (s *Session) pumpReads() {
	for {
		outcome := s.decoder.Next()
		done := make(chan struct{})
		select {
		case s.actorCh <- func() { s.handleOutcome(outcome); close(done) }:
		case <-s.closeCh:
			return
		}
		<-done
		if outcome.Kind == xmppcore.StreamClose || outcome.Kind == xmppcore.DecodeError {
			return
		}
	}
}

func (s *Session) handleOutcome(outcome xmppcore.DecodeOutcome) {
	switch outcome.Kind {
	case xmppcore.StreamOpen:
		s.handleStreamOpen(outcome.Element)
	case xmppcore.TopLevelElement:
		s.handleElement(outcome.Element)
	case xmppcore.StreamClose:
		s.closeGracefully()
	case xmppcore.DecodeError:
		s.handleDecodeError(outcome)
	}
}

func (s *Session) handleDecodeError(outcome xmppcore.DecodeOutcome) {
	condition := xmppcore.StreamErrorConditionNotWellFormed
	if outcome.ErrKind == xmppcore.UnsupportedXML {
		condition = xmppcore.StreamErrorConditionUnsupportedVersion
	}
	s.log.WithError(outcome.Err).Warn("session: decode error, closing stream")
	s.sendStreamError(condition, outcome.Err.Error())
	s.close()
}

func (s *Session) sendStreamError(condition xmppcore.StreamErrorCondition, text string) {
	err := xmppcore.StreamError{Condition: condition, Text: text}
	s.writer.writeElement(err.Element())
	s.writer.writeRaw("</stream:stream>")
}

func (s *Session) closeGracefully() {
	s.writer.writeRaw("</stream:stream>")
	s.close()
}

func (s *Session) close() {
	s.once.Do(func() {
		s.closed = true
		if s.jid.IsFull() {
			s.router.Unbind(s)
			offline := xmppim.NewPresence("", xmppim.PresenceTypeUnavailable, s.jid, xmppcore.JID{})
			s.router.BroadcastAvailability(s.jid.ToBare(), offline)
		}
		close(s.closeCh)
		s.conn.Close()
	})
}
