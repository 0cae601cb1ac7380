package s2s

import (
	"bytes"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/technologistkj/mina-vysper/pkg/router"
	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
)

// InboundSession drives one server-to-server connection initiated by a
// remote domain: it authenticates the peer via dialback and then feeds
// every stanza it receives into the local router as coming from that
// domain. Structured the same way as pkg/session.Session (decode loop plus
// serialized writes) but without the client-only negotiation steps
// (STARTTLS/SASL/bind) dialback doesn't use.
type InboundSession struct {
	localDomain string
	dispatcher  *Dispatcher
	router      *router.Router
	log         *logrus.Entry

	conn    net.Conn
	decoder *xmppcore.Decoder

	writeMu sync.Mutex

	streamID     string
	peerDomain   string
	peerVerified bool
}

// NewInboundSession wraps an accepted connection destined for the s2s
// (5269) listener.
func NewInboundSession(conn net.Conn, localDomain string, dispatcher *Dispatcher, r *router.Router, log *logrus.Entry) *InboundSession {
	return &InboundSession{
		localDomain: localDomain,
		dispatcher:  dispatcher,
		router:      r,
		log:         log,
		conn:        conn,
		decoder:     xmppcore.NewDecoder(conn),
	}
}

// Run pumps decode events until the stream ends. Unlike pkg/session, s2s
// streams don't restart mid-connection, so a single goroutine can own both
// the decoder and the state without an actor mailbox.
func (s *InboundSession) Run() {
	defer s.conn.Close()
	for {
		outcome := s.decoder.Next()
		switch outcome.Kind {
		case xmppcore.StreamOpen:
			s.handleStreamOpen(outcome.Element)
		case xmppcore.TopLevelElement:
			s.handleElement(outcome.Element)
		case xmppcore.StreamClose, xmppcore.DecodeError:
			return
		}
	}
}

func (s *InboundSession) write(el *xmppcore.Element) {
	var buf bytes.Buffer
	el.Render(&buf)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, _ = s.conn.Write(buf.Bytes())
}

func (s *InboundSession) writeRaw(raw string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, _ = s.conn.Write([]byte(raw))
}

func (s *InboundSession) handleStreamOpen(header *xmppcore.Element) {
	s.peerDomain = header.AttrOrEmpty("from")
	s.streamID = uuid.NewString()

	open := xmppcore.NewElement(xmppcore.JabberStreamsNS, "stream").
		WithAttr("", "xmlns", "jabber:server").
		WithAttr("", "xmlns:db", dialbackNS).
		WithAttr("", "from", s.localDomain).
		WithAttr("", "id", s.streamID).
		WithAttr("", "version", "1.0")
	s.writeRaw(openTag(open))
}

func (s *InboundSession) handleElement(el *xmppcore.Element) {
	switch {
	case el.Namespace() == dialbackNS && el.Name() == "result":
		s.handleDialbackResult(el)
	case el.Namespace() == dialbackNS && el.Name() == "verify":
		s.handleDialbackVerify(el)
	default:
		s.routeInbound(el)
	}
}

// handleDialbackResult authenticates the peer using the shared-secret form
// of dialback (XEP-0220 §3.2): rather than opening a second connection back
// to the peer to ask its authoritative server, we recompute the same HMAC
// it should have produced. This assumes localDomain and the peer share
// dispatcher's secret out of band, which holds inside a single deployment's
// federation set but not against the open internet at large.
func (s *InboundSession) handleDialbackResult(el *xmppcore.Element) {
	from := el.AttrOrEmpty("from")
	to := el.AttrOrEmpty("to")
	key := el.Text()

	valid := to == s.localDomain && s.dispatcher.VerifyInbound(from, to, s.streamID, key)
	result := xmppcore.NewElement(dialbackNS, "result").
		WithAttr("", "from", s.localDomain).
		WithAttr("", "to", from)
	if valid {
		result = result.WithAttr("", "type", "valid")
		s.peerDomain = from
		s.peerVerified = true
	} else {
		result = result.WithAttr("", "type", "invalid")
	}
	s.write(result)
}

// handleDialbackVerify answers another server's authoritative-server
// lookup for a key it received claiming to be from us.
func (s *InboundSession) handleDialbackVerify(el *xmppcore.Element) {
	from := el.AttrOrEmpty("from")
	to := el.AttrOrEmpty("to")
	id := el.AttrOrEmpty("id")
	key := el.Text()

	valid := s.dispatcher.VerifyInbound(to, from, id, key)
	verify := xmppcore.NewElement(dialbackNS, "verify").
		WithAttr("", "from", s.localDomain).
		WithAttr("", "to", from).
		WithAttr("", "id", id)
	if valid {
		verify = verify.WithAttr("", "type", "valid")
	} else {
		verify = verify.WithAttr("", "type", "invalid")
	}
	s.write(verify)
}

func (s *InboundSession) routeInbound(stanza *xmppcore.Element) {
	if !s.peerVerified {
		s.writeRaw("</stream:stream>")
		return
	}
	from, err := xmppcore.ParseJID(stanza.AttrOrEmpty("from"))
	if err != nil {
		return
	}
	if err := s.router.Route(from, stanza); err != nil {
		s.log.WithError(err).Warn("s2s: inbound routing failed")
	}
}
