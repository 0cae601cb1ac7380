// Package s2s implements server-to-server delivery: SRV-based peer
// discovery grounded on the teacher pack's dial.Dialer resolution strategy,
// and Server Dialback (XEP-0220) key generation/verification for
// authenticating the resulting stream without full SASL/TLS mutual auth.
package s2s

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/technologistkj/mina-vysper/pkg/router"
	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
)

const dialbackNS = "jabber:server:dialback"

// DialbackSecret signs dialback keys; every domain the server accepts
// dialback verification requests for must share it out of band (or, in a
// federated deployment, keys are instead verified by dialing back the
// originating domain - the Dispatcher always uses the shared-secret form).
type DialbackSecret []byte

// GenerateKey builds the dialback key a domain sends to authenticate a
// stream it opened to target: the HMAC-SHA256, keyed by the shared secret,
// of the SHA-256 digest of from|to|streamID, hex-encoded.
func GenerateKey(secret DialbackSecret, from, to, streamID string) string {
	digest := sha256.Sum256([]byte(from + "|" + to + "|" + streamID))
	mac := hmac.New(sha256.New, secret)
	mac.Write(digest[:])
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyKey reports whether key is the dialback key GenerateKey would have
// produced for the same parameters, using a constant-time comparison.
func VerifyKey(secret DialbackSecret, from, to, streamID, key string) bool {
	want := GenerateKey(secret, from, to, streamID)
	return hmac.Equal([]byte(want), []byte(key))
}

// Peer is an established, authenticated outbound stream to a remote domain.
type Peer struct {
	Domain string
	conn   net.Conn
	log    *logrus.Entry

	mu sync.Mutex
}

func (p *Peer) send(stanza *xmppcore.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var buf bytes.Buffer
	stanza.Render(&buf)
	_, err := p.conn.Write(buf.Bytes())
	return err
}

// Resolver discovers connection targets for a domain, grounded on the
// teacher's dial.Dialer SRV-then-fallback strategy (_xmpp-server._tcp SRV
// records, falling back to the bare domain on port 5269).
type Resolver struct {
	// Net.Dialer here rather than a lookup abstraction: no example in the
	// pack ships a DNS resolution seam beyond net.Resolver itself.
	Dialer net.Dialer
}

// Resolve returns the ordered list of host:port targets to try for domain,
// SRV-preferred addresses first.
func (r *Resolver) Resolve(ctx context.Context, domain string) ([]string, error) {
	_, srvs, err := net.DefaultResolver.LookupSRV(ctx, "xmpp-server", "tcp", domain)
	if err != nil || len(srvs) == 0 {
		return []string{net.JoinHostPort(domain, "5269")}, nil
	}
	sort.Slice(srvs, func(i, j int) bool {
		if srvs[i].Priority != srvs[j].Priority {
			return srvs[i].Priority < srvs[j].Priority
		}
		return srvs[i].Weight > srvs[j].Weight
	})
	targets := make([]string, 0, len(srvs))
	for _, s := range srvs {
		targets = append(targets, net.JoinHostPort(trimTrailingDot(s.Target), portString(s.Port)))
	}
	return targets, nil
}

func trimTrailingDot(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}

func portString(p uint16) string {
	const digits = "0123456789"
	if p == 0 {
		return "0"
	}
	var b [5]byte
	i := len(b)
	for p > 0 {
		i--
		b[i] = digits[p%10]
		p /= 10
	}
	return string(b[i:])
}

// Dispatcher forwards stanzas to remote domains, opening and authenticating
// an outbound dialback stream on first use. It implements
// router.S2SDispatcher.
type Dispatcher struct {
	localDomain string
	secret      DialbackSecret
	resolver    *Resolver
	tlsConfig   *tls.Config
	log         *logrus.Entry

	mu    sync.Mutex
	peers map[string]*Peer
}

var _ router.S2SDispatcher = (*Dispatcher)(nil)

// New creates a Dispatcher for localDomain, signing outbound dialback keys
// with secret.
func New(localDomain string, secret DialbackSecret, tlsConfig *tls.Config, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		localDomain: localDomain,
		secret:      secret,
		resolver:    &Resolver{},
		tlsConfig:   tlsConfig,
		log:         log,
		peers:       make(map[string]*Peer),
	}
}

// Forward delivers stanza to to.Domain, dialing and dialback-authenticating
// a new stream if none is already open.
func (d *Dispatcher) Forward(to xmppcore.JID, stanza *xmppcore.Element) error {
	peer, err := d.peerFor(to.Domain)
	if err != nil {
		return errors.Wrapf(err, "s2s: forwarding to %s", to.Domain)
	}
	return peer.send(stanza)
}

func (d *Dispatcher) peerFor(domain string) (*Peer, error) {
	d.mu.Lock()
	if p, ok := d.peers[domain]; ok {
		d.mu.Unlock()
		return p, nil
	}
	d.mu.Unlock()

	peer, err := d.dial(domain)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.peers[domain] = peer
	d.mu.Unlock()
	return peer, nil
}

func (d *Dispatcher) dial(domain string) (*Peer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	targets, err := d.resolver.Resolve(ctx, domain)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, target := range targets {
		conn, err := (&net.Dialer{Timeout: 10 * time.Second}).DialContext(ctx, "tcp", target)
		if err != nil {
			lastErr = err
			continue
		}
		peer, err := d.negotiate(conn, domain)
		if err != nil {
			conn.Close()
			lastErr = err
			continue
		}
		return peer, nil
	}
	return nil, errors.Wrapf(lastErr, "s2s: no reachable target for %s", domain)
}

// negotiate opens the jabber:server stream, sends a dialback key, and waits
// for the peer's <db:result/> verdict.
func (d *Dispatcher) negotiate(conn net.Conn, domain string) (*Peer, error) {
	decoder := xmppcore.NewDecoder(conn)

	open := xmppcore.NewElement(xmppcore.JabberStreamsNS, "stream").
		WithAttr("", "xmlns", "jabber:server").
		WithAttr("", "xmlns:db", dialbackNS).
		WithAttr("", "from", d.localDomain).
		WithAttr("", "to", domain).
		WithAttr("", "version", "1.0")
	if _, err := conn.Write([]byte(openTag(open))); err != nil {
		return nil, err
	}

	streamOutcome := decoder.Next()
	if streamOutcome.Kind != xmppcore.StreamOpen {
		return nil, errors.New("s2s: peer did not open a stream")
	}
	streamID := streamOutcome.Element.AttrOrEmpty("id")

	key := GenerateKey(d.secret, d.localDomain, domain, streamID)
	dbResult := xmppcore.NewElement(dialbackNS, "result").
		WithAttr("", "from", d.localDomain).
		WithAttr("", "to", domain).
		WithText(key)
	var buf bytes.Buffer
	dbResult.Render(&buf)
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return nil, err
	}

	for {
		outcome := decoder.Next()
		if outcome.Kind != xmppcore.TopLevelElement {
			return nil, errors.New("s2s: dialback negotiation aborted")
		}
		el := outcome.Element
		if el.Namespace() == dialbackNS && el.Name() == "result" {
			if el.AttrOrEmpty("type") == "valid" {
				return &Peer{Domain: domain, conn: conn, log: d.log}, nil
			}
			return nil, errors.Errorf("s2s: dialback rejected by %s", domain)
		}
	}
}

func openTag(header *xmppcore.Element) string {
	full := header.String()
	return full[:len(full)-2] + ">"
}

// VerifyInbound handles an inbound <db:verify/> request from a domain that
// received a dialback key claiming to be from us, per XEP-0220 §3.3.
func (d *Dispatcher) VerifyInbound(from, to, streamID, key string) bool {
	return VerifyKey(d.secret, from, to, streamID, key)
}
