// Package bosh implements the BOSH (XEP-0124/XEP-0206) HTTP long-polling
// bridge, adapting the connection-oriented session pipeline in pkg/session
// to a request/response model: a queue of suspended HTTP requests the
// connection manager holds open until it has something to send, and a
// queue of outbound stanzas held back when no request is currently
// suspended, grounded on the original BoshBackedSessionContext.
package bosh

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/itchyny/base58-go"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
)

// Defaults per XEP-0124 §4 and the teacher-adjacent original.
const (
	DefaultWait       = 60
	DefaultHold       = 1
	DefaultInactivity = 60
	DefaultPolling    = 15
)

// pendingRequest is one suspended HTTP request waiting for something to
// send back.
type pendingRequest struct {
	respCh    chan *xmppcore.Element
	timer     *time.Timer
	delivered bool
}

// Session is one BOSH client's long-polling state, sitting in front of an
// xmppcore stanza stream the same way pkg/session.Session sits in front of
// a raw TCP connection. It starts in the encrypted, authenticated-pending
// state: BOSH cannot STARTTLS mid-session, so a deployment that wants
// transport security terminates TLS at the HTTP layer instead.
type Session struct {
	SID string

	mu sync.Mutex

	wait       int
	hold       int
	requests   int
	inactivity int
	polling    int
	version    string

	requestQueue []*pendingRequest
	delayed      []*xmppcore.Element

	closed bool
}

// New creates a BOSH session, clamping the client-requested wait to the
// server's ceiling (a client may only ask for less). The requested hold is
// applied through SetHold and is not capped.
func New(requestedWait, requestedHold int, version string) *Session {
	s := &Session{
		SID:        shortID(),
		wait:       DefaultWait,
		hold:       DefaultHold,
		inactivity: DefaultInactivity,
		polling:    DefaultPolling,
		version:    version,
		requests:   2,
	}
	if requestedWait > 0 && requestedWait < s.wait {
		s.wait = requestedWait
	}
	s.SetHold(requestedHold)
	return s
}

func shortID() string {
	id := uuid.New()
	encoded, err := base58.BitcoinEncoding.Encode(id[:])
	if err != nil {
		return id.String()
	}
	return string(encoded)
}

// SetHold applies the BOSH 'hold' parameter, adjusting 'requests' the same
// way the original does: hold >= 2 implies requests = hold + 1.
func (s *Session) SetHold(hold int) {
	if hold <= 0 {
		return
	}
	s.hold = hold
	if hold >= 2 {
		s.requests = hold + 1
	}
}

// Wait, Hold, Requests, Inactivity, Polling expose the negotiated
// parameters for the response body's attributes.
func (s *Session) Wait() int       { return s.wait }
func (s *Session) Hold() int       { return s.hold }
func (s *Session) Requests() int   { return s.requests }
func (s *Session) Inactivity() int { return s.inactivity }
func (s *Session) Polling() int    { return s.polling }

// AddRequest suspends the calling goroutine (standing in for an HTTP
// request handler) until either a stanza becomes available or the
// negotiated wait time elapses, whichever comes first. It returns the
// stanzas to wrap in this request's <body/> response, possibly empty.
func (s *Session) AddRequest() []*xmppcore.Element {
	s.mu.Lock()
	if len(s.delayed) > 0 {
		merged := s.delayed
		s.delayed = nil
		s.mu.Unlock()
		return merged
	}

	req := &pendingRequest{respCh: make(chan *xmppcore.Element, 1)}
	s.requestQueue = append(s.requestQueue, req)
	if len(s.requestQueue) > s.hold {
		s.releaseOldestLocked(nil)
	}
	req.timer = time.AfterFunc(time.Duration(s.wait)*time.Second, func() {
		s.expire(req)
	})
	s.mu.Unlock()

	stanza := <-req.respCh
	if stanza == nil {
		return nil
	}
	return []*xmppcore.Element{stanza}
}

// releaseOldestLocked pops the head of requestQueue and delivers stanza to
// it (nil for an empty keepalive response). Caller holds s.mu.
func (s *Session) releaseOldestLocked(stanza *xmppcore.Element) bool {
	for len(s.requestQueue) > 0 {
		req := s.requestQueue[0]
		s.requestQueue = s.requestQueue[1:]
		if req.delivered {
			continue
		}
		req.delivered = true
		req.timer.Stop()
		req.respCh <- stanza
		return true
	}
	return false
}

// Write hands a stanza to the connection manager for delivery to the BOSH
// client: immediately, via the oldest suspended request, if one exists, or
// queued for the next request to arrive otherwise. Serialized by s.mu so
// concurrent writers can't interleave responses out of order.
func (s *Session) Write(stanza *xmppcore.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.releaseOldestLocked(stanza) {
		return
	}
	s.delayed = append(s.delayed, stanza)
}

// expire implements the original's cascade-drain-on-timeout behavior
// (BoshBackedSessionContext.requestExpired): when one suspended request's
// wait elapses, every request enqueued ahead of it is also force-flushed
// with an empty response, in FIFO order, through and including the one
// that actually expired. XEP-0124 §10 expects the connection manager to
// avoid holding stale requests open once any of them times out, rather
// than leaving older ones to expire independently one wait-interval apart.
func (s *Session) expire(expired *pendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expired.delivered {
		return
	}
	for len(s.requestQueue) > 0 {
		req := s.requestQueue[0]
		s.requestQueue = s.requestQueue[1:]
		if req.delivered {
			continue
		}
		req.delivered = true
		req.timer.Stop()
		req.respCh <- nil
		if req == expired {
			return
		}
	}
}

// Close force-releases every suspended request with an empty response and
// marks the session unusable.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, req := range s.requestQueue {
		if !req.delivered {
			req.delivered = true
			req.timer.Stop()
			req.respCh <- nil
		}
	}
	s.requestQueue = nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
