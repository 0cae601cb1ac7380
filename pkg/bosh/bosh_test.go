package bosh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
)

func TestSetHoldAdjustsRequests(t *testing.T) {
	s := New(60, 1, "1.9")
	assert.Equal(t, 1, s.Hold())
	assert.Equal(t, 2, s.Requests())

	s.SetHold(3)
	assert.Equal(t, 3, s.Hold())
	assert.Equal(t, 4, s.Requests())
}

func TestNewClampsWaitToServerCeiling(t *testing.T) {
	s := New(600, 1, "1.9")
	assert.Equal(t, DefaultWait, s.Wait())

	s2 := New(10, 1, "1.9")
	assert.Equal(t, 10, s2.Wait())
}

// TestWriteDeliversToSuspendedRequest covers the immediate-delivery path:
// a request is already suspended when a stanza arrives.
func TestWriteDeliversToSuspendedRequest(t *testing.T) {
	s := New(5, 1, "1.9")
	stanza := xmppcore.NewElement("jabber:client", "message")

	resultCh := make(chan []*xmppcore.Element, 1)
	go func() { resultCh <- s.AddRequest() }()
	time.Sleep(20 * time.Millisecond)

	s.Write(stanza)

	select {
	case got := <-resultCh:
		require.Len(t, got, 1)
		assert.Equal(t, "message", got[0].Name())
	case <-time.After(time.Second):
		t.Fatal("AddRequest did not return after Write")
	}
}

// TestWriteQueuesWhenNoRequestSuspended covers merge-on-request: stanzas
// written with nothing suspended are delivered together to the next
// request.
func TestWriteQueuesWhenNoRequestSuspended(t *testing.T) {
	s := New(5, 1, "1.9")
	s.Write(xmppcore.NewElement("jabber:client", "presence"))
	s.Write(xmppcore.NewElement("jabber:client", "message"))

	got := s.AddRequest()
	require.Len(t, got, 2)
	assert.Equal(t, "presence", got[0].Name())
	assert.Equal(t, "message", got[1].Name())
}

// TestAddRequestExpiresEmpty covers the drain-on-timeout path with nothing
// pending: after wait seconds the request returns with an empty response.
func TestAddRequestExpiresEmpty(t *testing.T) {
	s := New(1, 1, "1.9")
	start := time.Now()
	got := s.AddRequest()
	assert.Nil(t, got)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

// TestExpireCascadesToOlderRequests covers the documented cascade-drain
// decision: when a request expires, every request queued ahead of it also
// drains immediately with an empty response instead of waiting out its own
// timer independently.
func TestExpireCascadesToOlderRequests(t *testing.T) {
	s := New(30, 3, "1.9")
	older1 := &pendingRequest{respCh: make(chan *xmppcore.Element, 1), timer: time.NewTimer(time.Hour)}
	older2 := &pendingRequest{respCh: make(chan *xmppcore.Element, 1), timer: time.NewTimer(time.Hour)}
	expiring := &pendingRequest{respCh: make(chan *xmppcore.Element, 1), timer: time.NewTimer(time.Hour)}
	s.mu.Lock()
	s.requestQueue = append(s.requestQueue, older1, older2, expiring)
	s.mu.Unlock()

	s.expire(expiring)

	assertDelivered := func(req *pendingRequest) {
		select {
		case got := <-req.respCh:
			assert.Nil(t, got)
		default:
			t.Fatal("expected request to be delivered by cascade drain")
		}
	}
	assertDelivered(older1)
	assertDelivered(older2)
	assertDelivered(expiring)

	s.mu.Lock()
	remaining := len(s.requestQueue)
	s.mu.Unlock()
	assert.Zero(t, remaining)
}

func TestCloseReleasesAllSuspendedRequests(t *testing.T) {
	s := New(30, 2, "1.9")
	done := make(chan bool, 1)
	go func() {
		got := s.AddRequest()
		done <- got == nil
	}()
	time.Sleep(20 * time.Millisecond)

	s.Close()

	select {
	case wasEmpty := <-done:
		assert.True(t, wasEmpty)
	case <-time.After(time.Second):
		t.Fatal("Close did not release suspended request")
	}
	assert.True(t, s.Closed())
}
