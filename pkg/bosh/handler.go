package bosh

import (
	"bytes"
	"net/http"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
)

const bodyNS = "http://jabber.org/protocol/httpbind"

// XMLContentType is the Content-Type BOSH responses are sent with
// (XEP-0124 §5).
const XMLContentType = "text/xml; charset=utf-8"

// Pipeline is the local delivery target a BOSH-carried stanza is fed into,
// implemented by an adapter over pkg/session.Session so BOSH clients join
// the same stream-negotiation and routing pipeline TCP clients use.
type Pipeline interface {
	// HandleStreamOpen processes a BOSH session's first request, equivalent
	// to a TCP client's opening <stream:stream>, and returns the initial
	// <stream:features/> to report back to the caller (nil if none).
	HandleStreamOpen(to string) *xmppcore.Element
	// HandleElement processes one stanza the client sent inside a request
	// body.
	HandleElement(el *xmppcore.Element)
}

// Handler is the single HTTP endpoint BOSH clients POST to.
type Handler struct {
	log *logrus.Entry

	mu       sync.Mutex
	sessions map[string]*boundSession
}

type boundSession struct {
	bosh     *Session
	pipeline Pipeline
}

// NewHandler creates an empty BOSH endpoint.
func NewHandler(log *logrus.Entry) *Handler {
	return &Handler{log: log, sessions: make(map[string]*boundSession)}
}

// NewPipeline is provided by the caller to build a fresh session pipeline
// (an s2s-free client session, in practice) for a newly created sid.
type NewPipeline func(write func(*xmppcore.Element)) Pipeline

// ServeHTTP implements the BOSH connection manager endpoint. Every request
// is a single POST carrying one <body/> wrapping zero or more stanzas
// (XEP-0124 §7); the response is a <body/> wrapping whatever the session
// has to send back, possibly after being held open until something does.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request, newPipeline NewPipeline) {
	if r.Method != http.MethodPost {
		http.Error(w, "BOSH requires POST", http.StatusMethodNotAllowed)
		return
	}
	body, err := xmppcore.ParseFragment(r.Body)
	if err != nil || body.Name() != "body" {
		http.Error(w, "malformed BOSH body", http.StatusBadRequest)
		return
	}

	sid := body.AttrOrEmpty("sid")
	if sid == "" {
		h.handleSessionCreation(w, body, newPipeline)
		return
	}

	h.mu.Lock()
	bound, ok := h.sessions[sid]
	h.mu.Unlock()
	if !ok {
		http.Error(w, "unknown sid", http.StatusNotFound)
		return
	}

	for _, child := range body.Children() {
		bound.pipeline.HandleElement(child)
	}

	stanzas := bound.bosh.AddRequest()
	writeBody(w, sid, stanzas)
}

func (h *Handler) handleSessionCreation(w http.ResponseWriter, body *xmppcore.Element, newPipeline NewPipeline) {
	wait, _ := strconv.Atoi(body.AttrOrEmpty("wait"))
	hold, _ := strconv.Atoi(body.AttrOrEmpty("hold"))
	to := body.AttrOrEmpty("to")

	boshSession := New(wait, hold, body.AttrOrEmpty("ver"))
	pipeline := newPipeline(boshSession.Write)

	h.mu.Lock()
	h.sessions[boshSession.SID] = &boundSession{bosh: boshSession, pipeline: pipeline}
	h.mu.Unlock()

	features := pipeline.HandleStreamOpen(to)

	resp := xmppcore.NewElement(bodyNS, "body").
		WithAttr("", "sid", boshSession.SID).
		WithAttr("", "wait", strconv.Itoa(boshSession.Wait())).
		WithAttr("", "hold", strconv.Itoa(boshSession.Hold())).
		WithAttr("", "requests", strconv.Itoa(boshSession.Requests())).
		WithAttr("", "inactivity", strconv.Itoa(boshSession.Inactivity())).
		WithAttr("", "polling", strconv.Itoa(boshSession.Polling())).
		WithAttr("", "ver", "1.9").
		WithAttr("", "from", to)
	if features != nil {
		resp = resp.WithChild(features)
	}

	w.Header().Set("Content-Type", XMLContentType)
	var buf bytes.Buffer
	resp.Render(&buf)
	_, _ = w.Write(buf.Bytes())
}

func writeBody(w http.ResponseWriter, sid string, stanzas []*xmppcore.Element) {
	resp := xmppcore.NewElement(bodyNS, "body").WithAttr("", "sid", sid)
	for _, stanza := range stanzas {
		resp = resp.WithChild(stanza)
	}
	w.Header().Set("Content-Type", XMLContentType)
	var buf bytes.Buffer
	resp.Render(&buf)
	_, _ = w.Write(buf.Bytes())
}

