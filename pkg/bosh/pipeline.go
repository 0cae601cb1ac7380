package bosh

import (
	"bytes"
	"net"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/technologistkj/mina-vysper/pkg/router"
	"github.com/technologistkj/mina-vysper/pkg/session"
	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
	"github.com/technologistkj/mina-vysper/pkg/xmppsasl"
)

// sessionPipeline bridges one BOSH long-polling session into the same
// negotiation and routing pipeline TCP clients use, over an in-memory
// net.Pipe standing in for the socket: HandleElement writes the client's
// stanza to the pipe the way a real connection would deliver bytes read off
// the wire, and a background goroutine forwards whatever the session writes
// back through the write callback the BOSH session was built with. This
// avoids a second, parallel implementation of stream negotiation for BOSH
// clients.
type sessionPipeline struct {
	local   net.Conn
	decoder *xmppcore.Decoder
	write   func(*xmppcore.Element)
}

// NewSessionPipeline builds the NewPipeline hook Handler uses to construct
// one pipeline per newly created BOSH sid. The underlying session is built
// with a nil TLS config: XEP-0124 carries no STARTTLS story, so a
// deployment wanting transport security terminates TLS in front of the
// HTTP endpoint instead, and the session's own feature advertisement logic
// already skips straight to SASL mechanisms whenever no TLS config is set.
func NewSessionPipeline(domain string, r *router.Router, credentials xmppsasl.CredentialStore, log *logrus.Entry) NewPipeline {
	return func(write func(*xmppcore.Element)) Pipeline {
		local, remote := net.Pipe()
		s := session.New(uuid.NewString(), domain, remote, nil, r, credentials, log)
		go s.Run()
		return &sessionPipeline{local: local, decoder: xmppcore.NewDecoder(local), write: write}
	}
}

// HandleStreamOpen sends a synthetic <stream:stream> header to the
// underlying session, standing in for the TCP client's opening tag, and
// waits for the <stream:features/> it replies with. Once that first
// exchange is done, further traffic in either direction happens off the
// calling goroutine.
func (p *sessionPipeline) HandleStreamOpen(to string) *xmppcore.Element {
	open := xmppcore.NewElement(xmppcore.JabberStreamsNS, "stream").
		WithAttr("", "xmlns", xmppcore.JabberClientNS).
		WithAttr("", "to", to).
		WithAttr("", "version", "1.0")
	if _, err := p.local.Write([]byte(openTag(open))); err != nil {
		return nil
	}

	var features *xmppcore.Element
	for {
		outcome := p.decoder.Next()
		if outcome.Kind == xmppcore.TopLevelElement {
			features = outcome.Element
			break
		}
		if outcome.Kind != xmppcore.StreamOpen {
			break
		}
	}
	go p.pumpOut()
	return features
}

// HandleElement forwards one stanza the BOSH client sent to the underlying
// session, as if it had just arrived on the wire.
func (p *sessionPipeline) HandleElement(el *xmppcore.Element) {
	var buf bytes.Buffer
	el.Render(&buf)
	_, _ = p.local.Write(buf.Bytes())
}

// pumpOut relays every stanza the session writes back through to the BOSH
// session's delayed/suspended-request machinery until the pipe closes.
func (p *sessionPipeline) pumpOut() {
	for {
		outcome := p.decoder.Next()
		switch outcome.Kind {
		case xmppcore.TopLevelElement:
			p.write(outcome.Element)
		case xmppcore.StreamClose, xmppcore.DecodeError:
			return
		}
	}
}

// openTag renders just the opening <stream:stream ...> tag: header carries
// no children so Element.String() renders it self-closed, and the stream
// body follows as further top-level elements.
func openTag(header *xmppcore.Element) string {
	full := header.String()
	return full[:len(full)-2] + ">"
}
