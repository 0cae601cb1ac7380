package session

import (
	"bytes"
	"crypto/tls"
	"net"
	"sync"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
)

// writer serializes every write to the connection so concurrent Send calls
// (from the router) and session-driven writes (feature negotiation
// replies) never interleave mid-element on the wire.
type writer struct {
	mu   sync.Mutex
	conn net.Conn
}

func newWriter(conn net.Conn) *writer {
	return &writer{conn: conn}
}

func (w *writer) writeElement(el *xmppcore.Element) {
	var buf bytes.Buffer
	el.Render(&buf)
	w.writeRawBytes(buf.Bytes())
}

func (w *writer) writeRaw(s string) {
	w.writeRawBytes([]byte(s))
}

func (w *writer) writeRawBytes(b []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = w.conn.Write(b)
}

// switchToTLS wraps the connection in a server-side TLS connection and
// returns it so the caller can also point its decoder at the same reader.
func (w *writer) switchToTLS(config *tls.Config) net.Conn {
	w.mu.Lock()
	defer w.mu.Unlock()
	tlsConn := tls.Server(w.conn, config)
	w.conn = tlsConn
	return tlsConn
}
