package xmppcore

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"io"
)

// OutcomeKind classifies a single DecodeOutcome produced by the stream
// decoder.
type OutcomeKind int

const (
	// StreamOpen is emitted once the outer <stream:stream> start tag has
	// closed. Element carries only the stream header's attributes.
	StreamOpen OutcomeKind = iota
	// StreamClose is emitted when the peer's </stream:stream> end tag is
	// read.
	StreamClose
	// TopLevelElement is emitted for each fully materialized direct child
	// of the stream element (a stanza).
	TopLevelElement
	// DecodeError is emitted when the byte stream cannot be turned into a
	// well-formed, profile-conformant token sequence.
	DecodeError
)

// ErrorKind distinguishes fatal malformed XML from syntactically valid XML
// that the XMPP profile forbids (RFC 6120 §11).
type ErrorKind int

const (
	// WellFormednessError means the XML itself is not well-formed; fatal
	// for the stream.
	WellFormednessError ErrorKind = iota
	// UnsupportedXML means the XML is well-formed but uses a construct the
	// profile forbids: processing instructions (other than <?xml?>),
	// DOCTYPE declarations, or external entity references.
	UnsupportedXML
)

// DecodeOutcome is a single event produced by the stream decoder. Exactly
// one of Element or Err is meaningful, selected by Kind.
type DecodeOutcome struct {
	Kind    OutcomeKind
	Element *Element
	ErrKind ErrorKind
	Err     error
}

// Decoder turns a byte stream into a sequence of DecodeOutcome events. It
// never buffers the entire stream: StreamOpen is emitted as soon as the
// outer start tag closes, and each subsequent direct child is emitted fully
// materialized as soon as its end tag closes.
//
// One xml.Decoder is held for an entire stream epoch (from stream-open to
// the next Reset) rather than rebuilt per call: encoding/xml tracks
// namespace-prefix bindings on an internal scope stack that lives inside
// the Decoder value, so a prefix declared once on the <stream:stream>
// header (e.g. xmlns:db='jabber:server:dialback') must still resolve on
// every later top-level element that uses it. Reset - required after a
// STARTTLS or SASL stream restart - starts a fresh epoch with a fresh
// xml.Decoder, since the restarted stream carries its own header and any
// earlier prefix bindings are no longer in scope. Bytes already buffered
// ahead of the restart boundary are carried over into the new epoch, so
// they are never lost.
type Decoder struct {
	buf          *bufio.Reader
	dec          *xml.Decoder
	streamOpened bool
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	d := &Decoder{buf: bufio.NewReader(r)}
	d.dec = newXMLDecoder(d.buf)
	return d
}

// Reset reinitializes the decoder to read from r, as required after a
// STARTTLS or SASL stream restart. Any bytes the previous reader had already
// buffered but not yet decoded are read first, before anything from r.
func (d *Decoder) Reset(r io.Reader) {
	if n := d.buf.Buffered(); n > 0 {
		pending := make([]byte, n)
		_, _ = io.ReadFull(d.buf, pending)
		r = io.MultiReader(bytes.NewReader(pending), r)
	}
	d.buf = bufio.NewReader(r)
	d.dec = newXMLDecoder(d.buf)
	d.streamOpened = false
}

func newXMLDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	return dec
}

// Next parses and returns the next DecodeOutcome: the stream open event (the
// first time), a top-level child element, the stream close event, or a
// decode error.
func (d *Decoder) Next() DecodeOutcome {
	dec := d.dec

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return DecodeOutcome{Kind: StreamClose}
			}
			return errOutcome(err)
		}
		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target != "xml" {
				return DecodeOutcome{Kind: DecodeError, ErrKind: UnsupportedXML, Err: errUnsupportedProcInst(t.Target)}
			}
			continue
		case xml.Directive:
			// DOCTYPE and other directives are forbidden by RFC 6120 §11.4.
			return DecodeOutcome{Kind: DecodeError, ErrKind: UnsupportedXML, Err: errUnsupportedDirective}
		case xml.CharData:
			// Whitespace between top-level children is dropped; non-stream
			// chardata cannot occur outside of an element we are already
			// materializing below.
			continue
		case xml.Comment:
			continue
		case xml.EndElement:
			if t.Name.Space == JabberStreamsNS && t.Name.Local == "stream" {
				return DecodeOutcome{Kind: StreamClose}
			}
			return errOutcome(errUnexpectedEnd(t.Name))
		case xml.StartElement:
			if !d.streamOpened {
				if t.Name.Space != JabberStreamsNS || t.Name.Local != "stream" {
					return errOutcome(errExpectedStreamHeader)
				}
				d.streamOpened = true
				return DecodeOutcome{Kind: StreamOpen, Element: startElementHeader(t)}
			}
			elem, err := materialize(dec, t)
			if err != nil {
				return errOutcome(err)
			}
			return DecodeOutcome{Kind: TopLevelElement, Element: elem}
		}
	}
}

// startElementHeader builds an Element carrying only the stream header's
// attributes (no children), used for the StreamOpen outcome.
func startElementHeader(t xml.StartElement) *Element {
	e := NewElement(t.Name.Space, t.Name.Local)
	for _, a := range t.Attr {
		e = e.WithAttr(a.Name.Space, a.Name.Local, a.Value)
	}
	return e
}

// materialize reads tokens from dec until the start element t's matching end
// tag closes, building the full descendant tree.
func materialize(dec *xml.Decoder, t xml.StartElement) (*Element, error) {
	root := startElementHeader(t)
	stack := []*Element{root}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch tv := tok.(type) {
		case xml.StartElement:
			child := startElementHeader(tv)
			stack = append(stack, child)
		case xml.CharData:
			top := stack[len(stack)-1]
			stack[len(stack)-1] = top.WithText(string(tv))
		case xml.EndElement:
			n := len(stack)
			closed := stack[n-1]
			stack = stack[:n-1]
			if n == 1 {
				return closed, nil
			}
			parent := stack[len(stack)-1]
			stack[len(stack)-1] = parent.WithChild(closed)
		case xml.ProcInst, xml.Directive:
			return nil, errUnsupportedDirective
		}
	}
}

func errOutcome(err error) DecodeOutcome {
	return DecodeOutcome{Kind: DecodeError, ErrKind: WellFormednessError, Err: err}
}

// ParseFragment reads a single, fully self-contained XML document from r
// and returns it as an Element tree, with no expectation of a
// <stream:stream> wrapper. Used by the BOSH bridge, where each HTTP request
// body is a standalone <body/> document rather than a chunk of an
// open-ended stream.
func ParseFragment(r io.Reader) (*Element, error) {
	dec := newXMLDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return materialize(dec, start)
		}
	}
}
