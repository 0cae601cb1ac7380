package xmppcore

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// Element is an immutable XML element: a qualified name, an ordered set of
// attributes and an ordered list of children (nested elements or text).
// Once built via NewElement/WithChild it is treated as read-only; handlers
// that need to change a stanza build a new Element from the old one instead
// of mutating it in place, matching the "immutable tree" requirement of the
// stanza model.
type Element struct {
	name     xml.Name
	attrs    []xml.Attr
	children []Node
}

// Node is either a child *Element or CharData text.
type Node interface {
	isNode()
}

// CharData is a text node.
type CharData string

func (CharData) isNode() {}
func (*Element) isNode() {}

// NewElement creates a new, empty element with the given namespace and
// local name.
func NewElement(namespace, local string) *Element {
	return &Element{name: xml.Name{Space: namespace, Local: local}}
}

// NewElementName creates an element with no namespace.
func NewElementName(local string) *Element {
	return NewElement("", local)
}

// Name returns the element's local name.
func (e *Element) Name() string { return e.name.Local }

// Namespace returns the element's namespace, possibly empty.
func (e *Element) Namespace() string { return e.name.Space }

// QName returns the fully-qualified "namespace local" name used as a
// dispatch key throughout the router and module registry.
func (e *Element) QName() string {
	if e.name.Space == "" {
		return e.name.Local
	}
	return e.name.Space + " " + e.name.Local
}

// WithAttr returns a copy of e with the given attribute set (namespace may
// be empty for unqualified attributes). Attribute insertion order is
// preserved for rendering; setting an existing attribute replaces its value
// in place without changing its position.
func (e *Element) WithAttr(namespace, local, value string) *Element {
	cp := e.clone()
	name := xml.Name{Space: namespace, Local: local}
	for i := range cp.attrs {
		if cp.attrs[i].Name == name {
			cp.attrs[i].Value = value
			return cp
		}
	}
	cp.attrs = append(cp.attrs, xml.Attr{Name: name, Value: value})
	return cp
}

// Attr returns the value of the first attribute whose local name is local,
// whatever its namespace, and whether one was present.
func (e *Element) Attr(local string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOrEmpty is Attr without the presence flag.
func (e *Element) AttrOrEmpty(local string) string {
	v, _ := e.Attr(local)
	return v
}

// Attrs returns the attribute list in insertion order. The slice must not be
// mutated by callers.
func (e *Element) Attrs() []xml.Attr { return e.attrs }

// WithChild returns a copy of e with child appended.
func (e *Element) WithChild(child *Element) *Element {
	cp := e.clone()
	cp.children = append(cp.children, child)
	return cp
}

// WithText returns a copy of e with the given text appended as a child
// node.
func (e *Element) WithText(text string) *Element {
	cp := e.clone()
	cp.children = append(cp.children, CharData(text))
	return cp
}

func (e *Element) clone() *Element {
	cp := &Element{name: e.name}
	cp.attrs = append(cp.attrs, e.attrs...)
	cp.children = append(cp.children, e.children...)
	return cp
}

// Children returns the direct child elements (text nodes are skipped).
func (e *Element) Children() []*Element {
	var out []*Element
	for _, n := range e.children {
		if c, ok := n.(*Element); ok {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first direct child element with the given local name,
// regardless of namespace, or nil.
func (e *Element) Child(local string) *Element {
	for _, c := range e.Children() {
		if c.name.Local == local {
			return c
		}
	}
	return nil
}

// ChildNamespace returns the first direct child element matching both local
// name and namespace, or nil.
func (e *Element) ChildNamespace(local, namespace string) *Element {
	for _, c := range e.Children() {
		if c.name.Local == local && c.name.Space == namespace {
			return c
		}
	}
	return nil
}

// Text concatenates all direct CharData children.
func (e *Element) Text() string {
	var b strings.Builder
	for _, n := range e.children {
		if t, ok := n.(CharData); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// Render writes the canonical textual form of the element to buf: a start
// tag with attributes in insertion order, recursively rendered children,
// XML-escaped text, and a self-closing tag when there are no children.
// Elements in the streams namespace are written with the "stream:" prefix
// and declare xmlns:stream themselves unless an attribute already does.
func (e *Element) Render(buf *bytes.Buffer) {
	buf.WriteByte('<')
	buf.WriteString(qualifiedTag(e.name))
	for _, a := range e.attrs {
		buf.WriteByte(' ')
		if a.Name.Space != "" {
			buf.WriteString(a.Name.Space)
			buf.WriteByte(':')
		}
		buf.WriteString(a.Name.Local)
		buf.WriteString(`="`)
		xml.EscapeText(buf, []byte(a.Value))
		buf.WriteByte('"')
	}
	if e.name.Space == JabberStreamsNS {
		if !hasStreamPrefixAttr(e.attrs) {
			buf.WriteString(` xmlns:stream="` + JabberStreamsNS + `"`)
		}
	} else if e.name.Space != "" && !hasXMLNSAttr(e.attrs) {
		buf.WriteString(` xmlns="`)
		xml.EscapeText(buf, []byte(e.name.Space))
		buf.WriteByte('"')
	}
	if len(e.children) == 0 {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	for _, n := range e.children {
		switch v := n.(type) {
		case CharData:
			xml.EscapeText(buf, []byte(v))
		case *Element:
			v.Render(buf)
		}
	}
	buf.WriteString("</")
	buf.WriteString(qualifiedTag(e.name))
	buf.WriteByte('>')
}

// String renders the element and returns it as a string. Deterministic for
// a given tree, as required by the stanza model.
func (e *Element) String() string {
	var buf bytes.Buffer
	e.Render(&buf)
	return buf.String()
}

func qualifiedTag(name xml.Name) string {
	if name.Space == JabberStreamsNS {
		return "stream:" + name.Local
	}
	return name.Local
}

func hasStreamPrefixAttr(attrs []xml.Attr) bool {
	for _, a := range attrs {
		if (a.Name.Space == "xmlns" && a.Name.Local == "stream") || (a.Name.Space == "" && a.Name.Local == "xmlns:stream") {
			return true
		}
	}
	return false
}

func hasXMLNSAttr(attrs []xml.Attr) bool {
	for _, a := range attrs {
		if a.Name.Local == "xmlns" {
			return true
		}
	}
	return false
}
