package xmppcore

import (
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/idna"
	"golang.org/x/text/secure/precis"
)

// MaxPartBytes is the maximum length, in bytes, of a normalized localpart or
// resourcepart (RFC 6122 §2.2, §2.4).
const MaxPartBytes = 1023

// JID is an XMPP address: (Local@)Domain(/Resource). Local and Resource are
// optional. All three parts are stored in their normalized form: Domain is
// IDNA-normalized, Local is Nodeprep-equivalent (precis UsernameCaseMapped)
// and Resource is Resourceprep-equivalent (precis OpaqueString).
type JID struct {
	Local    string
	Domain   string
	Resource string
}

// ParseJID parses s into a normalized JID, enforcing RFC 6122 length limits.
func ParseJID(s string) (JID, error) {
	var local, domain, resource string

	rest := s
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		local = rest[:at]
		rest = rest[at+1:]
	}
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		domain = rest[:slash]
		resource = rest[slash+1:]
	} else {
		domain = rest
	}
	return New(local, domain, resource)
}

// New builds a normalized JID from its raw constituent parts.
func New(local, domain, resource string) (JID, error) {
	if domain == "" {
		return JID{}, errors.New("xmppcore: JID domain must not be empty")
	}

	normLocal, err := normalizeLocal(local)
	if err != nil {
		return JID{}, errors.Wrap(err, "xmppcore: invalid JID localpart")
	}
	normDomain, err := normalizeDomain(domain)
	if err != nil {
		return JID{}, errors.Wrap(err, "xmppcore: invalid JID domainpart")
	}
	normResource, err := normalizeResource(resource)
	if err != nil {
		return JID{}, errors.Wrap(err, "xmppcore: invalid JID resourcepart")
	}

	if len(normLocal) > MaxPartBytes {
		return JID{}, errors.New("xmppcore: JID localpart exceeds 1023 bytes")
	}
	if len(normResource) > MaxPartBytes {
		return JID{}, errors.New("xmppcore: JID resourcepart exceeds 1023 bytes")
	}

	return JID{Local: normLocal, Domain: normDomain, Resource: normResource}, nil
}

func normalizeLocal(local string) (string, error) {
	if local == "" {
		return "", nil
	}
	return precis.UsernameCaseMapped.String(local)
}

func normalizeResource(resource string) (string, error) {
	if resource == "" {
		return "", nil
	}
	return precis.OpaqueString.String(resource)
}

func normalizeDomain(domain string) (string, error) {
	u, err := idna.ToUnicode(domain)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u), nil
}

// IsEmpty reports whether the JID is the zero value: no local, domain or
// resource part.
func (jid JID) IsEmpty() bool {
	return jid.Domain == "" && jid.Local == "" && jid.Resource == ""
}

// IsBare reports whether the JID has no resourcepart.
func (jid JID) IsBare() bool {
	return !jid.IsEmpty() && jid.Resource == ""
}

// IsFull reports whether the JID has a resourcepart.
func (jid JID) IsFull() bool {
	return jid.Resource != ""
}

// Bare returns the "bare JID" string.
//
// RFC 6120 §1.4: the term "bare JID" refers to an XMPP address of the form
// <localpart@domainpart> (for an account at a server) or of the form
// <domainpart> (for a server).
func (jid JID) Bare() string {
	if jid.Local != "" {
		return jid.Local + "@" + jid.Domain
	}
	return jid.Domain
}

// Full returns the "full JID" string, including the trailing "/resource"
// separator even when the resource is empty (matching the teacher's
// historical rendering, kept for wire compatibility with bind replies).
func (jid JID) Full() string {
	return jid.Bare() + "/" + jid.Resource
}

// FullString renders the JID the way it should appear on the wire: a bare
// JID when there is no resource, otherwise the full form.
func (jid JID) FullString() string {
	if jid.Resource == "" {
		return jid.Bare()
	}
	return jid.Full()
}

// ToBare returns a copy of the JID with the resourcepart stripped.
func (jid JID) ToBare() JID {
	return JID{Local: jid.Local, Domain: jid.Domain}
}

// BareCopyPtr returns a pointer to the bare form of the JID, for embedding
// into outgoing stanzas as a `from`/`to` attribute.
func (jid JID) BareCopyPtr() *JID {
	b := jid.ToBare()
	return &b
}

// ToFull returns a copy of the JID with the given resourcepart attached.
func (jid JID) ToFull(resource string) (JID, error) {
	return New(jid.Local, jid.Domain, resource)
}

// Equals compares two JIDs component-wise on their normalized form.
func (jid JID) Equals(other JID) bool {
	return jid.Local == other.Local && jid.Domain == other.Domain && jid.Resource == other.Resource
}

// String implements fmt.Stringer.
func (jid JID) String() string {
	return jid.FullString()
}

// MarshalXMLAttr implements xml.MarshalerAttr so a *JID can be used directly
// as an attribute value (e.g. `From *JID `xml:"from,attr,omitempty"``).
func (jid JID) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if jid.IsEmpty() {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: jid.FullString()}, nil
}

// UnmarshalXMLAttr implements xml.UnmarshalerAttr.
func (jid *JID) UnmarshalXMLAttr(attr xml.Attr) error {
	if attr.Value == "" {
		*jid = JID{}
		return nil
	}
	parsed, err := ParseJID(attr.Value)
	if err != nil {
		return err
	}
	*jid = parsed
	return nil
}

// MarshalXML implements xml.Marshaler so a *JID can be used as element
// content (e.g. a `<jid>user@host/res</jid>` bind result).
func (jid JID) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.EncodeToken(xml.CharData(jid.FullString())); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// UnmarshalXML implements xml.Unmarshaler.
func (jid *JID) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var chardata string
	if err := d.DecodeElement(&chardata, &start); err != nil {
		return err
	}
	if chardata == "" {
		*jid = JID{}
		return nil
	}
	parsed, err := ParseJID(chardata)
	if err != nil {
		return err
	}
	*jid = parsed
	return nil
}
