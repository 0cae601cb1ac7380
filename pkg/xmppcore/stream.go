package xmppcore

// RFC 6120 §4.3 Stream Features, §4.9 Stream Errors.

const (
	StreamStreamElementName = JabberStreamsNS + " stream"
	StreamErrorElementName  = JabberStreamsNS + " error"
)

// StreamErrorCondition is one of the defined stream error conditions
// (RFC 6120 §4.9.3). Unlike the teacher's XML-struct rendition, conditions
// here are plain string constants; StreamError builds the wire element.
type StreamErrorCondition string

const (
	StreamErrorConditionBadFormat           StreamErrorCondition = "bad-format"
	StreamErrorConditionHostUnknown         StreamErrorCondition = "host-unknown"
	StreamErrorConditionInternalServerError StreamErrorCondition = "internal-server-error"
	StreamErrorConditionInvalidFrom         StreamErrorCondition = "invalid-from"
	StreamErrorConditionInvalidNamespace    StreamErrorCondition = "invalid-namespace"
	StreamErrorConditionNotAuthorized       StreamErrorCondition = "not-authorized"
	StreamErrorConditionNotWellFormed       StreamErrorCondition = "not-well-formed"
	StreamErrorConditionPolicyViolation     StreamErrorCondition = "policy-violation"
	StreamErrorConditionSystemShutdown      StreamErrorCondition = "system-shutdown"
	StreamErrorConditionUnsupportedVersion  StreamErrorCondition = "unsupported-version"
)

// StreamError is a terminal error: it is rendered as
// <stream:error><condition/></stream:error> and the stream is closed
// afterwards.
type StreamError struct {
	Condition StreamErrorCondition
	Text      string
}

// Element renders the stream error as its wire element.
func (e StreamError) Element() *Element {
	root := NewElement(JabberStreamsNS, "error")
	root = root.WithChild(NewElement(StreamsNS, string(e.Condition)))
	if e.Text != "" {
		text := NewElement(StreamsNS, "text").WithText(e.Text)
		root = root.WithChild(text)
	}
	return root
}

func (e StreamError) Error() string {
	if e.Text != "" {
		return string(e.Condition) + ": " + e.Text
	}
	return string(e.Condition)
}

// Features builds the <stream:features/> element advertised after a stream
// header is parsed. The set of children depends on the session's current
// negotiation state (§4.5): only <starttls/> when TLS is required and not
// yet active, SASL <mechanisms/> once a secure channel is available, and
// <bind/>+<session/> after authentication succeeds.
type Features struct {
	StartTLS         bool
	StartTLSRequired bool
	Mechanisms       []string
	Bind             bool
	Session          bool
	Extra            []*Element
}

// Element renders the feature set.
func (f Features) Element() *Element {
	root := NewElement("", "stream:features")
	if f.StartTLS {
		startTLS := NewElement(TLSNS, "starttls")
		if f.StartTLSRequired {
			startTLS = startTLS.WithChild(NewElementName("required"))
		}
		root = root.WithChild(startTLS)
	}
	if len(f.Mechanisms) > 0 {
		mechanisms := NewElement(SASLNS, "mechanisms")
		for _, m := range f.Mechanisms {
			mechanisms = mechanisms.WithChild(NewElementName("mechanism").WithText(m))
		}
		root = root.WithChild(mechanisms)
	}
	if f.Bind {
		root = root.WithChild(NewElement(BindNS, "bind"))
	}
	if f.Session {
		root = root.WithChild(NewElement(SessionNS, "session"))
	}
	for _, extra := range f.Extra {
		root = root.WithChild(extra)
	}
	return root
}
