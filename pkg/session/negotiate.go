package session

import (
	"encoding/base64"

	"github.com/google/uuid"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
	"github.com/technologistkj/mina-vysper/pkg/xmppsasl"
)

// maxSASLFailures bounds consecutive failed SASL attempts on one stream
// (SPEC_FULL.md §4.6); the sixth attempt never happens because the stream
// is closed once the fifth fails.
const maxSASLFailures = 5

func (s *Session) handleStreamOpen(header *xmppcore.Element) {
	to := header.AttrOrEmpty("to")
	if to != "" && to != s.domain {
		s.sendStreamError(xmppcore.StreamErrorConditionHostUnknown, "unknown virtual host "+to)
		s.close()
		return
	}

	s.streamOpened = true
	s.streamID = uuid.NewString()

	open := xmppcore.NewElement(xmppcore.JabberStreamsNS, "stream").
		WithAttr("", "xmlns", xmppcore.JabberClientNS).
		WithAttr("", "from", s.domain).
		WithAttr("", "id", s.streamID).
		WithAttr("", "version", "1.0")
	s.writer.writeRaw(openStreamHeaderTag(open))
	s.writer.writeElement(s.features().Element())
}

// openStreamHeaderTag renders just the opening <stream:stream ...> tag.
// header carries no children so Element.String() renders it self-closed;
// reopen it as a start tag since the stream body follows as further
// top-level elements and is only closed on disconnect.
func openStreamHeaderTag(header *xmppcore.Element) string {
	full := header.String()
	return full[:len(full)-2] + ">"
}

// features computes the advertisement for the session's current
// negotiation progress (SPEC_FULL.md §4.5): STARTTLS while insecure,
// SASL mechanisms once secure (or when TLS isn't configured at all),
// bind+session once authenticated.
func (s *Session) features() xmppcore.Features {
	switch {
	case s.bound:
		return xmppcore.Features{}
	case s.authenticated:
		return xmppcore.Features{Bind: true, Session: true}
	case !s.encrypted && s.tlsConfig != nil:
		return xmppcore.Features{StartTLS: true, StartTLSRequired: true}
	default:
		return xmppcore.Features{Mechanisms: xmppsasl.SupportedMechanisms}
	}
}

func (s *Session) handleElement(el *xmppcore.Element) {
	switch {
	case el.Namespace() == xmppcore.TLSNS && el.Name() == "starttls":
		s.handleStartTLS()
	case el.Namespace() == xmppcore.SASLNS && (el.Name() == "auth" || el.Name() == "response"):
		s.handleSASL(el)
	case el.Name() == "iq":
		s.handleIQ(el)
	default:
		s.routeStanza(el)
	}
}

func (s *Session) handleStartTLS() {
	if s.encrypted || s.tlsConfig == nil {
		s.writer.writeElement(xmppcore.TLSFailureElement())
		s.closeGracefully()
		return
	}
	s.writer.writeElement(xmppcore.TLSProceedElement())

	tlsConn := s.writer.switchToTLS(s.tlsConfig)
	s.conn = tlsConn
	s.decoder.Reset(tlsConn)
	s.encrypted = true
	s.streamOpened = false
}

func (s *Session) handleSASL(el *xmppcore.Element) {
	if !s.encrypted && s.tlsConfig != nil {
		s.writer.writeElement(xmppcore.SASLFailureElement(xmppcore.SASLFailureConditionEncryptionRequired, ""))
		s.mech = nil
		return
	}

	var payload []byte
	if el.Name() == "auth" {
		mechanism, b64 := xmppcore.ParseSASLAuth(el)
		mech, err := xmppsasl.NewMechanism(mechanism, s.credentials, s.domain)
		if err != nil {
			s.writer.writeElement(xmppcore.SASLFailureElement(xmppcore.SASLFailureConditionInvalidMechanism, err.Error()))
			return
		}
		s.mech = mech
		decoded, decErr := base64.StdEncoding.DecodeString(b64)
		if decErr != nil {
			s.writer.writeElement(xmppcore.SASLFailureElement(xmppcore.SASLFailureConditionIncorrectEncoding, ""))
			s.mech = nil
			return
		}
		payload = decoded
	} else {
		if s.mech == nil {
			s.writer.writeElement(xmppcore.SASLFailureElement(xmppcore.SASLFailureConditionNotAuthorized, "no mechanism in progress"))
			return
		}
		decoded, decErr := base64.StdEncoding.DecodeString(xmppcore.ParseSASLResponse(el))
		if decErr != nil {
			s.writer.writeElement(xmppcore.SASLFailureElement(xmppcore.SASLFailureConditionIncorrectEncoding, ""))
			s.mech = nil
			return
		}
		payload = decoded
	}

	result, err := s.mech.Step(payload)
	if err != nil {
		s.log.WithError(err).Warn("session: SASL mechanism error")
		s.writer.writeElement(xmppcore.SASLFailureElement(xmppcore.SASLFailureConditionTemporaryAuthFailure, ""))
		s.mech = nil
		return
	}

	if !result.Done {
		s.writer.writeElement(xmppcore.SASLChallengeElement(base64.StdEncoding.EncodeToString(result.Challenge)))
		return
	}

	s.mech = nil
	if !result.Success {
		s.saslFailures++
		s.writer.writeElement(xmppcore.SASLFailureElement(saslFailureCondition(result.FailureKind), result.FailureText))
		if s.saslFailures >= maxSASLFailures {
			s.sendStreamError(xmppcore.StreamErrorConditionPolicyViolation, "too many failed SASL attempts")
			s.close()
		}
		return
	}

	additional := ""
	if len(result.Challenge) > 0 {
		additional = base64.StdEncoding.EncodeToString(result.Challenge)
	}
	s.writer.writeElement(xmppcore.SASLSuccessElement(additional))
	jid, jerr := xmppcore.New(result.Authzid, s.domain, "")
	if jerr != nil {
		s.sendStreamError(xmppcore.StreamErrorConditionNotAuthorized, jerr.Error())
		s.close()
		return
	}
	s.jid = jid
	s.authenticated = true
	s.streamOpened = false
	s.decoder.Reset(s.conn)
}

// saslFailureCondition maps a mechanism's FailureKind to the wire condition
// defined for it (RFC 6120 §6.5).
func saslFailureCondition(kind xmppsasl.FailureKind) xmppcore.SASLFailureCondition {
	switch kind {
	case xmppsasl.FailureMalformedRequest:
		return xmppcore.SASLFailureConditionMalformedRequest
	case xmppsasl.FailureInvalidAuthzid:
		return xmppcore.SASLFailureConditionInvalidAuthzid
	case xmppsasl.FailureCredentialsExpired:
		return xmppcore.SASLFailureConditionCredentialsExpired
	case xmppsasl.FailureTemporaryAuthFailure:
		return xmppcore.SASLFailureConditionTemporaryAuthFailure
	default:
		return xmppcore.SASLFailureConditionNotAuthorized
	}
}
