package session

import (
	"github.com/google/uuid"

	"github.com/technologistkj/mina-vysper/pkg/xmppcore"
	"github.com/technologistkj/mina-vysper/pkg/xmppim"
)

// handleIQ intercepts the IQs that terminate on the session itself
// (resource binding, legacy session establishment, and roster management,
// RFC 6120 §7 / RFC 3921 §3 / RFC 6121 §2) before anything reaches the
// router. Roster IQs are self-addressed (no to attribute), so they never
// reach router.Route's module dispatch and have to be caught here instead.
func (s *Session) handleIQ(iq *xmppcore.Element) {
	payload := xmppcore.IQPayload(iq)

	switch {
	case payload != nil && payload.Namespace() == xmppcore.BindNS:
		s.handleBind(iq, payload)
	case xmppcore.IsSessionRequest(payload):
		s.handleLegacySession(iq)
	case xmppim.IsRosterGet(payload):
		s.handleRoster(iq, payload)
	default:
		s.routeStanza(iq)
	}
}

func (s *Session) handleBind(iq, payload *xmppcore.Element) {
	if !s.authenticated || s.bound {
		s.writer.writeElement(xmppcore.ErrorReply(iq, s.jid, xmppcore.JID{}, xmppcore.NewStanzaError(xmppcore.StanzaErrorConditionNotAllowed)))
		return
	}

	requested := xmppcore.ParseBindResource(payload)
	if requested == "" {
		requested = uuid.NewString()
	}
	jid, err := s.jid.ToFull(requested)
	if err != nil {
		s.writer.writeElement(xmppcore.ErrorReply(iq, s.jid, xmppcore.JID{}, xmppcore.NewStanzaError(xmppcore.StanzaErrorConditionBadRequest)))
		return
	}

	s.jid = jid
	s.bound = true
	s.router.Bind(s)
	s.writer.writeElement(xmppcore.ResultIQ(iq, xmppcore.JID{}, xmppcore.JID{}, xmppcore.BindResultElement(jid)))
}

// handleLegacySession replies with an empty success result; RFC 3921
// session establishment carries no state of its own once resource binding
// has happened.
func (s *Session) handleLegacySession(iq *xmppcore.Element) {
	s.writer.writeElement(xmppcore.ResultIQ(iq, xmppcore.JID{}, xmppcore.JID{}, nil))
}

// handleRoster serves jabber:iq:roster get/set against the router's
// RosterStore (RFC 6121 §2.1/§2.3): get returns the caller's roster, set
// upserts or removes a single item.
func (s *Session) handleRoster(iq, payload *xmppcore.Element) {
	switch xmppcore.IQType(iq) {
	case xmppcore.IQTypeGet:
		items, ver := s.router.Roster(s.jid)
		s.writer.writeElement(xmppcore.ResultIQ(iq, xmppcore.JID{}, xmppcore.JID{}, xmppim.RosterResultElement(ver, items)))
	case xmppcore.IQTypeSet:
		child := payload.Child("item")
		if child == nil {
			s.writer.writeElement(xmppcore.ErrorReply(iq, s.jid, xmppcore.JID{}, xmppcore.NewStanzaError(xmppcore.StanzaErrorConditionBadRequest)))
			return
		}
		item, err := xmppim.ParseRosterItem(child)
		if err != nil {
			s.writer.writeElement(xmppcore.ErrorReply(iq, s.jid, xmppcore.JID{}, xmppcore.NewStanzaError(xmppcore.StanzaErrorConditionBadRequest)))
			return
		}
		s.router.SetRosterItem(s.jid, item)
		s.writer.writeElement(xmppcore.ResultIQ(iq, xmppcore.JID{}, xmppcore.JID{}, nil))
	default:
		s.writer.writeElement(xmppcore.ErrorReply(iq, s.jid, xmppcore.JID{}, xmppcore.NewStanzaError(xmppcore.StanzaErrorConditionBadRequest)))
	}
}

// routeStanza hands a message, presence, or non-local iq to the router,
// tracking the priority and initial-presence bookkeeping RFC 6121 §4.2
// asks the server to do on the client's behalf.
func (s *Session) routeStanza(stanza *xmppcore.Element) {
	if !s.bound {
		s.sendStreamError(xmppcore.StreamErrorConditionNotAuthorized, "stanza sent before resource binding")
		s.close()
		return
	}

	stanza = stanza.WithAttr("", "from", s.jid.FullString())

	if xmppim.IsPresence(stanza) && xmppim.IsAvailable(stanza) {
		s.priority = xmppim.PresencePriority(stanza)
		s.router.BroadcastAvailability(s.jid.ToBare(), stanza)
	}

	if err := s.router.Route(s.jid, stanza); err != nil {
		s.log.WithError(err).Warn("session: routing failed")
	}
}
