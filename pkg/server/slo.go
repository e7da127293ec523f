package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/platinummonkey/samlfed/pkg/host"
	"github.com/platinummonkey/samlfed/pkg/logout"
	"github.com/platinummonkey/samlfed/pkg/saml"
	"github.com/platinummonkey/samlfed/pkg/session"
	"github.com/platinummonkey/samlfed/pkg/validation"
)

// handleLogout serves /saml/slo. A SAMLRequest initiates single logout; a
// SAMLResponse is a participant acknowledging an earlier notification.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if hasInbound(r, saml.ParamResponse) {
		s.handleLogoutAck(w, r)
		return
	}

	ctx := r.Context()
	raw, relayState, err := decodeInbound(r, saml.ParamRequest)
	if err != nil {
		s.countInvalid("logout")
		writeError(w, http.StatusBadRequest, string(validation.KindInvalidRequest), err.Error())
		return
	}

	req, err := saml.ParseLogoutRequest(raw)
	if err != nil {
		s.countInvalid("logout")
		writeError(w, http.StatusBadRequest, string(validation.KindInvalidRequest), err.Error())
		return
	}

	result := s.deps.Validator.ValidateLogoutRequest(ctx, req, s.session(r))
	s.countValidation("logout", result)
	if !result.OK() {
		s.logger.WithFields(map[string]interface{}{
			"issuer": saml.IssuerValue(req.Issuer),
			"error":  result.Err.Error(),
		}).Warn("logout request rejected")
		s.writeProtocolError(w, result.Err)
		return
	}
	vr := result.Request

	participants, dropped := s.parseParticipants(vr.ClientList)

	// A participant record we cannot decode is a participant we cannot
	// notify, so the initiator learns the logout was partial.
	status := saml.StatusSuccess
	if dropped > 0 {
		status = saml.StatusPartialLogout
	}

	responseMsg, err := s.deps.Logouts.LogoutResponse(vr, status)
	if err != nil {
		s.writeGenerationError(w, err)
		return
	}
	responseMsg.RelayState = relayState

	nonce, err := logout.Nonce()
	if err != nil {
		writeError(w, http.StatusInternalServerError, string(validation.KindServerError), "nonce generation failed")
		return
	}

	page := signedOutPage{Nonce: nonce}
	if s.deps.Messages != nil && s.deps.Fanout != nil && len(participants) > 0 {
		nc := &logout.NotificationContext{
			SubjectID:         subjectID(vr),
			SessionID:         vr.SessionID,
			InitiatorClientID: vr.ClientID,
			Participants:      participants,
		}
		id, err := logout.SaveNotificationContext(ctx, s.deps.Messages, nc)
		if err != nil {
			s.logger.WithError(err).Error("notification context write failed, skipping fan-out")
		} else {
			page.CallbackURL = PathSLOCallback + "?id=" + url.QueryEscape(id)
		}
	}

	switch responseMsg.Binding {
	case saml.BindingPost:
		page.Form = &postPage{
			Destination: responseMsg.Destination,
			Param:       saml.ParamResponse,
			Value:       saml.EncodePost(responseMsg.Payload),
			RelayState:  responseMsg.RelayState,
		}
	default:
		location, err := saml.RedirectURL(responseMsg.Destination, saml.ParamResponse, responseMsg.Payload, responseMsg.RelayState)
		if err != nil {
			writeError(w, http.StatusInternalServerError, string(validation.KindServerError), err.Error())
			return
		}
		page.RedirectURL = location
	}

	s.renderSignedOutPage(w, page)
}

// handleLogoutCallback serves /saml/slo/callback. It consumes the stored
// notification context exactly once and renders the fan-out document.
func (s *Server) handleLogoutCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, string(validation.KindInvalidRequest), "missing id parameter")
		return
	}
	if s.deps.Messages == nil || s.deps.Fanout == nil {
		writeError(w, http.StatusNotFound, string(validation.KindInvalidRequest), "unknown logout context")
		return
	}

	nc, err := logout.ConsumeNotificationContext(ctx, s.deps.Messages, id)
	if err != nil {
		if errors.Is(err, host.ErrMessageNotFound) {
			writeError(w, http.StatusNotFound, string(validation.KindInvalidRequest), "unknown logout context")
			return
		}
		s.logger.WithError(err).Error("notification context read failed")
		writeError(w, http.StatusInternalServerError, string(validation.KindServerError), "logout context read failed")
		return
	}

	nonce, err := logout.Nonce()
	if err != nil {
		writeError(w, http.StatusInternalServerError, string(validation.KindServerError), "nonce generation failed")
		return
	}

	notifications := s.deps.Fanout.Notifications(ctx, nc, nonce)
	if s.deps.Metrics != nil {
		for _, n := range notifications {
			s.deps.Metrics.LogoutNotificationsTotal.WithLabelValues(string(n.Binding)).Inc()
		}
		if skipped := eligibleParticipants(nc) - len(notifications); skipped > 0 {
			s.deps.Metrics.LogoutNotificationsSkipped.Add(float64(skipped))
		}
	}

	s.renderFanoutPage(w, notifications, nonce)
}

// handleLogoutAck records a logout response returned by a notified
// participant. The body is discarded; only the status is of interest.
func (s *Server) handleLogoutAck(w http.ResponseWriter, r *http.Request) {
	raw, _, err := decodeInbound(r, saml.ParamResponse)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(validation.KindInvalidRequest), err.Error())
		return
	}

	resp, err := saml.ParseLogoutResponse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(validation.KindInvalidRequest), err.Error())
		return
	}

	logger := s.logger.WithFields(map[string]interface{}{
		"issuer":         saml.IssuerValue(resp.Issuer),
		"in_response_to": resp.InResponseTo,
	})
	if resp.Success() {
		logger.Info("participant acknowledged logout")
	} else {
		logger.Warn("participant reported logout failure")
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseParticipants decodes the session's participant records, dropping
// malformed entries with a warning.
func (s *Server) parseParticipants(encoded []string) ([]session.Participant, int) {
	participants := make([]session.Participant, 0, len(encoded))
	dropped := 0
	for _, e := range encoded {
		p, err := session.Decode(e)
		if err != nil {
			s.logger.WithError(err).Warn("dropping malformed session participant")
			dropped++
			continue
		}
		participants = append(participants, p)
	}
	return participants, dropped
}

// eligibleParticipants counts the participants the fan-out could notify.
func eligibleParticipants(nc *logout.NotificationContext) int {
	n := 0
	for i := range nc.Participants {
		if nc.Participants[i].ClientID != nc.InitiatorClientID {
			n++
		}
	}
	return n
}

func subjectID(vr *validation.ValidatedRequest) string {
	if vr.Subject == nil {
		return ""
	}
	return vr.Subject.ID
}

// hasInbound reports whether the request carries the named SAML parameter.
func hasInbound(r *http.Request, param string) bool {
	if r.Method == http.MethodGet {
		return r.URL.Query().Get(param) != ""
	}
	_ = r.ParseForm()
	return r.PostFormValue(param) != ""
}
