package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/platinummonkey/samlfed/pkg/saml"
	"github.com/platinummonkey/samlfed/pkg/validation"
)

// handleSignIn serves /saml/sso. The request arrives via the Redirect
// binding (GET, deflated query parameter) or the POST binding (form field).
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, relayState, err := decodeInbound(r, saml.ParamRequest)
	if err != nil {
		s.countInvalid("authn")
		writeError(w, http.StatusBadRequest, string(validation.KindInvalidRequest), err.Error())
		return
	}

	req, err := saml.ParseAuthnRequest(raw)
	if err != nil {
		s.countInvalid("authn")
		writeError(w, http.StatusBadRequest, string(validation.KindInvalidRequest), err.Error())
		return
	}

	result := s.deps.Validator.ValidateAuthnRequest(ctx, req, s.session(r))
	s.countValidation("authn", result)
	if !result.OK() {
		s.logger.WithFields(map[string]interface{}{
			"issuer": saml.IssuerValue(req.Issuer),
			"error":  result.Err.Error(),
		}).Warn("authentication request rejected")
		s.writeProtocolError(w, result.Err)
		return
	}

	msg, err := s.deps.Responses.Generate(ctx, result.Request, relayState, clientAddress(r))
	if err != nil {
		s.writeGenerationError(w, err)
		return
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.ResponsesIssuedTotal.WithLabelValues(string(msg.Binding)).Inc()
	}

	switch msg.Binding {
	case saml.BindingArtifact:
		if s.deps.Metrics != nil {
			s.deps.Metrics.ArtifactsStoredTotal.Inc()
		}
		location, err := artifactRedirectURL(msg.Destination, msg.Artifact, msg.RelayState)
		if err != nil {
			writeError(w, http.StatusInternalServerError, string(validation.KindServerError), err.Error())
			return
		}
		http.Redirect(w, r, location, http.StatusFound)
	default:
		s.renderPostPage(w, postPage{
			Destination: msg.Destination,
			Param:       saml.ParamResponse,
			Value:       saml.EncodePost(msg.Payload),
			RelayState:  msg.RelayState,
		})
	}
}

// decodeInbound extracts and decodes a SAML message from the request,
// honoring the Redirect binding for GET and the POST binding for POST.
func decodeInbound(r *http.Request, param string) ([]byte, string, error) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		encoded := q.Get(param)
		if encoded == "" {
			return nil, "", fmt.Errorf("missing %s parameter", param)
		}
		raw, err := saml.DecodeRedirect(encoded)
		return raw, q.Get(saml.ParamRelayState), err
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			return nil, "", fmt.Errorf("malformed form body: %w", err)
		}
		encoded := r.PostFormValue(param)
		if encoded == "" {
			return nil, "", fmt.Errorf("missing %s parameter", param)
		}
		raw, err := saml.DecodePost(encoded)
		return raw, r.PostFormValue(saml.ParamRelayState), err
	}
	return nil, "", fmt.Errorf("unsupported method %s", r.Method)
}

// artifactRedirectURL appends the artifact reference and relay state to the
// consumer location.
func artifactRedirectURL(location, artifact, relayState string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("malformed destination %q: %w", location, err)
	}
	q := u.Query()
	q.Set(saml.ParamArtifact, artifact)
	if relayState != "" {
		q.Set(saml.ParamRelayState, relayState)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// countInvalid records a validation-failure metric for messages rejected
// before the validator ran.
func (s *Server) countInvalid(messageType string) {
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.RequestsValidatedTotal.WithLabelValues(messageType, string(validation.KindInvalidRequest)).Inc()
}

// writeGenerationError distinguishes protocol failures raised during
// generation from unexpected ones.
func (s *Server) writeGenerationError(w http.ResponseWriter, err error) {
	var perr *validation.ProtocolError
	if errors.As(err, &perr) {
		s.logger.WithError(perr).Error("response generation failed")
		s.writeProtocolError(w, perr)
		return
	}
	s.logger.WithError(err).Error("response generation failed")
	writeError(w, http.StatusInternalServerError, string(validation.KindServerError), "response generation failed")
}
