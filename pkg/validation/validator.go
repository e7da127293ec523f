package validation

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/platinummonkey/samlfed/pkg/host"
	"github.com/platinummonkey/samlfed/pkg/observability"
	"github.com/platinummonkey/samlfed/pkg/relyingparty"
	"github.com/platinummonkey/samlfed/pkg/saml"
	"github.com/platinummonkey/samlfed/pkg/session"
)

// ValidatedRequest is the output of a successful validation pass and the
// sole input to response generation. It lives for one request.
type ValidatedRequest struct {
	ClientID     string
	Client       *host.Client
	RelyingParty *relyingparty.RelyingParty // nil when no per-party overrides exist

	// ReplyURL is where the response goes. ReplyBinding is the negotiated
	// response binding, BindingPost unless an SSO endpoint says otherwise.
	ReplyURL     string
	ReplyBinding saml.Binding

	Subject    *host.Subject
	SessionID  string
	ClientList []string

	AuthnRequest  *saml.AuthnRequest
	LogoutRequest *saml.LogoutRequest

	// Participant is filled in by the sign-in response generator once the
	// subject's name identifier and session index are fixed.
	Participant *session.Participant
}

// RequestID returns the inbound message id, for InResponseTo attributes.
func (vr *ValidatedRequest) RequestID() string {
	switch {
	case vr.AuthnRequest != nil:
		return vr.AuthnRequest.ID
	case vr.LogoutRequest != nil:
		return vr.LogoutRequest.ID
	}
	return ""
}

// Result is the outcome of one validation pass. Exactly one of Request or
// Err is set; Partial carries whatever was resolved before the failure so
// callers can log it.
type Result struct {
	Request *ValidatedRequest
	Err     *ProtocolError
	Partial *ValidatedRequest
}

// OK reports whether validation succeeded.
func (r *Result) OK() bool {
	return r.Err == nil
}

func success(vr *ValidatedRequest) *Result {
	return &Result{Request: vr}
}

func failure(err *ProtocolError, partial *ValidatedRequest) *Result {
	return &Result{Err: err, Partial: partial}
}

// Config bounds the checks RequestValidator applies.
type Config struct {
	// ClockSkew is the tolerated difference between our clock and the
	// requester's, applied to every validity window check.
	ClockSkew time.Duration
	// MaxIssuerLength bounds the issuer entity ID.
	MaxIssuerLength int
	// MaxReplyURLLength bounds a request-declared assertion consumer URL.
	MaxReplyURLLength int
}

// DefaultConfig returns the validation bounds used in production.
func DefaultConfig() Config {
	return Config{
		ClockSkew:         5 * time.Minute,
		MaxIssuerLength:   512,
		MaxReplyURLLength: 2048,
	}
}

// RequestValidator resolves and checks inbound protocol messages.
type RequestValidator struct {
	clients host.ClientStore
	parties relyingparty.Store
	clock   host.Clock
	config  Config
	logger  *observability.Logger
}

// NewRequestValidator creates a validator. parties may be nil when the
// deployment carries no per-party overrides.
func NewRequestValidator(clients host.ClientStore, parties relyingparty.Store, clock host.Clock, config Config, logger *observability.Logger) *RequestValidator {
	if config.ClockSkew <= 0 {
		config.ClockSkew = DefaultConfig().ClockSkew
	}
	if config.MaxIssuerLength <= 0 {
		config.MaxIssuerLength = DefaultConfig().MaxIssuerLength
	}
	if config.MaxReplyURLLength <= 0 {
		config.MaxReplyURLLength = DefaultConfig().MaxReplyURLLength
	}
	return &RequestValidator{
		clients: clients,
		parties: parties,
		clock:   clock,
		config:  config,
		logger:  logger.WithField("component", "request_validator"),
	}
}

// ValidateAuthnRequest runs the validation sequence over an authentication
// request. userSession supplies the authenticated subject, which may be
// anonymous at this point.
func (v *RequestValidator) ValidateAuthnRequest(ctx context.Context, req *saml.AuthnRequest, userSession host.UserSession) *Result {
	vr := &ValidatedRequest{AuthnRequest: req, ReplyBinding: saml.BindingPost}

	client, perr := v.resolveClient(ctx, saml.IssuerValue(req.Issuer))
	if perr != nil {
		return failure(perr, vr)
	}
	vr.ClientID = client.ID
	vr.Client = client

	now := v.clock.Now()
	if perr := v.checkWindow(now, req.IssueInstant); perr != nil {
		return failure(perr, vr)
	}
	if req.Conditions != nil {
		if perr := v.checkConditions(now, req.Conditions); perr != nil {
			return failure(perr, vr)
		}
	}

	v.filterIdpHints(req.RequestedAuthnContext, client)

	party, perr := v.lookupParty(ctx, client.ID)
	if perr != nil {
		return failure(perr, vr)
	}
	vr.RelyingParty = party

	replyURL, binding, perr := v.resolveAuthnReplyURL(req, client, party)
	if perr != nil {
		return failure(perr, vr)
	}
	vr.ReplyURL = replyURL
	vr.ReplyBinding = binding

	if perr := v.attachSession(ctx, vr, userSession); perr != nil {
		return failure(perr, vr)
	}
	return success(vr)
}

// ValidateLogoutRequest runs the validation sequence over a logout request.
func (v *RequestValidator) ValidateLogoutRequest(ctx context.Context, req *saml.LogoutRequest, userSession host.UserSession) *Result {
	vr := &ValidatedRequest{LogoutRequest: req, ReplyBinding: saml.BindingRedirect}

	client, perr := v.resolveClient(ctx, saml.IssuerValue(req.Issuer))
	if perr != nil {
		return failure(perr, vr)
	}
	vr.ClientID = client.ID
	vr.Client = client

	now := v.clock.Now()
	if perr := v.checkWindow(now, req.IssueInstant); perr != nil {
		return failure(perr, vr)
	}
	if req.NotOnOrAfter != "" {
		notOnOrAfter, err := saml.ParseInstant(req.NotOnOrAfter)
		if err != nil {
			return failure(invalidRequest("malformed NotOnOrAfter"), vr)
		}
		if !now.Add(-v.config.ClockSkew).Before(notOnOrAfter) {
			return failure(invalidRequest("logout request has expired"), vr)
		}
	}

	party, perr := v.lookupParty(ctx, client.ID)
	if perr != nil {
		return failure(perr, vr)
	}
	vr.RelyingParty = party

	replyURL, binding, perr := v.resolveLogoutReplyURL(client, party)
	if perr != nil {
		return failure(perr, vr)
	}
	vr.ReplyURL = replyURL
	vr.ReplyBinding = binding

	if perr := v.attachSession(ctx, vr, userSession); perr != nil {
		return failure(perr, vr)
	}
	return success(vr)
}

func (v *RequestValidator) resolveClient(ctx context.Context, issuer string) (*host.Client, *ProtocolError) {
	if issuer == "" {
		return nil, invalidRequest("missing issuer")
	}
	if len(issuer) > v.config.MaxIssuerLength {
		return nil, invalidRequest("issuer exceeds %d characters", v.config.MaxIssuerLength)
	}

	client, err := v.clients.FindEnabledClientByID(ctx, issuer)
	if errors.Is(err, host.ErrClientNotFound) {
		return nil, invalidRelyingParty("unknown relying party %q", issuer)
	}
	if err != nil {
		return nil, serverError("client lookup failed: %v", err)
	}
	if client.ProtocolType != host.ProtocolSAML2 {
		return nil, invalidRelyingParty("client %q is not registered for SAML 2.0", issuer)
	}
	return client, nil
}

func (v *RequestValidator) checkWindow(now, instant time.Time) *ProtocolError {
	if instant.IsZero() {
		return invalidRequest("missing IssueInstant")
	}
	if instant.Before(now.Add(-v.config.ClockSkew)) {
		return invalidRequest("IssueInstant too far in the past")
	}
	if instant.After(now.Add(v.config.ClockSkew)) {
		return invalidRequest("IssueInstant too far in the future")
	}
	return nil
}

func (v *RequestValidator) checkConditions(now time.Time, conditions *saml.Conditions) *ProtocolError {
	if conditions.NotBefore != "" {
		notBefore, err := saml.ParseInstant(conditions.NotBefore)
		if err != nil {
			return invalidRequest("malformed Conditions.NotBefore")
		}
		if notBefore.After(now.Add(v.config.ClockSkew)) {
			return invalidRequest("request is not yet valid")
		}
	}
	if conditions.NotOnOrAfter != "" {
		notOnOrAfter, err := saml.ParseInstant(conditions.NotOnOrAfter)
		if err != nil {
			return invalidRequest("malformed Conditions.NotOnOrAfter")
		}
		if !now.Add(-v.config.ClockSkew).Before(notOnOrAfter) {
			return invalidRequest("request has expired")
		}
	}
	return nil
}

// filterIdpHints strips hints naming identity providers the client may not
// use. Stripping is never fatal.
func (v *RequestValidator) filterIdpHints(rac *saml.RequestedAuthnContext, client *host.Client) {
	for _, hint := range rac.IdpHints() {
		if client.AllowsIdentityProvider(hint) {
			continue
		}
		rac.StripIdpHints(hint)
		v.logger.WithFields(map[string]interface{}{
			"client_id": client.ID,
			"idp":       hint,
		}).Warn("stripped disallowed identity provider hint")
	}
}

func (v *RequestValidator) lookupParty(ctx context.Context, entityID string) (*relyingparty.RelyingParty, *ProtocolError) {
	if v.parties == nil {
		return nil, nil
	}
	party, err := v.parties.Get(ctx, entityID)
	if errors.Is(err, relyingparty.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, serverError("relying party lookup failed: %v", err)
	}
	return party, nil
}

// resolveAuthnReplyURL picks the assertion consumer endpoint. Preference
// order: a registered URL the request declares, then the endpoint the
// request selects by index or protocol binding, then the relying party's
// preferred SSO service, then the client's first redirect URI.
func (v *RequestValidator) resolveAuthnReplyURL(req *saml.AuthnRequest, client *host.Client, party *relyingparty.RelyingParty) (string, saml.Binding, *ProtocolError) {
	if declared := req.AssertionConsumerServiceURL; declared != "" {
		if v.isRegisteredReplyURL(declared, client, party) {
			binding := saml.BindingPost
			if party != nil {
				if ep := party.SSOServiceByLocation(declared); ep != nil {
					binding = ep.Binding
				}
			}
			return declared, binding, nil
		}
		v.logger.WithFields(map[string]interface{}{
			"client_id": client.ID,
			"reply_url": declared,
		}).Warn("ignoring unregistered assertion consumer URL")
	}

	if party != nil {
		if req.AssertionConsumerServiceIndex != "" {
			if ep := endpointByIndexAttr(party, req.AssertionConsumerServiceIndex); ep != nil {
				return ep.Location, ep.Binding, nil
			}
		}
		if req.ProtocolBinding != "" {
			for i := range party.SingleSignOnServices {
				ep := &party.SingleSignOnServices[i]
				if string(ep.Binding) == req.ProtocolBinding {
					return ep.Location, ep.Binding, nil
				}
			}
		}
		if ep := party.PreferredSSOService(); ep != nil {
			return ep.Location, ep.Binding, nil
		}
	}

	if len(client.RedirectURIs) > 0 {
		return client.RedirectURIs[0], saml.BindingPost, nil
	}
	return "", "", invalidRelyingParty("no assertion consumer endpoint registered for %q", client.ID)
}

func (v *RequestValidator) resolveLogoutReplyURL(client *host.Client, party *relyingparty.RelyingParty) (string, saml.Binding, *ProtocolError) {
	if party != nil {
		if ep := party.SLOService(); ep != nil {
			return ep.Location, ep.Binding, nil
		}
	}
	if len(client.PostLogoutRedirectURIs) > 0 {
		return client.PostLogoutRedirectURIs[0], saml.BindingRedirect, nil
	}
	return "", "", invalidRelyingParty("no logout endpoint registered for %q", client.ID)
}

func (v *RequestValidator) isRegisteredReplyURL(declared string, client *host.Client, party *relyingparty.RelyingParty) bool {
	if len(declared) > v.config.MaxReplyURLLength {
		return false
	}
	parsed, err := url.Parse(declared)
	if err != nil || !parsed.IsAbs() {
		return false
	}
	for _, registered := range client.RedirectURIs {
		if registered == declared {
			return true
		}
	}
	if party != nil && party.SSOServiceByLocation(declared) != nil {
		return true
	}
	return false
}

func (v *RequestValidator) attachSession(ctx context.Context, vr *ValidatedRequest, userSession host.UserSession) *ProtocolError {
	if userSession == nil {
		return nil
	}
	subject, err := userSession.GetUser(ctx)
	if err != nil {
		return serverError("session user lookup failed: %v", err)
	}
	vr.Subject = subject

	sessionID, err := userSession.GetSessionID(ctx)
	if err != nil {
		return serverError("session id lookup failed: %v", err)
	}
	vr.SessionID = sessionID

	clients, err := userSession.GetClientList(ctx)
	if err != nil {
		return serverError("session client list lookup failed: %v", err)
	}
	vr.ClientList = clients
	return nil
}

func endpointByIndexAttr(party *relyingparty.RelyingParty, attr string) *relyingparty.Endpoint {
	index := 0
	for _, r := range attr {
		if r < '0' || r > '9' {
			return nil
		}
		index = index*10 + int(r-'0')
	}
	return party.SSOServiceByIndex(index)
}
