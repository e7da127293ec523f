package logout

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"net/url"

	"github.com/platinummonkey/samlfed/pkg/observability"
	"github.com/platinummonkey/samlfed/pkg/relyingparty"
	"github.com/platinummonkey/samlfed/pkg/saml"
	"github.com/platinummonkey/samlfed/pkg/session"
)

// Notification is one renderable front-channel logout delivery. For the
// redirect binding Payload is a URL for an iframe src; for the POST
// binding it is a self-submitting form fragment. Origin feeds the CSP
// frame-src list.
type Notification struct {
	Payload string
	Binding saml.Binding
	Origin  string
}

// Orchestrator fans a logout out to the subject's session participants.
type Orchestrator struct {
	parties   relyingparty.Store
	generator *Generator
	logger    *observability.Logger
}

// NewOrchestrator creates a fan-out orchestrator.
func NewOrchestrator(parties relyingparty.Store, generator *Generator, logger *observability.Logger) *Orchestrator {
	return &Orchestrator{
		parties:   parties,
		generator: generator,
		logger:    logger.WithField("component", "logout_orchestrator"),
	}
}

var postFragmentTemplate = template.Must(template.New("logout-post-fragment").Parse(
	`<form method="post" action="{{.URL}}">` +
		`<input type="hidden" name="SAMLRequest" value="{{.SAMLRequest}}"/>` +
		`</form>` +
		`<script nonce="{{.Nonce}}">document.forms[0].submit();</script>`))

// Notifications produces one renderable notification per participant,
// excluding the initiator. The loop is best-effort: a participant that
// cannot be resolved or rendered is skipped with a warning and never
// fails the rest. nonce tags the inline scripts of POST fragments for
// Content-Security-Policy.
func (o *Orchestrator) Notifications(ctx context.Context, nc *NotificationContext, nonce string) []Notification {
	notifications := make([]Notification, 0, len(nc.Participants))
	for i := range nc.Participants {
		participant := &nc.Participants[i]
		if participant.ClientID == nc.InitiatorClientID {
			continue
		}
		notification, err := o.notify(ctx, participant, nonce)
		if err != nil {
			o.logger.WithError(err).WithFields(map[string]interface{}{
				"client_id":  participant.ClientID,
				"session_id": nc.SessionID,
			}).Warn("skipping logout notification")
			continue
		}
		notifications = append(notifications, *notification)
	}
	return notifications
}

func (o *Orchestrator) notify(ctx context.Context, participant *session.Participant, nonce string) (*Notification, error) {
	party, err := o.parties.Get(ctx, participant.ClientID)
	if errors.Is(err, relyingparty.ErrNotFound) {
		return nil, fmt.Errorf("unknown relying party")
	}
	if err != nil {
		return nil, fmt.Errorf("relying party lookup failed: %w", err)
	}
	endpoint := party.SLOService()
	if endpoint == nil {
		return nil, fmt.Errorf("no single-logout endpoint registered")
	}

	msg, err := o.generator.LogoutRequest(Target{
		ClientID:     participant.ClientID,
		RelyingParty: party,
		Participant:  participant,
		Reason:       saml.LogoutReasonUser,
	}, "")
	if err != nil {
		return nil, err
	}

	switch msg.Binding {
	case saml.BindingRedirect:
		location, err := saml.RedirectURL(msg.Destination, saml.ParamRequest, msg.Payload, "")
		if err != nil {
			return nil, fmt.Errorf("failed to encode redirect: %w", err)
		}
		return &Notification{
			Payload: location,
			Binding: saml.BindingRedirect,
			Origin:  origin(msg.Destination),
		}, nil

	case saml.BindingPost:
		var buf bytes.Buffer
		err := postFragmentTemplate.Execute(&buf, struct {
			URL         string
			SAMLRequest string
			Nonce       string
		}{
			URL:         msg.Destination,
			SAMLRequest: saml.EncodePost(msg.Payload),
			Nonce:       nonce,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to render form fragment: %w", err)
		}
		return &Notification{
			Payload: buf.String(),
			Binding: saml.BindingPost,
			Origin:  origin(msg.Destination),
		}, nil
	}
	return nil, fmt.Errorf("unsupported logout binding %q", msg.Binding)
}

// Nonce returns a fresh CSP nonce for one fan-out page.
func Nonce() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func origin(location string) string {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
