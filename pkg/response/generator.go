package response

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/platinummonkey/samlfed/pkg/artifact"
	"github.com/platinummonkey/samlfed/pkg/host"
	"github.com/platinummonkey/samlfed/pkg/keys"
	"github.com/platinummonkey/samlfed/pkg/observability"
	"github.com/platinummonkey/samlfed/pkg/relyingparty"
	"github.com/platinummonkey/samlfed/pkg/saml"
	"github.com/platinummonkey/samlfed/pkg/session"
	"github.com/platinummonkey/samlfed/pkg/validation"
)

// Message is a deliverable sign-in response. For the POST binding Payload
// carries the full serialized samlp:Response; for the artifact binding
// Payload is empty and Artifact carries the reference.
type Message struct {
	Payload     []byte
	Binding     saml.Binding
	Destination string
	RelayState  string
	Artifact    string
}

// Config tunes response generation.
type Config struct {
	// Issuer is the identity provider's own entity ID.
	Issuer string
	// MessageLifetime bounds assertion and subject confirmation validity.
	MessageLifetime time.Duration
	// ArtifactLifetime bounds how long an unresolved artifact survives.
	ArtifactLifetime time.Duration
}

// DefaultMessageLifetime applies when Config.MessageLifetime is zero.
const DefaultMessageLifetime = 5 * time.Minute

// DefaultArtifactLifetime applies when Config.ArtifactLifetime is zero.
const DefaultArtifactLifetime = time.Minute

// SignInResponseGenerator builds signed sign-in responses from validated
// authentication requests.
type SignInResponseGenerator struct {
	config    Config
	keys      keys.Service
	profile   host.ProfileService
	artifacts artifact.Store // nil when the artifact binding is not deployed
	defaults  relyingparty.Defaults
	clock     host.Clock
	logger    *observability.Logger
}

// NewSignInResponseGenerator creates a generator. artifacts may be nil;
// generation then fails for relying parties that negotiated the artifact
// binding.
func NewSignInResponseGenerator(config Config, keySvc keys.Service, profile host.ProfileService, artifacts artifact.Store, defaults relyingparty.Defaults, clock host.Clock, logger *observability.Logger) *SignInResponseGenerator {
	if config.MessageLifetime <= 0 {
		config.MessageLifetime = DefaultMessageLifetime
	}
	if config.ArtifactLifetime <= 0 {
		config.ArtifactLifetime = DefaultArtifactLifetime
	}
	return &SignInResponseGenerator{
		config:    config,
		keys:      keySvc,
		profile:   profile,
		artifacts: artifacts,
		defaults:  defaults,
		clock:     clock,
		logger:    logger.WithField("component", "signin_response_generator"),
	}
}

// Generate builds the response for vr and records the resulting session
// participant on it. clientAddress is the requester's network address for
// subject confirmation; it may be empty.
func (g *SignInResponseGenerator) Generate(ctx context.Context, vr *validation.ValidatedRequest, relayState, clientAddress string) (*Message, error) {
	if vr.Subject.IsAnonymous() {
		return nil, validation.ServerError("cannot issue a response for an anonymous subject")
	}

	claims, err := g.issueClaims(ctx, vr)
	if err != nil {
		return nil, err
	}
	nameID, attributes, authnContext, authnInstant := g.splitClaims(vr, claims)

	now := g.clock.Now()
	notOnOrAfter := now.Add(g.config.MessageLifetime)
	sessionIndex := vr.SessionID
	if sessionIndex == "" {
		sessionIndex = saml.MessageID()
	}

	assertionEl := buildAssertionElement(assertionInput{
		ID:            saml.MessageID(),
		Issuer:        g.config.Issuer,
		Audience:      vr.ClientID,
		NameID:        nameID,
		SessionIndex:  sessionIndex,
		AuthnContext:  authnContext,
		AuthnInstant:  authnInstant,
		Now:           now,
		NotOnOrAfter:  notOnOrAfter,
		Recipient:     vr.ReplyURL,
		InResponseTo:  vr.RequestID(),
		ClientAddress: clientAddress,
		Attributes:    attributes,
	})

	creds, err := g.keys.GetX509SigningCredentials(g.defaults.SignatureAlgorithmFor(vr.RelyingParty))
	if err != nil {
		return nil, validation.ServerError("signing credentials unavailable: %v", err)
	}

	if g.defaults.SignAssertionsFor(vr.RelyingParty) {
		assertionEl, err = signElement(assertionEl, creds)
		if err != nil {
			return nil, validation.ServerError("assertion signing failed: %v", err)
		}
	}

	encryptionCert, err := vr.RelyingParty.EncryptionCertificate()
	if err != nil {
		return nil, validation.ServerError("%v", err)
	}
	if encryptionCert != nil {
		assertionEl, err = encryptAssertion(assertionEl, encryptionCert)
		if err != nil {
			return nil, validation.ServerError("assertion encryption failed: %v", err)
		}
	}

	payload, err := g.buildResponse(vr, assertionEl, creds, now)
	if err != nil {
		return nil, err
	}

	vr.Participant = &session.Participant{
		ClientID:        vr.ClientID,
		NameID:          nameID.Value,
		NameIDFormat:    nameID.Format,
		NameQualifier:   nameID.NameQualifier,
		SPNameQualifier: nameID.SPNameQualifier,
		SessionIndex:    sessionIndex,
	}

	if vr.ReplyBinding == saml.BindingArtifact {
		return g.artifactMessage(ctx, vr, payload, relayState, now)
	}
	return &Message{
		Payload:     payload,
		Binding:     saml.BindingPost,
		Destination: vr.ReplyURL,
		RelayState:  relayState,
	}, nil
}

func (g *SignInResponseGenerator) issueClaims(ctx context.Context, vr *validation.ValidatedRequest) ([]host.Claim, error) {
	claims, err := g.profile.GetClaims(ctx, vr.Subject, vr.Client, nil)
	if err != nil {
		return nil, validation.ServerError("claim issuance failed: %v", err)
	}

	mapping := g.defaults.ClaimMappingFor(vr.RelyingParty)
	if len(mapping) == 0 {
		return claims, nil
	}
	mapped := make([]host.Claim, 0, len(claims))
	for _, claim := range claims {
		if outbound, ok := mapping[claim.Type]; ok {
			claim.Type = outbound
		}
		mapped = append(mapped, claim)
	}
	return mapped, nil
}

// splitClaims separates the name identifier and authentication claims
// from the attribute set, synthesizing the ones some consumers require.
func (g *SignInResponseGenerator) splitClaims(vr *validation.ValidatedRequest, claims []host.Claim) (saml.NameID, []host.Claim, string, time.Time) {
	nameID := saml.NameID{
		Format:          g.defaults.NameIDFormatFor(vr.RelyingParty),
		NameQualifier:   g.config.Issuer,
		SPNameQualifier: vr.ClientID,
	}
	authnContext := ""
	authnInstant := time.Time{}

	attributes := make([]host.Claim, 0, len(claims)+2)
	for _, claim := range claims {
		switch claim.Type {
		case saml.ClaimNameID:
			nameID.Value = claim.Value
		case saml.ClaimAuthnMethod:
			authnContext = claim.Value
		case saml.ClaimAuthnInstant:
			if instant, err := saml.ParseInstant(claim.Value); err == nil {
				authnInstant = instant
			}
		default:
			attributes = append(attributes, claim)
		}
	}

	if nameID.Value == "" {
		nameID.Value = vr.Subject.ID
	}
	if authnContext == "" {
		authnContext = saml.AuthnMethodUnspecified
		if vr.Subject.AuthenticationMethod == "password" {
			authnContext = saml.AuthnMethodPassword
		}
	}
	if authnInstant.IsZero() {
		authnInstant = vr.Subject.AuthenticationTime
		if authnInstant.IsZero() {
			authnInstant = g.clock.Now()
		}
	}
	return nameID, attributes, authnContext, authnInstant
}

func (g *SignInResponseGenerator) buildResponse(vr *validation.ValidatedRequest, assertionEl *etree.Element, creds *keys.Credentials, now time.Time) ([]byte, error) {
	responseEl := etree.NewElement("samlp:Response")
	responseEl.CreateAttr("xmlns:samlp", saml.ProtocolNamespace)
	responseEl.CreateAttr("xmlns:saml", saml.AssertionNamespace)
	responseEl.CreateAttr("ID", saml.MessageID())
	responseEl.CreateAttr("Version", saml.Version)
	responseEl.CreateAttr("IssueInstant", saml.Instant(now))
	responseEl.CreateAttr("Destination", vr.ReplyURL)
	if inResponseTo := vr.RequestID(); inResponseTo != "" {
		responseEl.CreateAttr("InResponseTo", inResponseTo)
	}

	issuer := responseEl.CreateElement("saml:Issuer")
	issuer.CreateAttr("Format", saml.NameIDFormatEntity)
	issuer.SetText(g.config.Issuer)

	status := responseEl.CreateElement("samlp:Status")
	status.CreateElement("samlp:StatusCode").CreateAttr("Value", saml.StatusSuccess)

	responseEl.AddChild(assertionEl)

	if g.defaults.SignResponsesFor(vr.RelyingParty) {
		signed, err := signElement(responseEl, creds)
		if err != nil {
			return nil, validation.ServerError("response signing failed: %v", err)
		}
		responseEl = signed
	}

	doc := etree.NewDocument()
	doc.SetRoot(responseEl)
	payload, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize response: %w", err)
	}
	return payload, nil
}

// artifactMessage stores the response and returns the artifact reference
// the relying party will resolve over SOAP.
func (g *SignInResponseGenerator) artifactMessage(ctx context.Context, vr *validation.ValidatedRequest, payload []byte, relayState string, now time.Time) (*Message, error) {
	if g.artifacts == nil {
		return nil, validation.ServerError("artifact binding negotiated for %q but no artifact store is configured", vr.ClientID)
	}

	art, err := artifact.New(g.config.Issuer, 0)
	if err != nil {
		return nil, validation.ServerError("artifact generation failed: %v", err)
	}
	encoded := art.Encode()

	err = g.artifacts.Store(ctx, encoded, artifact.Record{
		ClientID: vr.ClientID,
		Response: payload,
		Created:  now,
		Expiry:   now.Add(g.config.ArtifactLifetime),
	})
	if err != nil {
		return nil, validation.ServerError("artifact store write failed: %v", err)
	}

	g.logger.WithFields(map[string]interface{}{
		"client_id": vr.ClientID,
	}).Debug("issued artifact-binding response")

	return &Message{
		Binding:     saml.BindingArtifact,
		Destination: vr.ReplyURL,
		RelayState:  relayState,
		Artifact:    encoded,
	}, nil
}
