package logout

import (
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/platinummonkey/samlfed/pkg/host"
	"github.com/platinummonkey/samlfed/pkg/keys"
	"github.com/platinummonkey/samlfed/pkg/relyingparty"
	"github.com/platinummonkey/samlfed/pkg/saml"
	"github.com/platinummonkey/samlfed/pkg/session"
	"github.com/platinummonkey/samlfed/pkg/validation"
)

// Message is a deliverable logout message: raw signed XML plus the
// binding and destination it was built for.
type Message struct {
	Payload     []byte
	Binding     saml.Binding
	Destination string
	RelayState  string
}

// Target names the relying party a logout request is addressed to.
// RelyingParty may be nil; ReplyURL is the fallback destination.
type Target struct {
	ClientID     string
	RelyingParty *relyingparty.RelyingParty
	ReplyURL     string
	Participant  *session.Participant
	Reason       string
}

// Config tunes logout message generation.
type Config struct {
	// Issuer is the identity provider's own entity ID.
	Issuer string
	// MessageLifetime bounds the NotOnOrAfter attribute on requests.
	MessageLifetime time.Duration
}

// DefaultMessageLifetime applies when Config.MessageLifetime is zero.
const DefaultMessageLifetime = 5 * time.Minute

// Generator builds signed logout requests and responses.
type Generator struct {
	config   Config
	keys     keys.Service
	defaults relyingparty.Defaults
	clock    host.Clock
}

// NewGenerator creates a logout message generator.
func NewGenerator(config Config, keySvc keys.Service, defaults relyingparty.Defaults, clock host.Clock) *Generator {
	if config.MessageLifetime <= 0 {
		config.MessageLifetime = DefaultMessageLifetime
	}
	return &Generator{config: config, keys: keySvc, defaults: defaults, clock: clock}
}

// LogoutRequest builds a signed logout request for target. The
// destination is the target's registered SLO endpoint, falling back to
// its reply URL; the binding follows the endpoint, defaulting to
// HTTP-Redirect.
func (g *Generator) LogoutRequest(target Target, relayState string) (*Message, error) {
	destination, binding := g.resolveDestination(target)
	if destination == "" {
		return nil, fmt.Errorf("no logout destination for %q", target.ClientID)
	}

	now := g.clock.Now()
	requestEl := etree.NewElement("samlp:LogoutRequest")
	requestEl.CreateAttr("xmlns:samlp", saml.ProtocolNamespace)
	requestEl.CreateAttr("xmlns:saml", saml.AssertionNamespace)
	requestEl.CreateAttr("ID", saml.MessageID())
	requestEl.CreateAttr("Version", saml.Version)
	requestEl.CreateAttr("IssueInstant", saml.Instant(now))
	requestEl.CreateAttr("Destination", destination)
	requestEl.CreateAttr("NotOnOrAfter", saml.Instant(now.Add(g.config.MessageLifetime)))
	if target.Reason != "" {
		requestEl.CreateAttr("Reason", target.Reason)
	}

	issuer := requestEl.CreateElement("saml:Issuer")
	issuer.CreateAttr("Format", saml.NameIDFormatEntity)
	issuer.SetText(g.config.Issuer)

	nameID := requestEl.CreateElement("saml:NameID")
	if p := target.Participant; p != nil {
		if p.NameIDFormat != "" {
			nameID.CreateAttr("Format", p.NameIDFormat)
		}
		if p.NameQualifier != "" {
			nameID.CreateAttr("NameQualifier", p.NameQualifier)
		}
		if p.SPNameQualifier != "" {
			nameID.CreateAttr("SPNameQualifier", p.SPNameQualifier)
		}
		nameID.SetText(p.NameID)
		if p.SessionIndex != "" {
			requestEl.CreateElement("samlp:SessionIndex").SetText(p.SessionIndex)
		}
	}

	payload, err := g.sign(requestEl, target.RelyingParty)
	if err != nil {
		return nil, err
	}
	return &Message{
		Payload:     payload,
		Binding:     binding,
		Destination: destination,
		RelayState:  relayState,
	}, nil
}

// LogoutResponse builds the signed reply to an inbound logout request.
func (g *Generator) LogoutResponse(vr *validation.ValidatedRequest, statusCode string) (*Message, error) {
	destination := vr.ReplyURL
	binding := vr.ReplyBinding
	if vr.RelyingParty != nil {
		if ep := vr.RelyingParty.SLOService(); ep != nil {
			destination = ep.Location
			binding = ep.Binding
		}
	}
	if binding != saml.BindingPost {
		binding = saml.BindingRedirect
	}
	if destination == "" {
		return nil, fmt.Errorf("no logout destination for %q", vr.ClientID)
	}

	responseEl := etree.NewElement("samlp:LogoutResponse")
	responseEl.CreateAttr("xmlns:samlp", saml.ProtocolNamespace)
	responseEl.CreateAttr("xmlns:saml", saml.AssertionNamespace)
	responseEl.CreateAttr("ID", saml.MessageID())
	responseEl.CreateAttr("Version", saml.Version)
	responseEl.CreateAttr("IssueInstant", saml.Instant(g.clock.Now()))
	responseEl.CreateAttr("Destination", destination)
	if inResponseTo := vr.RequestID(); inResponseTo != "" {
		responseEl.CreateAttr("InResponseTo", inResponseTo)
	}

	issuer := responseEl.CreateElement("saml:Issuer")
	issuer.CreateAttr("Format", saml.NameIDFormatEntity)
	issuer.SetText(g.config.Issuer)

	status := responseEl.CreateElement("samlp:Status")
	status.CreateElement("samlp:StatusCode").CreateAttr("Value", statusCode)

	payload, err := g.sign(responseEl, vr.RelyingParty)
	if err != nil {
		return nil, err
	}
	return &Message{
		Payload:     payload,
		Binding:     binding,
		Destination: destination,
	}, nil
}

func (g *Generator) resolveDestination(target Target) (string, saml.Binding) {
	if target.RelyingParty != nil {
		if ep := target.RelyingParty.SLOService(); ep != nil {
			binding := ep.Binding
			if binding != saml.BindingPost {
				binding = saml.BindingRedirect
			}
			return ep.Location, binding
		}
	}
	return target.ReplyURL, saml.BindingRedirect
}

// sign applies an enveloped signature and moves it directly after the
// Issuer element.
func (g *Generator) sign(el *etree.Element, party *relyingparty.RelyingParty) ([]byte, error) {
	creds, err := g.keys.GetX509SigningCredentials(g.defaults.SignatureAlgorithmFor(party))
	if err != nil {
		return nil, fmt.Errorf("signing credentials unavailable: %w", err)
	}
	signingContext, err := creds.SigningContext()
	if err != nil {
		return nil, err
	}
	signed, err := signingContext.SignEnveloped(el)
	if err != nil {
		return nil, fmt.Errorf("failed to sign logout message: %w", err)
	}
	// SignEnveloped appends the signature token without setting its
	// parent, so RemoveChild would not detach it. Drop the tail token
	// before reinserting to avoid a duplicate Signature element.
	children := signed.ChildElements()
	signature := children[len(children)-1]
	signed.Child = signed.Child[:len(signed.Child)-1]
	signed.InsertChildAt(1, signature)

	doc := etree.NewDocument()
	doc.SetRoot(signed)
	payload, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize logout message: %w", err)
	}
	return payload, nil
}
