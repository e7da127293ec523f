package relyingparty

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	dsig "github.com/russellhaering/goxmldsig"

	"github.com/platinummonkey/samlfed/pkg/saml"
)

// ErrNotFound is returned by stores for unknown entity IDs. Callers treat
// it as "use engine defaults", not as a failure.
var ErrNotFound = errors.New("relyingparty: not found")

// DigestSHA256 is the default digest method advertised alongside signatures.
const DigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"

// Endpoint is one registered SSO or SLO service location.
type Endpoint struct {
	Binding   saml.Binding `json:"binding" yaml:"binding"`
	Location  string       `json:"location" yaml:"location"`
	Index     int          `json:"index" yaml:"index"`
	IsDefault bool         `json:"is_default" yaml:"is_default"`
}

// RelyingParty is the protocol configuration of one federated service
// provider, keyed by entity ID.
type RelyingParty struct {
	EntityID string `json:"entity_id" yaml:"entity_id"`

	// Signing preferences. Empty fields fall back to Defaults.
	SignatureAlgorithm string `json:"signature_algorithm,omitempty" yaml:"signature_algorithm,omitempty"`
	DigestAlgorithm    string `json:"digest_algorithm,omitempty" yaml:"digest_algorithm,omitempty"`
	NameIDFormat       string `json:"name_id_format,omitempty" yaml:"name_id_format,omitempty"`

	// SignAssertions/SignResponses are tri-state: nil defers to Defaults.
	SignAssertions *bool `json:"sign_assertions,omitempty" yaml:"sign_assertions,omitempty"`
	SignResponses  *bool `json:"sign_responses,omitempty" yaml:"sign_responses,omitempty"`

	// EncryptionCertificatePEM, when set, turns on assertion encryption.
	EncryptionCertificatePEM string `json:"encryption_certificate,omitempty" yaml:"encryption_certificate,omitempty"`

	SingleSignOnServices []Endpoint `json:"sso_services,omitempty" yaml:"sso_services,omitempty"`
	SingleLogoutServices []Endpoint `json:"slo_services,omitempty" yaml:"slo_services,omitempty"`

	// ClaimMapping renames issued claim types to what this relying party
	// expects. Keys are host claim types, values outbound claim types.
	ClaimMapping map[string]string `json:"claim_mapping,omitempty" yaml:"claim_mapping,omitempty"`
}

// EncryptionCertificate parses the configured encryption certificate, or
// returns nil when none is configured.
func (rp *RelyingParty) EncryptionCertificate() (*x509.Certificate, error) {
	if rp == nil || rp.EncryptionCertificatePEM == "" {
		return nil, nil
	}
	block, _ := pem.Decode([]byte(rp.EncryptionCertificatePEM))
	if block == nil {
		return nil, fmt.Errorf("relyingparty %s: invalid encryption certificate PEM", rp.EntityID)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("relyingparty %s: parse encryption certificate: %w", rp.EntityID, err)
	}
	return cert, nil
}

// PreferredSSOService returns the default-flagged SSO endpoint, or the
// first one, or nil.
func (rp *RelyingParty) PreferredSSOService() *Endpoint {
	return preferred(rp.ssoServices())
}

// SLOService returns the default-flagged SLO endpoint, or the first one,
// or nil when the relying party declares no logout endpoint.
func (rp *RelyingParty) SLOService() *Endpoint {
	if rp == nil {
		return nil
	}
	return preferred(rp.SingleLogoutServices)
}

// SSOServiceByIndex returns the SSO endpoint registered under index.
func (rp *RelyingParty) SSOServiceByIndex(index int) *Endpoint {
	for i := range rp.ssoServices() {
		if rp.SingleSignOnServices[i].Index == index {
			return &rp.SingleSignOnServices[i]
		}
	}
	return nil
}

// SSOServiceByLocation returns the SSO endpoint registered at location.
func (rp *RelyingParty) SSOServiceByLocation(location string) *Endpoint {
	for i := range rp.ssoServices() {
		if rp.SingleSignOnServices[i].Location == location {
			return &rp.SingleSignOnServices[i]
		}
	}
	return nil
}

func (rp *RelyingParty) ssoServices() []Endpoint {
	if rp == nil {
		return nil
	}
	return rp.SingleSignOnServices
}

func preferred(endpoints []Endpoint) *Endpoint {
	for i := range endpoints {
		if endpoints[i].IsDefault {
			return &endpoints[i]
		}
	}
	if len(endpoints) > 0 {
		return &endpoints[0]
	}
	return nil
}

// Defaults are the engine-wide settings applied when a relying party has
// no record or leaves a field empty.
type Defaults struct {
	SignatureAlgorithm string
	DigestAlgorithm    string
	NameIDFormat       string
	SignAssertions     bool
	SignResponses      bool
	ClaimMapping       map[string]string
}

// NewDefaults returns the stock engine defaults.
func NewDefaults() Defaults {
	return Defaults{
		SignatureAlgorithm: dsig.RSASHA256SignatureMethod,
		DigestAlgorithm:    DigestSHA256,
		NameIDFormat:       saml.NameIDFormatUnspecified,
		SignAssertions:     true,
		SignResponses:      true,
	}
}

// SignatureAlgorithmFor resolves the signature algorithm for rp.
func (d Defaults) SignatureAlgorithmFor(rp *RelyingParty) string {
	if rp != nil && rp.SignatureAlgorithm != "" {
		return rp.SignatureAlgorithm
	}
	return d.SignatureAlgorithm
}

// NameIDFormatFor resolves the name-identifier format for rp.
func (d Defaults) NameIDFormatFor(rp *RelyingParty) string {
	if rp != nil && rp.NameIDFormat != "" {
		return rp.NameIDFormat
	}
	return d.NameIDFormat
}

// SignAssertionsFor resolves the assertion-signing policy for rp.
func (d Defaults) SignAssertionsFor(rp *RelyingParty) bool {
	if rp != nil && rp.SignAssertions != nil {
		return *rp.SignAssertions
	}
	return d.SignAssertions
}

// ClaimMappingFor resolves the claim-mapping table for rp.
func (d Defaults) ClaimMappingFor(rp *RelyingParty) map[string]string {
	if rp != nil && len(rp.ClaimMapping) > 0 {
		return rp.ClaimMapping
	}
	return d.ClaimMapping
}

// SignResponsesFor resolves the response-signing policy for rp.
func (d Defaults) SignResponsesFor(rp *RelyingParty) bool {
	if rp != nil && rp.SignResponses != nil {
		return *rp.SignResponses
	}
	return d.SignResponses
}
