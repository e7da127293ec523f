package saml

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Issuer carries the entity ID of the message originator.
type Issuer struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Issuer"`
	Format  string   `xml:"Format,attr,omitempty"`
	Value   string   `xml:",chardata"`
}

// NameID identifies the subject of an assertion or logout exchange.
type NameID struct {
	XMLName         xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion NameID"`
	Format          string   `xml:"Format,attr,omitempty"`
	NameQualifier   string   `xml:"NameQualifier,attr,omitempty"`
	SPNameQualifier string   `xml:"SPNameQualifier,attr,omitempty"`
	Value           string   `xml:",chardata"`
}

// StatusCode is the machine-readable outcome of a protocol exchange.
type StatusCode struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:protocol StatusCode"`
	Value   string   `xml:"Value,attr"`
}

// Status wraps the status code and optional human-readable message.
type Status struct {
	XMLName       xml.Name   `xml:"urn:oasis:names:tc:SAML:2.0:protocol Status"`
	StatusCode    StatusCode `xml:"StatusCode"`
	StatusMessage string     `xml:"StatusMessage,omitempty"`
}

// Conditions bounds the validity of an AuthnRequest. The time attributes
// stay as strings here; ParseInstant turns them into time.Time when set.
type Conditions struct {
	XMLName      xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Conditions"`
	NotBefore    string   `xml:"NotBefore,attr,omitempty"`
	NotOnOrAfter string   `xml:"NotOnOrAfter,attr,omitempty"`
}

// RequestedAuthnContext carries the authentication context classes the
// requester asks for. Class refs using the IdpHintScheme prefix are IdP
// hints, not context classes.
type RequestedAuthnContext struct {
	XMLName              xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:protocol RequestedAuthnContext"`
	Comparison           string   `xml:"Comparison,attr,omitempty"`
	AuthnContextClassRef []string `xml:"urn:oasis:names:tc:SAML:2.0:assertion AuthnContextClassRef"`
}

// AuthnRequest is an inbound authentication request (samlp:AuthnRequest).
type AuthnRequest struct {
	XMLName                       xml.Name  `xml:"urn:oasis:names:tc:SAML:2.0:protocol AuthnRequest"`
	ID                            string    `xml:"ID,attr"`
	Version                       string    `xml:"Version,attr"`
	IssueInstant                  time.Time `xml:"IssueInstant,attr"`
	Destination                   string    `xml:"Destination,attr,omitempty"`
	AssertionConsumerServiceURL   string    `xml:"AssertionConsumerServiceURL,attr,omitempty"`
	AssertionConsumerServiceIndex string    `xml:"AssertionConsumerServiceIndex,attr,omitempty"`
	ProtocolBinding               string    `xml:"ProtocolBinding,attr,omitempty"`
	ForceAuthn                    bool      `xml:"ForceAuthn,attr,omitempty"`
	IsPassive                     bool      `xml:"IsPassive,attr,omitempty"`

	Issuer                *Issuer                `xml:"Issuer"`
	Conditions            *Conditions            `xml:"Conditions"`
	RequestedAuthnContext *RequestedAuthnContext `xml:"RequestedAuthnContext"`
}

// LogoutRequest is an inbound single-logout request (samlp:LogoutRequest).
type LogoutRequest struct {
	XMLName      xml.Name  `xml:"urn:oasis:names:tc:SAML:2.0:protocol LogoutRequest"`
	ID           string    `xml:"ID,attr"`
	Version      string    `xml:"Version,attr"`
	IssueInstant time.Time `xml:"IssueInstant,attr"`
	Destination  string    `xml:"Destination,attr,omitempty"`
	NotOnOrAfter string    `xml:"NotOnOrAfter,attr,omitempty"`
	Reason       string    `xml:"Reason,attr,omitempty"`

	Issuer       *Issuer  `xml:"Issuer"`
	NameID       *NameID  `xml:"NameID"`
	SessionIndex []string `xml:"SessionIndex"`
}

// LogoutResponse is the reply a relying party returns after processing a
// logout request of ours.
type LogoutResponse struct {
	XMLName      xml.Name  `xml:"urn:oasis:names:tc:SAML:2.0:protocol LogoutResponse"`
	ID           string    `xml:"ID,attr"`
	Version      string    `xml:"Version,attr"`
	IssueInstant time.Time `xml:"IssueInstant,attr"`
	Destination  string    `xml:"Destination,attr,omitempty"`
	InResponseTo string    `xml:"InResponseTo,attr,omitempty"`

	Issuer *Issuer `xml:"Issuer"`
	Status *Status `xml:"Status"`
}

// Success reports whether the response carries a Success status code.
func (r *LogoutResponse) Success() bool {
	return r.Status != nil && r.Status.StatusCode.Value == StatusSuccess
}

// IdpHints returns the identity-provider hints carried in the requested
// authentication context, stripped of the scheme prefix.
func (rac *RequestedAuthnContext) IdpHints() []string {
	if rac == nil {
		return nil
	}
	var hints []string
	for _, ref := range rac.AuthnContextClassRef {
		if len(ref) > len(IdpHintScheme) && ref[:len(IdpHintScheme)] == IdpHintScheme {
			hints = append(hints, ref[len(IdpHintScheme):])
		}
	}
	return hints
}

// StripIdpHints removes every IdP hint matching name from the context and
// reports whether anything was removed.
func (rac *RequestedAuthnContext) StripIdpHints(name string) bool {
	if rac == nil {
		return false
	}
	kept := rac.AuthnContextClassRef[:0]
	stripped := false
	for _, ref := range rac.AuthnContextClassRef {
		if ref == IdpHintScheme+name {
			stripped = true
			continue
		}
		kept = append(kept, ref)
	}
	rac.AuthnContextClassRef = kept
	return stripped
}

// Instant renders t in the UTC second-precision form SAML messages use.
func Instant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// ParseInstant parses a SAML timestamp attribute. Fractional seconds are
// accepted since several SP stacks emit them.
func ParseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid SAML instant %q: %w", s, err)
	}
	return t, nil
}
