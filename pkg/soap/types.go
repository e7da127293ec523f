package soap

import (
	"encoding/xml"
	"time"

	"github.com/platinummonkey/samlfed/pkg/saml"
)

// EnvelopeNamespace is the SOAP 1.1 envelope namespace.
const EnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"

// Action is the SOAPAction header value mandated for the SAML binding.
const Action = "http://www.oasis-open.org/committees/security"

// ContentType is the media type for SOAP 1.1 over HTTP.
const ContentType = `text/xml; charset="utf-8"`

// resolveEnvelope is the inbound SOAP envelope carrying ArtifactResolve.
type resolveEnvelope struct {
	XMLName xml.Name    `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    resolveBody `xml:"Body"`
}

type resolveBody struct {
	XMLName         xml.Name         `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
	ArtifactResolve *ArtifactResolve `xml:"ArtifactResolve"`
}

// ArtifactResolve is the request half of the artifact exchange
// (saml-core-2.0-os §3.5.1).
type ArtifactResolve struct {
	XMLName      xml.Name  `xml:"urn:oasis:names:tc:SAML:2.0:protocol ArtifactResolve"`
	ID           string    `xml:"ID,attr"`
	Version      string    `xml:"Version,attr"`
	IssueInstant time.Time `xml:"IssueInstant,attr"`

	Issuer   *saml.Issuer `xml:"Issuer"`
	Artifact string       `xml:"Artifact"`
}
