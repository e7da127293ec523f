package server

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/platinummonkey/samlfed/pkg/saml"
	"github.com/platinummonkey/samlfed/pkg/validation"
)

const dsigNamespace = "http://www.w3.org/2000/09/xmldsig#"

// handleMetadata serves the identity provider metadata document.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	ed := doc.CreateElement("md:EntityDescriptor")
	ed.CreateAttr("xmlns:md", saml.MetadataNamespace)
	ed.CreateAttr("entityID", s.config.IssuerEntityID)

	idp := ed.CreateElement("md:IDPSSODescriptor")
	idp.CreateAttr("protocolSupportEnumeration", saml.ProtocolNamespace)
	idp.CreateAttr("WantAuthnRequestsSigned", "false")

	if s.deps.Keys != nil {
		creds, err := s.deps.Keys.GetX509SigningCredentials()
		if err != nil {
			s.logger.WithError(err).Error("signing credentials unavailable for metadata")
			writeError(w, http.StatusInternalServerError, string(validation.KindServerError), "signing credentials unavailable")
			return
		}
		if creds.Certificate != nil {
			kd := idp.CreateElement("md:KeyDescriptor")
			kd.CreateAttr("use", "signing")
			ki := kd.CreateElement("ds:KeyInfo")
			ki.CreateAttr("xmlns:ds", dsigNamespace)
			data := ki.CreateElement("ds:X509Data")
			cert := data.CreateElement("ds:X509Certificate")
			cert.SetText(base64.StdEncoding.EncodeToString(creds.Certificate.Raw))
		}
	}

	idp.CreateElement("md:NameIDFormat").SetText(saml.NameIDFormatUnspecified)

	base := strings.TrimRight(s.config.BaseURL, "/")
	if s.deps.Artifact != nil {
		ars := addEndpoint(idp, "md:ArtifactResolutionService", saml.BindingSOAP, base+PathArtifact)
		ars.CreateAttr("index", strconv.Itoa(0))
		ars.CreateAttr("isDefault", "true")
	}
	addEndpoint(idp, "md:SingleLogoutService", saml.BindingRedirect, base+PathSLO)
	addEndpoint(idp, "md:SingleLogoutService", saml.BindingPost, base+PathSLO)
	addEndpoint(idp, "md:SingleSignOnService", saml.BindingRedirect, base+PathSSO)
	addEndpoint(idp, "md:SingleSignOnService", saml.BindingPost, base+PathSSO)

	out, err := doc.WriteToBytes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, string(validation.KindServerError), "metadata serialization failed")
		return
	}
	w.Header().Set("Content-Type", "application/samlmetadata+xml")
	_, _ = w.Write(out)
}

func addEndpoint(parent *etree.Element, tag string, binding saml.Binding, location string) *etree.Element {
	el := parent.CreateElement(tag)
	el.CreateAttr("Binding", string(binding))
	el.CreateAttr("Location", location)
	return el
}
