package response

import (
	"crypto/x509"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/crewjam/saml/xmlenc"

	"github.com/platinummonkey/samlfed/pkg/host"
	"github.com/platinummonkey/samlfed/pkg/keys"
	"github.com/platinummonkey/samlfed/pkg/saml"
)

// assertionInput collects everything the assertion builder needs.
type assertionInput struct {
	ID            string
	Issuer        string
	Audience      string
	NameID        saml.NameID
	SessionIndex  string
	AuthnContext  string
	AuthnInstant  time.Time
	Now           time.Time
	NotOnOrAfter  time.Time
	Recipient     string
	InResponseTo  string
	ClientAddress string
	Attributes    []host.Claim
}

// buildAssertionElement renders the saml:Assertion element. The element
// carries its own namespace declaration so it stays valid after being
// detached for encryption.
func buildAssertionElement(in assertionInput) *etree.Element {
	assertion := etree.NewElement("saml:Assertion")
	assertion.CreateAttr("xmlns:saml", saml.AssertionNamespace)
	assertion.CreateAttr("ID", in.ID)
	assertion.CreateAttr("Version", saml.Version)
	assertion.CreateAttr("IssueInstant", saml.Instant(in.Now))

	issuer := assertion.CreateElement("saml:Issuer")
	issuer.CreateAttr("Format", saml.NameIDFormatEntity)
	issuer.SetText(in.Issuer)

	subject := assertion.CreateElement("saml:Subject")
	nameID := subject.CreateElement("saml:NameID")
	if in.NameID.Format != "" {
		nameID.CreateAttr("Format", in.NameID.Format)
	}
	if in.NameID.NameQualifier != "" {
		nameID.CreateAttr("NameQualifier", in.NameID.NameQualifier)
	}
	if in.NameID.SPNameQualifier != "" {
		nameID.CreateAttr("SPNameQualifier", in.NameID.SPNameQualifier)
	}
	nameID.SetText(in.NameID.Value)

	confirmation := subject.CreateElement("saml:SubjectConfirmation")
	confirmation.CreateAttr("Method", saml.ConfirmationMethodBearer)
	confirmationData := confirmation.CreateElement("saml:SubjectConfirmationData")
	if in.ClientAddress != "" {
		confirmationData.CreateAttr("Address", in.ClientAddress)
	}
	if in.InResponseTo != "" {
		confirmationData.CreateAttr("InResponseTo", in.InResponseTo)
	}
	confirmationData.CreateAttr("NotOnOrAfter", saml.Instant(in.NotOnOrAfter))
	confirmationData.CreateAttr("Recipient", in.Recipient)

	conditions := assertion.CreateElement("saml:Conditions")
	conditions.CreateAttr("NotBefore", saml.Instant(in.Now))
	conditions.CreateAttr("NotOnOrAfter", saml.Instant(in.NotOnOrAfter))
	audienceRestriction := conditions.CreateElement("saml:AudienceRestriction")
	audienceRestriction.CreateElement("saml:Audience").SetText(in.Audience)

	authnStatement := assertion.CreateElement("saml:AuthnStatement")
	authnStatement.CreateAttr("AuthnInstant", saml.Instant(in.AuthnInstant))
	if in.SessionIndex != "" {
		authnStatement.CreateAttr("SessionIndex", in.SessionIndex)
	}
	authnContext := authnStatement.CreateElement("saml:AuthnContext")
	authnContext.CreateElement("saml:AuthnContextClassRef").SetText(in.AuthnContext)

	if len(in.Attributes) > 0 {
		statement := assertion.CreateElement("saml:AttributeStatement")
		for _, claim := range in.Attributes {
			attr := statement.CreateElement("saml:Attribute")
			attr.CreateAttr("Name", claim.Type)
			attr.CreateAttr("NameFormat", saml.AttributeNameFormatURI)
			value := attr.CreateElement("saml:AttributeValue")
			value.CreateAttr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")
			value.CreateAttr("xmlns:xs", "http://www.w3.org/2001/XMLSchema")
			value.CreateAttr("xsi:type", "xs:string")
			value.SetText(claim.Value)
		}
	}

	return assertion
}

// signElement signs el enveloped and repositions the signature directly
// after the Issuer child, where the SAML schema expects it.
func signElement(el *etree.Element, creds *keys.Credentials) (*etree.Element, error) {
	signingContext, err := creds.SigningContext()
	if err != nil {
		return nil, err
	}
	signed, err := signingContext.SignEnveloped(el)
	if err != nil {
		return nil, fmt.Errorf("failed to sign element: %w", err)
	}

	// SignEnveloped appends the signature token without setting its
	// parent, so RemoveChild would not detach it. Drop the tail token
	// before reinserting to avoid a duplicate Signature element.
	children := signed.ChildElements()
	signature := children[len(children)-1]
	signed.Child = signed.Child[:len(signed.Child)-1]
	signed.InsertChildAt(1, signature)
	return signed, nil
}

// encryptAssertion wraps a signed assertion element in an
// EncryptedAssertion for cert. The content key is AES-128-CBC, wrapped
// with RSA-OAEP.
func encryptAssertion(assertionEl *etree.Element, cert *x509.Certificate) (*etree.Element, error) {
	doc := etree.NewDocument()
	doc.SetRoot(assertionEl)
	plaintext, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize assertion: %w", err)
	}

	encrypter := xmlenc.OAEP()
	encrypter.BlockCipher = xmlenc.AES128CBC
	encrypter.DigestMethod = &xmlenc.SHA1

	encryptedData, err := encrypter.Encrypt(cert, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt assertion: %w", err)
	}
	encryptedData.CreateAttr("Type", "http://www.w3.org/2001/04/xmlenc#Element")

	encryptedAssertion := etree.NewElement("saml:EncryptedAssertion")
	encryptedAssertion.CreateAttr("xmlns:saml", saml.AssertionNamespace)
	encryptedAssertion.AddChild(encryptedData)
	return encryptedAssertion, nil
}
