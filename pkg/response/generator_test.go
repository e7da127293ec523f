package response

import (
	"context"
	"crypto/x509"
	"io"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/jonboulle/clockwork"
	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/samlfed/internal/testkeys"
	"github.com/platinummonkey/samlfed/pkg/artifact"
	"github.com/platinummonkey/samlfed/pkg/host"
	"github.com/platinummonkey/samlfed/pkg/keys"
	"github.com/platinummonkey/samlfed/pkg/observability"
	"github.com/platinummonkey/samlfed/pkg/relyingparty"
	"github.com/platinummonkey/samlfed/pkg/saml"
	"github.com/platinummonkey/samlfed/pkg/validation"
)

const (
	idpEntityID = "https://idp.example.com"
	spEntityID  = "https://sp.example.com"
	acsURL      = "https://sp.example.com/acs"
)

type stubProfile struct {
	claims []host.Claim
}

func (p *stubProfile) GetClaims(context.Context, *host.Subject, *host.Client, []string) ([]host.Claim, error) {
	return p.claims, nil
}

type generatorFixture struct {
	generator *SignInResponseGenerator
	clock     *clockwork.FakeClock
	artifacts *artifact.MemoryStore
	keys      keys.Service
}

func newFixture(t *testing.T, claims []host.Claim, withArtifacts bool) *generatorFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	keySvc, err := keys.NewStatic([]byte(testkeys.CertPEM), []byte(testkeys.KeyPEM), "")
	require.NoError(t, err)

	var artifacts *artifact.MemoryStore
	var store artifact.Store
	if withArtifacts {
		artifacts = artifact.NewMemoryStore(clock)
		store = artifacts
	}

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	generator := NewSignInResponseGenerator(
		Config{Issuer: idpEntityID},
		keySvc,
		&stubProfile{claims: claims},
		store,
		relyingparty.NewDefaults(),
		clock,
		logger,
	)
	return &generatorFixture{generator: generator, clock: clock, artifacts: artifacts, keys: keySvc}
}

func newValidatedRequest(binding saml.Binding) *validation.ValidatedRequest {
	return &validation.ValidatedRequest{
		ClientID: spEntityID,
		Client: &host.Client{
			ID:           spEntityID,
			Enabled:      true,
			ProtocolType: host.ProtocolSAML2,
		},
		ReplyURL:     acsURL,
		ReplyBinding: binding,
		Subject: &host.Subject{
			ID:                   "bob",
			AuthenticationMethod: "password",
			AuthenticationTime:   time.Date(2026, 3, 14, 11, 55, 0, 0, time.UTC),
		},
		SessionID: "sess-1",
		AuthnRequest: &saml.AuthnRequest{
			ID:      "_req-1",
			Version: saml.Version,
		},
	}
}

func (f *generatorFixture) serviceProvider(t *testing.T) *saml2.SAMLServiceProvider {
	t.Helper()
	creds, err := f.keys.GetX509SigningCredentials()
	require.NoError(t, err)
	return &saml2.SAMLServiceProvider{
		IdentityProviderIssuer:      idpEntityID,
		ServiceProviderIssuer:       spEntityID,
		AssertionConsumerServiceURL: acsURL,
		AudienceURI:                 spEntityID,
		IDPCertificateStore: &dsig.MemoryX509CertificateStore{
			Roots: []*x509.Certificate{creds.Certificate},
		},
		SPKeyStore:             creds.KeyStore,
		Clock:                  dsig.NewFakeClock(f.clock),
		AllowMissingAttributes: true,
	}
}

func TestGeneratePostResponse(t *testing.T) {
	f := newFixture(t, []host.Claim{
		{Type: saml.ClaimEmail, Value: "bob@example.com"},
	}, false)
	vr := newValidatedRequest(saml.BindingPost)

	msg, err := f.generator.Generate(context.Background(), vr, "relay-1", "203.0.113.9")
	require.NoError(t, err)

	assert.Equal(t, saml.BindingPost, msg.Binding)
	assert.Equal(t, acsURL, msg.Destination)
	assert.Equal(t, "relay-1", msg.RelayState)
	assert.Empty(t, msg.Artifact)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(msg.Payload))
	root := doc.Root()
	require.Equal(t, "Response", root.Tag)
	assert.Equal(t, acsURL, root.SelectAttrValue("Destination", ""))
	assert.Equal(t, "_req-1", root.SelectAttrValue("InResponseTo", ""))

	statusCode := root.FindElement("./Status/StatusCode")
	require.NotNil(t, statusCode)
	assert.Equal(t, saml.StatusSuccess, statusCode.SelectAttrValue("Value", ""))

	// Signature sits directly after the Issuer on both response and
	// assertion.
	children := root.ChildElements()
	require.GreaterOrEqual(t, len(children), 3)
	assert.Equal(t, "Issuer", children[0].Tag)
	assert.Equal(t, "Signature", children[1].Tag)
	assert.Len(t, root.FindElements("./Signature"), 1)

	assertion := root.FindElement("./Assertion")
	require.NotNil(t, assertion)
	assertionChildren := assertion.ChildElements()
	assert.Equal(t, "Issuer", assertionChildren[0].Tag)
	assert.Equal(t, "Signature", assertionChildren[1].Tag)
	assert.Len(t, assertion.FindElements("./Signature"), 1)

	confirmationData := assertion.FindElement("./Subject/SubjectConfirmation/SubjectConfirmationData")
	require.NotNil(t, confirmationData)
	assert.Equal(t, acsURL, confirmationData.SelectAttrValue("Recipient", ""))
	assert.Equal(t, "_req-1", confirmationData.SelectAttrValue("InResponseTo", ""))
	assert.Equal(t, "203.0.113.9", confirmationData.SelectAttrValue("Address", ""))
	assert.Equal(t, "2026-03-14T12:05:00Z", confirmationData.SelectAttrValue("NotOnOrAfter", ""))

	audience := assertion.FindElement("./Conditions/AudienceRestriction/Audience")
	require.NotNil(t, audience)
	assert.Equal(t, spEntityID, audience.Text())

	classRef := assertion.FindElement("./AuthnStatement/AuthnContext/AuthnContextClassRef")
	require.NotNil(t, classRef)
	assert.Equal(t, saml.AuthnMethodPassword, classRef.Text())

	attr := assertion.FindElement("./AttributeStatement/Attribute")
	require.NotNil(t, attr)
	assert.Equal(t, saml.ClaimEmail, attr.SelectAttrValue("Name", ""))
}

func TestGenerateRecordsParticipant(t *testing.T) {
	f := newFixture(t, nil, false)
	vr := newValidatedRequest(saml.BindingPost)

	_, err := f.generator.Generate(context.Background(), vr, "", "")
	require.NoError(t, err)

	require.NotNil(t, vr.Participant)
	assert.Equal(t, spEntityID, vr.Participant.ClientID)
	assert.Equal(t, "bob", vr.Participant.NameID)
	assert.Equal(t, saml.NameIDFormatUnspecified, vr.Participant.NameIDFormat)
	assert.Equal(t, idpEntityID, vr.Participant.NameQualifier)
	assert.Equal(t, spEntityID, vr.Participant.SPNameQualifier)
	assert.Equal(t, "sess-1", vr.Participant.SessionIndex)
}

func TestGenerateServiceProviderInterop(t *testing.T) {
	f := newFixture(t, []host.Claim{
		{Type: saml.ClaimEmail, Value: "bob@example.com"},
	}, false)
	vr := newValidatedRequest(saml.BindingPost)

	msg, err := f.generator.Generate(context.Background(), vr, "", "")
	require.NoError(t, err)

	info, err := f.serviceProvider(t).RetrieveAssertionInfo(saml.EncodePost(msg.Payload))
	require.NoError(t, err)
	assert.Equal(t, "bob", info.NameID)
	assert.False(t, info.WarningInfo.InvalidTime)
	assert.False(t, info.WarningInfo.NotInAudience)
}

func TestGenerateEncryptedAssertion(t *testing.T) {
	encrypted := relyingparty.RelyingParty{
		EntityID:                 spEntityID,
		EncryptionCertificatePEM: testkeys.CertPEM,
	}
	f := newFixture(t, nil, false)
	vr := newValidatedRequest(saml.BindingPost)
	vr.RelyingParty = &encrypted

	msg, err := f.generator.Generate(context.Background(), vr, "", "")
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(msg.Payload))
	assert.Nil(t, doc.Root().FindElement("./Assertion"))
	encryptedAssertion := doc.Root().FindElement("./EncryptedAssertion")
	require.NotNil(t, encryptedAssertion)
	require.NotNil(t, encryptedAssertion.FindElement("./EncryptedData"))

	// The holder of the encryption key can still read the assertion.
	info, err := f.serviceProvider(t).RetrieveAssertionInfo(saml.EncodePost(msg.Payload))
	require.NoError(t, err)
	assert.Equal(t, "bob", info.NameID)
}

func TestGenerateArtifactBinding(t *testing.T) {
	f := newFixture(t, nil, true)
	vr := newValidatedRequest(saml.BindingArtifact)
	ctx := context.Background()

	msg, err := f.generator.Generate(ctx, vr, "relay-2", "")
	require.NoError(t, err)

	assert.Equal(t, saml.BindingArtifact, msg.Binding)
	assert.Empty(t, msg.Payload)
	require.Len(t, msg.Artifact, artifact.EncodedLength)

	art, err := artifact.Decode(msg.Artifact)
	require.NoError(t, err)
	assert.True(t, art.IssuedBy(idpEntityID))

	rec, err := f.artifacts.Fetch(ctx, msg.Artifact)
	require.NoError(t, err)
	assert.Equal(t, spEntityID, rec.ClientID)
	assert.Contains(t, string(rec.Response), "Response")
}

func TestGenerateArtifactWithoutStore(t *testing.T) {
	f := newFixture(t, nil, false)
	vr := newValidatedRequest(saml.BindingArtifact)

	_, err := f.generator.Generate(context.Background(), vr, "", "")
	require.Error(t, err)
	var perr *validation.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, validation.KindServerError, perr.Kind)
}

func TestGenerateClaimMapping(t *testing.T) {
	f := newFixture(t, []host.Claim{
		{Type: saml.ClaimEmail, Value: "bob@example.com"},
	}, false)
	vr := newValidatedRequest(saml.BindingPost)
	vr.RelyingParty = &relyingparty.RelyingParty{
		EntityID:     spEntityID,
		ClaimMapping: map[string]string{saml.ClaimEmail: "mail"},
	}

	msg, err := f.generator.Generate(context.Background(), vr, "", "")
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(msg.Payload))
	attr := doc.Root().FindElement("./Assertion/AttributeStatement/Attribute")
	require.NotNil(t, attr)
	assert.Equal(t, "mail", attr.SelectAttrValue("Name", ""))
}

func TestGenerateAnonymousSubject(t *testing.T) {
	f := newFixture(t, nil, false)
	vr := newValidatedRequest(saml.BindingPost)
	vr.Subject = nil

	_, err := f.generator.Generate(context.Background(), vr, "", "")
	require.Error(t, err)
	var perr *validation.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, validation.KindServerError, perr.Kind)
}
