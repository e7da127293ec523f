package logout

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/jonboulle/clockwork"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/samlfed/internal/testkeys"
	"github.com/platinummonkey/samlfed/pkg/keys"
	"github.com/platinummonkey/samlfed/pkg/relyingparty"
	"github.com/platinummonkey/samlfed/pkg/saml"
	"github.com/platinummonkey/samlfed/pkg/session"
	"github.com/platinummonkey/samlfed/pkg/validation"
)

const idpEntityID = "https://idp.example.com"

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	keySvc, err := keys.NewStatic([]byte(testkeys.CertPEM), []byte(testkeys.KeyPEM), "")
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	return NewGenerator(Config{Issuer: idpEntityID}, keySvc, relyingparty.NewDefaults(), clock)
}

func parsePayload(t *testing.T, payload []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(payload))
	return doc.Root()
}

func TestLogoutRequest(t *testing.T) {
	g := newTestGenerator(t)
	party := &relyingparty.RelyingParty{
		EntityID: "https://sp.example.com",
		SingleLogoutServices: []relyingparty.Endpoint{
			{Binding: saml.BindingRedirect, Location: "https://sp.example.com/slo"},
		},
	}

	msg, err := g.LogoutRequest(Target{
		ClientID:     "https://sp.example.com",
		RelyingParty: party,
		Participant: &session.Participant{
			ClientID:     "https://sp.example.com",
			NameID:       "bob",
			NameIDFormat: saml.NameIDFormatPersistent,
			SessionIndex: "_sess-9",
		},
		Reason: saml.LogoutReasonUser,
	}, "relay-7")
	require.NoError(t, err)

	assert.Equal(t, saml.BindingRedirect, msg.Binding)
	assert.Equal(t, "https://sp.example.com/slo", msg.Destination)
	assert.Equal(t, "relay-7", msg.RelayState)

	root := parsePayload(t, msg.Payload)
	require.Equal(t, "LogoutRequest", root.Tag)
	assert.Equal(t, saml.Version, root.SelectAttrValue("Version", ""))
	assert.Equal(t, "https://sp.example.com/slo", root.SelectAttrValue("Destination", ""))
	assert.Equal(t, "2026-03-14T12:05:00Z", root.SelectAttrValue("NotOnOrAfter", ""))
	assert.Equal(t, saml.LogoutReasonUser, root.SelectAttrValue("Reason", ""))

	children := root.ChildElements()
	assert.Equal(t, "Issuer", children[0].Tag)
	assert.Equal(t, "Signature", children[1].Tag)
	assert.Equal(t, idpEntityID, children[0].Text())

	nameID := root.FindElement("./NameID")
	require.NotNil(t, nameID)
	assert.Equal(t, "bob", nameID.Text())
	assert.Equal(t, saml.NameIDFormatPersistent, nameID.SelectAttrValue("Format", ""))

	sessionIndex := root.FindElement("./SessionIndex")
	require.NotNil(t, sessionIndex)
	assert.Equal(t, "_sess-9", sessionIndex.Text())
}

func TestLogoutRequestSignatureVerifies(t *testing.T) {
	keySvc, err := keys.NewStatic([]byte(testkeys.CertPEM), []byte(testkeys.KeyPEM), "")
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	g := NewGenerator(Config{Issuer: idpEntityID}, keySvc, relyingparty.NewDefaults(), clock)

	msg, err := g.LogoutRequest(Target{
		ClientID:    "https://sp.example.com",
		ReplyURL:    "https://sp.example.com/slo",
		Participant: &session.Participant{ClientID: "https://sp.example.com", NameID: "bob"},
	}, "")
	require.NoError(t, err)

	root := parsePayload(t, msg.Payload)

	// Exactly one Signature child, and it must validate against the
	// signing certificate.
	signatures := root.FindElements("./Signature")
	require.Len(t, signatures, 1)

	creds, err := keySvc.GetX509SigningCredentials()
	require.NoError(t, err)
	vc := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{creds.Certificate},
	})
	vc.Clock = dsig.NewFakeClock(clock)
	_, err = vc.Validate(root)
	require.NoError(t, err)
}

func TestLogoutRequestFallsBackToReplyURL(t *testing.T) {
	g := newTestGenerator(t)

	msg, err := g.LogoutRequest(Target{
		ClientID:    "https://sp.example.com",
		ReplyURL:    "https://sp.example.com/logged-out",
		Participant: &session.Participant{ClientID: "https://sp.example.com", NameID: "bob"},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "https://sp.example.com/logged-out", msg.Destination)
	assert.Equal(t, saml.BindingRedirect, msg.Binding)
}

func TestLogoutRequestNoDestination(t *testing.T) {
	g := newTestGenerator(t)
	_, err := g.LogoutRequest(Target{ClientID: "https://sp.example.com"}, "")
	assert.Error(t, err)
}

func TestLogoutResponse(t *testing.T) {
	g := newTestGenerator(t)
	vr := &validation.ValidatedRequest{
		ClientID:     "https://sp.example.com",
		ReplyURL:     "https://sp.example.com/slo",
		ReplyBinding: saml.BindingRedirect,
		LogoutRequest: &saml.LogoutRequest{
			ID:      "_inbound-1",
			Version: saml.Version,
		},
	}

	msg, err := g.LogoutResponse(vr, saml.StatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, saml.BindingRedirect, msg.Binding)

	root := parsePayload(t, msg.Payload)
	require.Equal(t, "LogoutResponse", root.Tag)
	assert.Equal(t, "_inbound-1", root.SelectAttrValue("InResponseTo", ""))
	assert.Equal(t, "Signature", root.ChildElements()[1].Tag)

	statusCode := root.FindElement("./Status/StatusCode")
	require.NotNil(t, statusCode)
	assert.Equal(t, saml.StatusSuccess, statusCode.SelectAttrValue("Value", ""))
}

func TestLogoutResponsePartialLogout(t *testing.T) {
	g := newTestGenerator(t)
	vr := &validation.ValidatedRequest{
		ClientID: "https://sp.example.com",
		ReplyURL: "https://sp.example.com/slo",
	}

	msg, err := g.LogoutResponse(vr, saml.StatusPartialLogout)
	require.NoError(t, err)

	statusCode := parsePayload(t, msg.Payload).FindElement("./Status/StatusCode")
	require.NotNil(t, statusCode)
	assert.Equal(t, saml.StatusPartialLogout, statusCode.SelectAttrValue("Value", ""))
}
