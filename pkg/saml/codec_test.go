package saml

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAuthnRequest = `<samlp:AuthnRequest xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol"
    xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion"
    ID="_abc123" Version="2.0" IssueInstant="2026-08-28T10:00:00Z"
    Destination="https://idp.example.com/saml/sso"
    AssertionConsumerServiceURL="https://sp.example.com/acs"
    ProtocolBinding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST">
  <saml:Issuer>https://sp.example.com</saml:Issuer>
  <saml:Conditions NotBefore="2026-08-28T09:59:00Z" NotOnOrAfter="2026-08-28T10:05:00Z"/>
  <samlp:RequestedAuthnContext Comparison="exact">
    <saml:AuthnContextClassRef>urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport</saml:AuthnContextClassRef>
    <saml:AuthnContextClassRef>idp:upstream-okta</saml:AuthnContextClassRef>
  </samlp:RequestedAuthnContext>
</samlp:AuthnRequest>`

const sampleLogoutRequest = `<samlp:LogoutRequest xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol"
    xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion"
    ID="_lr42" Version="2.0" IssueInstant="2026-08-28T10:00:00Z"
    Destination="https://idp.example.com/saml/slo"
    NotOnOrAfter="2026-08-28T10:05:00Z">
  <saml:Issuer>https://sp.example.com</saml:Issuer>
  <saml:NameID Format="urn:oasis:names:tc:SAML:2.0:nameid-format:persistent">bob</saml:NameID>
  <samlp:SessionIndex>sess-1</samlp:SessionIndex>
  <samlp:SessionIndex>sess-2</samlp:SessionIndex>
</samlp:LogoutRequest>`

func TestRedirectCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{name: "authn request", message: sampleAuthnRequest},
		{name: "logout request", message: sampleLogoutRequest},
		{name: "short payload", message: "<a/>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeRedirect([]byte(tt.message))
			require.NoError(t, err)
			assert.NotContains(t, encoded, "<", "encoded form must be opaque")

			decoded, err := DecodeRedirect(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.message, string(decoded))
		})
	}
}

func TestDecodeRedirectRejectsGarbage(t *testing.T) {
	_, err := DecodeRedirect("not base64 at all!!!")
	assert.Error(t, err)
}

func TestPostCodecRoundTrip(t *testing.T) {
	encoded := EncodePost([]byte(sampleAuthnRequest))
	decoded, err := DecodePost(encoded)
	require.NoError(t, err)
	assert.Equal(t, sampleAuthnRequest, string(decoded))
}

func TestRedirectURL(t *testing.T) {
	raw, err := RedirectURL("https://sp.example.com/slo?vendor=1", ParamRequest, []byte(sampleLogoutRequest), "rs-99")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "sp.example.com", u.Host)
	assert.Equal(t, "1", u.Query().Get("vendor"), "existing query survives")
	assert.Equal(t, "rs-99", u.Query().Get(ParamRelayState))

	decoded, err := DecodeRedirect(u.Query().Get(ParamRequest))
	require.NoError(t, err)
	assert.Equal(t, sampleLogoutRequest, string(decoded))
}

func TestParseAuthnRequest(t *testing.T) {
	req, err := ParseAuthnRequest([]byte(sampleAuthnRequest))
	require.NoError(t, err)

	assert.Equal(t, "_abc123", req.ID)
	assert.Equal(t, Version, req.Version)
	assert.Equal(t, "https://sp.example.com", IssuerValue(req.Issuer))
	assert.Equal(t, "https://sp.example.com/acs", req.AssertionConsumerServiceURL)
	assert.Equal(t, string(BindingPost), req.ProtocolBinding)
	require.NotNil(t, req.Conditions)
	assert.Equal(t, "2026-08-28T10:05:00Z", req.Conditions.NotOnOrAfter)
	assert.Equal(t, []string{"upstream-okta"}, req.RequestedAuthnContext.IdpHints())
}

func TestParseLogoutRequest(t *testing.T) {
	req, err := ParseLogoutRequest([]byte(sampleLogoutRequest))
	require.NoError(t, err)

	assert.Equal(t, "_lr42", req.ID)
	require.NotNil(t, req.NameID)
	assert.Equal(t, "bob", req.NameID.Value)
	assert.Equal(t, NameIDFormatPersistent, req.NameID.Format)
	assert.Equal(t, []string{"sess-1", "sess-2"}, req.SessionIndex)
	assert.Equal(t, "2026-08-28T10:05:00Z", req.NotOnOrAfter)
}

func TestParseRejectsMalformedXML(t *testing.T) {
	_, err := ParseAuthnRequest([]byte("<samlp:AuthnRequest>"))
	assert.Error(t, err)

	_, err = ParseLogoutRequest([]byte("not xml"))
	assert.Error(t, err)
}

func TestMessageID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		id := MessageID()
		assert.True(t, strings.HasPrefix(id, "_"), "XML IDs must not start with a digit")
		assert.False(t, seen[id], "IDs must be unique")
		seen[id] = true
	}
}
