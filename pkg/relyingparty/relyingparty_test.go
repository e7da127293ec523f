package relyingparty

import (
	"testing"

	dsig "github.com/russellhaering/goxmldsig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/samlfed/internal/testkeys"
	"github.com/platinummonkey/samlfed/pkg/saml"
)

func TestEncryptionCertificate(t *testing.T) {
	tests := []struct {
		name    string
		pem     string
		wantNil bool
		wantErr bool
	}{
		{name: "unset", pem: "", wantNil: true},
		{name: "valid", pem: testkeys.CertPEM},
		{name: "not pem", pem: "garbage", wantErr: true},
		{name: "pem but not a certificate", pem: testkeys.KeyPEM, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			party := RelyingParty{EntityID: "sp", EncryptionCertificatePEM: tt.pem}
			cert, err := party.EncryptionCertificate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, cert)
			} else {
				require.NotNil(t, cert)
				assert.Equal(t, "test.example.com", cert.Subject.CommonName)
			}
		})
	}
}

func TestPreferredSSOService(t *testing.T) {
	post := Endpoint{Binding: saml.BindingPost, Location: "https://sp.example.com/acs", Index: 0}
	artifact := Endpoint{Binding: saml.BindingArtifact, Location: "https://sp.example.com/acs-artifact", Index: 1}

	t.Run("no services", func(t *testing.T) {
		party := RelyingParty{EntityID: "sp"}
		assert.Nil(t, party.PreferredSSOService())
	})

	t.Run("first wins without default", func(t *testing.T) {
		party := RelyingParty{EntityID: "sp", SingleSignOnServices: []Endpoint{post, artifact}}
		got := party.PreferredSSOService()
		require.NotNil(t, got)
		assert.Equal(t, post.Location, got.Location)
	})

	t.Run("default flag wins", func(t *testing.T) {
		flagged := artifact
		flagged.IsDefault = true
		party := RelyingParty{EntityID: "sp", SingleSignOnServices: []Endpoint{post, flagged}}
		got := party.PreferredSSOService()
		require.NotNil(t, got)
		assert.Equal(t, artifact.Location, got.Location)
	})
}

func TestSSOServiceLookups(t *testing.T) {
	party := RelyingParty{
		EntityID: "sp",
		SingleSignOnServices: []Endpoint{
			{Binding: saml.BindingPost, Location: "https://sp.example.com/acs", Index: 0},
			{Binding: saml.BindingArtifact, Location: "https://sp.example.com/acs-artifact", Index: 1},
		},
	}

	byIndex := party.SSOServiceByIndex(1)
	require.NotNil(t, byIndex)
	assert.Equal(t, saml.BindingArtifact, byIndex.Binding)
	assert.Nil(t, party.SSOServiceByIndex(7))

	byLocation := party.SSOServiceByLocation("https://sp.example.com/acs")
	require.NotNil(t, byLocation)
	assert.Equal(t, saml.BindingPost, byLocation.Binding)
	assert.Nil(t, party.SSOServiceByLocation("https://elsewhere.example.com/acs"))
}

func TestDefaultsResolvers(t *testing.T) {
	defaults := NewDefaults()
	signAssertions := false

	t.Run("nil party uses defaults", func(t *testing.T) {
		assert.Equal(t, dsig.RSASHA256SignatureMethod, defaults.SignatureAlgorithmFor(nil))
		assert.Equal(t, saml.NameIDFormatUnspecified, defaults.NameIDFormatFor(nil))
		assert.True(t, defaults.SignAssertionsFor(nil))
		assert.True(t, defaults.SignResponsesFor(nil))
	})

	t.Run("party overrides win", func(t *testing.T) {
		party := &RelyingParty{
			EntityID:           "sp",
			SignatureAlgorithm: dsig.RSASHA512SignatureMethod,
			NameIDFormat:       saml.NameIDFormatEmail,
			SignAssertions:     &signAssertions,
		}
		assert.Equal(t, dsig.RSASHA512SignatureMethod, defaults.SignatureAlgorithmFor(party))
		assert.Equal(t, saml.NameIDFormatEmail, defaults.NameIDFormatFor(party))
		assert.False(t, defaults.SignAssertionsFor(party))
		assert.True(t, defaults.SignResponsesFor(party))
	})
}
