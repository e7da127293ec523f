package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/samlfed/internal/testkeys"
)

func TestNewStatic(t *testing.T) {
	svc, err := NewStatic([]byte(testkeys.CertPEM), []byte(testkeys.KeyPEM), "")
	require.NoError(t, err)

	creds, err := svc.GetX509SigningCredentials()
	require.NoError(t, err)
	assert.Equal(t, RSASHA256, creds.SignatureMethod, "default algorithm")
	require.NotNil(t, creds.Certificate)
	assert.Equal(t, "test.example.com", creds.Certificate.Subject.CommonName)
}

func TestNewStaticRejectsGarbage(t *testing.T) {
	_, err := NewStatic([]byte("not pem"), []byte(testkeys.KeyPEM), "")
	assert.Error(t, err)

	_, err = NewStatic([]byte(testkeys.CertPEM), []byte("not pem"), "")
	assert.Error(t, err)
}

func TestAlgorithmNegotiation(t *testing.T) {
	svc, err := NewStatic([]byte(testkeys.CertPEM), []byte(testkeys.KeyPEM), RSASHA256)
	require.NoError(t, err)

	tests := []struct {
		name    string
		allowed []string
		want    string
		wantErr bool
	}{
		{name: "empty list uses default", want: RSASHA256},
		{name: "first supported wins", allowed: []string{RSASHA512, RSASHA256}, want: RSASHA512},
		{name: "unknown entries skipped", allowed: []string{"urn:bogus", RSASHA1}, want: RSASHA1},
		{name: "nothing supported", allowed: []string{"urn:bogus"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := svc.GetX509SigningCredentials(tt.allowed...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, creds.SignatureMethod)
		})
	}
}

func TestSigningContext(t *testing.T) {
	svc, err := NewStatic([]byte(testkeys.CertPEM), []byte(testkeys.KeyPEM), "")
	require.NoError(t, err)
	creds, err := svc.GetX509SigningCredentials()
	require.NoError(t, err)

	ctx, err := creds.SigningContext()
	require.NoError(t, err)
	assert.NotNil(t, ctx)
}
