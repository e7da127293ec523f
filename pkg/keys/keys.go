// Package keys supplies X.509 signing credentials to the response and
// logout generators. The host's key-material service is modeled as a small
// interface so deployments can plug in an HSM or key-rotation scheme; a
// static PEM-backed implementation ships for everything else.
package keys

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	dsig "github.com/russellhaering/goxmldsig"
)

// Signature algorithm URIs accepted for relying-party preferences.
const (
	RSASHA256 = dsig.RSASHA256SignatureMethod
	RSASHA384 = dsig.RSASHA384SignatureMethod
	RSASHA512 = dsig.RSASHA512SignatureMethod
	RSASHA1   = dsig.RSASHA1SignatureMethod
)

// Credentials bundle a signing key store with the certificate and the
// signature method negotiated for one message.
type Credentials struct {
	KeyStore        dsig.X509KeyStore
	Certificate     *x509.Certificate
	SignatureMethod string
}

// SigningContext builds a goxmldsig signing context for these credentials.
// The canonicalizer prefix list stays empty; several SP stacks reject
// non-empty prefix lists in exclusive C14N.
func (c *Credentials) SigningContext() (*dsig.SigningContext, error) {
	ctx := dsig.NewDefaultSigningContext(c.KeyStore)
	ctx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	if err := ctx.SetSignatureMethod(c.SignatureMethod); err != nil {
		return nil, fmt.Errorf("keys: unsupported signature method %q: %w", c.SignatureMethod, err)
	}
	return ctx, nil
}

// Service is the host-provided key material contract.
type Service interface {
	// GetX509SigningCredentials returns signing credentials. When
	// allowedAlgorithms is non-empty the returned credentials use the
	// first algorithm the key supports; otherwise the service default.
	GetX509SigningCredentials(allowedAlgorithms ...string) (*Credentials, error)
}

// Static is a Service backed by one in-memory RSA key pair.
type Static struct {
	key        *rsa.PrivateKey
	cert       *x509.Certificate
	defaultAlg string
}

// NewStatic parses PEM-encoded certificate and private key material. The
// key may be PKCS#1 or PKCS#8; only RSA keys are supported.
func NewStatic(certPEM, keyPEM []byte, defaultAlg string) (*Static, error) {
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, fmt.Errorf("keys: failed to decode certificate PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keys: failed to parse certificate: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("keys: failed to decode private key PEM")
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		pkcs8Key, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("keys: failed to parse private key: %w", err)
		}
		var ok bool
		key, ok = pkcs8Key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("keys: private key is not RSA")
		}
	}

	if defaultAlg == "" {
		defaultAlg = RSASHA256
	}
	return &Static{key: key, cert: cert, defaultAlg: defaultAlg}, nil
}

// LoadStatic reads certificate and key PEM files from disk.
func LoadStatic(certPath, keyPath, defaultAlg string) (*Static, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("keys: read certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("keys: read private key: %w", err)
	}
	return NewStatic(certPEM, keyPEM, defaultAlg)
}

// GetX509SigningCredentials implements Service.
func (s *Static) GetX509SigningCredentials(allowedAlgorithms ...string) (*Credentials, error) {
	alg := s.defaultAlg
	if len(allowedAlgorithms) > 0 {
		alg = ""
		for _, candidate := range allowedAlgorithms {
			switch candidate {
			case RSASHA256, RSASHA384, RSASHA512, RSASHA1:
				alg = candidate
			}
			if alg != "" {
				break
			}
		}
		if alg == "" {
			return nil, fmt.Errorf("keys: no supported algorithm in %v", allowedAlgorithms)
		}
	}

	keyPair := tls.Certificate{
		Certificate: [][]byte{s.cert.Raw},
		PrivateKey:  s.key,
		Leaf:        s.cert,
	}
	return &Credentials{
		KeyStore:        dsig.TLSCertKeyStore(keyPair),
		Certificate:     s.cert,
		SignatureMethod: alg,
	}, nil
}
