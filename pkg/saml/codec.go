package saml

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
	xrv "github.com/mattermost/xml-roundtrip-validator"
)

// Query / form parameter names mandated by the bindings.
const (
	ParamRequest    = "SAMLRequest"
	ParamResponse   = "SAMLResponse"
	ParamRelayState = "RelayState"
	ParamArtifact   = "SAMLart"
)

// MessageID produces a message identifier valid as an XML ID (must not
// start with a digit, hence the underscore prefix).
func MessageID() string {
	return "_" + uuid.NewString()
}

// EncodeRedirect deflate-compresses and base64-encodes a message for the
// HTTP-Redirect binding.
func EncodeRedirect(message []byte) (string, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return "", fmt.Errorf("deflate init: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return "", fmt.Errorf("deflate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("deflate close: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeRedirect reverses EncodeRedirect.
func DecodeRedirect(encoded string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	message, err := io.ReadAll(io.LimitReader(r, maxMessageSize+1))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	if len(message) > maxMessageSize {
		return nil, fmt.Errorf("message exceeds %d bytes", maxMessageSize)
	}
	return message, nil
}

// EncodePost base64-encodes a message for the HTTP-POST binding.
func EncodePost(message []byte) string {
	return base64.StdEncoding.EncodeToString(message)
}

// DecodePost reverses EncodePost.
func DecodePost(encoded string) ([]byte, error) {
	message, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	if len(message) > maxMessageSize {
		return nil, fmt.Errorf("message exceeds %d bytes", maxMessageSize)
	}
	return message, nil
}

// Inflated protocol messages larger than this are rejected outright.
const maxMessageSize = 512 * 1024

// RedirectURL appends an encoded message and optional relay state to a
// registered endpoint location.
func RedirectURL(location, param string, message []byte, relayState string) (string, error) {
	encoded, err := EncodeRedirect(message)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint location %q: %w", location, err)
	}
	q := u.Query()
	q.Set(param, encoded)
	if relayState != "" {
		q.Set(ParamRelayState, relayState)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseAuthnRequest parses an inbound authentication request. The raw XML
// is round-trip validated first so that what the signature layer sees is
// what the parser saw.
func ParseAuthnRequest(raw []byte) (*AuthnRequest, error) {
	if err := validateRoundTrip(raw); err != nil {
		return nil, err
	}
	var req AuthnRequest
	if err := xml.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("parse AuthnRequest: %w", err)
	}
	return &req, nil
}

// ParseLogoutRequest parses an inbound logout request.
func ParseLogoutRequest(raw []byte) (*LogoutRequest, error) {
	if err := validateRoundTrip(raw); err != nil {
		return nil, err
	}
	var req LogoutRequest
	if err := xml.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("parse LogoutRequest: %w", err)
	}
	return &req, nil
}

// ParseLogoutResponse parses a logout response returned by a relying party.
func ParseLogoutResponse(raw []byte) (*LogoutResponse, error) {
	if err := validateRoundTrip(raw); err != nil {
		return nil, err
	}
	var resp LogoutResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse LogoutResponse: %w", err)
	}
	return &resp, nil
}

func validateRoundTrip(raw []byte) error {
	if err := xrv.Validate(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("xml round-trip validation: %w", err)
	}
	return nil
}

// IssuerValue extracts the issuer entity ID from either request type,
// trimming surrounding whitespace some SP stacks emit inside the element.
func IssuerValue(iss *Issuer) string {
	if iss == nil {
		return ""
	}
	return strings.TrimSpace(iss.Value)
}
