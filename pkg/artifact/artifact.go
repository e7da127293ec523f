package artifact

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Type-4 artifact layout: 2-byte type code, 2-byte endpoint index, 20-byte
// source ID (SHA-1 of the issuer entity ID), 8-byte random message handle.
// 32 raw bytes encode to the 44-character artifact string.
const (
	typeCode      = 0x0004
	sourceIDLen   = 20
	handleLen     = 8
	rawLen        = 2 + 2 + sourceIDLen + handleLen
	EncodedLength = 44
)

// Artifact is a decoded artifact string.
type Artifact struct {
	EndpointIndex uint16
	SourceID      [sourceIDLen]byte
	Handle        [handleLen]byte
}

// SourceID derives the artifact source ID for an issuer entity ID.
func SourceID(entityID string) [sourceIDLen]byte {
	return sha1.Sum([]byte(entityID))
}

// New generates a fresh artifact for the given issuer and endpoint index.
func New(entityID string, endpointIndex uint16) (Artifact, error) {
	a := Artifact{
		EndpointIndex: endpointIndex,
		SourceID:      SourceID(entityID),
	}
	if _, err := rand.Read(a.Handle[:]); err != nil {
		return Artifact{}, fmt.Errorf("artifact: random handle: %w", err)
	}
	return a, nil
}

// Encode renders the artifact as its 44-character base64 string.
func (a Artifact) Encode() string {
	raw := make([]byte, rawLen)
	binary.BigEndian.PutUint16(raw[0:2], typeCode)
	binary.BigEndian.PutUint16(raw[2:4], a.EndpointIndex)
	copy(raw[4:4+sourceIDLen], a.SourceID[:])
	copy(raw[4+sourceIDLen:], a.Handle[:])
	return base64.StdEncoding.EncodeToString(raw)
}

// Decode parses an artifact string, validating length and type code.
func Decode(s string) (Artifact, error) {
	if len(s) != EncodedLength {
		return Artifact{}, fmt.Errorf("artifact: length %d, want %d", len(s), EncodedLength)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact: base64: %w", err)
	}
	if len(raw) != rawLen {
		return Artifact{}, fmt.Errorf("artifact: decoded length %d, want %d", len(raw), rawLen)
	}
	if tc := binary.BigEndian.Uint16(raw[0:2]); tc != typeCode {
		return Artifact{}, fmt.Errorf("artifact: type code 0x%04x, want 0x%04x", tc, typeCode)
	}

	var a Artifact
	a.EndpointIndex = binary.BigEndian.Uint16(raw[2:4])
	copy(a.SourceID[:], raw[4:4+sourceIDLen])
	copy(a.Handle[:], raw[4+sourceIDLen:])
	return a, nil
}

// IssuedBy reports whether the artifact's source ID matches entityID.
func (a Artifact) IssuedBy(entityID string) bool {
	return a.SourceID == SourceID(entityID)
}
