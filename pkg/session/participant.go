package session

import (
	"errors"
	"fmt"
	"strings"
)

// Separator between encoded participant fields. Field values must not
// contain it; Encode rejects values that do.
const Separator = ";"

const encodedFieldCount = 6

// ErrMalformedParticipant reports an encoded participant whose field count
// is neither 1 (bare client id) nor 6 (full record).
var ErrMalformedParticipant = errors.New("session: malformed participant encoding")

// Participant records one relying party a subject has an active federation
// session with.
type Participant struct {
	ClientID        string
	NameID          string
	NameIDFormat    string
	NameQualifier   string
	SPNameQualifier string
	SessionIndex    string
}

// Encode serializes the participant to its delimited string form. A
// participant whose only populated field is the client id encodes to the
// bare client id, preserving compatibility with session cookies written
// before the extra fields existed.
func (p Participant) Encode() (string, error) {
	fields := []string{p.ClientID, p.NameID, p.NameIDFormat, p.NameQualifier, p.SPNameQualifier, p.SessionIndex}
	for _, f := range fields {
		if strings.Contains(f, Separator) {
			return "", fmt.Errorf("session: participant field %q contains separator", f)
		}
	}
	if p.NameID == "" && p.NameIDFormat == "" && p.NameQualifier == "" && p.SPNameQualifier == "" && p.SessionIndex == "" {
		return p.ClientID, nil
	}
	return strings.Join(fields, Separator), nil
}

// Decode parses the delimited string form produced by Encode.
func Decode(s string) (Participant, error) {
	fields := strings.Split(s, Separator)
	switch len(fields) {
	case 1:
		return Participant{ClientID: fields[0]}, nil
	case encodedFieldCount:
		return Participant{
			ClientID:        fields[0],
			NameID:          fields[1],
			NameIDFormat:    fields[2],
			NameQualifier:   fields[3],
			SPNameQualifier: fields[4],
			SessionIndex:    fields[5],
		}, nil
	default:
		return Participant{}, fmt.Errorf("%w: %d fields", ErrMalformedParticipant, len(fields))
	}
}

// DecodeAll parses a list of encoded participants, failing on the first
// malformed entry.
func DecodeAll(encoded []string) ([]Participant, error) {
	participants := make([]Participant, 0, len(encoded))
	for _, s := range encoded {
		p, err := Decode(s)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, nil
}

// EncodeAll serializes a list of participants.
func EncodeAll(participants []Participant) ([]string, error) {
	encoded := make([]string, 0, len(participants))
	for _, p := range participants {
		s, err := p.Encode()
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, s)
	}
	return encoded, nil
}
