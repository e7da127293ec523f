package validation

import "fmt"

// ErrorKind classifies a validation failure for error page rendering.
type ErrorKind string

const (
	// KindInvalidRequest marks a malformed or out-of-window message.
	KindInvalidRequest ErrorKind = "invalid_request"
	// KindInvalidRelyingParty marks an unknown client, a client registered
	// for another protocol, or a client with no resolvable reply URL.
	KindInvalidRelyingParty ErrorKind = "invalid_relying_party"
	// KindServerError marks missing host configuration, such as a required
	// store that was never injected.
	KindServerError ErrorKind = "server_error"
)

// ProtocolError is a structured validation failure. It crosses the
// validation boundary as a value inside Result, not as a thrown error.
type ProtocolError struct {
	Kind        ErrorKind
	Description string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

func invalidRequest(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Kind: KindInvalidRequest, Description: fmt.Sprintf(format, args...)}
}

func invalidRelyingParty(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Kind: KindInvalidRelyingParty, Description: fmt.Sprintf(format, args...)}
}

func serverError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Kind: KindServerError, Description: fmt.Sprintf(format, args...)}
}

// ServerError builds a server_error ProtocolError. Response generators use
// it for configuration failures discovered after validation.
func ServerError(format string, args ...interface{}) *ProtocolError {
	return serverError(format, args...)
}
