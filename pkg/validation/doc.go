// Package validation checks inbound SAML protocol messages before any
// response is generated.
//
// # Overview
//
// RequestValidator runs a fixed sequence of checks over a decoded
// AuthnRequest or LogoutRequest: issuer and client resolution, validity
// window checks, identity-provider hint filtering, relying party
// augmentation, reply URL resolution, and session attachment. The first
// failing check stops the sequence.
//
// Failures are reported as a Result carrying a ProtocolError, never as a
// returned error: callers render an error page from the kind and keep the
// partially validated request for logging.
//
// # Related Packages
//
//   - pkg/saml: message types consumed here
//   - pkg/relyingparty: per-party overrides applied during augmentation
//   - pkg/response, pkg/logout: consumers of ValidatedRequest
package validation
