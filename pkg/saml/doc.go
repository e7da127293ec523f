// Package saml provides the SAML 2.0 protocol layer for the federation engine.
//
// # Overview
//
// This package defines the wire-level vocabulary shared by the rest of the
// engine: protocol constants (binding URNs, status codes, NameID formats),
// Go representations of the inbound protocol messages (AuthnRequest,
// LogoutRequest, LogoutResponse), and the binding codecs that move those
// messages over HTTP.
//
// # Bindings
//
// HTTP-Redirect: the message is deflate-compressed, base64-encoded and
// carried as the SAMLRequest/SAMLResponse query parameter next to an opaque
// RelayState.
//
// HTTP-POST: the message is base64-encoded (no compression) and delivered
// as form fields of a self-submitting HTML form.
//
// HTTP-Artifact and SOAP are handled by pkg/artifact and pkg/soap on top of
// the types defined here.
//
// # Safety
//
// All inbound XML passes through the mattermost xml-roundtrip-validator
// before parsing, rejecting documents that do not survive a decode/encode
// round trip (a precondition for safe signature handling).
//
// # Related Packages
//
//   - pkg/validation: semantic validation of parsed messages
//   - pkg/response: outbound Response construction
//   - pkg/logout: outbound LogoutRequest/LogoutResponse construction
package saml
