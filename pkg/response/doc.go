// Package response turns a validated authentication request into a signed
// SAML response.
//
// # Overview
//
// SignInResponseGenerator maps the claims issued by the host's profile
// service into an assertion, signs it with negotiated credentials, and
// optionally encrypts it for relying parties that registered an
// encryption certificate. Binding selection follows the validated
// request: HTTP-Artifact stores the full response and hands back only the
// artifact reference, everything else embeds the response in an
// HTTP-POST message.
//
// # Related Packages
//
//   - pkg/validation: produces the ValidatedRequest consumed here
//   - pkg/artifact: holds responses issued over the artifact binding
//   - pkg/keys: signing credential negotiation
package response
