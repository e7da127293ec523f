// Package server exposes the federation engine over HTTP.
//
// # Overview
//
// The server routes the SAML2 endpoints with gorilla/mux and wires the
// engine components behind them:
//
//   - /saml/sso           — single sign-on (HTTP-Redirect and HTTP-POST in)
//   - /saml/slo           — single logout initiation and inbound responses
//   - /saml/slo/callback  — front-channel fan-out document
//   - /saml/artifact      — SOAP artifact resolution
//   - /saml/metadata      — identity provider metadata document
//   - /healthz, /metrics  — operational endpoints
//
// Logging and panic recovery run as middleware around the router; HTTP
// request counters and latency histograms are recorded per request.
//
// # Related Packages
//
//   - pkg/validation: inbound request validation
//   - pkg/response: sign-in response generation
//   - pkg/logout: logout messages and fan-out
//   - pkg/soap: artifact resolution service
package server
