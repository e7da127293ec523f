// Package logout builds signed logout messages and orchestrates
// front-channel single logout across every relying party a subject is
// signed into.
//
// # Overview
//
// Generator produces signed LogoutRequest and LogoutResponse messages
// addressed to a relying party's registered single-logout endpoint.
// Orchestrator fans a logout out to the remaining session participants:
// one renderable notification per participant, each on that participant's
// declared binding, skipping participants that cannot be notified instead
// of failing the whole logout.
//
// The participant list travels between the initiating request and the
// fan-out callback as a NotificationContext stored in the host's message
// store.
//
// # Related Packages
//
//   - pkg/session: participant records consumed by the orchestrator
//   - pkg/validation: validated logout requests answered by Generator
//   - pkg/server: renders notifications into the fan-out page
package logout
