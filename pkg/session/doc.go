// Package session tracks the relying parties a subject is signed into.
//
// A SessionParticipant is recorded each time a sign-in response is issued
// and accumulated (one per relying party) inside the host's session state.
// At logout time the accumulated participants drive the front-channel
// logout fan-out in pkg/logout.
//
// Participants serialize to a compact delimited string so the host can
// store them inside session-cookie properties; the codec is versioned by
// shape (1 field or 6 fields) and round-trips exactly.
package session
