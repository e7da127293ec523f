// Package artifact implements the HTTP-Artifact binding's reference side:
// generating SAML type-4 artifact strings and storing the signed response
// they stand in for until the relying party resolves them over SOAP.
//
// # At-most-once resolution
//
// A resolved artifact must never resolve twice (a replayed or forged
// artifact would otherwise yield a second copy of a signed response).
// Store implementations therefore provide Consume, an atomic fetch+delete:
// of two racing Consume calls for the same key, at most one receives the
// record. The in-memory store serializes on a mutex; the Redis store uses
// GETDEL.
//
// Expired records are invisible to readers. Bulk removal of expired rows
// is the host's generic grant-expiry sweep (Redis TTLs make it automatic).
package artifact
