// Package soap implements the artifact resolution service: the SOAP 1.1
// back channel a relying party calls to trade an artifact for the signed
// response it references.
//
// # Overview
//
// The handler accepts an ArtifactResolve inside a SOAP envelope, consumes
// the artifact from the store, and answers with an ArtifactResponse
// embedding the stored response. Unknown, expired, or already-consumed
// artifacts get an empty ArtifactResponse with a Success status; the
// caller cannot distinguish the cases, which keeps replayed artifacts
// from probing the store.
//
// # Related Packages
//
//   - pkg/artifact: consume-on-read storage behind the handler
//   - pkg/response: produces the artifacts resolved here
package soap
