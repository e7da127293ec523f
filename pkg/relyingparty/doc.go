// Package relyingparty holds the per-service-provider protocol settings
// the engine consults while validating requests and generating responses.
//
// A RelyingParty record is optional: a client registered with the host but
// without a record here is served with the engine-wide Defaults. Records
// are immutable once handed out; stores replace whole records on reload
// rather than mutating them.
//
// # Stores
//
// MemoryStore: registration at startup, and tests.
//
// SQLStore: settings in a relational table (lib/pq), endpoints and claim
// mappings as JSON columns.
//
// FileStore: settings in a YAML document, re-read on fsnotify change
// events so host configuration reloads take effect without a restart.
package relyingparty
