// Package refresh implements the rotating refresh-credential protocol:
// opaque high-entropy values whose hashes are persisted with expiry,
// revocation, and optional client-context bindings.
//
// # Credential format
//
// Raw values are opaque to clients and never stored server-side; the store
// retains only an unsalted SHA-256 hash (the values carry their own
// entropy). Rotation is single-use: redeeming a value atomically revokes it
// and issues a replacement, and exactly one concurrent redeemer wins.
//
// # Architecture boundaries
//
// This package owns the create/validate/revoke/rotate protocol and its
// rejection taxonomy. Atomicity is delegated to the Store implementations
// (memstore, redistore, pgstore); collapsing rejections into one generic
// unauthorized outcome is the caller's job at the boundary.
package refresh
