package refresh

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports a hash with no stored record.
	ErrNotFound = errors.New("refresh credential not found")
	// ErrRevoked reports a record that has already been revoked. Concurrent
	// rotation losers observe this.
	ErrRevoked = errors.New("refresh credential revoked")
	// ErrExpired reports a record past its expiry.
	ErrExpired = errors.New("refresh credential expired")
	// ErrContextMismatch reports a bound record presented from a different
	// client context.
	ErrContextMismatch = errors.New("refresh credential context mismatch")
)

// Store is the persistence surface for refresh-credential records.
// Implementations must enforce hash uniqueness and make Rotate a single
// atomic unit: revoke-old and insert-new either both happen or neither, and
// exactly one concurrent caller per hash may win.
type Store interface {
	// Insert persists a new record.
	Insert(ctx context.Context, rec Record) error

	// FindByHash returns the record for hash, or ErrNotFound.
	FindByHash(ctx context.Context, hash string) (Record, error)

	// MarkRevoked sets the revoked flag on the record with the given id.
	// Revoking an already-revoked record is a no-op.
	MarkRevoked(ctx context.Context, id string) error

	// Rotate atomically revokes the record identified by oldHash and inserts
	// replacement. It returns ErrNotFound if no record carries oldHash and
	// ErrRevoked if the record was already revoked (a concurrent rotation
	// won, or a stolen value was replayed).
	Rotate(ctx context.Context, oldHash string, replacement Record) error
}
