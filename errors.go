package authcore

import (
	"errors"

	"github.com/larslab/authcore/token"
)

// Token-level sentinels re-exported so callers depend on one package.
var (
	// ErrTokenMalformed reports an access credential that cannot be parsed.
	ErrTokenMalformed = token.ErrMalformed
	// ErrTokenSignatureInvalid reports an access credential whose signature
	// does not verify against the configured key.
	ErrTokenSignatureInvalid = token.ErrSignatureInvalid
	// ErrTokenExpired reports an access credential past its expiry.
	ErrTokenExpired = token.ErrExpired
	// ErrWeakSecret reports a missing, short, or placeholder signing key.
	ErrWeakSecret = token.ErrWeakSecret
)

var (
	// ErrRefreshInvalid is the single rejection Engine.Refresh returns for
	// every per-credential failure. Not-found, revoked, expired, and
	// context-mismatch all collapse into it so callers cannot distinguish
	// which check failed; the underlying reason is logged server-side only.
	ErrRefreshInvalid = errors.New("invalid refresh credential")

	// ErrUserNotFound is returned by user lookups for unknown subjects.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserDisabled is returned by user lookups for known but disabled
	// subjects.
	ErrUserDisabled = errors.New("user disabled")

	// ErrEngineNotReady reports an Engine built without its required
	// dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)
