package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/larslab/authcore/logging"
	"github.com/larslab/authcore/refresh"
	"github.com/larslab/authcore/token"
)

// Engine orchestrates credential issuance, rotation, revocation, and
// verification. Build one with [Builder]; all methods are safe for
// concurrent use.
type Engine struct {
	config  Config
	tokens  *token.Manager
	refresh *refresh.Service
	users   UserProvider
	metrics *Metrics
	log     logging.Logger
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the engine's counter set, e.g. for exporters. May return
// nil when metrics are disabled.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// IssuePair authenticates nothing itself: the host application verifies the
// user's primary credential and then calls IssuePair with the established
// subject. It returns a fresh access credential and a new refresh
// credential bound to the client context carried in ctx (see
// [WithUserAgent] and [WithClientAddr]).
func (e *Engine) IssuePair(ctx context.Context, userID string) (Pair, error) {
	if e == nil || e.tokens == nil {
		return Pair{}, ErrEngineNotReady
	}
	if userID == "" {
		return Pair{}, ErrUserNotFound
	}
	if e.users != nil {
		user, err := e.users.FindUser(ctx, userID)
		if err != nil {
			return Pair{}, err
		}
		if user.Disabled {
			return Pair{}, ErrUserDisabled
		}
	}

	access, err := e.tokens.Issue(userID, token.ClassAccess)
	if err != nil {
		return Pair{}, fmt.Errorf("issue access credential: %w", err)
	}
	rawRefresh, _, err := e.refresh.Create(ctx, userID, userAgentFromContext(ctx), clientAddrFromContext(ctx))
	if err != nil {
		return Pair{}, fmt.Errorf("create refresh credential: %w", err)
	}

	e.metrics.Inc(MetricIssueSuccess)
	return Pair{AccessToken: access, RefreshToken: rawRefresh}, nil
}

// Refresh redeems rawRefresh for a new pair. Rotation is atomic: under
// concurrent redemption of the same value exactly one caller receives a new
// pair and every other caller fails. All per-credential failures — unknown,
// revoked, expired, context mismatch, user gone — surface as
// [ErrRefreshInvalid]; the specific reason is only logged.
func (e *Engine) Refresh(ctx context.Context, rawRefresh string) (Pair, error) {
	if e == nil || e.tokens == nil {
		return Pair{}, ErrEngineNotReady
	}

	userAgent := userAgentFromContext(ctx)
	clientAddr := clientAddrFromContext(ctx)

	newRaw, rec, err := e.refresh.Rotate(ctx, rawRefresh, userAgent, clientAddr)
	if err != nil {
		if refresh.IsInvalid(err) {
			e.metrics.Inc(MetricRefreshFailure)
			if errors.Is(err, refresh.ErrRevoked) {
				e.metrics.Inc(MetricReplayDetected)
			}
			e.log.Warn(ctx, "refresh rejected", "reason", err.Error())
			return Pair{}, ErrRefreshInvalid
		}
		return Pair{}, fmt.Errorf("rotate refresh credential: %w", err)
	}

	// Re-check the subject on every rotation; a deleted or disabled user
	// must not keep a live renewal chain. The fresh credential is revoked
	// so the chain ends here.
	if e.users != nil {
		user, lookupErr := e.users.FindUser(ctx, rec.UserID)
		if lookupErr != nil || user.Disabled {
			if revokeErr := e.refresh.RevokeValue(ctx, newRaw); revokeErr != nil {
				e.log.Error(ctx, "failed to revoke refresh credential for rejected user",
					"user_id", rec.UserID, "error", revokeErr)
			}
			e.metrics.Inc(MetricRefreshFailure)
			e.log.Warn(ctx, "refresh rejected", "reason", "user unavailable", "user_id", rec.UserID)
			return Pair{}, ErrRefreshInvalid
		}
	}

	access, err := e.tokens.Issue(rec.UserID, token.ClassAccess)
	if err != nil {
		return Pair{}, fmt.Errorf("issue access credential: %w", err)
	}

	e.metrics.Inc(MetricRefreshSuccess)
	return Pair{AccessToken: access, RefreshToken: newRaw}, nil
}

// Logout revokes the refresh credential behind rawRefresh. Idempotent:
// unknown and already-revoked values both succeed, so a client can always
// complete a logout.
func (e *Engine) Logout(ctx context.Context, rawRefresh string) error {
	if e == nil || e.refresh == nil {
		return ErrEngineNotReady
	}
	err := e.refresh.RevokeValue(ctx, rawRefresh)
	if err != nil && !refresh.IsInvalid(err) {
		return fmt.Errorf("revoke refresh credential: %w", err)
	}
	e.metrics.Inc(MetricLogout)
	return nil
}

// VerifyAccess checks an access credential's signature and expiry and
// returns its subject. No storage is consulted; revocation of a session
// takes effect when the short-lived access credential expires.
func (e *Engine) VerifyAccess(tokenStr string) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	subject, err := e.tokens.Verify(tokenStr)
	if err != nil {
		e.metrics.Inc(MetricVerifyFailure)
		return "", err
	}
	e.metrics.Inc(MetricVerifySuccess)
	return subject, nil
}
