package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/larslab/authcore/internal/secrets"
)

// Config tunes credential lifetime and client-context binding.
type Config struct {
	// TTL is the lifetime of a newly created credential.
	TTL time.Duration
	// BindUserAgent records a hash of the creating client's user-agent and
	// rejects redemption from a different one.
	BindUserAgent bool
	// BindClientAddr records a hash of the creating client's truncated
	// address (last IPv4 octet / IPv6 group dropped) and rejects redemption
	// from outside that prefix.
	BindClientAddr bool
}

// Service implements the create/validate/revoke/rotate protocol on top of a
// Store. It is safe for concurrent use; atomicity of rotation is delegated
// to the store.
type Service struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// NewService returns a Service over store. A zero TTL defaults to 14 days.
func NewService(store Store, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 14 * 24 * time.Hour
	}
	return &Service{store: store, cfg: cfg, now: time.Now}
}

// Create generates a high-entropy credential for userID, persists its hash,
// and returns the raw value together with the stored record. This is the
// only moment the raw value exists server-side.
func (s *Service) Create(ctx context.Context, userID, userAgent, clientAddr string) (string, Record, error) {
	raw := secrets.NewRefreshValue()
	rec := s.newRecord(userID, raw, userAgent, clientAddr)
	if err := s.store.Insert(ctx, rec); err != nil {
		return "", Record{}, err
	}
	return raw, rec, nil
}

// Validate hashes raw, looks the record up, and checks revocation, expiry,
// and context bindings. Callers at the HTTP boundary must collapse every
// returned error into one generic unauthorized outcome.
func (s *Service) Validate(ctx context.Context, raw, userAgent, clientAddr string) (Record, error) {
	rec, err := s.store.FindByHash(ctx, secrets.Hash(raw))
	if err != nil {
		return Record{}, err
	}
	if err := s.check(rec, userAgent, clientAddr); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Revoke marks rec revoked. Idempotent.
func (s *Service) Revoke(ctx context.Context, rec Record) error {
	return s.store.MarkRevoked(ctx, rec.ID)
}

// RevokeValue revokes the record behind a raw credential value, regardless
// of context bindings, so a client can always log itself out. Unknown
// values return ErrNotFound.
func (s *Service) RevokeValue(ctx context.Context, raw string) error {
	rec, err := s.store.FindByHash(ctx, secrets.Hash(raw))
	if err != nil {
		return err
	}
	return s.store.MarkRevoked(ctx, rec.ID)
}

// Rotate redeems raw for a fresh credential in one atomic step: the old
// record is revoked the instant the new one is issued, and exactly one
// concurrent caller per raw value succeeds. Losers, and replays of a value
// rotated earlier, observe ErrRevoked.
func (s *Service) Rotate(ctx context.Context, raw, userAgent, clientAddr string) (string, Record, error) {
	oldHash := secrets.Hash(raw)
	rec, err := s.store.FindByHash(ctx, oldHash)
	if err != nil {
		return "", Record{}, err
	}
	if err := s.check(rec, userAgent, clientAddr); err != nil {
		return "", Record{}, err
	}

	newRaw := secrets.NewRefreshValue()
	replacement := s.newRecord(rec.UserID, newRaw, userAgent, clientAddr)
	if err := s.store.Rotate(ctx, oldHash, replacement); err != nil {
		return "", Record{}, err
	}
	return newRaw, replacement, nil
}

func (s *Service) newRecord(userID, raw, userAgent, clientAddr string) Record {
	now := s.now()
	rec := Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: secrets.Hash(raw),
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
	}
	if s.cfg.BindUserAgent {
		rec.UserAgentHash = secrets.HashUserAgent(userAgent)
	}
	if s.cfg.BindClientAddr {
		rec.AddrHash = secrets.HashAddr(clientAddr)
	}
	return rec
}

// check enforces revocation, expiry, and context bindings. A binding is
// enforced only when both sides are present: records created without a
// binding stay redeemable from anywhere, and an absent presented value does
// not fail a bound record (tolerates clients that strip headers).
func (s *Service) check(rec Record, userAgent, clientAddr string) error {
	if rec.Revoked {
		return ErrRevoked
	}
	if !s.now().Before(rec.ExpiresAt) {
		return ErrExpired
	}
	if rec.UserAgentHash != "" && userAgent != "" &&
		!secrets.ConstantTimeEquals(rec.UserAgentHash, secrets.HashUserAgent(userAgent)) {
		return ErrContextMismatch
	}
	if rec.AddrHash != "" && clientAddr != "" &&
		!secrets.ConstantTimeEquals(rec.AddrHash, secrets.HashAddr(clientAddr)) {
		return ErrContextMismatch
	}
	return nil
}

// IsInvalid reports whether err is one of the per-credential rejection
// reasons (as opposed to a storage failure). Boundaries use it to decide
// between a generic unauthorized outcome and a 5xx.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRevoked) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrContextMismatch)
}
