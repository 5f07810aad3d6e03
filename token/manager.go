// Package token implements the stateless bearer-credential signer: HMAC-based
// JWT issuance and verification with subject, issued-at, and expiry claims.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum accepted signing key length in bytes.
const MinSecretLength = 32

// placeholderSecret is the well-known default that must never reach
// production. Matching it is a startup-time fatal error.
const placeholderSecret = "change-me-in-prod"

var (
	// ErrMalformed reports a token that cannot be parsed at all.
	ErrMalformed = errors.New("token malformed")
	// ErrSignatureInvalid reports a token whose signature does not verify
	// against the configured key.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrExpired reports a structurally valid token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrWeakSecret reports a missing, short, or placeholder signing key.
	ErrWeakSecret = errors.New("signing key missing, too short, or placeholder")
)

// Class selects the TTL applied at issuance. Both classes use the same
// signing mechanism; only the expiry differs.
type Class int

const (
	// ClassAccess is the short-lived per-request bearer credential.
	ClassAccess Class = iota
	// ClassRefresh is the long-lived bearer proof used by the rotation
	// protocol, distinct from the persisted refresh-credential record.
	ClassRefresh
)

// Config carries the signer configuration. Instances are validated by
// NewManager and treated as immutable afterwards.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration
}

// Manager signs and verifies bearer credentials. It is stateless apart from
// the immutable key and safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the signed payload: subject plus registered iat/exp.
type Claims struct {
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a signer. A missing, short, or
// placeholder secret fails fast with ErrWeakSecret; a weak key is never a
// runtime warning.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < MinSecretLength || string(cfg.Secret) == placeholderSecret {
		return nil, ErrWeakSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 14 * 24 * time.Hour
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Issue produces a signed credential for subject with the class TTL.
func (m *Manager) Issue(subject string, class Class) (string, error) {
	ttl := m.config.AccessTTL
	if class == ClassRefresh {
		ttl = m.config.RefreshTTL
	}
	return m.IssueWithTTL(subject, ttl)
}

// IssueWithTTL produces a signed credential for subject expiring at now+ttl.
func (m *Manager) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.config.Issuer,
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.config.Secret)
}

// Verify recomputes the signature and checks expiry, returning the subject.
// Failures map onto ErrMalformed, ErrSignatureInvalid, or ErrExpired.
func (m *Manager) Verify(tokenStr string) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return "", mapParseError(err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return "", ErrSignatureInvalid
	}
	if claims.Subject == "" {
		return "", ErrMalformed
	}
	return claims.Subject, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		// Remaining parser failures (bad claims, wrong issuer) are treated
		// as signature-level rejections, not leaked individually.
		return ErrSignatureInvalid
	}
}
