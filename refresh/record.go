package refresh

import "time"

// Record is the persisted state of one refresh credential. The raw
// credential value never appears here; only its hash is stored.
type Record struct {
	ID            string
	UserID        string
	TokenHash     string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	Revoked       bool
	UserAgentHash string
	AddrHash      string
}

// Usable reports whether the record may still redeem: not revoked and not
// past expiry. Expiry is checked at validation time, never swept eagerly.
func (r Record) Usable(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}
