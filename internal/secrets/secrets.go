// Package secrets holds the shared credential primitives: raw-value
// generation, one-way hashing, client-address truncation, and constant-time
// comparison. Raw values produced here must never be persisted or logged;
// callers store only the hash.
package secrets

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// NewRefreshValue returns a fresh high-entropy refresh credential value.
// Two concatenated UUIDv4 values give 244 bits of randomness and keep the
// value opaque (no embedded structure to parse on the client side).
func NewRefreshValue() string {
	return uuid.NewString() + ":" + uuid.NewString()
}

// Hash returns the base64url (unpadded) SHA-256 digest of value.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// HashUserAgent hashes a user-agent string for storage. Empty input yields
// an empty hash, which disables the binding for that record.
func HashUserAgent(ua string) string {
	if ua == "" {
		return ""
	}
	return Hash(ua)
}

// AddrPrefix truncates a client address to its routing prefix: the last
// IPv4 octet (or the last IPv6 group) is dropped so that minor NAT/proxy
// drift within a subnet does not invalidate a bound credential.
func AddrPrefix(addr string) string {
	if addr == "" {
		return ""
	}
	sep := "."
	if strings.Contains(addr, ":") {
		sep = ":"
	}
	idx := strings.LastIndex(addr, sep)
	if idx <= 0 {
		return addr
	}
	return addr[:idx]
}

// HashAddr hashes the truncated client address. Empty input yields an empty
// hash, which disables the binding for that record.
func HashAddr(addr string) string {
	if addr == "" {
		return ""
	}
	return Hash(AddrPrefix(addr))
}

// ConstantTimeEquals compares two strings without leaking the mismatch
// position through timing.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
