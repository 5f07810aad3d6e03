package gate

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TOTP parameters per RFC 6238 with the standard 30-second step. Skew is
// the number of adjacent steps accepted on each side of now.
const (
	totpDigits = 6
	totpPeriod = 30
	totpSkew   = 1
)

type totpVerifier struct {
	secret []byte
}

// newTOTPVerifier decodes a base32 shared secret. Secrets that are not
// valid base32 of plausible length are treated as raw ASCII and re-encoded,
// matching how provisioning tools hand them out.
func newTOTPVerifier(secretBase32 string) (*totpVerifier, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secretBase32), " ", ""))
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	raw, err := enc.DecodeString(strings.TrimRight(normalized, "="))
	if err != nil || len(raw) < 16 || len(raw) > 20 {
		raw = []byte(normalized)
	}
	if len(raw) == 0 {
		return nil, errors.New("empty totp secret")
	}
	return &totpVerifier{secret: raw}, nil
}

// Verify checks code against the current time window with skew tolerance.
// Comparison is constant time per candidate window.
func (v *totpVerifier) Verify(code string, now time.Time) bool {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != totpDigits || !isNumericString(trimmed) {
		return false
	}

	baseCounter := now.Unix() / totpPeriod
	for step := -totpSkew; step <= totpSkew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated := hotpCode(v.secret, counter)
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true
		}
	}
	return false
}

func hotpCode(secret []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < totpDigits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", totpDigits, bin%mod)
}

func isNumericString(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
