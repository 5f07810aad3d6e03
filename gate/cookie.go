package gate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/larslab/authcore/internal/secrets"
)

// The session cookie value is "<unix-expiry>.<hex-hmac>" where the HMAC is
// SHA-256 over "<user>|<unix-expiry>". Nothing is stored server-side; the
// signature plus expiry is the whole session.

func encodeSessionCookie(user string, expiry int64, key []byte) string {
	return strconv.FormatInt(expiry, 10) + "." + hmacHex(user+"|"+strconv.FormatInt(expiry, 10), key)
}

func verifySessionCookie(value, user string, key []byte, now time.Time) bool {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return false
	}
	expiry, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return false
	}
	if now.Unix() > expiry {
		return false
	}
	expected := hmacHex(user+"|"+parts[0], key)
	return secrets.ConstantTimeEquals(parts[1], expected)
}

func hmacHex(data string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
