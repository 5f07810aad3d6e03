package authcore

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/larslab/authcore/gate"
	"github.com/larslab/authcore/ratelimit"
	"github.com/larslab/authcore/refresh"
	"github.com/larslab/authcore/token"
)

// Config aggregates the configuration of every subsystem. Instances are
// validated by the Builder and treated as immutable afterwards.
type Config struct {
	Token     token.Config
	Refresh   refresh.Config
	RateLimit ratelimit.Config
	Gate      gate.Config
}

// ConfigFromEnv loads configuration from the environment, reading an
// optional .env file first. Only the signing key is required; everything
// else has working defaults.
//
//	JWT_SECRET              signing key, >= 32 bytes (required)
//	JWT_ISSUER              issuer claim (optional)
//	ACCESS_TTL              access credential lifetime (default 15m)
//	REFRESH_TTL             refresh credential lifetime (default 336h)
//	REFRESH_BIND_UA         bind refresh credentials to the user agent
//	REFRESH_BIND_ADDR       bind refresh credentials to the address prefix
//	RATE_LIMIT_CAPACITY     requests per window (default 100)
//	RATE_LIMIT_WINDOW_MS    window length in milliseconds (default 60000)
//	ADMIN_GATE_ENABLED      enable the second-factor gate
//	ADMIN_USER, ADMIN_PASS  gate base credential (ADMIN_PASS may be bcrypt)
//	ADMIN_2FA_ENABLED       require the second factor (default true)
//	ADMIN_TOTP_SECRET       base32 TOTP shared secret
//	ADMIN_STATIC_CODE       fallback second-factor code
//	ADMIN_SESSION_KEY       gate session-cookie signing key
//	ADMIN_SESSION_TTL       gate session lifetime (default 15m)
func ConfigFromEnv() Config {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	return Config{
		Token: token.Config{
			Secret:     []byte(os.Getenv("JWT_SECRET")),
			Issuer:     os.Getenv("JWT_ISSUER"),
			AccessTTL:  envDuration("ACCESS_TTL", 15*time.Minute),
			RefreshTTL: envDuration("REFRESH_TTL", 14*24*time.Hour),
		},
		Refresh: refresh.Config{
			TTL:            envDuration("REFRESH_TTL", 14*24*time.Hour),
			BindUserAgent:  envBool("REFRESH_BIND_UA", false),
			BindClientAddr: envBool("REFRESH_BIND_ADDR", false),
		},
		RateLimit: ratelimit.Config{
			Capacity: envInt("RATE_LIMIT_CAPACITY", ratelimit.DefaultCapacity),
			Window:   time.Duration(envInt("RATE_LIMIT_WINDOW_MS", 60_000)) * time.Millisecond,
		},
		Gate: gate.Config{
			Enabled:      envBool("ADMIN_GATE_ENABLED", false),
			BasicUser:    os.Getenv("ADMIN_USER"),
			BasicPass:    os.Getenv("ADMIN_PASS"),
			SecondFactor: envBool("ADMIN_2FA_ENABLED", true),
			TOTPSecret:   os.Getenv("ADMIN_TOTP_SECRET"),
			StaticCode:   os.Getenv("ADMIN_STATIC_CODE"),
			SessionKey:   []byte(os.Getenv("ADMIN_SESSION_KEY")),
			SessionTTL:   envDuration("ADMIN_SESSION_TTL", 15*time.Minute),
		},
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
