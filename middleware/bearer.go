package middleware

import (
	"net/http"
	"strings"

	authcore "github.com/larslab/authcore"
	"github.com/larslab/authcore/ratelimit"
)

// BearerAuth returns pass-through middleware: a valid Authorization bearer
// credential attaches the subject to the request context, everything else
// proceeds unauthenticated. Pair with RequireSubject on routes that need an
// identity. The client address and user agent are attached either way so
// downstream Engine calls can apply context binding.
func BearerAuth(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := authcore.WithClientAddr(r.Context(), ratelimit.ClientAddr(r))
			ctx = authcore.WithUserAgent(ctx, r.UserAgent())

			if engine != nil {
				if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
					if subject, err := engine.VerifyAccess(token); err == nil {
						ctx = authcore.WithSubject(ctx, subject)
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSubject rejects requests whose context carries no authenticated
// subject. Use behind BearerAuth.
func RequireSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authcore.SubjectFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}
