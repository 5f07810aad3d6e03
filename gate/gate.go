// Package gate guards an administrative path prefix behind a base credential
// (HTTP Basic, configured out-of-band) plus a second factor: a time-based
// one-time code or a static fallback code. Success issues a signed,
// time-limited session cookie so the code is not re-entered on every request.
//
// The gate fails closed: with the second factor enabled but neither a TOTP
// secret nor a fallback code configured, every request to the guarded
// surface is denied regardless of base-credential correctness.
package gate

import (
	"context"
	"crypto/rand"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/larslab/authcore/internal/secrets"
	"github.com/larslab/authcore/logging"
)

const (
	// CodeHeader carries the one-time code for non-interactive callers.
	CodeHeader = "X-2FA"
	// RequiredHeader signals machine callers that a second factor is needed.
	RequiredHeader = "X-Require-2FA"

	defaultCookieName = "ADMIN_2FA"
	defaultSessionTTL = 15 * time.Minute
)

// Config describes the guarded surface and its credentials.
type Config struct {
	// Enabled turns the gate on. Disabled gates pass every request through.
	Enabled bool
	// PathPrefixes are the guarded URL prefixes, e.g. ["/admin"].
	PathPrefixes []string
	// CodePath serves the interactive code-entry flow.
	CodePath string
	// BasicUser and BasicPass are the base credential. BasicPass may be a
	// bcrypt hash (detected by its "$2" prefix) or a plain value compared in
	// constant time. Empty values deny all access while the gate is enabled.
	BasicUser string
	BasicPass string
	// SecondFactor requires a one-time code on top of the base credential.
	SecondFactor bool
	// TOTPSecret is the base32 shared secret for the 30-second-step
	// algorithm. When set, it takes precedence over StaticCode.
	TOTPSecret string
	// StaticCode is the fallback code, compared in constant time.
	StaticCode string
	// SessionTTL bounds the session cookie. Defaults to 15 minutes.
	SessionTTL time.Duration
	// CookieName overrides the session cookie name.
	CookieName string
	// SessionKey signs the session cookie. Deployments share the signing
	// key here; when empty, an ephemeral key is generated and sessions do
	// not survive a restart.
	SessionKey []byte
	// OnDenied and OnPassed are optional observation hooks.
	OnDenied func()
	OnPassed func()
}

// Gate is the HTTP filter. Construct with New; safe for concurrent use.
type Gate struct {
	cfg  Config
	totp *totpVerifier
	log  logging.Logger
	now  func() time.Time
}

// New validates cfg, applies defaults, and logs the active configuration
// (never the secrets themselves).
func New(cfg Config, log logging.Logger) (*Gate, error) {
	if log == nil {
		log = logging.Default()
	}
	if len(cfg.PathPrefixes) == 0 {
		cfg.PathPrefixes = []string{"/admin"}
	}
	if cfg.CodePath == "" {
		cfg.CodePath = "/admin/2fa"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}

	g := &Gate{cfg: cfg, log: log, now: time.Now}
	ctx := context.Background()

	if !cfg.Enabled {
		log.Info(ctx, "gate disabled")
		return g, nil
	}

	if len(cfg.SessionKey) == 0 {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		g.cfg.SessionKey = key
		log.Warn(ctx, "no session key configured; using ephemeral key, second-factor sessions will not survive a restart")
	}

	if cfg.BasicUser == "" || cfg.BasicPass == "" {
		log.Warn(ctx, "gate enabled but base credential is not set; guarded surface will deny all access")
	}

	if cfg.SecondFactor {
		switch {
		case cfg.TOTPSecret != "":
			v, err := newTOTPVerifier(cfg.TOTPSecret)
			if err != nil {
				return nil, err
			}
			g.totp = v
			log.Info(ctx, "second factor enabled", "mode", "totp", "session_ttl", cfg.SessionTTL)
		case cfg.StaticCode != "":
			log.Info(ctx, "second factor enabled", "mode", "static", "session_ttl", cfg.SessionTTL)
		default:
			log.Warn(ctx, "second factor enabled but neither totp secret nor fallback code is set; guarded surface will deny all access")
		}
	}
	return g, nil
}

// Protects reports whether path falls under a guarded prefix.
func (g *Gate) Protects(path string) bool {
	for _, prefix := range g.cfg.PathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware wraps next with the gate's allow/deny decision.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !g.cfg.Enabled || (!g.Protects(path) && path != g.cfg.CodePath) {
			next.ServeHTTP(w, r)
			return
		}

		if g.cfg.SecondFactor && path == g.cfg.CodePath {
			g.serveCodeEntry(w, r)
			return
		}

		if g.authorized(w, r) {
			next.ServeHTTP(w, r)
			return
		}

		// Base credential is fine but the second factor is missing: browsers
		// get the interactive flow, machine callers get a header hint.
		if g.cfg.SecondFactor {
			if user := g.basicUser(r); user != "" && !g.hasValidSession(r, user) {
				if wantsHTML(r) {
					returnTo := g.sanitizeReturnTo(originalURL(r))
					http.Redirect(w, r, g.cfg.CodePath+"?returnTo="+url.QueryEscape(returnTo), http.StatusFound)
					return
				}
				w.Header().Set(RequiredHeader, "true")
			}
		}

		g.deny(w)
	})
}

func (g *Gate) deny(w http.ResponseWriter) {
	if g.cfg.OnDenied != nil {
		g.cfg.OnDenied()
	}
	w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// authorized runs the full state machine: base credential, then session
// cookie shortcut, then a fresh one-time code from the request header.
func (g *Gate) authorized(w http.ResponseWriter, r *http.Request) bool {
	user := g.basicUser(r)
	if user == "" {
		return false
	}
	if !g.cfg.SecondFactor {
		return true
	}
	if g.hasValidSession(r, user) {
		return true
	}
	code := r.Header.Get(CodeHeader)
	if code == "" {
		return false
	}
	if !g.verifyCode(code) {
		return false
	}
	g.issueSession(w, user)
	return true
}

// basicUser returns the authenticated base-credential user, or "" when the
// header is absent, wrong, or no base credential is configured (deny by
// default while enabled).
func (g *Gate) basicUser(r *http.Request) string {
	if g.cfg.BasicUser == "" || g.cfg.BasicPass == "" {
		return ""
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	if !secrets.ConstantTimeEquals(user, g.cfg.BasicUser) {
		return ""
	}
	if strings.HasPrefix(g.cfg.BasicPass, "$2") {
		if bcrypt.CompareHashAndPassword([]byte(g.cfg.BasicPass), []byte(pass)) != nil {
			return ""
		}
	} else if !secrets.ConstantTimeEquals(pass, g.cfg.BasicPass) {
		return ""
	}
	return user
}

// verifyCode checks the one-time code: TOTP when a secret is configured,
// the static fallback otherwise. Neither configured means fail closed.
func (g *Gate) verifyCode(code string) bool {
	if g.totp != nil {
		if g.totp.Verify(code, g.now()) {
			g.passed()
			return true
		}
		return false
	}
	if g.cfg.StaticCode == "" {
		return false
	}
	if secrets.ConstantTimeEquals(code, g.cfg.StaticCode) {
		g.passed()
		return true
	}
	return false
}

func (g *Gate) passed() {
	if g.cfg.OnPassed != nil {
		g.cfg.OnPassed()
	}
}

func (g *Gate) hasValidSession(r *http.Request, user string) bool {
	cookie, err := r.Cookie(g.cfg.CookieName)
	if err != nil {
		return false
	}
	return verifySessionCookie(cookie.Value, user, g.cfg.SessionKey, g.now())
}

func (g *Gate) issueSession(w http.ResponseWriter, user string) {
	expiry := g.now().Add(g.cfg.SessionTTL).Unix()
	http.SetCookie(w, &http.Cookie{
		Name:     g.cfg.CookieName,
		Value:    encodeSessionCookie(user, expiry, g.cfg.SessionKey),
		Path:     g.cfg.PathPrefixes[0],
		MaxAge:   int(g.cfg.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// serveCodeEntry is the interactive flow: GET renders the code form (or
// redirects straight back when a session already exists), POST verifies the
// submitted code and issues the session cookie.
func (g *Gate) serveCodeEntry(w http.ResponseWriter, r *http.Request) {
	user := g.basicUser(r)
	if user == "" {
		g.deny(w)
		return
	}

	returnTo := g.sanitizeReturnTo(r.FormValue("returnTo"))

	switch r.Method {
	case http.MethodGet:
		if g.hasValidSession(r, user) {
			http.Redirect(w, r, returnTo, http.StatusFound)
			return
		}
		g.renderForm(w, returnTo, "")
	case http.MethodPost:
		code := r.FormValue("code")
		if code == "" {
			g.renderForm(w, returnTo, "Please enter a code.")
			return
		}
		if g.verifyCode(code) {
			g.issueSession(w, user)
			http.Redirect(w, r, returnTo, http.StatusFound)
			return
		}
		g.renderForm(w, returnTo, "Invalid code. Please try again.")
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// sanitizeReturnTo prevents open redirects: only guarded paths are allowed
// as targets, anything else lands on the first guarded prefix.
func (g *Gate) sanitizeReturnTo(rt string) string {
	if rt != "" && !strings.HasPrefix(rt, "//") && g.Protects(rt) {
		return rt
	}
	return g.cfg.PathPrefixes[0]
}

func originalURL(r *http.Request) string {
	if r.URL.RawQuery != "" {
		return r.URL.Path + "?" + r.URL.RawQuery
	}
	return r.URL.Path
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

var formTmpl = template.Must(template.New("code-entry").Parse(`<!doctype html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>Two-Factor Verification</title>
	<style>
		body{font-family:system-ui,sans-serif;margin:2rem}
		.card{max-width:420px;padding:1.2rem;border:1px solid #e5e7eb;border-radius:8px}
		h1{font-size:1.25rem;margin:0 0 .75rem}
		input{padding:.65rem .75rem;margin:.25rem 0;width:100%;box-sizing:border-box;border:1px solid #d1d5db;border-radius:6px}
		button{margin-top:.5rem;padding:.6rem .9rem;border:0;border-radius:6px;background:#111827;color:#fff;cursor:pointer}
		.hint{color:#6b7280;font-size:.9rem}
		.error{color:#b00020}
	</style>
</head>
<body>
	<div class="card">
		<h1>Two-Factor Verification</h1>
		<p class="hint">Enter the 6-digit code from your authenticator app.</p>
		{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
		<form method="post" action="{{.Action}}">
			<input type="text" name="code" pattern="\d{6}" inputmode="numeric" autocomplete="one-time-code" placeholder="123456" required>
			<input type="hidden" name="returnTo" value="{{.ReturnTo}}">
			<button type="submit">Verify</button>
		</form>
	</div>
</body>
</html>
`))

func (g *Gate) renderForm(w http.ResponseWriter, returnTo, errorMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = formTmpl.Execute(w, struct {
		Action   string
		ReturnTo string
		Error    string
	}{g.cfg.CodePath, returnTo, errorMsg})
}
