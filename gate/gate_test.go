package gate

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func testConfig() Config {
	return Config{
		Enabled:      true,
		PathPrefixes: []string{"/admin"},
		CodePath:     "/admin/2fa",
		BasicUser:    "admin",
		BasicPass:    "letmein",
		SecondFactor: true,
		StaticCode:   "424242",
		SessionKey:   []byte("gate-test-session-key-0123456789"),
	}
}

func newTestGate(t *testing.T, cfg Config) *Gate {
	t.Helper()
	g, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func doRequest(g *Gate, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	g.Middleware(okHandler).ServeHTTP(rr, req)
	return rr
}

func TestDisabledGatePassesThrough(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	g := newTestGate(t, cfg)

	rr := doRequest(g, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestUnguardedPathPassesThrough(t *testing.T) {
	g := newTestGate(t, testConfig())

	rr := doRequest(g, httptest.NewRequest(http.MethodGet, "/api/things", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestMissingBasicCredentialDenied(t *testing.T) {
	g := newTestGate(t, testConfig())

	rr := doRequest(g, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("missing WWW-Authenticate challenge")
	}
}

func TestWrongBasicCredentialDenied(t *testing.T) {
	g := newTestGate(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.SetBasicAuth("admin", "wrong")
	if rr := doRequest(g, req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestBcryptBasicCredential(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	cfg := testConfig()
	cfg.BasicPass = string(hash)
	g := newTestGate(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.SetBasicAuth("admin", "letmein")
	req.Header.Set(CodeHeader, "424242")
	if rr := doRequest(g, req); rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.SetBasicAuth("admin", "wrong")
	req.Header.Set(CodeHeader, "424242")
	if rr := doRequest(g, req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestStaticCodeHeaderGrantsAccessAndSession(t *testing.T) {
	g := newTestGate(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.SetBasicAuth("admin", "letmein")
	req.Header.Set(CodeHeader, "424242")
	rr := doRequest(g, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	cookies := rr.Result().Cookies()
	var session *http.Cookie
	for _, c := range cookies {
		if c.Name == defaultCookieName {
			session = c
		}
	}
	if session == nil {
		t.Fatal("no session cookie issued")
	}
	if !session.HttpOnly || !session.Secure || session.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie attributes wrong: %+v", session)
	}
	if session.Path != "/admin" {
		t.Fatalf("cookie path = %q, want /admin", session.Path)
	}

	// The cookie alone (plus the base credential) now suffices.
	req = httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.SetBasicAuth("admin", "letmein")
	req.AddCookie(session)
	if rr := doRequest(g, req); rr.Code != http.StatusOK {
		t.Fatalf("cookie request status = %d, want 200", rr.Code)
	}
}

func TestWrongCodeDenied(t *testing.T) {
	g := newTestGate(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.SetBasicAuth("admin", "letmein")
	req.Header.Set(CodeHeader, "000000")
	if rr := doRequest(g, req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestFailClosedWithoutSecondFactorConfig(t *testing.T) {
	cfg := testConfig()
	cfg.TOTPSecret = ""
	cfg.StaticCode = ""
	g := newTestGate(t, cfg)

	// Correct base credential and an arbitrary code: still denied.
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.SetBasicAuth("admin", "letmein")
	req.Header.Set(CodeHeader, "424242")
	if rr := doRequest(g, req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 (fail closed)", rr.Code)
	}
}

func TestTOTPCodeAccepted(t *testing.T) {
	cfg := testConfig()
	cfg.TOTPSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	cfg.StaticCode = ""
	g := newTestGate(t, cfg)
	g.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	code := hotpCode(g.totp.secret, 1_700_000_000/totpPeriod)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.SetBasicAuth("admin", "letmein")
	req.Header.Set(CodeHeader, code)
	if rr := doRequest(g, req); rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestTOTPSkewWindow(t *testing.T) {
	cfg := testConfig()
	cfg.TOTPSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	cfg.StaticCode = ""
	g := newTestGate(t, cfg)

	base := int64(1_700_000_000)
	g.now = func() time.Time { return time.Unix(base, 0) }

	// One step behind and one ahead are accepted, two steps behind is not.
	prev := hotpCode(g.totp.secret, base/totpPeriod-1)
	next := hotpCode(g.totp.secret, base/totpPeriod+1)
	stale := hotpCode(g.totp.secret, base/totpPeriod-2)

	if !g.totp.Verify(prev, g.now()) {
		t.Fatal("previous-step code rejected")
	}
	if !g.totp.Verify(next, g.now()) {
		t.Fatal("next-step code rejected")
	}
	if g.totp.Verify(stale, g.now()) {
		t.Fatal("stale code accepted")
	}
}

func TestBrowserRedirectedToCodeEntry(t *testing.T) {
	g := newTestGate(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/admin/users?page=2", nil)
	req.SetBasicAuth("admin", "letmein")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rr := doRequest(g, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rr.Code)
	}
	loc, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if loc.Path != "/admin/2fa" {
		t.Fatalf("redirect path = %q", loc.Path)
	}
	if rt := loc.Query().Get("returnTo"); rt != "/admin/users?page=2" {
		t.Fatalf("returnTo = %q", rt)
	}
}

func TestMachineCallerGetsRequiredHeader(t *testing.T) {
	g := newTestGate(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.SetBasicAuth("admin", "letmein")
	rr := doRequest(g, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if rr.Header().Get(RequiredHeader) != "true" {
		t.Fatalf("%s header missing", RequiredHeader)
	}
}

func TestCodeEntryFormFlow(t *testing.T) {
	g := newTestGate(t, testConfig())

	// GET renders the form.
	req := httptest.NewRequest(http.MethodGet, "/admin/2fa?returnTo=%2Fadmin%2Fusers", nil)
	req.SetBasicAuth("admin", "letmein")
	rr := doRequest(g, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `name="code"`) {
		t.Fatal("form missing code input")
	}

	// POST with the right code redirects back and sets the cookie.
	form := url.Values{"code": {"424242"}, "returnTo": {"/admin/users"}}
	req = httptest.NewRequest(http.MethodPost, "/admin/2fa", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("admin", "letmein")
	rr = doRequest(g, req)
	if rr.Code != http.StatusFound {
		t.Fatalf("POST status = %d, want 302", rr.Code)
	}
	if rr.Header().Get("Location") != "/admin/users" {
		t.Fatalf("Location = %q", rr.Header().Get("Location"))
	}
	if len(rr.Result().Cookies()) == 0 {
		t.Fatal("no session cookie issued")
	}

	// POST with a wrong code re-renders the form.
	form.Set("code", "111111")
	req = httptest.NewRequest(http.MethodPost, "/admin/2fa", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("admin", "letmein")
	rr = doRequest(g, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("wrong-code status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid code") {
		t.Fatal("missing error message")
	}
}

func TestReturnToSanitized(t *testing.T) {
	g := newTestGate(t, testConfig())

	cases := []struct {
		in, want string
	}{
		{"/admin/users", "/admin/users"},
		{"https://evil.example/", "/admin"},
		{"//evil.example/", "/admin"},
		{"/other/path", "/admin"},
		{"", "/admin"},
	}
	for _, tc := range cases {
		if got := g.sanitizeReturnTo(tc.in); got != tc.want {
			t.Fatalf("sanitizeReturnTo(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSessionCookieExpiryAndTamper(t *testing.T) {
	key := []byte("gate-test-session-key-0123456789")
	now := time.Unix(1_700_000_000, 0)

	value := encodeSessionCookie("admin", now.Add(time.Minute).Unix(), key)
	if !verifySessionCookie(value, "admin", key, now) {
		t.Fatal("fresh cookie rejected")
	}
	if verifySessionCookie(value, "admin", key, now.Add(2*time.Minute)) {
		t.Fatal("expired cookie accepted")
	}
	if verifySessionCookie(value, "other", key, now) {
		t.Fatal("cookie valid for wrong user")
	}
	if verifySessionCookie(value+"0", "admin", key, now) {
		t.Fatal("tampered signature accepted")
	}

	// Extending the expiry without re-signing must fail.
	parts := strings.SplitN(value, ".", 2)
	forged := "9999999999." + parts[1]
	if verifySessionCookie(forged, "admin", key, now) {
		t.Fatal("forged expiry accepted")
	}
}
