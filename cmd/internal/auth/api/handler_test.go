package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kite/cmd/identity"
	"kite/cmd/internal/auth"
	"kite/cmd/internal/metrics"
	"kite/cmd/internal/ratelimit"
	"kite/cmd/security/password"
	"kite/cmd/security/token"
)

type authFixture struct {
	srv     *httptest.Server
	ids     *identity.Service
	tokens  token.Service
	metrics *metrics.Metrics
}

func fastPassword() password.Config {
	pw := password.DefaultConfig()
	pw.Params = password.Argon2idParams{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	return pw
}

func newAuthFixture(t *testing.T, store identity.Store, cfg Config) *authFixture {
	t.Helper()

	ids, err := identity.NewService(store, fastPassword())
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	tokens, err := token.New(token.Config{Secret: strings.Repeat("k", 32), TTL: time.Hour})
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	m := metrics.New()
	limiter := ratelimit.NewMemoryLimiter()
	t.Cleanup(func() { _ = limiter.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := NewHandler(log, ids, tokens, cfg, WithLimiter(limiter), WithMetrics(m))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	gate := auth.NewGate(log, tokens, ids, auth.WithMetrics(m))
	h.Register(mux, gate.RequireAuth)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &authFixture{srv: srv, ids: ids, tokens: tokens, metrics: m}
}

func (f *authFixture) post(t *testing.T, path string, body any) (int, []byte, http.Header) {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	res, err := f.srv.Client().Post(f.srv.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer res.Body.Close()
	out, _ := io.ReadAll(res.Body)
	return res.StatusCode, out, res.Header
}

func (f *authFixture) get(t *testing.T, path, tok string) (int, []byte) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+path, nil)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	res, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer res.Body.Close()
	out, _ := io.ReadAll(res.Body)
	return res.StatusCode, out
}

func mustDecodeAuth(t *testing.T, body []byte) authResponse {
	t.Helper()
	var out authResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, body)
	}
	return out
}

func TestRegister_IssuesVerifiableToken(t *testing.T) {
	f := newAuthFixture(t, identity.NewMemoryStore(), DefaultConfig())

	status, body, _ := f.post(t, "/api/auth/register", registerRequest{Username: "alice", Email: "Alice@Example.com", Password: "correct horse battery"})
	if status != http.StatusCreated {
		t.Fatalf("status=%d body=%s", status, body)
	}
	got := mustDecodeAuth(t, body)
	if got.ID == "" || got.Username != "alice" || got.Email != "Alice@Example.com" || got.Token == "" {
		t.Fatalf("response=%+v", got)
	}
	if bytes.Contains(body, []byte("argon2")) || bytes.Contains(body, []byte("correct horse")) {
		t.Fatalf("password material leaked: %s", body)
	}

	claims, err := f.tokens.Verify(got.Token, time.Now())
	if err != nil || claims.SubjectID != got.ID {
		t.Fatalf("claims=%+v err=%v", claims, err)
	}

	status, me := f.get(t, "/api/auth/me", got.Token)
	if status != http.StatusOK || !strings.Contains(string(me), `"id":"`+got.ID+`"`) {
		t.Fatalf("me status=%d body=%s", status, me)
	}
}

func TestRegister_DuplicateEmailCreatesNothing(t *testing.T) {
	f := newAuthFixture(t, identity.NewMemoryStore(), DefaultConfig())

	if status, body, _ := f.post(t, "/api/auth/register", registerRequest{Username: "alice", Email: "alice@example.com", Password: "correct horse battery"}); status != http.StatusCreated {
		t.Fatalf("first status=%d body=%s", status, body)
	}

	status, body, _ := f.post(t, "/api/auth/register", registerRequest{Username: "alice2", Email: "ALICE@example.com", Password: "another fine password"})
	if status != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", status, body)
	}
	if !strings.Contains(string(body), `"code":"conflict"`) {
		t.Fatalf("body=%s", body)
	}

	all, err := f.ids.ListUsers(context.Background())
	if err != nil || len(all) != 1 {
		t.Fatalf("users=%d err=%v", len(all), err)
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newAuthFixture(t, identity.NewMemoryStore(), DefaultConfig())

	cases := []struct {
		name string
		body any
	}{
		{"bad username", registerRequest{Username: "a", Email: "a@example.com", Password: "correct horse battery"}},
		{"bad email", registerRequest{Username: "alice", Email: "nope", Password: "correct horse battery"}},
		{"short password", registerRequest{Username: "alice", Email: "a@example.com", Password: "short"}},
		{"unknown field", map[string]string{"username": "alice", "email": "a@example.com", "password": "correct horse battery", "role": "admin"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if status, body, _ := f.post(t, "/api/auth/register", tc.body); status != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", status, body)
			}
		})
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t, identity.NewMemoryStore(), DefaultConfig())
	if status, body, _ := f.post(t, "/api/auth/register", registerRequest{Username: "alice", Email: "alice@example.com", Password: "correct horse battery"}); status != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", status, body)
	}

	statusA, bodyA, _ := f.post(t, "/api/auth/login", loginRequest{Email: "nobody@example.com", Password: "correct horse battery"})
	statusB, bodyB, _ := f.post(t, "/api/auth/login", loginRequest{Email: "alice@example.com", Password: "wrong horse battery"})
	statusC, bodyC, _ := f.post(t, "/api/auth/login", loginRequest{})

	for _, s := range []int{statusA, statusB, statusC} {
		if s != http.StatusUnauthorized {
			t.Fatalf("statuses=%d,%d,%d", statusA, statusB, statusC)
		}
	}
	if !bytes.Equal(bodyA, bodyB) || !bytes.Equal(bodyB, bodyC) {
		t.Fatalf("bodies differ:\n%s\n%s\n%s", bodyA, bodyB, bodyC)
	}
	if want := `{"error":{"code":"invalid_credentials","message":"invalid credentials"}}`; strings.TrimSpace(string(bodyA)) != want {
		t.Fatalf("body=%s", bodyA)
	}

	status, body, _ := f.post(t, "/api/auth/login", loginRequest{Email: "ALICE@example.com", Password: "correct horse battery"})
	if status != http.StatusOK || mustDecodeAuth(t, body).Token == "" {
		t.Fatalf("status=%d body=%s", status, body)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoginMax = 2
	f := newAuthFixture(t, identity.NewMemoryStore(), cfg)

	for i := range 2 {
		if status, _, _ := f.post(t, "/api/auth/login", loginRequest{Email: "x@example.com", Password: "whatever it is"}); status != http.StatusUnauthorized {
			t.Fatalf("attempt %d status=%d", i, status)
		}
	}
	status, body, hdr := f.post(t, "/api/auth/login", loginRequest{Email: "x@example.com", Password: "whatever it is"})
	if status != http.StatusTooManyRequests || hdr.Get("Retry-After") == "" {
		t.Fatalf("status=%d retry-after=%q body=%s", status, hdr.Get("Retry-After"), body)
	}

	scrape := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(scrape.Body.String(), `kite_rate_limit_hits_total{route="auth.login"} 1`) {
		t.Fatalf("hit not counted:\n%s", scrape.Body)
	}

	// Register has its own budget.
	if status, body, _ := f.post(t, "/api/auth/register", registerRequest{Username: "alice", Email: "alice@example.com", Password: "correct horse battery"}); status != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", status, body)
	}
}

func TestMe_RequiresToken(t *testing.T) {
	f := newAuthFixture(t, identity.NewMemoryStore(), DefaultConfig())
	status, body := f.get(t, "/api/auth/me", "")
	if status != http.StatusUnauthorized || strings.TrimSpace(string(body)) != `{"error":{"code":"unauthenticated","message":"no token"}}` {
		t.Fatalf("status=%d body=%s", status, body)
	}
}
