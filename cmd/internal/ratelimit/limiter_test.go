package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newMemoryLimiter(clk.now)
	ctx := context.Background()

	for i := range 3 {
		if d := l.Allow(ctx, "k", 3, time.Minute); !d.Allowed {
			t.Fatalf("event %d rejected", i)
		}
		clk.t = clk.t.Add(10 * time.Second)
	}

	d := l.Allow(ctx, "k", 3, time.Minute)
	if d.Allowed {
		t.Fatalf("expected rejection")
	}
	if d.RetryAfter != 30*time.Second {
		t.Fatalf("retryAfter=%v want=30s", d.RetryAfter)
	}

	if d := l.Allow(ctx, "other", 3, time.Minute); !d.Allowed {
		t.Fatalf("keys must be independent")
	}

	clk.t = clk.t.Add(31 * time.Second)
	if d := l.Allow(ctx, "k", 3, time.Minute); !d.Allowed {
		t.Fatalf("expected oldest event to expire")
	}
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newMemoryLimiter(clk.now)
	l.Allow(context.Background(), "k", 1, time.Second)

	clk.t = clk.t.Add(2 * time.Second)
	l.sweep()
	if len(l.entries) != 0 {
		t.Fatalf("entries=%d want=0", len(l.entries))
	}
}

func TestMiddleware(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newMemoryLimiter(clk.now)

	hits := 0
	h := Middleware(l, Rule{Route: "login", Limit: 2, Window: time.Minute}, false, nil, func(string) { hits++ })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for range 2 {
		if rr := do("10.0.0.1:1234"); rr.Code != http.StatusNoContent {
			t.Fatalf("status=%d", rr.Code)
		}
	}
	rr := do("10.0.0.1:9999")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d want=429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After=%q", rr.Header().Get("Retry-After"))
	}
	if hits != 1 {
		t.Fatalf("hits=%d", hits)
	}
	if rr := do("10.0.0.2:1234"); rr.Code != http.StatusNoContent {
		t.Fatalf("other ip status=%d", rr.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := ClientIP(req, false); got != "192.0.2.1" {
		t.Fatalf("untrusted=%q", got)
	}
	if got := ClientIP(req, true); got != "203.0.113.9" {
		t.Fatalf("trusted=%q", got)
	}
}
