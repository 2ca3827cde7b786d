package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Rule bounds one route.
type Rule struct {
	Route  string
	Limit  int
	Window time.Duration
}

// RejectFunc writes the 429 response body.
type RejectFunc func(w http.ResponseWriter, r *http.Request)

// HitFunc observes a rejected request (metrics).
type HitFunc func(route string)

// Middleware limits next per client IP under rule. A nil limiter disables it.
func Middleware(l Limiter, rule Rule, trustProxy bool, reject RejectFunc, onHit HitFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || rule.Limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rule.Route + ":" + ClientIP(r, trustProxy)
			d := l.Allow(r.Context(), key, rule.Limit, rule.Window)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			if onHit != nil {
				onHit(rule.Route)
			}
			secs := int64(math.Ceil(d.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
			if reject != nil {
				reject(w, r)
				return
			}
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
}

// ClientIP returns the caller address. Forwarding headers count only when trustProxy is set.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, p := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
				return ip.String()
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return "unknown"
	}
	return host
}
