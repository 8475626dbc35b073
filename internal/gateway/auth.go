package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/sarega/promptprim/internal/config"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "token" | "password"
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth holds the resolved auth configuration for the gateway.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// ResolveAuth resolves authentication credentials from config and environment.
// Precedence: config value → env variable → empty.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{
		Mode:     cfg.Mode,
		Token:    cfg.Token,
		Password: cfg.Password,
	}
	if auth.Token == "" {
		auth.Token = os.Getenv("PROMPTPRIM_GATEWAY_TOKEN")
	}
	if auth.Password == "" {
		auth.Password = os.Getenv("PROMPTPRIM_GATEWAY_PASSWORD")
	}

	if auth.Mode == "" {
		if auth.Password != "" {
			auth.Mode = "password"
		} else {
			auth.Mode = "token"
		}
	}
	return auth
}

// Authorize checks the provided ConnectAuth against the resolved server auth.
func Authorize(serverAuth ResolvedAuth, clientAuth *ConnectAuth) AuthResult {
	if clientAuth == nil {
		return AuthResult{OK: false, Reason: "no credentials provided"}
	}

	var want, got string
	switch serverAuth.Mode {
	case "token":
		want, got = serverAuth.Token, clientAuth.Token
	case "password":
		want, got = serverAuth.Password, clientAuth.Password
	default:
		return AuthResult{OK: false, Reason: "unknown auth mode: " + serverAuth.Mode}
	}

	switch {
	case want == "":
		return AuthResult{OK: false, Reason: "server " + serverAuth.Mode + " not configured"}
	case got == "":
		return AuthResult{OK: false, Reason: serverAuth.Mode + " required"}
	case !safeEqual(got, want):
		return AuthResult{OK: false, Reason: serverAuth.Mode + "_mismatch"}
	}
	return AuthResult{OK: true, Method: serverAuth.Mode}
}

// safeEqual performs a constant-time string comparison. It does not
// return early on a length mismatch.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

// authRateLimiter tracks failed handshakes per remote host.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{
		failures: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func remoteHost(remoteAddr string) string {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		return remoteAddr
	}
	return host
}

// prune drops failures older than the window. Callers hold mu.
func (l *authRateLimiter) prune(host string) []time.Time {
	cutoff := l.now().Add(-authRateWindow)
	recent := l.failures[host]
	kept := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, host)
		return nil
	}
	l.failures[host] = kept
	return kept
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(remoteHost(remoteAddr))) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := remoteHost(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	// Bound memory: evict the host with the oldest failure.
	if _, exists := l.failures[host]; !exists && len(l.failures) >= authRateMaxIPs {
		var oldestIP string
		var oldestTime time.Time
		for ip, times := range l.failures {
			if len(times) > 0 && (oldestIP == "" || times[0].Before(oldestTime)) {
				oldestIP = ip
				oldestTime = times[0]
			}
		}
		delete(l.failures, oldestIP)
	}
	l.failures[host] = append(l.failures[host], l.now())
}

// sweep prunes every host. The server calls it periodically.
func (l *authRateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for host := range l.failures {
		l.prune(host)
	}
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin
// headers. Requests without an Origin header (non-browser clients) pass;
// otherwise the Origin must be listed, or the list must contain "*".
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}
