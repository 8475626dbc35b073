package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sarega/promptprim/internal/config"
)

func TestSafeEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"secret", "secret", true},
		{"secret", "wrong", false},
		{"short", "longer-string", false},
		{"", "", true},
		{"secret", "", false},
		{"", "secret", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeEqual(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestResolveAuth_FromConfig(t *testing.T) {
	auth := ResolveAuth(config.GatewayAuth{Mode: "token", Token: "config-token"})
	assert.Equal(t, "token", auth.Mode)
	assert.Equal(t, "config-token", auth.Token)

	auth = ResolveAuth(config.GatewayAuth{Mode: "password", Password: "config-pass"})
	assert.Equal(t, "password", auth.Mode)
	assert.Equal(t, "config-pass", auth.Password)
}

func TestResolveAuth_DefaultMode(t *testing.T) {
	t.Setenv("PROMPTPRIM_GATEWAY_PASSWORD", "")
	assert.Equal(t, "token", ResolveAuth(config.GatewayAuth{Token: "my-token"}).Mode)
	assert.Equal(t, "password", ResolveAuth(config.GatewayAuth{Password: "my-pass"}).Mode)
}

func TestResolveAuth_FromEnv(t *testing.T) {
	t.Setenv("PROMPTPRIM_GATEWAY_TOKEN", "env-token")
	t.Setenv("PROMPTPRIM_GATEWAY_PASSWORD", "env-pass")

	auth := ResolveAuth(config.GatewayAuth{Mode: "token"})
	assert.Equal(t, "env-token", auth.Token)
	assert.Equal(t, "env-pass", auth.Password)

	auth = ResolveAuth(config.GatewayAuth{Mode: "token", Token: "config-token"})
	assert.Equal(t, "config-token", auth.Token)
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name   string
		server ResolvedAuth
		client *ConnectAuth
		ok     bool
		reason string
	}{
		{"token ok", ResolvedAuth{Mode: "token", Token: "secret"}, &ConnectAuth{Token: "secret"}, true, ""},
		{"token mismatch", ResolvedAuth{Mode: "token", Token: "secret"}, &ConnectAuth{Token: "wrong"}, false, "token_mismatch"},
		{"token empty", ResolvedAuth{Mode: "token", Token: "secret"}, &ConnectAuth{}, false, "token required"},
		{"server token unset", ResolvedAuth{Mode: "token"}, &ConnectAuth{Token: "x"}, false, "server token not configured"},
		{"password ok", ResolvedAuth{Mode: "password", Password: "pw"}, &ConnectAuth{Password: "pw"}, true, ""},
		{"password mismatch", ResolvedAuth{Mode: "password", Password: "pw"}, &ConnectAuth{Password: "no"}, false, "password_mismatch"},
		{"password only token sent", ResolvedAuth{Mode: "password", Password: "pw"}, &ConnectAuth{Token: "pw"}, false, "password required"},
		{"nil credentials", ResolvedAuth{Mode: "token", Token: "secret"}, nil, false, "no credentials provided"},
		{"unknown mode", ResolvedAuth{Mode: "oauth"}, &ConnectAuth{Token: "x"}, false, "unknown auth mode: oauth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Authorize(tt.server, tt.client)
			assert.Equal(t, tt.ok, res.OK)
			assert.Equal(t, tt.reason, res.Reason)
			if tt.ok {
				assert.Equal(t, tt.server.Mode, res.Method)
			}
		})
	}
}

func TestAuthRateLimiter(t *testing.T) {
	limiter := newAuthRateLimiter()
	assert.True(t, limiter.allow("192.168.1.1:12345"))

	for i := 0; i < authRateMaxFails-1; i++ {
		limiter.recordFailure("192.168.1.1:12345")
	}
	assert.True(t, limiter.allow("192.168.1.1:999"))

	limiter.recordFailure("192.168.1.1:12345")
	assert.False(t, limiter.allow("192.168.1.1:999"), "port is ignored")
	assert.True(t, limiter.allow("192.168.1.2:12345"))
}

func TestAuthRateLimiter_IPWithoutPort(t *testing.T) {
	limiter := newAuthRateLimiter()
	for i := 0; i < authRateMaxFails; i++ {
		limiter.recordFailure("192.168.1.1")
	}
	assert.False(t, limiter.allow("192.168.1.1"))
}

func TestAuthRateLimiter_WindowExpires(t *testing.T) {
	now := time.Now()
	limiter := newAuthRateLimiter()
	limiter.now = func() time.Time { return now }

	for i := 0; i < authRateMaxFails; i++ {
		limiter.recordFailure("10.0.0.1:1")
	}
	assert.False(t, limiter.allow("10.0.0.1:1"))

	now = now.Add(authRateWindow + time.Second)
	limiter.sweep()
	assert.True(t, limiter.allow("10.0.0.1:1"))
	assert.Empty(t, limiter.failures)
}

func originRequest(origin string) *http.Request {
	req := httptest.NewRequest("GET", "/ws", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestCheckWebSocketOrigin(t *testing.T) {
	assert.True(t, checkWebSocketOrigin(nil)(originRequest("")))
	assert.False(t, checkWebSocketOrigin(nil)(originRequest("http://evil.com")))
	assert.True(t, checkWebSocketOrigin([]string{"*"})(originRequest("http://anything.com")))

	check := checkWebSocketOrigin([]string{"http://one.com", "http://two.com"})
	assert.True(t, check(originRequest("http://one.com")))
	assert.True(t, check(originRequest("http://two.com")))
	assert.False(t, check(originRequest("http://three.com")))
}
