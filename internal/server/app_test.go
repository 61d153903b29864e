package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/donorhub/internal/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, MaxBodySize: 64},
		Log:    config.LogConfig{Level: "info", Format: "text"},
		Auth: config.AuthConfig{
			JWTSecret:       "0123456789abcdef0123456789abcdef",
			TokenTTL:        time.Hour,
			BcryptCost:      bcrypt.MinCost,
			RateLimit:       true,
			RevokeOnLogout:  true,
			VerificationTTL: time.Hour,
			ResetTTL:        15 * time.Minute,
		},
		Dynamo:  config.DynamoConfig{Memory: true},
		Site:    config.SiteConfig{URL: "http://localhost:3000", OrgName: "Test Org"},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serveJSON(t *testing.T, e *echo.Echo, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestNewAppMemoryStore(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(), quietLogger())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	rec := serveJSON(t, app.Echo, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = serveJSON(t, app.Echo, http.MethodPost, "/auth/register",
		`{"email":"ann@example.com","password":"correct-horse","name":"Ann"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	rec = serveJSON(t, app.Echo, http.MethodGet, "/auth/me", "", echo.HeaderAuthorization, "Bearer "+body.Token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serveJSON(t, app.Echo, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "donorhub_register_success_total 1")
}

func TestNewAppPaymentsDisabled(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(), quietLogger())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	rec := serveJSON(t, app.Echo, http.MethodPost, "/stripe/create-checkout-session", `{"amount":10}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewAppBodyLimit(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(), quietLogger())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	big := `{"email":"` + strings.Repeat("a", 70*1024) + `"}`
	rec := serveJSON(t, app.Echo, http.MethodPost, "/auth/login", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNewAppWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis.URL = "redis://" + mr.Addr()

	app, err := NewApp(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	rec := serveJSON(t, app.Echo, http.MethodPost, "/auth/register",
		`{"email":"ann@example.com","password":"correct-horse","name":"Ann"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	auth := []string{echo.HeaderAuthorization, "Bearer " + body.Token}
	rec = serveJSON(t, app.Echo, http.MethodPost, "/auth/logout", "", auth...)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serveJSON(t, app.Echo, http.MethodGet, "/auth/me", "", auth...)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewAppRedisErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.URL = "not-a-url"
	_, err := NewApp(context.Background(), cfg, quietLogger())
	assert.ErrorContains(t, err, "parse redis url")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	cfg.Redis.URL = "redis://" + addr
	_, err = NewApp(context.Background(), cfg, quietLogger())
	assert.ErrorContains(t, err, "ping redis")
}

func TestEngineConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.AuditLog = false
	cfg.Auth.ResetTTL = 30 * time.Minute

	out := engineConfig(cfg)
	assert.Equal(t, []byte(cfg.Auth.JWTSecret), out.Session.Secret)
	assert.Equal(t, time.Hour, out.Session.TTL)
	assert.Equal(t, bcrypt.MinCost, out.Password.Cost)
	assert.Equal(t, 30*time.Minute, out.PasswordReset.TTL)
	assert.False(t, out.Audit.Enabled)
	assert.True(t, out.RateLimit.Enabled)
	assert.Equal(t, 3, out.Lockout.Threshold)
	assert.NoError(t, out.Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "v", record["k"])

	buf.Reset()
	newLogger(&buf, "debug", "text").Debug("tinted")
	assert.Contains(t, buf.String(), "tinted")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("anything"))
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	app, err := NewApp(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, app, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestNewAppExportsOTelMetrics(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	cfg := testConfig()
	cfg.Metrics.OTel = true
	var out bytes.Buffer
	app, err := newApp(context.Background(), cfg, quietLogger(), &out)
	require.NoError(t, err)
	assert.Same(t, app.meters, otel.GetMeterProvider())

	rec := serveJSON(t, app.Echo, http.MethodPost, "/auth/register",
		`{"email":"otel@example.com","password":"correct-horse","name":"Otto"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	app.Close()

	var exported struct {
		ScopeMetrics []struct {
			Metrics []struct {
				Name string
				Data struct {
					DataPoints []struct {
						Value float64
					}
				}
			}
		}
	}
	require.NoError(t, json.NewDecoder(&out).Decode(&exported), out.String())

	var found bool
	for _, sm := range exported.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "donorhub_register_success_total" {
				continue
			}
			require.Len(t, m.Data.DataPoints, 1)
			assert.EqualValues(t, 1, m.Data.DataPoints[0].Value)
			found = true
		}
	}
	assert.True(t, found, "register counter not exported")
}

func TestNewMeterProviderFlush(t *testing.T) {
	var out bytes.Buffer
	mp, err := newMeterProvider(&out, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	counter, err := mp.Meter("test").Int64Counter("ticks")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, mp.ForceFlush(context.Background()))
	assert.Contains(t, out.String(), `"Name":"ticks"`)
}

func TestIPExtractor(t *testing.T) {
	_, proxies, err := net.ParseCIDR("10.0.0.0/8")
	require.NoError(t, err)

	tests := []struct {
		name    string
		trusted []*net.IPNet
		remote  string
		xff     string
		want    string
	}{
		{name: "direct ignores header", remote: "203.0.113.5:4000", xff: "198.51.100.1", want: "203.0.113.5"},
		{name: "trusted proxy", trusted: []*net.IPNet{proxies}, remote: "10.1.2.3:4000", xff: "198.51.100.1", want: "198.51.100.1"},
		{name: "untrusted peer", trusted: []*net.IPNet{proxies}, remote: "203.0.113.5:4000", xff: "198.51.100.1", want: "203.0.113.5"},
		{name: "private peer not trusted", trusted: []*net.IPNet{proxies}, remote: "192.168.1.1:4000", xff: "198.51.100.1", want: "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set(echo.HeaderXForwardedFor, tt.xff)
			assert.Equal(t, tt.want, ipExtractor(tt.trusted)(req))
		})
	}
}

func TestNewAppRejectsBadTrustedProxy(t *testing.T) {
	cfg := testConfig()
	cfg.Server.TrustedProxies = []string{"not-a-cidr"}
	_, err := NewApp(context.Background(), cfg, quietLogger())
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
