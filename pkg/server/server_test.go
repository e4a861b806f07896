package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		ServiceName:     "fern-test",
		Port:            0,
		ShutdownTimeout: time.Second,
		AllowOrigins:    []string{"*"},
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:    []string{echo.HeaderContentType},
		MetricsEnabled:  true,
	}
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestServerMiddleware(t *testing.T) {
	s := New(testConfig(), testLogger())
	s.Echo().GET("/panic", func(echo.Context) error { panic("boom") })

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	})

	t.Run("recover", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/identify", nil)
		req.Header.Set(echo.HeaderOrigin, "http://localhost:5173")
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServerMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = false
	s := New(cfg, testLogger())

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerStartStop(t *testing.T) {
	s := New(testConfig(), testLogger())
	s.Echo().GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	require.NoError(t, s.Start(context.Background()))

	_, port, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)

	resp, err := http.Get("http://127.0.0.1:" + port + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
