package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/context"
)

type kindError struct{}

func (kindError) Error() string { return "kind error" }

func (kindError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusServiceUnavailable, "store unavailable").AddMetaValue("kind", "StoreUnavailable")
}

func newTestEcho() *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = Error(logger)
	e.Use(Context())
	e.Use(Logger(logger))
	return e
}

func TestContextSetsRequestID(t *testing.T) {
	e := newTestEcho()
	var seen string
	e.GET("/ping", func(c echo.Context) error {
		seen = context.GetRequestID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(echo.HeaderXRequestID, "abc-123")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))
	})
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
		wantKind    any
	}{
		{
			name:        "http error",
			err:         httperror.NewHTTPError(http.StatusNotFound, "contact 7 not found"),
			wantCode:    http.StatusNotFound,
			wantMessage: "contact 7 not found",
		},
		{
			name:        "domain error converts",
			err:         kindError{},
			wantCode:    http.StatusServiceUnavailable,
			wantMessage: "store unavailable",
			wantKind:    "StoreUnavailable",
		},
		{
			name:        "echo error",
			err:         echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"),
			wantCode:    http.StatusMethodNotAllowed,
			wantMessage: "nope",
		},
		{
			name:        "plain error is hidden",
			err:         errors.New("dial tcp: refused"),
			wantCode:    http.StatusInternalServerError,
			wantMessage: "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho()
			e.GET("/fail", func(c echo.Context) error { return tt.err })

			req := httptest.NewRequest(http.MethodGet, "/fail", nil)
			req.Header.Set(echo.HeaderXRequestID, "req-9")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.Equal(t, "req-9", body.RequestID)
			if tt.wantKind != nil {
				assert.Equal(t, tt.wantKind, body.Meta["kind"])
			}
		})
	}
}
