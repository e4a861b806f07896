package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// httpErrorConverter is implemented by domain errors that know their HTTP shape.
type httpErrorConverter interface {
	ToHTTPError() *httperror.HTTPError
}

func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			return
		}

		var converter httpErrorConverter
		if errors.As(err, &converter) {
			err = converter.ToHTTPError()
		}

		code := http.StatusInternalServerError
		message := "Internal Server Error"
		meta := map[string]any{}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(code)
			}
		}

		if httperror.IsHTTPError(err) {
			httpErr := httperror.ToHTTPError(err)
			code = httperror.GetStatusCode(err)
			message = httpErr.Error()
			if httpErr.Meta != nil {
				meta = httpErr.Meta
			}
		}

		if code >= http.StatusInternalServerError {
			logger.WithContext(ctx).WithError(err).Error("api is returning an error")
		} else {
			logger.WithContext(ctx).WithError(err).Debug("api is returning a client error")
		}

		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: context.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}
