package identity

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		sentinel   error
		wantStatus int
	}{
		{name: "missing identifier", err: ErrMissingIdentifier, sentinel: ErrMissingIdentifier, wantStatus: http.StatusBadRequest},
		{name: "store unavailable", err: storeUnavailable("find", errors.New("timeout")), sentinel: ErrStoreUnavailable, wantStatus: http.StatusServiceUnavailable},
		{name: "linkage corruption", err: linkageCorruption("contact %d is broken", 4), sentinel: ErrLinkageCorruption, wantStatus: http.StatusInternalServerError},
		{name: "not found", err: &Error{Kind: KindContactNotFound, Message: "contact 3 not found"}, sentinel: ErrContactNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.err.Kind, KindOf(wrapped))
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode())

			httpErr := tt.err.ToHTTPError()
			assert.Equal(t, tt.wantStatus, httperror.GetStatusCode(httpErr))
			assert.Equal(t, string(tt.err.Kind), httpErr.Meta["kind"])
		})
	}
}

func TestStoreUnavailableKeepsExistingKind(t *testing.T) {
	corrupt := linkageCorruption("contact %d is broken", 4)
	err := storeUnavailable("identify", fmt.Errorf("tx: %w", corrupt))

	assert.Same(t, corrupt, err)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}

func TestStoreUnavailableHidesCause(t *testing.T) {
	err := storeUnavailable("find matching contacts", errors.New("password authentication failed"))

	assert.Contains(t, err.Error(), "password authentication failed")
	assert.NotContains(t, err.ToHTTPError().Error(), "password")
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
