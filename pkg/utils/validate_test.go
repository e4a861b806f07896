package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookup struct {
	ContactID int64 `param:"id" validate:"gt=0"`
}

type body struct {
	Name string `json:"name" validate:"required,max=5"`
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(lookup{ContactID: 1}))

	err := Validate(lookup{ContactID: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ContactID failed 'gt=0'")

	err = Validate(body{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name failed 'required'")
}

func TestValidateValue(t *testing.T) {
	assert.NoError(t, ValidateValue(int64(3), "gt=0"))
	err := ValidateValue(int64(-1), "gt=0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed 'gt=0'")
}

func TestBindRequest(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name     string
		body     string
		wantErr  bool
		wantName string
	}{
		{name: "valid", body: `{"name":"doc"}`, wantName: "doc"},
		{name: "too long", body: `{"name":"marty mcfly"}`, wantErr: true},
		{name: "malformed", body: `{"name":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			c := e.NewContext(req, httptest.NewRecorder())

			got, err := BindRequest[body](c)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, httperror.IsHTTPError(err))
				assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, got.Name)
		})
	}
}
