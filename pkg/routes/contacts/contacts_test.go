package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeService struct {
	lookedUp []int64
	list     models.ContactList
	err      error
	resets   int
}

func (f *fakeService) Lookup(_ context.Context, contactID int64) (models.IdentifyResponse, error) {
	f.lookedUp = append(f.lookedUp, contactID)
	if f.err != nil {
		return models.IdentifyResponse{}, f.err
	}
	return models.IdentifyResponse{Contact: models.ConsolidatedContact{
		PrimaryContactID:    1,
		Emails:              []string{"doc@hillvalley.edu"},
		PhoneNumbers:        []string{},
		SecondaryContactIDs: []int64{contactID},
	}}, nil
}

func (f *fakeService) List(context.Context) (models.ContactList, error) {
	return f.list, f.err
}

func (f *fakeService) Reset(context.Context) (models.MessageResponse, error) {
	f.resets++
	if f.err != nil {
		return models.MessageResponse{}, f.err
	}
	return models.MessageResponse{Message: "All contacts deleted, ID counter reset"}, nil
}

func newTestServer(svc Service) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	NewHandler(svc).Register(e.Group("/contacts"))
	return e
}

func do(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestList(t *testing.T) {
	email := "doc@hillvalley.edu"
	created := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	svc := &fakeService{list: models.ContactList{
		Contacts: []models.Contact{{
			ID:             1,
			Email:          &email,
			LinkPrecedence: models.LinkPrecedencePrimary,
			CreatedAt:      created,
			UpdatedAt:      created,
		}},
		Total: 1,
	}}

	rec := do(newTestServer(svc), http.MethodGet, "/contacts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["total"])
	contacts := body["contacts"].([]any)
	require.Len(t, contacts, 1)
	first := contacts[0].(map[string]any)
	assert.Equal(t, "doc@hillvalley.edu", first["email"])
	assert.Nil(t, first["phoneNumber"])
	assert.Nil(t, first["linkedId"])
	assert.Equal(t, "primary", first["linkPrecedence"])
}

func TestReset(t *testing.T) {
	svc := &fakeService{}
	rec := do(newTestServer(svc), http.MethodDelete, "/contacts")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"All contacts deleted, ID counter reset"}`, rec.Body.String())
	assert.Equal(t, 1, svc.resets)
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantLookup []int64
	}{
		{name: "found", path: "/contacts/23/identity", wantStatus: http.StatusOK, wantLookup: []int64{23}},
		{name: "not found", path: "/contacts/99/identity", err: identity.ErrContactNotFound, wantStatus: http.StatusNotFound, wantLookup: []int64{99}},
		{name: "store down", path: "/contacts/5/identity", err: identity.ErrStoreUnavailable, wantStatus: http.StatusServiceUnavailable, wantLookup: []int64{5}},
		{name: "zero id", path: "/contacts/0/identity", wantStatus: http.StatusBadRequest},
		{name: "negative id", path: "/contacts/-4/identity", wantStatus: http.StatusBadRequest},
		{name: "not a number", path: "/contacts/abc/identity", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			rec := do(newTestServer(svc), http.MethodGet, tt.path)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantLookup, svc.lookedUp)
		})
	}
}

func TestAdminErrorsAreInternal(t *testing.T) {
	svc := &fakeService{err: errors.New("disk full")}
	e := newTestServer(svc)

	rec := do(e, http.MethodGet, "/contacts")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")

	rec = do(e, http.MethodDelete, "/contacts")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
