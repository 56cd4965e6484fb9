package http_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sagarc03/dams"
	damshttp "github.com/sagarc03/dams/http"
	"github.com/sagarc03/dams/session"
	"github.com/stretchr/testify/assert"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"not found", dams.ErrNotFound, http.StatusNotFound, `"error":"not_found"`},
		{"forbidden", dams.ErrForbidden, http.StatusForbidden, `"error":"forbidden"`},
		{"invalid input", dams.ErrInvalidInput, http.StatusBadRequest, `"error":"invalid_input"`},
		{"conflict", dams.ErrConflict, http.StatusConflict, `"error":"conflict"`},
		{"unauthorized", dams.ErrUnauthorized, http.StatusUnauthorized, `"error":"unauthorized"`},
		{"session not found", session.ErrSessionNotFound, http.StatusUnauthorized, `"error":"unauthorized"`},
		{"storage", fmt.Errorf("%w: %w", dams.ErrStorage, errors.New("s3 down")), http.StatusBadGateway, `"error":"storage_error"`},
		{"repository", fmt.Errorf("%w: boom", dams.ErrRepository), http.StatusInternalServerError, `"error":"internal_error"`},
		{"unexpected", errors.New("some unexpected error"), http.StatusInternalServerError, `"error":"internal_error"`},
		{"wrapped not found", errors.Join(errors.New("context"), dams.ErrNotFound), http.StatusNotFound, `"error":"not_found"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			damshttp.HandleError(rec, tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.Contains(t, rec.Body.String(), `"success":false`)
			assert.Contains(t, rec.Body.String(), fmt.Sprintf(`"status_code":%d`, tt.wantCode))
		})
	}
}

func TestHandleError_DoesNotLeakInternals(t *testing.T) {
	rec := httptest.NewRecorder()

	damshttp.HandleError(rec, fmt.Errorf("%w: dial tcp 10.0.0.7:5432", dams.ErrRepository))

	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestWriteError_Success(t *testing.T) {
	rec := httptest.NewRecorder()

	damshttp.WriteError(rec, http.StatusBadRequest, "bad_request", "Invalid request")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"error":"bad_request"`)
	assert.Contains(t, rec.Body.String(), `"message":"Invalid request"`)
}

func TestWriteJSON_Success(t *testing.T) {
	rec := httptest.NewRecorder()

	data := map[string]string{"key": "value"}
	err := damshttp.WriteJSON(rec, http.StatusOK, data)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"key":"value"`)
}

func TestWriteJSON_EncodingError(t *testing.T) {
	rec := httptest.NewRecorder()

	// Channels cannot be JSON encoded
	data := make(chan int)
	err := damshttp.WriteJSON(rec, http.StatusOK, data)

	assert.Error(t, err)
}
