package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/session"
)

// Response is the envelope shared by every JSON response. Endpoint payloads
// embed it so their fields sit next to the envelope fields.
type Response struct {
	Message    string `json:"message"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
}

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Response
	Error string `json:"error"`
}

func success(code int, message string) Response {
	return Response{Message: message, Success: true, StatusCode: code}
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	if err := WriteJSON(w, code, ErrorResponse{
		Response: Response{Message: message, Success: false, StatusCode: code},
		Error:    errCode,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes appropriate error response based on error type
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dams.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "Asset not found")
	case errors.Is(err, dams.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "You do not have permission to perform this action")
	case errors.Is(err, dams.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid request")
	case errors.Is(err, dams.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", "Asset was modified by another request, please retry")
	case errors.Is(err, dams.ErrUnauthorized), errors.Is(err, session.ErrSessionNotFound):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized: Please log in to access this resource")
	case errors.Is(err, dams.ErrStorage):
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusBadGateway, "storage_error", "Blob storage is unavailable")
	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
