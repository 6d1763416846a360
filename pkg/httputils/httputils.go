package httputils

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/linktally/linktally/internal/constants"
	"go.uber.org/zap"
)

const CorrelationIDHeader = "X-Correlation-Id"

// ErrorResponse is the body returned on every user-facing failure. Clients
// rely on the "message" field being present.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

// GetCorrelationID extracts the correlation ID from the request header.
// If not present, generates a new UUID v4.
func GetCorrelationID(r *http.Request) string {
	correlationID := r.Header.Get(CorrelationIDHeader)
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return correlationID
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode json response", zap.Error(err))
	}
}

// WriteAPIError writes a structured error response for a predefined APIError,
// echoing the request's correlation ID.
func WriteAPIError(w http.ResponseWriter, r *http.Request, apiErr constants.APIError) {
	w.Header().Set(CorrelationIDHeader, GetCorrelationID(r))
	WriteJSON(w, apiErr.Status, ErrorResponse{
		Error:   apiErr.Code,
		Message: apiErr.Message,
	})
}
