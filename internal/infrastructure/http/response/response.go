package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mrops-br/catalog-service/internal/domain"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Empty sends a status code with no body
func Empty(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

// Error sends an error response. Validation errors carry their field map.
func Error(w http.ResponseWriter, status int, err error) {
	errorType := "error"
	switch status {
	case http.StatusNotFound:
		errorType = "not_found"
	case http.StatusBadRequest:
		errorType = "bad_request"
	case http.StatusUnprocessableEntity:
		errorType = "unprocessable_entity"
	case http.StatusInternalServerError:
		errorType = "internal_server_error"
	}

	body := ErrorResponse{
		Error:   errorType,
		Message: err.Error(),
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}

	JSON(w, status, body)
}
