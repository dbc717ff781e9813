package errs

import (
	"encoding/json"
	"errors"
	"net/http"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Write(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Code: code, Message: message})
}

// HandleError maps the taxonomy onto HTTP statuses. Unknown errors are
// reported as a generic 500 without leaking internals.
func HandleError(w http.ResponseWriter, err error) {
	var validation *ValidationError
	var notFound *NotFoundError
	var conflict *ConflictError
	switch {
	case errors.As(err, &validation):
		Write(w, http.StatusBadRequest, "invalid_input", validation.Message)
	case errors.As(err, &notFound):
		Write(w, http.StatusNotFound, "not_found", notFound.Message)
	case errors.As(err, &conflict):
		Write(w, http.StatusConflict, "conflict", conflict.Message)
	default:
		Write(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}
