package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every JSON response except /health.
type envelope struct {
	Message     string `json:"message"`
	Body        any    `json:"body,omitempty"`
	ErrorDetail string `json:"errorDetail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string, body any) {
	writeJSON(w, status, envelope{Message: message, Body: body})
}

// writeError maps a service error to its status code and message.
func writeError(w http.ResponseWriter, err error) {
	writeErrorAs(w, err, "")
}

// writeErrorAs is writeError with a route-specific message for 400s.
func writeErrorAs(w http.ResponseWriter, err error, invalidMessage string) {
	status, message := classify(err)
	if status == http.StatusBadRequest && invalidMessage != "" {
		message = invalidMessage
	}
	writeJSON(w, status, envelope{Message: message})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorInvalidInput), errors.Is(err, common.ErrorInvalidField):
		return http.StatusBadRequest, "Invalid Email or Password"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, "User already exists!"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "User not found"
	default:
		return http.StatusInternalServerError, "Server Error"
	}
}

// decodeBody decodes a JSON object into a new T. An empty body yields nil
// without error; malformed JSON yields common.ErrorInvalidInput.
func decodeBody[T any](w http.ResponseWriter, r *http.Request) (*T, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var out T
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, common.ErrorInvalidInput
	}
	return &out, nil
}
