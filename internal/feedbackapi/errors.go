package feedbackapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/misha7b/feedback-triage/internal/feedback"
)

// Error codes carried in the "error" field of failure payloads.
const (
	codeNotFound      = "not_found"
	codeInvalidStatus = "invalid_status"
	codeInvalidInput  = "invalid_input"
	codeInternal      = "internal"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, feedback.ErrInvalidInput)...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to a status code and error code. Anything
// unrecognised is logged and reported as internal without detail.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, feedback.ErrNotFound):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, feedback.ErrInvalidStatus):
		status, code = http.StatusBadRequest, codeInvalidStatus
	case errors.Is(err, feedback.ErrInvalidInput):
		status, code = http.StatusBadRequest, codeInvalidInput
	default:
		a.logger.Error(r.Context(), err, msg)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: codeInternal, Message: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: code, Message: err.Error()})
}

// decodeBody decodes a JSON request body into v. Malformed bodies are
// invalid input.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return invalidInput("request body exceeds %d bytes", maxErr.Limit)
		}
		return invalidInput("malformed JSON body (%v)", err)
	}
	return nil
}
