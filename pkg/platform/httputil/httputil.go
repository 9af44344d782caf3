package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "aeroledger/pkg/domain-errors"
)

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the uniform error envelope.
type errorBody struct {
	Error       string         `json:"error"`
	Description string         `json:"error_description,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// WriteError translates a coded error into the JSON error envelope. Internal
// failures keep their message out of the response; everything else surfaces
// the message and any structured details.
func WriteError(w http.ResponseWriter, err error) {
	code := pkgerrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	if code != pkgerrors.CodeInternal && code != pkgerrors.CodeTransactionAbort {
		var le *pkgerrors.LedgerError
		if errors.As(err, &le) {
			body.Description = le.Message
			body.Details = le.Details
		}
	}
	WriteJSON(w, pkgerrors.ToHTTPStatus(code), body)
}

// DecodeJSON decodes a request body into T, rejecting unknown garbage with a
// validation error already written to the response. The bool reports whether
// the handler should continue.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		WriteError(w, pkgerrors.Wrap(err, pkgerrors.CodeValidation, "malformed request body"))
		var zero T
		return zero, false
	}
	return v, true
}
