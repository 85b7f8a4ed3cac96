package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/agentation/broker/internal/apperr"
)

// writeError maps an apperr.Kind to the wire-level signal the domain
// specifies: Validation->400, NotFound->404, Unauthorized->401,
// Transient->500. Fatal errors are not expected to reach HTTP handlers;
// they terminate the process before a response could be written.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindTransient, apperr.KindFatal:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func invalidRequest(reason string) error {
	return apperr.Validation(reason)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apperr.Validationf("invalid JSON body: %v", err)
	}
	return nil
}
