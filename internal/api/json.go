package api

import (
	"encoding/json"
	"net/http"

	"github.com/markdingo/dnsbench/internal/apierr"
)

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the structured wire-level error shape of spec.md §7.
func writeError(w http.ResponseWriter, err *apierr.Error) {
	writeJSON(w, err.HTTPStatus(), err)
}

// decodeJSON decodes the request body into dst, returning an
// operator-input error on malformed JSON or on any field the target struct
// doesn't declare (spec.md §9's "reject unknown fields" design note, applied
// at every mutation endpoint).
func decodeJSON(r *http.Request, dst any) *apierr.Error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierr.Invalid("body", "could not decode JSON body: %s", err.Error())
	}
	return nil
}
