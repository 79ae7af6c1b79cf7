package server

import (
	"encoding/json"
	"net/http"

	"github.com/aigateway/gateway/classify"
)

// errorEnvelope is the JSON error response body (spec §6.3):
// {name, message, service, code}. Name is a stable category label
// (distinct from code) that groups errors by their broad shape —
// "ProviderError" for a classified upstream failure, "ValidationError"
// for a malformed request, "InternalError" for anything unclassified —
// independent of the granular classify.Code carried in "code".
type errorEnvelope struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Service string `json:"service,omitempty"`
	Code    string `json:"code,omitempty"`
}

// writeError writes a JSON error envelope with the given status.
func writeError(w http.ResponseWriter, status int, name, message, service, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Name: name, Message: message, Service: service, Code: code})
}

// writeJSON writes v as a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeClassifiedError maps err to an HTTP status and error envelope. A
// *classify.Error maps via spec §6.3's table; anything else is an
// internal error (spec §7: "anything else yields 500").
func writeClassifiedError(w http.ResponseWriter, err error) {
	if ce, ok := err.(*classify.Error); ok {
		writeError(w, classify.HTTPStatus(ce.Code), "ProviderError", ce.Message, ce.Provider, string(ce.Code))
		return
	}
	writeError(w, http.StatusInternalServerError, "InternalError", "Internal server error", "", "")
}
