package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// DetailsResponse is the envelope every auth and chat endpoint answers with.
// The human readable text lives in Details so the web client can show it as is.
type DetailsResponse struct {
	Details string `json:"details"`
	Code    string `json:"code,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// RespondDetails sends a details message without a code.
func RespondDetails(w http.ResponseWriter, details string, statusCode int) {
	RespondJSON(w, DetailsResponse{Details: details}, statusCode)
}

// RespondErrorWithCode sends a details message with a machine-readable error code.
func RespondErrorWithCode(w http.ResponseWriter, details string, code string, statusCode int) {
	RespondJSON(w, DetailsResponse{Details: details, Code: code}, statusCode)
}
