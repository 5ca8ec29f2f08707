// Package httpx provides JSON response envelopes and error mapping.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the success payload wrapper. List and object payloads are
// carried under Data.
type Envelope struct {
	Status bool `json:"status"`
	Data   any  `json:"data,omitempty"`
}

// Failure is the error payload shape.
type Failure struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK sends a success envelope wrapping data.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Status: true, Data: data})
}

// Fail sends a failure envelope with the given message.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Failure{Status: false, Message: message})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
