package common

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

// EncodeJSONResponse encodes a response body as JSON and writes it to the
// HTTP response writer with the given status code.
func EncodeJSONResponse(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("❌ Failed to encode JSON response: %v", err)
	}
}

// WriteServiceError writes the wire representation of err. Any plain error
// is first wrapped as an internal processing error.
func WriteServiceError(w http.ResponseWriter, err error) {
	se := AsServiceError(err)
	EncodeJSONResponse(w, se.Status, se.Envelope())
}

// WriteRateLimited writes the 429 envelope together with the Retry-After
// header required by the admission layer.
func WriteRateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	EncodeJSONResponse(w, http.StatusTooManyRequests, ErrorEnvelope{
		Success:           false,
		ErrorCode:         CodeRateLimitExceeded,
		Message:           "Too many slicing requests. Try again later.",
		RetryAfterSeconds: retryAfterSeconds,
	})
}
