package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Wire error codes shared between the HTTP layer and the pipeline.
const (
	CodeInvalidLayerHeight        = "INVALID_LAYER_HEIGHT"
	CodeInvalidLayerHeightForTech = "INVALID_LAYER_HEIGHT_FOR_TECHNOLOGY"
	CodeModelExceedsBuildVolume   = "MODEL_EXCEEDS_BUILD_VOLUME"
	CodeInvalidSourceGeometry     = "INVALID_SOURCE_GEOMETRY"
	CodeRateLimitExceeded         = "RATE_LIMIT_EXCEEDED"
	CodeQueueFull                 = "QUEUE_FULL"
	CodeQueueTimeout              = "QUEUE_TIMEOUT"
	CodeInternalProcessingError   = "INTERNAL_PROCESSING_ERROR"
)

// ServiceError is an error that carries its wire representation: the HTTP
// status and the errorCode of the response envelope. Handlers convert any
// non-ServiceError into an INTERNAL_PROCESSING_ERROR before responding.
type ServiceError struct {
	Code    string
	Status  int
	Message string
	// Details carries internals (stderr, command lines) for the rolling
	// error log. Never serialized to clients.
	Details string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// ErrorEnvelope is the JSON error body written for every failed request.
type ErrorEnvelope struct {
	Success           bool   `json:"success"`
	ErrorCode         string `json:"errorCode"`
	Message           string `json:"message,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// Envelope returns the client-facing body for the error. Internal errors
// are masked with a generic message so no internals leak.
func (e *ServiceError) Envelope() ErrorEnvelope {
	msg := e.Message
	if e.Code == CodeInternalProcessingError {
		msg = "An internal error occurred while processing the request."
	}
	return ErrorEnvelope{Success: false, ErrorCode: e.Code, Message: msg}
}

// IsClientError reports whether the error is caused by the request rather
// than the service. Client errors are never written to the rolling log.
func (e *ServiceError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// NewErrBadRequest builds a 400 with the given code from the taxonomy.
func NewErrBadRequest(code, message string) *ServiceError {
	return &ServiceError{Code: code, Status: http.StatusBadRequest, Message: message}
}

// NewErrNotFound builds a plain 404 for admin resources.
func NewErrNotFound(message string) *ServiceError {
	return &ServiceError{Code: "NOT_FOUND", Status: http.StatusNotFound, Message: message}
}

// NewErrConflict builds a plain 409 for admin resources.
func NewErrConflict(message string) *ServiceError {
	return &ServiceError{Code: "CONFLICT", Status: http.StatusConflict, Message: message}
}

// NewErrUnavailable builds a 503 with the given admission code.
func NewErrUnavailable(code, message string) *ServiceError {
	return &ServiceError{Code: code, Status: http.StatusServiceUnavailable, Message: message}
}

// NewInternalServerError builds a 500 whose message is logged but never
// shown to the client.
func NewInternalServerError(message string) *ServiceError {
	return &ServiceError{Code: CodeInternalProcessingError, Status: http.StatusInternalServerError, Message: message}
}

// NewInternalServerErrorf is NewInternalServerError with formatting.
func NewInternalServerErrorf(format string, args ...any) *ServiceError {
	return NewInternalServerError(fmt.Sprintf(format, args...))
}

// AsServiceError extracts a *ServiceError from err, wrapping anything else
// as an internal processing error.
func AsServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return &ServiceError{
		Code:    CodeInternalProcessingError,
		Status:  http.StatusInternalServerError,
		Message: err.Error(),
	}
}
