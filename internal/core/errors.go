package core

import (
	"errors"
	"fmt"
	"net/http"
)

// DecodeError is returned when image bytes cannot be decoded
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError is returned for malformed or out-of-range request parameters
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// InferenceError wraps any failure while running a classifier
type InferenceError struct {
	Model string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed on %s model: %v", e.Model, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// ModelUnavailableError is returned when a model failed to load or is not configured
type ModelUnavailableError struct {
	Model string
	Err   error
}

func (e *ModelUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s model is not available", e.Model)
	}
	return fmt.Sprintf("%s model is not available: %v", e.Model, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// ExplanationError wraps any failure while producing an explanation
type ExplanationError struct {
	Stage string
	Err   error
}

func (e *ExplanationError) Error() string {
	return fmt.Sprintf("explanation failed during %s: %v", e.Stage, e.Err)
}

func (e *ExplanationError) Unwrap() error { return e.Err }

// UpstreamChatError wraps a failure reported by the chat provider
type UpstreamChatError struct {
	Provider string
	Err      error
}

func (e *UpstreamChatError) Error() string {
	return fmt.Sprintf("%s chat request failed: %v", e.Provider, e.Err)
}

func (e *UpstreamChatError) Unwrap() error { return e.Err }

// StatusCode maps an error to the HTTP status reported to clients
func StatusCode(err error) int {
	var (
		decodeErr      *DecodeError
		validationErr  *ValidationError
		unavailableErr *ModelUnavailableError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &decodeErr), errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &unavailableErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
