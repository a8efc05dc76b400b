package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure taxonomy for calls to the task server.
var (
	// ErrNetworkUnavailable means the request never reached the server or
	// no response came back.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrServerRejected means the server answered with a non-success status.
	ErrServerRejected = errors.New("server rejected request")

	// ErrMalformedResponse means a success status carried an unusable body.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrValidationFailed means a client-side check failed and nothing was sent.
	ErrValidationFailed = errors.New("validation failed")
)

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Message string // the body's "error" field, or the status text
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Is makes errors.Is(err, ErrServerRejected) hold for every APIError.
func (e *APIError) Is(target error) bool { return target == ErrServerRejected }

// Kind classifies an error into the failure taxonomy.
type Kind int

const (
	KindNone Kind = iota
	KindNetwork
	KindRejected
	KindMalformed
	KindValidation
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network_unavailable"
	case KindRejected:
		return "server_rejected"
	case KindMalformed:
		return "malformed_response"
	case KindValidation:
		return "validation_failed"
	default:
		return "unknown"
	}
}

// Classify maps err onto its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidationFailed):
		return KindValidation
	case errors.Is(err, ErrNetworkUnavailable):
		return KindNetwork
	case errors.Is(err, ErrServerRejected):
		return KindRejected
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformed
	default:
		return KindUnknown
	}
}

// Message returns the server's rejection message when err is an APIError,
// and fallback otherwise.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func statusMessage(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unexpected status"
}
