package detection

import (
	"errors"
	"fmt"
)

var (
	// ErrRetrieval is returned when source bytes cannot be obtained from the transport or object store
	ErrRetrieval = errors.New("retrieval failed")

	// ErrStorage is returned when bytes cannot be written to the object store
	ErrStorage = errors.New("storage failed")

	// ErrCredentialsMissing marks object store failures caused by absent credentials
	ErrCredentialsMissing = errors.New("object store credentials not found")

	// ErrInferenceTransport is returned when the inference endpoint cannot be reached or answers non-2xx
	ErrInferenceTransport = errors.New("inference request failed")

	// ErrPersistence is returned when the result store rejects a summary
	ErrPersistence = errors.New("persistence failed")

	// ErrNotFound is returned when detection produced no discoverable output file
	ErrNotFound = errors.New("prediction result not found")
)

// StatusError is returned when the inference endpoint answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrInferenceTransport
func (e *StatusError) Unwrap() error {
	return ErrInferenceTransport
}
