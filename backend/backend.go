package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"ollama_relay/models"
)

// BackendMetadata contains raw request data from backend calls
type BackendMetadata struct {
	URL        string // Backend URL that was called
	RawRequest string // Raw JSON sent to backend
}

// Backend defines the interface to the inference server
type Backend interface {
	// Endpoint returns the base URL requests are sent to
	Endpoint() string

	// Tags fetches /api/tags and returns the body untouched
	Tags(ctx context.Context) (json.RawMessage, error)

	// Chat opens a streaming chat completion. The caller must Close the
	// returned stream.
	Chat(ctx context.Context, req models.OllamaChatRequest) (*ChatStream, *BackendMetadata, error)
}

// StatusError is returned when the backend answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Status     string // Reason phrase, e.g. "Not Found"
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Ollama API error: %d %s", e.StatusCode, e.Status)
}

// UnreachableError is returned when the backend could not be reached or the
// connection failed before a response was read
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("failed to reach Ollama at %s: %v", e.Host, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}
