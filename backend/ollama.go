package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"

	"ollama_relay/models"
)

// maxErrorBody bounds how much of a failed response is read for logging
const maxErrorBody = 4096

// OllamaBackend implements the Backend interface for Ollama
type OllamaBackend struct {
	endpoint     string
	client       *http.Client
	checkTimeout time.Duration
	idleTimeout  time.Duration
}

// NewOllamaBackend creates a new Ollama backend. checkTimeout bounds the
// /api/tags calls; idleTimeout bounds the gap between streamed lines (0 = none).
func NewOllamaBackend(endpoint string, checkTimeout, idleTimeout time.Duration) *OllamaBackend {
	return &OllamaBackend{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		// No client timeout: chat streams stay open for as long as the model generates.
		client:       &http.Client{},
		checkTimeout: checkTimeout,
		idleTimeout:  idleTimeout,
	}
}

// Endpoint returns the base URL of the Ollama server
func (o *OllamaBackend) Endpoint() string {
	return o.endpoint
}

// Tags returns the raw /api/tags body from Ollama
func (o *OllamaBackend) Tags(ctx context.Context) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, o.checkTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, &UnreachableError{Host: o.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnreachableError{Host: o.endpoint, Err: err}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid JSON from %s/api/tags", o.endpoint)
	}

	return body, nil
}

// Chat sends a streaming chat request to Ollama
func (o *OllamaBackend) Chat(ctx context.Context, req models.OllamaChatRequest) (*ChatStream, *BackendMetadata, error) {
	req.Stream = true
	metadata := &BackendMetadata{URL: o.endpoint + "/api/chat"}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, metadata, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Store raw backend request
	metadata.RawRequest = string(data)

	ctx, cancel := context.WithCancel(ctx)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, metadata.URL, bytes.NewReader(data))
	if err != nil {
		cancel()
		return nil, metadata, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, metadata, &UnreachableError{Host: o.endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		return nil, metadata, statusError(resp)
	}

	return newChatStream(resp.Body, cancel, o.idleTimeout), metadata, nil
}

// statusError builds a StatusError and logs what the backend said
func statusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	text := http.StatusText(resp.StatusCode)
	if text == "" {
		text = strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
	}

	log.WithFields(log.Fields{
		"status": resp.StatusCode,
		"body":   string(body),
	}).Warn("ollama returned an error status")

	return &StatusError{StatusCode: resp.StatusCode, Status: text}
}
