package models

import "encoding/json"

// Ollama API types

// Message represents a chat message
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// OllamaChatRequest is the body sent upstream to Ollama's /api/chat
type OllamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// OllamaChatChunk is one NDJSON line of a streaming Ollama chat response.
// A line carries either a message delta or an error.
type OllamaChatChunk struct {
	Model   string      `json:"model,omitempty"`
	Message *ChunkDelta `json:"message,omitempty"`
	Done    bool        `json:"done,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ChunkDelta is the message part of a streaming chunk
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

// TagsResponse is Ollama's /api/tags body. Models is kept raw so it can be
// relayed untouched.
type TagsResponse struct {
	Models json.RawMessage `json:"models"`
}

// Relay API types

// ChatRequest is the body accepted by the relay's POST /api/chat.
// Messages is a pointer so a missing or null field can be told apart from an
// empty array.
type ChatRequest struct {
	Model    string     `json:"model" binding:"required"`
	Messages *[]Message `json:"messages" binding:"required"`
}

// ConnectionStatus is returned by GET /api/check-connection
type ConnectionStatus struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// LocalIPResponse is returned by GET /api/local-ip
type LocalIPResponse struct {
	IP string `json:"ip"`
}

// Preferences mirrors the frontend's UI stores
type Preferences struct {
	DarkMode      bool   `json:"darkMode"`
	SelectedModel string `json:"selectedModel"`
}

// PreferencesUpdate is the body of PUT /api/preferences. Absent fields are left unchanged.
type PreferencesUpdate struct {
	DarkMode      *bool   `json:"darkMode"`
	SelectedModel *string `json:"selectedModel"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	StatusConnected = "connected"
	StatusError     = "error"
)
