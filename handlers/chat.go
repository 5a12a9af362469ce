package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"ollama_relay/backend"
	"ollama_relay/database"
	"ollama_relay/middleware"
	"ollama_relay/models"
)

// InvalidRequestBody is the error reported for any malformed chat request
const InvalidRequestBody = "Invalid request body"

// Chat handles POST /api/chat: it forwards the conversation to Ollama and
// relays the generated text as server-sent events
func (h *Handler) Chat(c *gin.Context) {
	startTime := time.Now()
	entry := database.LogEntry{}
	defer func() { h.record(c, startTime, entry) }()

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.WithError(err).Warn("rejecting chat request")
		entry.Error = InvalidRequestBody
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: InvalidRequestBody})
		return
	}

	messages := *req.Messages
	entry.Model = req.Model
	entry.Prompt = formatPrompt(messages)

	logger := log.WithFields(log.Fields{
		"request_id": middleware.GetRequestID(c),
		"model":      req.Model,
		"messages":   len(messages),
	})

	// Log request messages if enabled
	if h.logMessages {
		for i, msg := range messages {
			logger.Infof("[%d] %s: %s", i, msg.Role, msg.Content)
		}
	}

	stream, meta, err := h.backend.Chat(c.Request.Context(), models.OllamaChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
	})
	if meta != nil {
		entry.BackendURL = meta.URL
		entry.BackendRequest = meta.RawRequest
	}
	if err != nil {
		logger.WithError(err).Error("Server error")
		entry.Error = err.Error()
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	defer stream.Close()

	events := &eventWriter{w: c.Writer}
	events.open()

	var response strings.Builder
	defer func() { entry.Response = response.String() }()

	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			if err := events.done(); err != nil {
				logger.WithError(err).Warn("client went away before completion")
			}
			return
		}
		if err != nil {
			entry.Error = err.Error()
			if c.Request.Context().Err() != nil {
				logger.Info("client disconnected, stopped relaying")
				return
			}
			logger.WithError(err).Error("stream aborted")
			events.fail(err.Error())
			return
		}

		var writeErr error
		switch ev.Kind {
		case backend.EventContent:
			response.WriteString(ev.Text)
			writeErr = events.data(ev.Text)
		case backend.EventError:
			entry.Error = ev.Text
			writeErr = events.fail(ev.Text)
		}
		if writeErr != nil {
			logger.WithError(writeErr).Info("client disconnected, stopped relaying")
			entry.Error = writeErr.Error()
			return
		}
	}
}
