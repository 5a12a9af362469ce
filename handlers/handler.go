package handlers

import (
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"ollama_relay/backend"
	"ollama_relay/database"
	"ollama_relay/hostaddr"
	"ollama_relay/middleware"
	"ollama_relay/models"
)

// Journal records relayed requests and reads them back
type Journal interface {
	Log(entry database.LogEntry) error
	GetRecentEntries(limit, offset int) ([]database.LogEntry, error)
	GetEntryByID(id int64) (*database.LogEntry, error)
	GetTotalCount() (int64, error)
}

// Handler serves the relay endpoints
type Handler struct {
	backend     backend.Backend
	journal     Journal
	interfaces  hostaddr.Lister
	logMessages bool
}

// NewHandler creates a relay handler. journal may be nil to disable request
// recording.
func NewHandler(b backend.Backend, journal Journal, interfaces hostaddr.Lister, logMessages bool) *Handler {
	if interfaces == nil {
		interfaces = hostaddr.SystemInterfaces
	}
	return &Handler{
		backend:     b,
		journal:     journal,
		interfaces:  interfaces,
		logMessages: logMessages,
	}
}

// record stores the request in the journal
func (h *Handler) record(c *gin.Context, startTime time.Time, entry database.LogEntry) {
	if h.journal == nil {
		return
	}

	entry.Timestamp = startTime
	entry.RequestID = middleware.GetRequestID(c)
	entry.Endpoint = c.Request.URL.Path
	entry.Method = c.Request.Method
	entry.StatusCode = c.Writer.Status()
	entry.LatencyMs = time.Since(startTime).Milliseconds()
	entry.ClientIP = c.ClientIP()

	if err := h.journal.Log(entry); err != nil {
		log.WithError(err).Error("failed to record request")
	}
}

// formatPrompt flattens the conversation for the journal
func formatPrompt(messages []models.Message) string {
	var prompt strings.Builder
	for _, msg := range messages {
		prompt.WriteString(msg.Role)
		prompt.WriteString(": ")
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n")
	}
	return prompt.String()
}
