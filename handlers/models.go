package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"ollama_relay/backend"
	"ollama_relay/database"
	"ollama_relay/hostaddr"
	"ollama_relay/models"
)

// CheckConnection handles GET /api/check-connection
func (h *Handler) CheckConnection(c *gin.Context) {
	startTime := time.Now()
	entry := database.LogEntry{BackendURL: h.backend.Endpoint() + "/api/tags"}
	defer func() { h.record(c, startTime, entry) }()

	data, err := h.backend.Tags(c.Request.Context())
	if err != nil {
		status, message := upstreamFailure(err)
		log.WithError(err).Error("Error checking Ollama connection")
		entry.Error = err.Error()
		c.JSON(status, models.ConnectionStatus{Status: models.StatusError, Message: message})
		return
	}

	c.JSON(http.StatusOK, models.ConnectionStatus{Status: models.StatusConnected, Data: data})
}

// Models handles GET /api/models and returns only the models array
func (h *Handler) Models(c *gin.Context) {
	startTime := time.Now()
	entry := database.LogEntry{BackendURL: h.backend.Endpoint() + "/api/tags"}
	defer func() { h.record(c, startTime, entry) }()

	data, err := h.backend.Tags(c.Request.Context())
	if err != nil {
		status, message := upstreamFailure(err)
		log.WithError(err).Error("Error fetching models")
		entry.Error = err.Error()
		c.JSON(status, models.ErrorResponse{Error: message})
		return
	}

	var tags models.TagsResponse
	if err := json.Unmarshal(data, &tags); err != nil {
		log.WithError(err).Error("Error decoding model list")
		entry.Error = err.Error()
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	body := []byte(tags.Models)
	if len(body) == 0 {
		body = []byte("null")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// LocalIP handles GET /api/local-ip. The address is looked up on every call.
func (h *Handler) LocalIP(c *gin.Context) {
	c.JSON(http.StatusOK, models.LocalIPResponse{IP: hostaddr.LocalIPv4(h.interfaces)})
}

// upstreamFailure maps a backend error to the status and message sent to the
// client: a backend status is relayed as is, anything else is a 500 carrying
// the error detail
func upstreamFailure(err error) (int, string) {
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, statusErr.Status
	}
	return http.StatusInternalServerError, err.Error()
}
