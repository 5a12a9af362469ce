package handlers

import (
	"net/http"
	"strconv"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"ollama_relay/database"
	"ollama_relay/models"
)

const pageSize = 25

// HistoryPage is one page of the request journal
type HistoryPage struct {
	Entries     []database.LogEntry `json:"entries"`
	CurrentPage int                 `json:"current_page"`
	TotalPages  int                 `json:"total_pages"`
	TotalCount  int64               `json:"total_count"`
	HasPrev     bool                `json:"has_prev"`
	HasNext     bool                `json:"has_next"`
}

// ListRequests handles GET /api/requests with a paginated list
func (h *Handler) ListRequests(c *gin.Context) {
	// Get page number from query params
	page := 1
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}

	offset := (page - 1) * pageSize

	// Get total count for pagination
	total, err := h.journal.GetTotalCount()
	if err != nil {
		log.WithError(err).Error("Error getting total count")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Database error"})
		return
	}

	entries, err := h.journal.GetRecentEntries(pageSize, offset)
	if err != nil {
		log.WithError(err).Error("Error getting entries")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Database error"})
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	c.JSON(http.StatusOK, HistoryPage{
		Entries:     entries,
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
		HasPrev:     page > 1,
		HasNext:     page < totalPages,
	})
}

// GetRequest handles GET /api/requests/:id
func (h *Handler) GetRequest(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid ID"})
		return
	}

	entry, err := h.journal.GetEntryByID(id)
	if err != nil {
		log.WithError(err).WithField("id", id).Error("Error getting entry")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Database error"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Entry not found"})
		return
	}

	c.JSON(http.StatusOK, entry)
}
