package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ollama_relay/models"
	"ollama_relay/store"
)

// PreferencesHandler exposes the UI preference values
type PreferencesHandler struct {
	prefs *store.Preferences
}

// NewPreferencesHandler creates a preferences handler
func NewPreferencesHandler(prefs *store.Preferences) *PreferencesHandler {
	return &PreferencesHandler{prefs: prefs}
}

// Get handles GET /api/preferences
func (h *PreferencesHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.prefs.Snapshot())
}

// Update handles PUT /api/preferences. Only the fields present are changed.
func (h *PreferencesHandler) Update(c *gin.Context) {
	var update models.PreferencesUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: InvalidRequestBody})
		return
	}
	if update.SelectedModel != nil && *update.SelectedModel == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "selectedModel must not be empty"})
		return
	}

	h.prefs.Apply(update)

	c.JSON(http.StatusOK, h.prefs.Snapshot())
}
