package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ollama_relay/backend"
	"ollama_relay/config"
	"ollama_relay/hostaddr"
	"ollama_relay/middleware"
	"ollama_relay/store"
)

// Endpoints served by the relay
const (
	EndPointHealth          = "/health"
	EndPointCheckConnection = "/api/check-connection"
	EndPointModels          = "/api/models"
	EndPointChat            = "/api/chat"
	EndPointLocalIP         = "/api/local-ip"
	EndPointPreferences     = "/api/preferences"
	EndPointRequests        = "/api/requests"
)

// Deps is everything the router needs. Journal and Interfaces are optional.
type Deps struct {
	Config      *config.Config
	Backend     backend.Backend
	Journal     Journal
	Preferences *store.Preferences
	Interfaces  hostaddr.Lister
}

// NewRouter wires the relay endpoints and middleware
func NewRouter(deps Deps) *gin.Engine {
	cfg := deps.Config.Server

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogging(cfg.Verbose))
	if cfg.EnableCORS {
		router.Use(middleware.CORS(cfg.AllowedOrigins))
	}

	if deps.Preferences == nil {
		deps.Preferences = store.NewPreferences(deps.Config.Preferences.DarkMode, deps.Config.Preferences.SelectedModel)
	}

	relay := NewHandler(deps.Backend, deps.Journal, deps.Interfaces, cfg.LogMessages)
	prefs := NewPreferencesHandler(deps.Preferences)

	router.GET(EndPointHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"ollama": deps.Backend.Endpoint(),
		})
	})

	router.GET(EndPointCheckConnection, relay.CheckConnection)
	router.GET(EndPointModels, relay.Models)
	router.POST(EndPointChat, middleware.RateLimit(cfg.RateLimitPerMinute), relay.Chat)
	router.GET(EndPointLocalIP, relay.LocalIP)

	router.GET(EndPointPreferences, prefs.Get)
	router.PUT(EndPointPreferences, prefs.Update)

	if deps.Journal != nil {
		router.GET(EndPointRequests, relay.ListRequests)
		router.GET(EndPointRequests+"/:id", relay.GetRequest)
	}

	return router
}
