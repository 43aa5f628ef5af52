// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Controller SessionController
	Intake     FileIntake
	Journal    AttemptLog
	Hub        *Hub
	Logger     *logrus.Logger
	Version    string
	Engine     string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Session SessionHandler
	Journal JournalHandler
	Hub     *Hub
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.Engine),
		Session: NewSessionHandler(deps.Controller, deps.Intake, deps.Logger),
		Journal: NewJournalHandler(deps.Journal),
		Hub:     deps.Hub,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Session lifecycle
	sessionGroup := apiGroup.Group("/session")
	sessionGroup.GET("", handlers.Session.HandleGetSession)
	sessionGroup.GET("/msgpack", handlers.Session.HandleGetSessionMsgpack)
	sessionGroup.POST("/file", handlers.Session.HandleSelectFile)
	sessionGroup.POST("/extract", handlers.Session.HandleStartExtraction)
	sessionGroup.POST("/cancel", handlers.Session.HandleCancel)
	sessionGroup.POST("/reset", handlers.Session.HandleReset)
	sessionGroup.POST("/escape", handlers.Session.HandleEscape)
	sessionGroup.GET("/export", handlers.Session.HandleExport)
	sessionGroup.GET("/progress", handlers.Session.HandleProgressStream)

	// Attempt journal
	apiGroup.GET("/attempts", handlers.Journal.HandleRecentAttempts)
	apiGroup.GET("/attempts/summary", handlers.Journal.HandleAttemptSummary)

	RegisterWebSocketRoutes(e, handlers)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	if handlers.Hub != nil {
		e.GET("/api/ws", handlers.Hub.HandleWebSocket)
	}
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler
}
