package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/api/chat"
	"github.com/inkwell-notes/inkwell/internal/api/middleware"
	"github.com/inkwell-notes/inkwell/internal/service"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(assistantService *service.AssistantService, log *zap.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	chatHandler := chat.NewHandler(assistantService, log)

	// Conversation API (the hosting UI surface)
	convGroup := r.Group("/api/assistant")
	convGroup.Use(middleware.Auth(cfg.APIKey))
	chatHandler.RegisterConversationRoutes(convGroup)

	// Stored session API
	sessionGroup := r.Group("/api/sessions")
	sessionGroup.Use(middleware.Auth(cfg.APIKey))
	chatHandler.RegisterSessionRoutes(sessionGroup)

	return r
}
