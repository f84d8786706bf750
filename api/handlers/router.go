package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/danghica/cliver/internal/logging"
	"github.com/danghica/cliver/internal/repository"
	"github.com/danghica/cliver/internal/session"
)

// NewRouter builds the HTTP router: the WebSocket endpoints, health check
// and the session API.
func NewRouter(registry *session.Registry, events *repository.EventRepository, log *zap.SugaredLogger) *gin.Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinLogger(log.Named("http")))
	r.Use(corsMiddleware())

	sessionHandler := NewSessionHandler(registry, events)
	wsHandler := NewWebSocketHandler(registry, log.Named("ws"))

	r.GET("/health", sessionHandler.Health)
	wsHandler.RegisterRoutes(r)

	api := r.Group("/api")
	sessionHandler.RegisterRoutes(api)

	return r
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
