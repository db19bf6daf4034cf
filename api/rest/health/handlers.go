package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/focusroom/server/focusroom/sessions"
	ws "github.com/focusroom/server/internal/websocket"
)

// represents the health check response
type Response struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	SessionCount    int       `json:"session_count"`
	ConnectionCount int       `json:"connection_count"`
}

// returns the server health status with live session and connection counts.
// Read-only: it never touches registry state beyond the counters.
func Handler(registry *sessions.Registry, hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, Response{
			Status:          "healthy",
			Timestamp:       time.Now(),
			SessionCount:    registry.SessionCount(),
			ConnectionCount: hub.ConnectionCount(),
		})
	}
}

// responds with pong for testing
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}
