package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	limiter "github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/focusroom/server/api/rest/health"
	"github.com/focusroom/server/api/websocket"
)

// sets up all routes and middleware
func RegisterRoutes(router *gin.Engine, server *Server) {
	router.Use(corsMiddleware(server))
	router.GET("/health", health.Handler(server.registry, server.hub))

	v1 := router.Group("/api/v1")

	// per-IP windowed rate limit applied ahead of the gateway: requests over
	// the ceiling never reach the hub or the registry
	v1.Use(rateLimitMiddleware(server))

	{
		v1.GET("/ping", health.PingHandler)

		websocket.RegisterRoutes(v1, server.hub, server.config)
	}
}

func corsMiddleware(server *Server) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	if len(server.config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = server.config.AllowedOrigins
	} else {
		// development fallback; production requires an explicit allow-list
		corsConfig.AllowAllOrigins = true
	}

	return cors.New(corsConfig)
}

func rateLimitMiddleware(server *Server) gin.HandlerFunc {
	rate := limiter.Rate{
		Period: server.config.RateLimitWindow,
		Limit:  server.config.RateLimitRequests,
	}

	return mgin.NewMiddleware(limiter.New(memorystore.NewStore(), rate))
}
