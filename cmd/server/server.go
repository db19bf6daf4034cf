package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/focusroom/server/focusroom/sessions"
	"github.com/focusroom/server/internal/config"
	ws "github.com/focusroom/server/internal/websocket"
)

// creates and configures a new server instance with all dependencies
func NewServer(cfg *config.Config) *Server {
	clock := clockwork.NewRealClock()

	registry := sessions.NewRegistry(clock)

	hub := ws.NewHub(registry)

	// register websocket message handlers
	hub.RegisterHandler(ws.TypeCreateSession, ws.CreateSessionHandler())
	hub.RegisterHandler(ws.TypeJoinSession, ws.JoinSessionHandler())
	hub.RegisterHandler(ws.TypeLeaveSession, ws.LeaveSessionHandler())
	hub.RegisterHandler(ws.TypeTimerAction, ws.TimerActionHandler())
	hub.RegisterHandler(ws.TypeChatMessage, ws.ChatMessageHandler())
	hub.RegisterHandler(ws.TypeGetSessionInfo, ws.GetSessionInfoHandler())
	hub.RegisterHandler(ws.TypePing, ws.PingHandler())

	reaper := sessions.NewReaper(registry, clock, sessions.DefaultSweepInterval, sessions.DefaultMaxIdle)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	server := &Server{
		config:   cfg,
		registry: registry,
		hub:      hub,
		reaper:   reaper,
		router:   router,
	}

	RegisterRoutes(router, server)

	return server
}
