package main

import (
	"github.com/gin-gonic/gin"

	"github.com/focusroom/server/focusroom/sessions"
	"github.com/focusroom/server/internal/config"
	ws "github.com/focusroom/server/internal/websocket"
)

// holds all dependencies and state for the server
type Server struct {
	config   *config.Config
	registry *sessions.Registry
	hub      *ws.Hub
	reaper   *sessions.Reaper
	router   *gin.Engine
}
