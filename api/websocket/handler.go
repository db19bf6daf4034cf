package websocket

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/focusroom/server/internal/config"
	"github.com/focusroom/server/internal/errors"
	"github.com/focusroom/server/internal/logger"
	ws "github.com/focusroom/server/internal/websocket"
)

// handles websocket connection upgrades. Each accepted connection gets a
// process-unique id; session binding happens later via create_session or
// join_session frames.
func Handler(hub *ws.Hub, cfg *config.Config) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(cfg),
	}

	return func(c *gin.Context) {
		ipAddress := c.ClientIP()

		canAccept, reason := hub.CanAcceptConnection(ipAddress)
		if !canAccept {
			errors.TooManyRequests(c, reason)
			return
		}

		connID, err := ws.GenerateConnectionID()
		if err != nil {
			errors.InternalError(c, "failed to generate connection ID", err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.ErrorErr(err, "failed to upgrade connection",
				"ip", ipAddress,
			)

			return
		}

		// track IP connection only after successful upgrade
		hub.TrackIPConnection(ipAddress)

		client := ws.NewClient(connID, ipAddress, conn, hub)

		hub.Register <- client

		go client.WritePump()
		go client.ReadPump()

		logger.Info("websocket connection established",
			"connection_id", connID,
			"ip", ipAddress,
		)
	}
}

// builds the upgrader origin check from the configured allow-list. Outside
// production any origin is accepted, including none at all.
func checkOrigin(cfg *config.Config) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if !cfg.IsProduction() {
			return true
		}

		origin := r.Header.Get("Origin")
		if origin == "" {
			logger.Warn("websocket connection with no origin header")
			return false
		}

		if slices.Contains(cfg.AllowedOrigins, origin) {
			return true
		}

		logger.Warn("websocket origin rejected - not in allowed origins",
			"origin", origin,
		)

		return false
	}
}
