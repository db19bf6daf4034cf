package websocket

import (
	"sync"
	"time"

	"github.com/focusroom/server/focusroom/sessions"
	"github.com/focusroom/server/internal/errors"
	"github.com/focusroom/server/internal/logger"
)

// Hub owns every live connection and fans registry results out to session
// members. All inbound requests are dispatched inline on the run loop, so
// within one session every client observes broadcasts in the order the
// corresponding requests were processed.
type Hub struct {
	// session registry backing all mutations
	registry *sessions.Registry

	// every connected client by connection id, bound to a session or not
	clients map[string]*Client

	// session-bound clients by session id and connection id
	sessionClients map[string]map[string]*Client

	// register requests from new connections
	Register chan *Client

	// unregister requests from disconnecting clients
	Unregister chan *Client

	// inbound client requests awaiting dispatch
	Inbound chan *Message

	// message handlers for different message types
	handlers map[string]MessageHandler

	// mutex for thread-safe access to the client maps
	mu sync.RWMutex

	// channel to signal shutdown
	shutdown chan struct{}

	// connection tracking: IP address -> count of connections
	ipConnections map[string]int

	// sequence numbers per session for broadcast ordering
	sessionSequences map[string]uint64
}

func NewHub(registry *sessions.Registry) *Hub {
	return &Hub{
		registry:         registry,
		clients:          make(map[string]*Client),
		sessionClients:   make(map[string]map[string]*Client),
		Register:         make(chan *Client),
		Unregister:       make(chan *Client),
		Inbound:          make(chan *Message, 256),
		handlers:         make(map[string]MessageHandler),
		shutdown:         make(chan struct{}),
		ipConnections:    make(map[string]int),
		sessionSequences: make(map[string]uint64),
	}
}

// registers a handler for a specific message type
func (h *Hub) RegisterHandler(messageType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[messageType] = handler
}

// starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case message := <-h.Inbound:
			h.handleMessage(message)

		case <-h.shutdown:
			h.closeAllConnections()
			return
		}
	}
}

// adds a freshly accepted connection to the hub. Session binding happens
// later, on a successful create_session or join_session request.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	logger.Info("client registered",
		"connection_id", client.ID,
		"ip", client.IPAddress,
	)
}

// removes a disconnecting client, running the same leave path as an
// explicit leave_session so registry state cannot leak
func (h *Hub) unregisterClient(client *Client) {
	h.mu.RLock()
	_, exists := h.clients[client.ID]
	h.mu.RUnlock()

	if !exists {
		return
	}

	h.leaveClient(client)

	h.mu.Lock()
	delete(h.clients, client.ID)

	if client.IPAddress != "" {
		h.ipConnections[client.IPAddress]--

		if h.ipConnections[client.IPAddress] <= 0 {
			delete(h.ipConnections, client.IPAddress)
		}
	}
	h.mu.Unlock()

	client.Close()

	logger.Info("client unregistered",
		"connection_id", client.ID,
	)
}

// dispatches an inbound request to its handler. Handlers run inline on the
// run loop: registry mutations are in-memory and short, and inline dispatch
// is what serializes broadcasts per session.
func (h *Hub) handleMessage(msg *Message) {
	h.mu.RLock()
	sender, senderExists := h.clients[msg.ClientID]
	handler, handlerExists := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !senderExists {
		logger.Warn("sender not found for message",
			"connection_id", msg.ClientID,
			"message_type", msg.Type,
		)
		return
	}

	if !handlerExists {
		logger.Warn("unhandled message type received",
			"message_type", msg.Type,
			"connection_id", sender.ID,
		)

		sender.SendError(errors.CodeBadRequest, "unsupported message type", "message type not recognized")
		return
	}

	if err := handler(h, sender, msg); err != nil {
		logger.Debug("request rejected",
			"message_type", msg.Type,
			"connection_id", sender.ID,
			"reason", err,
		)
	}
}

// binds a client to a session for broadcast fan-out
func (h *Hub) bindClient(sessionID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessionClients[sessionID] == nil {
		h.sessionClients[sessionID] = make(map[string]*Client)
	}

	h.sessionClients[sessionID][client.ID] = client
	client.setSession(sessionID)
}

// removes a client's session binding
func (h *Hub) unbindClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessionID := client.Session()
	if sessionID == "" {
		return
	}

	if members, exists := h.sessionClients[sessionID]; exists {
		delete(members, client.ID)

		if len(members) == 0 {
			delete(h.sessionClients, sessionID)
			delete(h.sessionSequences, sessionID)
		}
	}

	client.setSession("")
}

// removes the client from its session in the registry and notifies the
// remaining participants. Safe to call for unbound clients.
func (h *Hub) leaveClient(client *Client) {
	sessionID := client.Session()

	result, ok := h.registry.LeaveSession(client.ID)

	h.unbindClient(client)

	if !ok {
		return
	}

	if result.Deleted {
		logger.Info("session deleted, last participant left",
			"session_id", result.Session.ID,
			"connection_id", client.ID,
		)
		return
	}

	payload := ParticipantLeftPayload{
		ConnectionID: client.ID,
		Participants: result.Session.Roster,
		NewHostID:    result.NewHostID,
	}

	msg, err := NewMessage(TypeParticipantLeft, sessionID, payload)
	if err != nil {
		logger.ErrorErr(err, "failed to create participant_left message",
			"session_id", sessionID,
		)
		return
	}

	h.BroadcastToSession(sessionID, msg, "")

	if result.NewHostID != "" {
		logger.Info("host left, promoted replacement",
			"session_id", sessionID,
			"old_host", client.ID,
			"new_host", result.NewHostID,
		)
	}
}

// sends a message to all clients bound to a session. The send is
// fire-and-forget: a slow or disconnecting client loses the message.
func (h *Hub) BroadcastToSession(sessionID string, msg *Message, excludeClientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastToSession(sessionID, msg, excludeClientID)
}

// the internal broadcast function (must be called with lock held)
func (h *Hub) broadcastToSession(sessionID string, msg *Message, excludeClientID string) {
	members, exists := h.sessionClients[sessionID]
	if !exists {
		return
	}

	// assign sequence number to message
	h.sessionSequences[sessionID]++
	msg.Sequence = h.sessionSequences[sessionID]

	for clientID, client := range members {
		if clientID == excludeClientID {
			continue
		}

		if err := client.Send(msg); err != nil {
			logger.ErrorErr(err, "failed to send message to client",
				"connection_id", clientID,
				"session_id", sessionID,
			)
		}
	}
}

// returns all clients bound to a session
func (h *Hub) GetSessionClients(sessionID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, exists := h.sessionClients[sessionID]
	if !exists {
		return []*Client{}
	}

	clients := make([]*Client, 0, len(members))
	for _, client := range members {
		clients = append(clients, client)
	}

	return clients
}

// returns the total number of open connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// checks if a new connection should be allowed based on per-IP limits
func (h *Hub) CanAcceptConnection(ipAddress string) (bool, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.ipConnections[ipAddress] >= maxConnectionsPerIP {
		return false, "maximum connections per IP address exceeded"
	}

	return true, ""
}

// increments the connection count for an IP address
func (h *Hub) TrackIPConnection(ipAddress string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ipConnections[ipAddress]++
}

func (h *Hub) Shutdown() {
	close(h.shutdown)
}

func (h *Hub) closeAllConnections() {
	h.mu.Lock()

	logger.Info("notifying clients of server shutdown")

	shutdownMsg, err := NewMessage(TypeServerShutdown, "", ServerShutdownPayload{
		Reason: "server is shutting down",
	})
	if err == nil {
		for _, client := range h.clients {
			if sendErr := client.Send(shutdownMsg); sendErr != nil {
				logger.Debug("failed to send shutdown notification",
					"connection_id", client.ID,
				)
			}
		}
	}

	h.mu.Unlock()

	// give clients time to receive the shutdown message
	time.Sleep(500 * time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()

	logger.Info("closing all websocket connections")

	for _, client := range h.clients {
		client.Close()
	}

	h.clients = make(map[string]*Client)
	h.sessionClients = make(map[string]map[string]*Client)
	h.ipConnections = make(map[string]int)
	h.sessionSequences = make(map[string]uint64)
}
