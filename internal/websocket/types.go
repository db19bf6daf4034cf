package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/focusroom/server/focusroom/sessions"
)

// message type constants for websocket communication
const (
	// requester -> server

	// creates a new session with the requester as host
	TypeCreateSession = "create_session"

	// joins an existing session
	TypeJoinSession = "join_session"

	// leaves the bound session without closing the connection
	TypeLeaveSession = "leave_session"

	// host-only timer control (start, pause, skip, ...)
	TypeTimerAction = "timer_action"

	// sends a chat message to the bound session
	TypeChatMessage = "chat_message"

	// fetches a read-only session snapshot
	TypeGetSessionInfo = "get_session_info"

	// is sent by clients to keep the connection alive
	TypePing = "ping"

	// server -> requester / broadcast

	// is sent to the creator with the new session snapshot
	TypeSessionCreated = "session_created"

	// is sent to the joiner with the session snapshot
	TypeSessionJoined = "session_joined"

	// is sent to the rest of the session when someone joins
	TypeParticipantJoined = "participant_joined"

	// is sent to remaining participants when someone leaves
	TypeParticipantLeft = "participant_left"

	// is sent to all participants, including the acting host,
	// so every UI reconciles off the same authoritative echo
	TypeTimerUpdate = "timer_update"

	// is sent to all participants, including the sender
	TypeNewMessage = "new_message"

	// is the reply to get_session_info
	TypeSessionInfo = "session_info"

	// is sent by server in response to ping
	TypePong = "pong"

	// is sent when a request fails
	TypeError = "error"

	// is sent by server before shutdown
	TypeServerShutdown = "server_shutdown"
)

// client connection constants
const (
	// time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// maximum message size allowed from peer; protocol frames are tiny
	maxMessageSize = 8 * 1024

	// rate limiting constants
	maxChatMessagesPerMinute = 20
	maxChatBurst             = 5
	maxTimerActionsPerSecond = 10
)

// hub connection limit constants
const (
	maxConnectionsPerIP = 20
)

// fallback nickname when a client supplies none
const defaultNickname = "Anonymous"

// errors
var (
	ErrConnectionClosed  = errors.New("connection closed")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrNotInSession      = errors.New("connection not bound to a session")
	ErrNotHost           = errors.New("connection is not the session host")
	ErrInvalidMessage    = errors.New("invalid message format")
)

// contains create_session parameters
type CreateSessionPayload struct {
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
}

// contains join_session parameters
type JoinSessionPayload struct {
	SessionID string `json:"session_id"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar,omitempty"`
}

// is sent to a client entering a session (create or join)
type SessionStatePayload struct {
	SessionID    string                 `json:"session_id"`
	ConnectionID string                 `json:"connection_id"`
	HostID       string                 `json:"host_id"`
	Participants []sessions.Participant `json:"participants"`
	TimerState   sessions.TimerState    `json:"timer_state"`
	ChatHistory  []sessions.Message     `json:"chat_history"`
}

// announces a new participant to the rest of the session
type ParticipantJoinedPayload struct {
	Participant  sessions.Participant   `json:"participant"`
	Participants []sessions.Participant `json:"participants"`
}

// announces a departure to the remaining participants
type ParticipantLeftPayload struct {
	ConnectionID string                 `json:"connection_id"`
	Participants []sessions.Participant `json:"participants"`
	NewHostID    string                 `json:"new_host_id,omitempty"`
}

// contains a host timer action and a partial timer state.
// Timer fields left out of the patch are kept unchanged server-side.
type TimerActionPayload struct {
	Action string                   `json:"action"`
	Timer  sessions.TimerStatePatch `json:"timer"`
}

// carries the merged timer state back to every participant
type TimerUpdatePayload struct {
	Action     string              `json:"action"`
	TimerState sessions.TimerState `json:"timer_state"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// contains an outbound chat message
type ChatMessagePayload struct {
	Text string `json:"text"`
}

// carries a stored chat message to every participant
type NewMessagePayload struct {
	Message sessions.Message `json:"message"`
}

// contains get_session_info parameters
type GetSessionInfoPayload struct {
	SessionID string `json:"session_id"`
}

// is the read-only session snapshot reply
type SessionInfoPayload struct {
	SessionID    string                 `json:"session_id"`
	HostID       string                 `json:"host_id"`
	Participants []sessions.Participant `json:"participants"`
	TimerState   sessions.TimerState    `json:"timer_state"`
}

// contains information about server shutdown
type ServerShutdownPayload struct {
	Reason string `json:"reason"`
}

// represents a websocket client connection
type Client struct {
	// unique identifier for this connection, assigned at accept time
	ID string

	// IP address of the client (for connection tracking)
	IPAddress string

	// nickname and avatar, set when the client enters a session
	Nickname string
	Avatar   string

	// websocket connection
	conn *websocket.Conn

	// hub reference for message dispatch
	hub *Hub

	// buffered channel of outbound messages
	send chan []byte

	// mutex guarding closed and sessionID
	mu sync.RWMutex

	// flag indicating if client is closed
	closed bool

	// session this connection is currently bound to (empty when unbound)
	sessionID string

	// per-connection throttles
	chatLimiter  *rate.Limiter
	timerLimiter *rate.Limiter
}

// processes a specific message type
type MessageHandler func(hub *Hub, client *Client, msg *Message) error
