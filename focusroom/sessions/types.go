package sessions

import "time"

// session limits
const (
	// maximum participants per session, including the host
	MaxParticipants = 10

	// maximum chat messages retained per session (oldest dropped first)
	MaxChatMessages = 100

	// maximum chat message length in characters (longer text is truncated)
	MaxMessageLength = 200
)

// timer phases, stored verbatim and never interpreted by the server
const (
	PhaseStudy      = "study"
	PhaseShortBreak = "shortBreak"
	PhaseLongBreak  = "longBreak"
)

// default timer settings for a new session
const (
	DefaultStudySeconds = 25 * 60
	DefaultTotalRounds  = 4
)

// describes the shared pomodoro timer. The host client owns the
// semantics of these fields; the registry only stores and republishes them.
type TimerState struct {
	IsRunning       bool   `json:"isRunning"`
	CurrentPhase    string `json:"currentPhase"`
	TimeRemaining   int    `json:"timeRemaining"`
	RoundsCompleted int    `json:"roundsCompleted"`
	TotalRounds     int    `json:"totalRounds"`
}

// is a partial update to TimerState. Nil fields are left unchanged.
type TimerStatePatch struct {
	IsRunning       *bool   `json:"isRunning,omitempty"`
	CurrentPhase    *string `json:"currentPhase,omitempty"`
	TimeRemaining   *int    `json:"timeRemaining,omitempty"`
	RoundsCompleted *int    `json:"roundsCompleted,omitempty"`
	TotalRounds     *int    `json:"totalRounds,omitempty"`
}

// is a connection's membership record within a session
type Participant struct {
	ConnectionID string    `json:"connectionId"`
	Nickname     string    `json:"nickname"`
	Avatar       string    `json:"avatar,omitempty"`
	IsHost       bool      `json:"isHost"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// is a chat entry. Sender is a nickname snapshot taken at send
// time, not a live reference to the participant.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Avatar    string    `json:"avatar,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// nickname and avatar supplied by a connecting client
type ParticipantInfo struct {
	Nickname string
	Avatar   string
}

// Session is an immutable snapshot of a session, safe to use after the
// registry call that produced it returns. Roster is sorted by join time
// (connection id as tie-break) so UI lists are stable.
type Session struct {
	ID               string        `json:"id"`
	HostConnectionID string        `json:"hostConnectionId"`
	Roster           []Participant `json:"participants"`
	TimerState       TimerState    `json:"timerState"`
	Chat             []Message     `json:"chat"`
	CreatedAt        time.Time     `json:"createdAt"`
	LastActivity     time.Time     `json:"lastActivity"`
}

// LeaveResult reports the outcome of removing a connection from its session.
// Session is the post-mutation snapshot, or the final snapshot of a session
// that was deleted because its last participant left.
type LeaveResult struct {
	Session   Session
	WasHost   bool
	NewHostID string
	Deleted   bool
}

// mutable per-session state, owned by the registry
type sessionState struct {
	id           string
	hostConnID   string
	participants map[string]*Participant
	timerState   TimerState
	chat         []Message
	createdAt    time.Time
	lastActivity time.Time
}

// connection index entry: which session a connection belongs to
type connectionRef struct {
	sessionID string
	isHost    bool
}
