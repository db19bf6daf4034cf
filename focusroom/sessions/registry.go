package sessions

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Registry owns every live session and the reverse index from connection id
// to session. All mutations run under one mutex so the participant maps and
// the connection index always change as a single transaction. Operations
// return snapshots, never live state, so callers can broadcast without
// holding any registry lock.
type Registry struct {
	mu          sync.RWMutex
	clock       clockwork.Clock
	sessions    map[string]*sessionState
	connections map[string]connectionRef
}

// creates an empty registry using the given clock
func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:       clock,
		sessions:    make(map[string]*sessionState),
		connections: make(map[string]connectionRef),
	}
}

// creates a new session with the requester as its host.
// Fails only if the requesting connection already belongs to a session.
func (r *Registry) CreateSession(connID string, info ParticipantInfo) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, bound := r.connections[connID]; bound {
		return Session{}, ErrAlreadyInSession
	}

	sessionID, err := r.generateSessionID()
	if err != nil {
		return Session{}, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := r.clock.Now()

	state := &sessionState{
		id:         sessionID,
		hostConnID: connID,
		participants: map[string]*Participant{
			connID: {
				ConnectionID: connID,
				Nickname:     info.Nickname,
				Avatar:       info.Avatar,
				IsHost:       true,
				JoinedAt:     now,
			},
		},
		timerState: TimerState{
			CurrentPhase:  PhaseStudy,
			TimeRemaining: DefaultStudySeconds,
			TotalRounds:   DefaultTotalRounds,
		},
		chat:         make([]Message, 0),
		createdAt:    now,
		lastActivity: now,
	}

	r.sessions[sessionID] = state
	r.connections[connID] = connectionRef{sessionID: sessionID, isHost: true}

	return snapshot(state), nil
}

// adds a connection to an existing session as a non-host participant
func (r *Registry) JoinSession(sessionID, connID string, info ParticipantInfo) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, bound := r.connections[connID]; bound {
		return Session{}, ErrAlreadyInSession
	}

	state, exists := r.sessions[sessionID]
	if !exists {
		return Session{}, ErrSessionNotFound
	}

	if len(state.participants) >= MaxParticipants {
		return Session{}, ErrSessionFull
	}

	now := r.clock.Now()

	state.participants[connID] = &Participant{
		ConnectionID: connID,
		Nickname:     info.Nickname,
		Avatar:       info.Avatar,
		JoinedAt:     now,
	}
	state.lastActivity = now

	r.connections[connID] = connectionRef{sessionID: sessionID}

	return snapshot(state), nil
}

// removes a connection from its session. Returns false if the
// connection is not in any session (already left, or never joined), which
// makes disconnect cleanup idempotent. If the departing connection was host
// and participants remain, the earliest-joined participant is promoted. If
// no participants remain the session is deleted and Deleted is set.
func (r *Registry) LeaveSession(connID string) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, bound := r.connections[connID]
	if !bound {
		return LeaveResult{}, false
	}

	delete(r.connections, connID)

	state, exists := r.sessions[ref.sessionID]
	if !exists {
		// index entry outlived its session; nothing more to do
		return LeaveResult{}, false
	}

	delete(state.participants, connID)
	state.lastActivity = r.clock.Now()

	result := LeaveResult{WasHost: ref.isHost}

	if len(state.participants) == 0 {
		delete(r.sessions, ref.sessionID)
		result.Session = snapshot(state)
		result.Deleted = true

		return result, true
	}

	if ref.isHost {
		next := nextHost(state.participants)
		next.IsHost = true
		state.hostConnID = next.ConnectionID
		r.connections[next.ConnectionID] = connectionRef{
			sessionID: ref.sessionID,
			isHost:    true,
		}
		result.NewHostID = next.ConnectionID
	}

	result.Session = snapshot(state)

	return result, true
}

// returns a snapshot of the session with the given id
func (r *Registry) GetSession(sessionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.sessions[sessionID]
	if !exists {
		return Session{}, false
	}

	return snapshot(state), true
}

// returns a snapshot of the session the connection belongs to
func (r *Registry) GetSessionForConnection(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, bound := r.connections[connID]
	if !bound {
		return Session{}, false
	}

	state, exists := r.sessions[ref.sessionID]
	if !exists {
		return Session{}, false
	}

	return snapshot(state), true
}

// reports whether the connection is the host of its session
func (r *Registry) IsHost(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.connections[connID].isHost
}

// merges the non-nil fields of the patch into the session's
// timer state. Field values are not validated; the host client owns their
// semantics.
func (r *Registry) UpdateTimerState(sessionID string, patch TimerStatePatch) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, exists := r.sessions[sessionID]
	if !exists {
		return Session{}, false
	}

	if patch.IsRunning != nil {
		state.timerState.IsRunning = *patch.IsRunning
	}

	if patch.CurrentPhase != nil {
		state.timerState.CurrentPhase = *patch.CurrentPhase
	}

	if patch.TimeRemaining != nil {
		state.timerState.TimeRemaining = *patch.TimeRemaining
	}

	if patch.RoundsCompleted != nil {
		state.timerState.RoundsCompleted = *patch.RoundsCompleted
	}

	if patch.TotalRounds != nil {
		state.timerState.TotalRounds = *patch.TotalRounds
	}

	state.lastActivity = r.clock.Now()

	return snapshot(state), true
}

// appends a chat message, truncating the text to
// MaxMessageLength characters and dropping the oldest entries beyond
// MaxChatMessages
func (r *Registry) AddChatMessage(sessionID, sender, avatar, text string) (Message, Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, exists := r.sessions[sessionID]
	if !exists {
		return Message{}, Session{}, false
	}

	if runes := []rune(text); len(runes) > MaxMessageLength {
		text = string(runes[:MaxMessageLength])
	}

	now := r.clock.Now()

	msg := Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Avatar:    avatar,
		Timestamp: now,
	}

	state.chat = append(state.chat, msg)
	if len(state.chat) > MaxChatMessages {
		state.chat = state.chat[len(state.chat)-MaxChatMessages:]
	}

	state.lastActivity = now

	return msg, snapshot(state), true
}

// deletes every session whose last activity is older than
// maxIdle, removing its participants from the connection index. Returns the
// number of sessions evicted. Clients of evicted sessions are not notified;
// their next request is answered with session-not-found.
func (r *Registry) SweepInactive(now time.Time, maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0

	for id, state := range r.sessions {
		if now.Sub(state.lastActivity) <= maxIdle {
			continue
		}

		for connID := range state.participants {
			delete(r.connections, connID)
		}

		delete(r.sessions, id)
		evicted++
	}

	return evicted
}

// returns the number of live sessions
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// returns the number of connections bound to a session
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connections)
}

// generates a session id, retrying until it does not collide with a live
// session. Must be called with the registry lock held.
func (r *Registry) generateSessionID() (string, error) {
	for {
		bytes := make([]byte, 16)
		if _, err := rand.Read(bytes); err != nil {
			return "", err
		}

		id := hex.EncodeToString(bytes)
		if _, exists := r.sessions[id]; !exists {
			return id, nil
		}
	}
}

// picks the participant to promote when the host leaves: earliest join time,
// connection id as tie-break so the choice is deterministic
func nextHost(participants map[string]*Participant) *Participant {
	var next *Participant

	for _, p := range participants {
		if next == nil {
			next = p
			continue
		}

		if p.JoinedAt.Before(next.JoinedAt) ||
			(p.JoinedAt.Equal(next.JoinedAt) && p.ConnectionID < next.ConnectionID) {
			next = p
		}
	}

	return next
}

// builds an immutable snapshot of the session state. Must be called with the
// registry lock held.
func snapshot(state *sessionState) Session {
	roster := make([]Participant, 0, len(state.participants))

	for _, p := range state.participants {
		roster = append(roster, *p)
	}

	sort.Slice(roster, func(i, j int) bool {
		if !roster[i].JoinedAt.Equal(roster[j].JoinedAt) {
			return roster[i].JoinedAt.Before(roster[j].JoinedAt)
		}

		return roster[i].ConnectionID < roster[j].ConnectionID
	})

	chat := make([]Message, len(state.chat))
	copy(chat, state.chat)

	return Session{
		ID:               state.id,
		HostConnectionID: state.hostConnID,
		Roster:           roster,
		TimerState:       state.timerState,
		Chat:             chat,
		CreatedAt:        state.createdAt,
		LastActivity:     state.lastActivity,
	}
}
