package sessions

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewRegistry(clock), clock
}

func boolPtr(v bool) *bool    { return &v }
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestCreateSessionDefaults(t *testing.T) {
	registry, _ := newTestRegistry()

	session, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "conn-a", session.HostConnectionID)

	require.Len(t, session.Roster, 1)
	assert.Equal(t, "ada", session.Roster[0].Nickname)
	assert.True(t, session.Roster[0].IsHost)

	assert.False(t, session.TimerState.IsRunning)
	assert.Equal(t, PhaseStudy, session.TimerState.CurrentPhase)
	assert.Equal(t, DefaultStudySeconds, session.TimerState.TimeRemaining)
	assert.Equal(t, DefaultTotalRounds, session.TimerState.TotalRounds)
	assert.Equal(t, 0, session.TimerState.RoundsCompleted)

	assert.Empty(t, session.Chat)
	assert.Equal(t, 1, registry.SessionCount())
	assert.Equal(t, 1, registry.ConnectionCount())
	assert.True(t, registry.IsHost("conn-a"))
}

func TestCreateSessionWhileBound(t *testing.T) {
	registry, _ := newTestRegistry()

	_, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	_, err = registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	assert.ErrorIs(t, err, ErrAlreadyInSession)

	assert.Equal(t, 1, registry.SessionCount())
}

func TestJoinSessionNotFound(t *testing.T) {
	registry, _ := newTestRegistry()

	_, err := registry.JoinSession("no-such-session", "conn-b", ParticipantInfo{Nickname: "bob"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestJoinSessionCapacity(t *testing.T) {
	registry, _ := newTestRegistry()

	session, err := registry.CreateSession("host", ParticipantInfo{Nickname: "host"})
	require.NoError(t, err)

	// host counts toward the cap, so 9 more joins succeed
	for i := 1; i < MaxParticipants; i++ {
		joined, err := registry.JoinSession(session.ID, fmt.Sprintf("conn-%d", i), ParticipantInfo{
			Nickname: fmt.Sprintf("guest-%d", i),
		})
		require.NoError(t, err)
		assert.Len(t, joined.Roster, i+1)
	}

	// the 11th participant is rejected and the session is left unchanged
	_, err = registry.JoinSession(session.ID, "conn-overflow", ParticipantInfo{Nickname: "late"})
	assert.ErrorIs(t, err, ErrSessionFull)

	current, exists := registry.GetSession(session.ID)
	require.True(t, exists)
	assert.Len(t, current.Roster, MaxParticipants)

	_, bound := registry.GetSessionForConnection("conn-overflow")
	assert.False(t, bound)
}

func TestLeaveHostPromotesEarliestJoined(t *testing.T) {
	registry, clock := newTestRegistry()

	session, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = registry.JoinSession(session.ID, "conn-b", ParticipantInfo{Nickname: "bob"})
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = registry.JoinSession(session.ID, "conn-c", ParticipantInfo{Nickname: "carol"})
	require.NoError(t, err)

	result, ok := registry.LeaveSession("conn-a")
	require.True(t, ok)

	assert.True(t, result.WasHost)
	assert.False(t, result.Deleted)
	assert.Equal(t, "conn-b", result.NewHostID)
	assert.Equal(t, "conn-b", result.Session.HostConnectionID)

	// exactly one participant holds the host flag afterwards
	hosts := 0
	for _, p := range result.Session.Roster {
		if p.IsHost {
			hosts++
			assert.Equal(t, "conn-b", p.ConnectionID)
		}
	}
	assert.Equal(t, 1, hosts)

	// the connection index reflects the promotion
	assert.True(t, registry.IsHost("conn-b"))
	assert.False(t, registry.IsHost("conn-c"))
}

func TestLeaveNonHostKeepsHost(t *testing.T) {
	registry, clock := newTestRegistry()

	session, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = registry.JoinSession(session.ID, "conn-b", ParticipantInfo{Nickname: "bob"})
	require.NoError(t, err)

	result, ok := registry.LeaveSession("conn-b")
	require.True(t, ok)

	assert.False(t, result.WasHost)
	assert.Empty(t, result.NewHostID)
	assert.Equal(t, "conn-a", result.Session.HostConnectionID)
	assert.True(t, registry.IsHost("conn-a"))
}

func TestLeaveLastParticipantDeletesSession(t *testing.T) {
	registry, _ := newTestRegistry()

	session, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	result, ok := registry.LeaveSession("conn-a")
	require.True(t, ok)

	assert.True(t, result.Deleted)
	assert.True(t, result.WasHost)
	assert.Empty(t, result.Session.Roster)

	_, exists := registry.GetSession(session.ID)
	assert.False(t, exists)

	assert.Equal(t, 0, registry.SessionCount())
	assert.Equal(t, 0, registry.ConnectionCount())
}

func TestLeaveIsIdempotent(t *testing.T) {
	registry, _ := newTestRegistry()

	_, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	_, ok := registry.LeaveSession("conn-a")
	require.True(t, ok)

	_, ok = registry.LeaveSession("conn-a")
	assert.False(t, ok)

	_, ok = registry.LeaveSession("never-joined")
	assert.False(t, ok)
}

func TestChatMessageTruncation(t *testing.T) {
	registry, _ := newTestRegistry()

	session, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	long := strings.Repeat("x", 250)

	msg, updated, ok := registry.AddChatMessage(session.ID, "ada", "", long)
	require.True(t, ok)

	assert.Len(t, []rune(msg.Text), MaxMessageLength)
	require.Len(t, updated.Chat, 1)
	assert.Len(t, []rune(updated.Chat[0].Text), MaxMessageLength)
	assert.Equal(t, "ada", msg.Sender)
	assert.NotEmpty(t, msg.ID)
}

func TestChatHistoryCap(t *testing.T) {
	registry, _ := newTestRegistry()

	session, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	for i := 0; i <= MaxChatMessages; i++ {
		_, _, ok := registry.AddChatMessage(session.ID, "ada", "", fmt.Sprintf("msg-%d", i))
		require.True(t, ok)
	}

	updated, exists := registry.GetSession(session.ID)
	require.True(t, exists)

	require.Len(t, updated.Chat, MaxChatMessages)

	// the oldest entry was dropped silently
	assert.Equal(t, "msg-1", updated.Chat[0].Text)
	assert.Equal(t, fmt.Sprintf("msg-%d", MaxChatMessages), updated.Chat[MaxChatMessages-1].Text)
}

func TestUpdateTimerStatePartialMerge(t *testing.T) {
	registry, _ := newTestRegistry()

	session, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	// move the timer off its defaults first
	seeded, ok := registry.UpdateTimerState(session.ID, TimerStatePatch{
		CurrentPhase:    strPtr(PhaseShortBreak),
		TimeRemaining:   intPtr(300),
		RoundsCompleted: intPtr(2),
	})
	require.True(t, ok)
	require.Equal(t, PhaseShortBreak, seeded.TimerState.CurrentPhase)

	// a single-field patch leaves every other field untouched
	updated, ok := registry.UpdateTimerState(session.ID, TimerStatePatch{
		IsRunning: boolPtr(true),
	})
	require.True(t, ok)

	assert.True(t, updated.TimerState.IsRunning)
	assert.Equal(t, PhaseShortBreak, updated.TimerState.CurrentPhase)
	assert.Equal(t, 300, updated.TimerState.TimeRemaining)
	assert.Equal(t, 2, updated.TimerState.RoundsCompleted)
	assert.Equal(t, DefaultTotalRounds, updated.TimerState.TotalRounds)
}

func TestUpdateTimerStateUnknownSession(t *testing.T) {
	registry, _ := newTestRegistry()

	_, ok := registry.UpdateTimerState("no-such-session", TimerStatePatch{IsRunning: boolPtr(true)})
	assert.False(t, ok)
}

func TestSweepInactiveBoundaries(t *testing.T) {
	registry, clock := newTestRegistry()

	session, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	// just inside the retention window: untouched
	almost := clock.Now().Add(23*time.Hour + 59*time.Minute)
	assert.Equal(t, 0, registry.SweepInactive(almost, DefaultMaxIdle))

	_, exists := registry.GetSession(session.ID)
	assert.True(t, exists)

	// just past the window: evicted, and its connections unindexed
	past := clock.Now().Add(24*time.Hour + 1*time.Minute)
	assert.Equal(t, 1, registry.SweepInactive(past, DefaultMaxIdle))

	_, exists = registry.GetSession(session.ID)
	assert.False(t, exists)

	_, bound := registry.GetSessionForConnection("conn-a")
	assert.False(t, bound)
	assert.Equal(t, 0, registry.ConnectionCount())
}

func TestSweepSparesActiveSessions(t *testing.T) {
	registry, clock := newTestRegistry()

	stale, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)

	fresh, err := registry.CreateSession("conn-b", ParticipantInfo{Nickname: "bob"})
	require.NoError(t, err)

	assert.Equal(t, 1, registry.SweepInactive(clock.Now(), DefaultMaxIdle))

	_, exists := registry.GetSession(stale.ID)
	assert.False(t, exists)

	_, exists = registry.GetSession(fresh.ID)
	assert.True(t, exists)
}

func TestGetSessionForConnection(t *testing.T) {
	registry, _ := newTestRegistry()

	session, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	found, bound := registry.GetSessionForConnection("conn-a")
	require.True(t, bound)
	assert.Equal(t, session.ID, found.ID)

	_, bound = registry.GetSessionForConnection("conn-unknown")
	assert.False(t, bound)
}

func TestRosterOrderIsStable(t *testing.T) {
	registry, clock := newTestRegistry()

	session, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = registry.JoinSession(session.ID, "conn-c", ParticipantInfo{Nickname: "carol"})
	require.NoError(t, err)

	clock.Advance(time.Second)
	updated, err := registry.JoinSession(session.ID, "conn-b", ParticipantInfo{Nickname: "bob"})
	require.NoError(t, err)

	// join order, not map order
	require.Len(t, updated.Roster, 3)
	assert.Equal(t, "conn-a", updated.Roster[0].ConnectionID)
	assert.Equal(t, "conn-c", updated.Roster[1].ConnectionID)
	assert.Equal(t, "conn-b", updated.Roster[2].ConnectionID)
}

func TestSnapshotIsDetached(t *testing.T) {
	registry, _ := newTestRegistry()

	session, err := registry.CreateSession("conn-a", ParticipantInfo{Nickname: "ada"})
	require.NoError(t, err)

	before, exists := registry.GetSession(session.ID)
	require.True(t, exists)

	_, _, ok := registry.AddChatMessage(session.ID, "ada", "", "hello")
	require.True(t, ok)

	// the earlier snapshot does not observe later mutations
	assert.Empty(t, before.Chat)
}
