package websocket

import (
	"strings"

	"github.com/focusroom/server/focusroom/sessions"
	"github.com/focusroom/server/internal/errors"
	"github.com/focusroom/server/internal/logger"
)

// handles create_session requests. The requester becomes the sole
// participant and host of the new session.
func CreateSessionHandler() MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		var payload CreateSessionPayload

		if len(msg.Payload) > 0 {
			if err := msg.UnmarshalPayload(&payload); err != nil {
				client.SendError(errors.CodeBadRequest, "failed to parse create_session request", err.Error())
				return err
			}
		}

		if client.Session() != "" {
			client.SendError(errors.CodeBadRequest, "connection already belongs to a session", "")
			return ErrInvalidMessage
		}

		nickname := strings.TrimSpace(payload.Nickname)
		if nickname == "" {
			nickname = defaultNickname
		}

		session, err := hub.registry.CreateSession(client.ID, sessions.ParticipantInfo{
			Nickname: nickname,
			Avatar:   payload.Avatar,
		})
		if err != nil {
			client.SendError(errors.CodeBadRequest, "failed to create session", err.Error())
			return err
		}

		client.Nickname = nickname
		client.Avatar = payload.Avatar
		hub.bindClient(session.ID, client)

		reply, err := NewMessage(TypeSessionCreated, session.ID, SessionStatePayload{
			SessionID:    session.ID,
			ConnectionID: client.ID,
			HostID:       session.HostConnectionID,
			Participants: session.Roster,
			TimerState:   session.TimerState,
			ChatHistory:  session.Chat,
		})
		if err != nil {
			return err
		}

		logger.Info("session created",
			"session_id", session.ID,
			"host", client.ID,
			"nickname", nickname,
		)

		return client.Send(reply)
	}
}

// handles join_session requests
func JoinSessionHandler() MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		var payload JoinSessionPayload

		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError(errors.CodeBadRequest, "failed to parse join_session request", err.Error())
			return err
		}

		if payload.SessionID == "" {
			client.SendError(errors.CodeBadRequest, "missing session_id", "")
			return ErrInvalidMessage
		}

		if client.Session() != "" {
			client.SendError(errors.CodeBadRequest, "connection already belongs to a session", "")
			return ErrInvalidMessage
		}

		nickname := strings.TrimSpace(payload.Nickname)
		if nickname == "" {
			nickname = defaultNickname
		}

		session, err := hub.registry.JoinSession(payload.SessionID, client.ID, sessions.ParticipantInfo{
			Nickname: nickname,
			Avatar:   payload.Avatar,
		})
		if err != nil {
			switch err {
			case sessions.ErrSessionNotFound:
				client.SendError(errors.CodeSessionNotFound, "session not found", "")
			case sessions.ErrSessionFull:
				client.SendError(errors.CodeSessionFull, "session is full", "")
			default:
				client.SendError(errors.CodeBadRequest, "failed to join session", err.Error())
			}

			return err
		}

		client.Nickname = nickname
		client.Avatar = payload.Avatar
		hub.bindClient(session.ID, client)

		reply, err := NewMessage(TypeSessionJoined, session.ID, SessionStatePayload{
			SessionID:    session.ID,
			ConnectionID: client.ID,
			HostID:       session.HostConnectionID,
			Participants: session.Roster,
			TimerState:   session.TimerState,
			ChatHistory:  session.Chat,
		})
		if err != nil {
			return err
		}

		if sendErr := client.Send(reply); sendErr != nil {
			logger.ErrorErr(sendErr, "failed to send session_joined",
				"connection_id", client.ID,
				"session_id", session.ID,
			)
		}

		var joined sessions.Participant
		for _, p := range session.Roster {
			if p.ConnectionID == client.ID {
				joined = p
				break
			}
		}

		announce, err := NewMessage(TypeParticipantJoined, session.ID, ParticipantJoinedPayload{
			Participant:  joined,
			Participants: session.Roster,
		})
		if err != nil {
			return err
		}

		hub.BroadcastToSession(session.ID, announce, client.ID)

		logger.Info("participant joined",
			"session_id", session.ID,
			"connection_id", client.ID,
			"nickname", nickname,
			"participants", len(session.Roster),
		)

		return nil
	}
}

// handles explicit leave_session requests. The connection stays open and
// may create or join another session afterwards.
func LeaveSessionHandler() MessageHandler {
	return func(hub *Hub, client *Client, _ *Message) error {
		hub.leaveClient(client)
		return nil
	}
}

// handles host timer actions. Requests from non-hosts are dropped without a
// reply: only the host's UI shows timer controls, so anything else is a
// stale or forged frame.
func TimerActionHandler() MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		sessionID := client.Session()
		if sessionID == "" {
			return ErrNotInSession
		}

		if !hub.registry.IsHost(client.ID) {
			logger.Debug("timer_action from non-host dropped",
				"session_id", sessionID,
				"connection_id", client.ID,
			)
			return ErrNotHost
		}

		if !client.allowTimerAction() {
			client.SendError(errors.CodeTooManyRequests, "too many timer actions", "")
			return ErrRateLimitExceeded
		}

		var payload TimerActionPayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError(errors.CodeBadRequest, "failed to parse timer_action request", err.Error())
			return err
		}

		session, ok := hub.registry.UpdateTimerState(sessionID, payload.Timer)
		if !ok {
			client.SendError(errors.CodeSessionNotFound, "session not found", "")
			return sessions.ErrSessionNotFound
		}

		update, err := NewMessage(TypeTimerUpdate, sessionID, TimerUpdatePayload{
			Action:     payload.Action,
			TimerState: session.TimerState,
			UpdatedAt:  session.LastActivity,
		})
		if err != nil {
			return err
		}

		// everyone gets the echo, the acting host included, so all UIs
		// reconcile off the same authoritative state
		hub.BroadcastToSession(sessionID, update, "")

		return nil
	}
}

// handles chat messages
func ChatMessageHandler() MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		sessionID := client.Session()
		if sessionID == "" {
			client.SendError(errors.CodeBadRequest, "join a session before sending messages", "")
			return ErrNotInSession
		}

		if !client.allowChatMessage() {
			client.SendError(errors.CodeTooManyRequests, "too many chat messages", "")
			return ErrRateLimitExceeded
		}

		var payload ChatMessagePayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError(errors.CodeBadRequest, "failed to parse chat_message request", err.Error())
			return err
		}

		text := strings.TrimSpace(payload.Text)
		if text == "" {
			client.SendError(errors.CodeBadRequest, "message cannot be empty", "")
			return ErrInvalidMessage
		}

		stored, _, ok := hub.registry.AddChatMessage(sessionID, client.Nickname, client.Avatar, text)
		if !ok {
			client.SendError(errors.CodeSessionNotFound, "session not found", "")
			return sessions.ErrSessionNotFound
		}

		broadcast, err := NewMessage(TypeNewMessage, sessionID, NewMessagePayload{
			Message: stored,
		})
		if err != nil {
			return err
		}

		// broadcast to all participants, including the sender
		hub.BroadcastToSession(sessionID, broadcast, "")

		return nil
	}
}

// handles read-only session lookups
func GetSessionInfoHandler() MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		var payload GetSessionInfoPayload

		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError(errors.CodeBadRequest, "failed to parse get_session_info request", err.Error())
			return err
		}

		if payload.SessionID == "" {
			client.SendError(errors.CodeBadRequest, "missing session_id", "")
			return ErrInvalidMessage
		}

		session, exists := hub.registry.GetSession(payload.SessionID)
		if !exists {
			client.SendError(errors.CodeSessionNotFound, "session not found", "")
			return sessions.ErrSessionNotFound
		}

		reply, err := NewMessage(TypeSessionInfo, session.ID, SessionInfoPayload{
			SessionID:    session.ID,
			HostID:       session.HostConnectionID,
			Participants: session.Roster,
			TimerState:   session.TimerState,
		})
		if err != nil {
			return err
		}

		return client.Send(reply)
	}
}

// handles ping messages from clients (keep-alive)
func PingHandler() MessageHandler {
	return func(_ *Hub, client *Client, _ *Message) error {
		pongMsg, err := NewMessage(TypePong, client.Session(), nil)
		if err != nil {
			return err
		}

		client.Send(pongMsg) //nolint:errcheck,gosec // best-effort pong
		return nil
	}
}
