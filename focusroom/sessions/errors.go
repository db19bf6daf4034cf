package sessions

import "errors"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionFull      = errors.New("session is full")
	ErrAlreadyInSession = errors.New("connection already belongs to a session")
)
