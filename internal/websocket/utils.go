package websocket

import (
	"crypto/rand"
	"encoding/hex"
)

// returns a process-unique connection identifier
func GenerateConnectionID() (string, error) {
	bytes := make([]byte, 16)

	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	return hex.EncodeToString(bytes), nil
}
