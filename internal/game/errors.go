package game

import (
	"errors"

	"github.com/swingpong/backend/internal/physics"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionOver       = errors.New("session has ended")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrUnknownSide       = errors.New("unknown paddle side")
	ErrTooManySessions   = errors.New("too many active sessions")
)

// ParseSide maps "left"/"right" (or "player1"/"player2") to a paddle side.
func ParseSide(s string) (physics.Side, error) {
	switch s {
	case "left", "1", "player1":
		return physics.Left, nil
	case "right", "2", "player2":
		return physics.Right, nil
	}
	return physics.Left, ErrUnknownSide
}
