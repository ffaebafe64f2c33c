package viewer

import (
	"fmt"
	"strings"
)

// Mode is the rendering perspective of the viewer.
type Mode string

const (
	Mode2D Mode = "2d"
	Mode3D Mode = "3d"
)

// Other returns the opposite mode.
func (m Mode) Other() Mode {
	if m == Mode3D {
		return Mode2D
	}
	return Mode3D
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == Mode2D || m == Mode3D
}

// ParseMode parses "2d" or "3d" (case-insensitive). An empty string yields
// Mode3D.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return Mode3D, nil
	case "2d":
		return Mode2D, nil
	case "3d":
		return Mode3D, nil
	default:
		return "", fmt.Errorf("viewer: unknown mode %q", s)
	}
}

// State is the lifecycle state of a Session.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
