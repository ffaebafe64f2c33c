package control

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/germanamz/spaceview/pkg/viewer"
)

// Handler executes a tool with the given JSON input and returns a text result.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool is a named operation with a JSON Schema for its input.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Tool names.
const (
	ToolStatus     = "viewer_status"
	ToolWaitReady  = "viewer_wait_ready"
	ToolToggleMode = "viewer_toggle_mode"
)

// defaultWait bounds viewer_wait_ready when no timeout is given.
const defaultWait = 30 * time.Second

// StatusOutput is the JSON result of the status and toggle tools.
type StatusOutput struct {
	SessionID       string      `json:"session_id"`
	State           string      `json:"state"`
	Mode            viewer.Mode `json:"mode,omitempty"`
	AllowModeChange bool        `json:"allow_mode_change"`
	Error           string      `json:"error,omitempty"`
	Toggled         *bool       `json:"toggled,omitempty"`
}

type waitInput struct {
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

// Tools returns the control tools for s.
func Tools(s *viewer.Session) []Tool {
	return []Tool{
		{
			Name:        ToolStatus,
			Description: "Report the viewer's lifecycle state (uninitialized, initializing, ready, failed, disposed), its current 2d/3d mode, and the failure message if it failed.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler: func(_ context.Context, _ json.RawMessage) (string, error) {
				return marshalStatus(s.Status(), nil)
			},
		},
		{
			Name:        ToolWaitReady,
			Description: "Wait until the viewer is ready, has failed, or was disposed, then report its status. Times out after timeout_seconds (default 30).",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"timeout_seconds":{"type":"number","description":"Maximum time to wait in seconds"}}}`),
			Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in waitInput
				if len(input) > 0 {
					if err := json.Unmarshal(input, &in); err != nil {
						return "", fmt.Errorf("%s: invalid input: %w", ToolWaitReady, err)
					}
				}
				d := defaultWait
				if in.TimeoutSeconds > 0 {
					d = time.Duration(in.TimeoutSeconds * float64(time.Second))
				}
				st, err := WaitSettled(ctx, s, d)
				if err != nil {
					return "", fmt.Errorf("%s: %w", ToolWaitReady, err)
				}
				return marshalStatus(st, nil)
			},
		},
		{
			Name:        ToolToggleMode,
			Description: "Switch the viewer between 2d and 3d. Ignored unless the viewer is ready and mode changes are allowed; the result's toggled field says whether a switch was issued.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler: func(ctx context.Context, _ json.RawMessage) (string, error) {
				toggled := s.ToggleMode(ctx)
				return marshalStatus(s.Status(), &toggled)
			},
		},
	}
}

// WaitSettled blocks until s leaves the uninitialized and initializing
// states, d elapses, or ctx is done.
func WaitSettled(ctx context.Context, s *viewer.Session, d time.Duration) (viewer.Status, error) {
	events := s.Events()
	sub := events.Subscribe(8)
	defer events.Unsubscribe(sub)

	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		st := s.Status()
		if settled(st.State) {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-timer.C:
			return st, fmt.Errorf("viewer still %s after %s", st.State, d)
		case _, ok := <-sub.C:
			if !ok {
				return s.Status(), nil
			}
		}
	}
}

func settled(st viewer.State) bool {
	return st == viewer.StateReady || st == viewer.StateFailed || st == viewer.StateDisposed
}

func marshalStatus(st viewer.Status, toggled *bool) (string, error) {
	out := StatusOutput{
		SessionID:       st.ID,
		State:           st.State.String(),
		AllowModeChange: st.AllowModeChange,
		Toggled:         toggled,
	}
	if st.State == viewer.StateInitializing || st.State == viewer.StateReady {
		out.Mode = st.Mode
	}
	if st.Err != nil {
		out.Error = st.Err.Error()
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal status: %w", err)
	}
	return string(data), nil
}
