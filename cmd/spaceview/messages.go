package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/spaceview/pkg/viewer"
)

// programReadyMsg carries the program reference so the model can start the
// bridge once the event loop is running.
type programReadyMsg struct {
	program *tea.Program
}

// sessionStartedMsg reports the synchronous result of Session.Start.
type sessionStartedMsg struct {
	err error
}

// viewerReadyMsg is sent when the engine reports readiness.
type viewerReadyMsg struct {
	mode viewer.Mode
}

// viewerErrorMsg is sent for every error notification. Before the viewer is
// ready it means the start failed.
type viewerErrorMsg struct {
	message string
}

// modeChangedMsg is sent when the displayed mode changes.
type modeChangedMsg struct {
	mode viewer.Mode
}

// toggleDoneMsg is sent when a toggle request returns.
type toggleDoneMsg struct {
	toggled bool
}

// sessionClosedMsg is sent when the session's event bus closes.
type sessionClosedMsg struct{}
