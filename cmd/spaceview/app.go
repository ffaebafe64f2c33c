package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/spaceview/pkg/viewer"
)

const appTitle = "Space viewer"

// keyMap holds the bindings shown in the footer.
type keyMap struct {
	Toggle key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding { return []key.Binding{k.Toggle, k.Quit} }

func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

func defaultKeyMap() keyMap {
	return keyMap{
		Toggle: key.NewBinding(key.WithKeys("m", "t", " "), key.WithHelp("m", "switch 2D/3D")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

// appModel is the terminal host. It mirrors the session through the bridge:
// it never reads session state from the render path.
type appModel struct {
	ctx          context.Context
	sess         *viewer.Session
	cancelBridge context.CancelFunc

	spinner spinner.Model
	keys    keyMap
	help    help.Model

	mode     viewer.Mode
	ready    bool
	toggling bool
	errMsg   string // fatal start failure
	errGuess bool   // errMsg came from Status, not from a notification
	notice   string // last non-fatal error
	width    int
}

func newAppModel(ctx context.Context, sess *viewer.Session) appModel {
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(spinnerStyle))
	cfg := sess.Config()

	keys := defaultKeyMap()
	keys.Toggle.SetEnabled(cfg.AllowModeChange)

	mode := cfg.InitialMode
	if !mode.Valid() {
		mode = viewer.Mode3D
	}

	return appModel{
		ctx:     ctx,
		sess:    sess,
		spinner: sp,
		keys:    keys,
		help:    help.New(),
		mode:    mode,
	}
}

func (m appModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		initMarkdownRenderer(msg.Width - 4)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case programReadyMsg:
		m.cancelBridge = startBridge(m.ctx, msg.program, m.sess)
		return m, m.startCmd()

	case sessionStartedMsg:
		if msg.err != nil && m.errMsg == "" {
			m.errMsg = msg.err.Error()
		}
		return m, nil

	case viewerReadyMsg:
		m.ready = true
		m.mode = msg.mode
		return m, nil

	case viewerErrorMsg:
		if m.ready {
			m.notice = msg.message
		} else if m.errMsg == "" || m.errGuess {
			m.errMsg = msg.message
			m.errGuess = false
		}
		return m, nil

	case modeChangedMsg:
		m.mode = msg.mode
		return m, nil

	case toggleDoneMsg:
		m.toggling = false
		return m, nil

	case sessionClosedMsg:
		m.ready = false
		return m, nil

	case spinner.TickMsg:
		m.reconcile(m.sess.Status())
		if m.settled() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.cancelBridge != nil {
			m.cancelBridge()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		if !m.canToggle() {
			return m, nil
		}
		m.toggling = true
		m.notice = ""
		return m, m.toggleCmd()
	}

	return m, nil
}

// reconcile catches up with ready or failure notifications the bridge
// dropped because its buffer was full.
func (m *appModel) reconcile(st viewer.Status) {
	switch st.State {
	case viewer.StateReady:
		if !m.ready {
			m.ready = true
			m.mode = st.Mode
		}
	case viewer.StateFailed:
		if m.errMsg == "" && st.Err != nil {
			m.errMsg = st.Err.Error()
			m.errGuess = true
		}
	}
}

// canToggle reports whether the mode button is enabled.
func (m appModel) canToggle() bool {
	return m.ready && m.errMsg == "" && m.sess.Config().AllowModeChange && !m.toggling
}

// settled reports whether the loading spinner can stop.
func (m appModel) settled() bool {
	return m.ready || m.errMsg != ""
}

// startCmd starts the session. A synchronous failure, such as a
// configuration error, comes back as the message's err.
func (m appModel) startCmd() tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		return sessionStartedMsg{err: sess.Start(ctx)}
	}
}

func (m appModel) toggleCmd() tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		return toggleDoneMsg{toggled: sess.ToggleMode(ctx)}
	}
}

func (m appModel) View() string {
	var parts []string

	parts = append(parts, m.headerView(), "")

	if m.errMsg != "" {
		parts = append(parts, m.errorView())
	} else {
		parts = append(parts, m.bodyView())
	}

	if m.notice != "" {
		width := m.width
		if width == 0 {
			width = 80
		}
		parts = append(parts, "", noticeStyle.Render(truncate(m.notice, width)))
	}

	parts = append(parts, "", m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m appModel) headerView() string {
	title := brandStyle.Render("◆ ") + titleStyle.Render(appTitle)

	var pill string
	switch {
	case m.errMsg != "":
		pill = failedPillStyle.Render("Failed")
	case m.ready:
		pill = livePillStyle.Render("Live")
	default:
		pill = loadingPillStyle.Render(m.spinner.View() + " Loading")
	}

	left := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", pill)
	return spread(left, m.buttonView(), m.width)
}

// buttonLabel names the mode the button switches to.
func (m appModel) buttonLabel() string {
	return fmt.Sprintf("Switch to %s", strings.ToUpper(string(m.mode.Other())))
}

func (m appModel) buttonView() string {
	label := m.buttonLabel()
	if !m.canToggle() {
		return buttonDisabledStyle.Render(label)
	}
	return buttonStyle.Render(label)
}

func (m appModel) bodyView() string {
	mount := m.sess.Config().MountID
	if !m.ready {
		return dimStyle.Render(fmt.Sprintf("Loading space into #%s…", mount))
	}
	lines := []string{
		fmt.Sprintf("Viewer mounted in #%s, showing the %s view.", mount, strings.ToUpper(string(m.mode))),
		dimStyle.Render("Drag to orbit and scroll to zoom in the viewer window."),
	}
	return strings.Join(lines, "\n")
}

func (m appModel) errorView() string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		errorTitleStyle.Render("Couldn't load the viewer"),
		m.errMsg,
		"",
		renderMarkdown(setupHint),
	)
	return errorPanelStyle.Render(body)
}
