package main

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/spaceview/pkg/hostconfig"
	"github.com/germanamz/spaceview/pkg/viewer"
	"github.com/germanamz/spaceview/pkg/viewer/viewertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(t *testing.T, cfg viewer.Config, opts ...viewer.Option) (*viewer.Session, *viewertest.Engine) {
	t.Helper()

	sess, _, eng := testSessionWithLoader(t, cfg, opts...)
	return sess, eng
}

func testSessionWithLoader(t *testing.T, cfg viewer.Config, opts ...viewer.Option) (*viewer.Session, *viewertest.Loader, *viewertest.Engine) {
	t.Helper()

	eng := viewertest.NewEngine()
	loader := viewertest.NewLoader(eng)
	sess := viewer.New(cfg, loader, opts...)
	t.Cleanup(sess.Dispose)

	return sess, loader, eng
}

func testModel(t *testing.T, cfg viewer.Config) (appModel, *viewer.Session, *viewertest.Engine) {
	t.Helper()

	sess, eng := testSession(t, cfg)
	return newAppModel(context.Background(), sess), sess, eng
}

func update(t *testing.T, m appModel, msg tea.Msg) (appModel, tea.Cmd) {
	t.Helper()

	next, cmd := m.Update(msg)
	am, ok := next.(appModel)
	require.True(t, ok)
	return am, cmd
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestAppModel_InitialView(t *testing.T) {
	m, _, _ := testModel(t, viewer.DefaultConfig("space", "token"))

	view := m.View()
	assert.Contains(t, view, appTitle)
	assert.Contains(t, view, "Loading")
	assert.Contains(t, view, "Switch to 2D")
	assert.Contains(t, view, "#"+viewer.DefaultMountID)
	assert.False(t, m.canToggle())
}

func TestAppModel_InitialModeLabel(t *testing.T) {
	cfg := viewer.DefaultConfig("space", "token")
	cfg.InitialMode = viewer.Mode2D
	m, _, _ := testModel(t, cfg)

	assert.Contains(t, m.View(), "Switch to 3D")
}

func TestAppModel_Ready(t *testing.T) {
	m, _, _ := testModel(t, viewer.DefaultConfig("space", "token"))

	m, _ = update(t, m, viewerReadyMsg{mode: viewer.Mode3D})

	view := m.View()
	assert.Contains(t, view, "Live")
	assert.NotContains(t, view, "Loading")
	assert.Contains(t, view, "showing the 3D view")
	assert.True(t, m.canToggle())
}

func TestAppModel_ModeChangeUpdatesLabel(t *testing.T) {
	m, _, _ := testModel(t, viewer.DefaultConfig("space", "token"))

	m, _ = update(t, m, viewerReadyMsg{mode: viewer.Mode3D})
	m, _ = update(t, m, modeChangedMsg{mode: viewer.Mode2D})

	assert.Contains(t, m.View(), "Switch to 3D")
	assert.Contains(t, m.View(), "showing the 2D view")
}

func TestAppModel_StartFailureShowsErrorPanel(t *testing.T) {
	m, _, _ := testModel(t, viewer.DefaultConfig("space", "token"))

	m, _ = update(t, m, viewerErrorMsg{message: "Failed to load the viewer engine: offline"})

	view := m.View()
	assert.Contains(t, view, "Couldn't load the viewer")
	assert.Contains(t, view, "Failed to load the viewer engine: offline")
	assert.Contains(t, view, "SPACE_ID")
	assert.Contains(t, view, "Failed")
	assert.False(t, m.canToggle())
}

func TestAppModel_ErrorAfterReadyIsNotice(t *testing.T) {
	m, _, _ := testModel(t, viewer.DefaultConfig("space", "token"))

	m, _ = update(t, m, viewerReadyMsg{mode: viewer.Mode3D})
	m, _ = update(t, m, viewerErrorMsg{message: "Could not switch to 2d view."})

	view := m.View()
	assert.Contains(t, view, "Live")
	assert.Contains(t, view, "Could not switch to 2d view.")
	assert.NotContains(t, view, "Couldn't load the viewer")
	assert.True(t, m.canToggle())
}

func TestAppModel_FirstStartErrorWins(t *testing.T) {
	m, _, _ := testModel(t, viewer.DefaultConfig("space", "token"))

	m, _ = update(t, m, viewerErrorMsg{message: "first"})
	m, _ = update(t, m, sessionStartedMsg{err: errors.New("second")})

	assert.Equal(t, "first", m.errMsg)
}

func TestAppModel_ToggleLocked(t *testing.T) {
	cfg := viewer.DefaultConfig("space", "token")
	cfg.AllowModeChange = false
	m, _, _ := testModel(t, cfg)

	m, _ = update(t, m, viewerReadyMsg{mode: viewer.Mode3D})
	m, cmd := update(t, m, keyMsg("m"))

	assert.Nil(t, cmd)
	assert.False(t, m.toggling)
	assert.Contains(t, m.View(), "Switch to 2D")
}

func TestAppModel_ToggleBeforeReadyIgnored(t *testing.T) {
	m, _, _ := testModel(t, viewer.DefaultConfig("space", "token"))

	_, cmd := update(t, m, keyMsg("m"))
	assert.Nil(t, cmd)
}

func TestAppModel_ToggleCallsSession(t *testing.T) {
	m, sess, eng := testModel(t, viewer.DefaultConfig("space", "token"))

	require.NoError(t, sess.Start(context.Background()))
	select {
	case <-eng.Started():
	case <-time.After(time.Second):
		t.Fatal("engine not started")
	}
	eng.Ready()

	m, _ = update(t, m, viewerReadyMsg{mode: viewer.Mode3D})
	m, cmd := update(t, m, keyMsg("m"))
	require.NotNil(t, cmd)
	assert.True(t, m.toggling)
	assert.False(t, m.canToggle())

	msg := cmd()
	assert.Equal(t, toggleDoneMsg{toggled: true}, msg)
	assert.Equal(t, []viewer.Mode{viewer.Mode2D}, eng.Modes())

	m, _ = update(t, m, msg)
	assert.False(t, m.toggling)
}

func TestAppModel_Quit(t *testing.T) {
	m, _, _ := testModel(t, viewer.DefaultConfig("space", "token"))

	_, cmd := update(t, m, keyMsg("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestAppModel_MissingCredentialsFailSession(t *testing.T) {
	hostErr := &viewer.ConfigurationError{
		Missing: []string{hostconfig.EnvSpaceID, hostconfig.EnvClientToken},
		Hint:    hostconfig.MissingHint,
	}
	sess, loader, _ := testSessionWithLoader(t, viewer.Config{}, viewer.WithConfigError(hostErr))
	m := newAppModel(context.Background(), sess)

	msg := m.startCmd()()
	started, ok := msg.(sessionStartedMsg)
	require.True(t, ok)
	assert.ErrorIs(t, started.err, hostErr)
	assert.Equal(t, viewer.StateFailed, sess.Status().State)
	assert.Equal(t, 0, loader.Loads())

	m, _ = update(t, m, started)
	assert.Contains(t, m.View(), "missing SPACE_ID or CLIENT_TOKEN. Add them to .env.local.")
}

func TestAppModel_InvalidSettingWithCredentialsNeverStartsEngine(t *testing.T) {
	env := map[string]string{
		hostconfig.EnvSpaceID:      "s1",
		hostconfig.EnvClientToken:  "t1",
		hostconfig.EnvStartTimeout: "soon",
	}
	settings, cfgErr := hostconfig.Resolve(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}, hostconfig.File{})
	require.Error(t, cfgErr)
	require.NoError(t, settings.Viewer.Validate())

	sess, loader, eng := testSessionWithLoader(t, settings.Viewer, viewer.WithConfigError(cfgErr))
	m := newAppModel(context.Background(), sess)

	msg := m.startCmd()()
	started, ok := msg.(sessionStartedMsg)
	require.True(t, ok)
	require.Error(t, started.err)

	m, _ = update(t, m, started)

	assert.Equal(t, viewer.StateFailed, sess.Status().State)
	assert.Equal(t, 0, loader.Loads())
	assert.Equal(t, 0, eng.Starts())
	assert.False(t, m.canToggle())

	view := m.View()
	assert.Contains(t, view, "Failed")
	assert.Contains(t, view, `invalid start timeout "soon"`)
}

func TestAppModel_ReconcilesMissedReady(t *testing.T) {
	m, sess, eng := testModel(t, viewer.DefaultConfig("space", "token"))

	require.NoError(t, sess.Start(context.Background()))
	select {
	case <-eng.Started():
	case <-time.After(time.Second):
		t.Fatal("engine not started")
	}
	eng.Ready()

	// No viewerReadyMsg: the notification was dropped.
	m, _ = update(t, m, m.spinner.Tick())

	assert.True(t, m.ready)
	assert.Contains(t, m.View(), "Live")
	assert.True(t, m.canToggle())
}

func TestAppModel_ReconciledFailureTakesNotificationMessage(t *testing.T) {
	sess, _ := testSession(t, viewer.Config{})
	m := newAppModel(context.Background(), sess)
	require.Error(t, sess.Start(context.Background()))

	m, _ = update(t, m, m.spinner.Tick())
	require.NotEmpty(t, m.errMsg)
	assert.Contains(t, m.View(), "Couldn't load the viewer")

	m, _ = update(t, m, viewerErrorMsg{message: "friendly message"})
	assert.Equal(t, "friendly message", m.errMsg)

	m, _ = update(t, m, viewerErrorMsg{message: "later"})
	assert.Equal(t, "friendly message", m.errMsg)
}

func TestAppModel_StartCmd(t *testing.T) {
	m, sess, _ := testModel(t, viewer.DefaultConfig("space", "token"))

	msg := m.startCmd()()
	assert.Equal(t, sessionStartedMsg{}, msg)
	assert.NotEqual(t, viewer.StateUninitialized, sess.Status().State)
}

func TestAppModel_SpinnerStopsWhenSettled(t *testing.T) {
	m, _, _ := testModel(t, viewer.DefaultConfig("space", "token"))

	m, _ = update(t, m, viewerReadyMsg{mode: viewer.Mode3D})
	_, cmd := update(t, m, m.spinner.Tick())
	assert.Nil(t, cmd)
}

func TestEventMsg(t *testing.T) {
	assert.Equal(t, viewerReadyMsg{mode: viewer.Mode2D}, eventMsg(viewer.Event{Kind: viewer.EventReady, Mode: viewer.Mode2D}))
	assert.Equal(t, modeChangedMsg{mode: viewer.Mode3D}, eventMsg(viewer.Event{Kind: viewer.EventModeChanged, Mode: viewer.Mode3D}))
	assert.Equal(t, viewerErrorMsg{message: "boom"}, eventMsg(viewer.Event{Kind: viewer.EventError, Message: "boom"}))
	assert.Nil(t, eventMsg(viewer.Event{Kind: "other"}))
}
