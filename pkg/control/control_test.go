package control

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/germanamz/spaceview/pkg/viewer"
	"github.com/germanamz/spaceview/pkg/viewer/viewertest"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, cfg viewer.Config) (*viewer.Session, *viewertest.Engine) {
	t.Helper()

	eng := viewertest.NewEngine()
	s := viewer.New(cfg, viewertest.NewLoader(eng), viewer.WithID("sess-1"))
	t.Cleanup(s.Dispose)
	return s, eng
}

// setupTestClient serves the session's tools over in-memory transports and
// returns a connected client session.
func setupTestClient(t *testing.T, s *viewer.Session) *mcp.ClientSession {
	t.Helper()

	srv := NewServer("spaceview-test", "1.0.0", Tools(s)...)
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.run(ctx, serverTransport)
	}()
	t.Cleanup(func() {
		cancel()
		<-serverDone
	})

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (StatusOutput, *mcp.CallToolResult) {
	t.Helper()

	if args == nil {
		args = map[string]any{}
	}
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)

	var out StatusOutput
	if !result.IsError {
		require.NoError(t, json.Unmarshal([]byte(tc.Text), &out))
	}
	return out, result
}

func TestListTools(t *testing.T) {
	s, _ := newSession(t, viewer.DefaultConfig("s1", "t1"))
	session := setupTestClient(t, s)

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolStatus, ToolWaitReady, ToolToggleMode}, names)
}

func TestStatusTool(t *testing.T) {
	s, _ := newSession(t, viewer.DefaultConfig("s1", "t1"))
	session := setupTestClient(t, s)

	out, _ := callTool(t, session, ToolStatus, nil)
	assert.Equal(t, "sess-1", out.SessionID)
	assert.Equal(t, "uninitialized", out.State)
	assert.Empty(t, out.Mode, "mode is only reported while live")
	assert.True(t, out.AllowModeChange)
	assert.Nil(t, out.Toggled)
}

func TestWaitReadyAndToggle(t *testing.T) {
	s, eng := newSession(t, viewer.DefaultConfig("s1", "t1"))
	session := setupTestClient(t, s)

	require.NoError(t, s.Start(context.Background()))
	go func() {
		<-eng.Started()
		eng.Ready()
	}()

	out, _ := callTool(t, session, ToolWaitReady, map[string]any{"timeout_seconds": 2})
	assert.Equal(t, "ready", out.State)
	assert.Equal(t, viewer.Mode3D, out.Mode)

	out, _ = callTool(t, session, ToolToggleMode, nil)
	require.NotNil(t, out.Toggled)
	assert.True(t, *out.Toggled)
	assert.Equal(t, viewer.Mode2D, out.Mode)
	assert.Equal(t, []viewer.Mode{viewer.Mode2D}, eng.Modes())
}

func TestToggleIgnoredWhenLocked(t *testing.T) {
	cfg := viewer.DefaultConfig("s1", "t1")
	cfg.AllowModeChange = false
	s, eng := newSession(t, cfg)
	eng.AutoReady = true
	session := setupTestClient(t, s)

	require.NoError(t, s.Start(context.Background()))
	out, _ := callTool(t, session, ToolWaitReady, nil)
	require.Equal(t, "ready", out.State)

	out, _ = callTool(t, session, ToolToggleMode, nil)
	require.NotNil(t, out.Toggled)
	assert.False(t, *out.Toggled)
	assert.Equal(t, viewer.Mode3D, out.Mode)
	assert.Empty(t, eng.Modes())
}

func TestWaitReadyTimesOut(t *testing.T) {
	s, _ := newSession(t, viewer.DefaultConfig("s1", "t1"))
	session := setupTestClient(t, s)

	require.NoError(t, s.Start(context.Background()))

	_, result := callTool(t, session, ToolWaitReady, map[string]any{"timeout_seconds": 0.05})
	assert.True(t, result.IsError)
	tc := result.Content[0].(*mcp.TextContent)
	assert.Contains(t, tc.Text, "still initializing")
}

func TestWaitSettled_Failed(t *testing.T) {
	s, _ := newSession(t, viewer.DefaultConfig("", "t1"))
	require.Error(t, s.Start(context.Background()))

	st, err := WaitSettled(context.Background(), s, time.Second)
	require.NoError(t, err)
	assert.Equal(t, viewer.StateFailed, st.State)

	out, err := marshalStatus(st, nil)
	require.NoError(t, err)
	assert.Contains(t, out, `"error":"missing spaceId"`)
}

func TestWaitSettled_Disposed(t *testing.T) {
	s, _ := newSession(t, viewer.DefaultConfig("s1", "t1"))
	require.NoError(t, s.Start(context.Background()))

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Dispose()
	}()

	st, err := WaitSettled(context.Background(), s, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, viewer.StateDisposed, st.State)
}

func TestWaitSettled_ContextCancelled(t *testing.T) {
	s, _ := newSession(t, viewer.DefaultConfig("s1", "t1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WaitSettled(ctx, s, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServerContextCancellation(t *testing.T) {
	s, _ := newSession(t, viewer.DefaultConfig("s1", "t1"))
	srv := NewServer("srv", "1.0.0", Tools(s)...)
	serverTransport, _ := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := srv.run(ctx, serverTransport)
	assert.ErrorIs(t, err, context.Canceled)
}
