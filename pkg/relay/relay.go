// Package relay forwards a viewer session's notifications to remote host UIs
// over WebSocket and accepts their status and toggle requests. Each client
// receives a status frame on connect, then every ready, error and
// mode-changed notification as JSON.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/germanamz/spaceview/pkg/viewer"
)

// Frame types sent to clients.
const (
	TypeStatus      = "status"
	TypeReady       = "ready"
	TypeError       = "error"
	TypeModeChanged = "mode_changed"
	TypeToggle      = "toggle"
)

// Client operations.
const (
	OpStatus     = "status"
	OpToggleMode = "toggle_mode"
)

// Message is a frame sent to clients.
type Message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Time      time.Time   `json:"time"`
	Mode      viewer.Mode `json:"mode,omitempty"`
	Message   string      `json:"message,omitempty"`
	Status    *Status     `json:"status,omitempty"`
	Toggled   *bool       `json:"toggled,omitempty"`
}

// Status mirrors viewer.Status on the wire.
type Status struct {
	State           string      `json:"state"`
	Mode            viewer.Mode `json:"mode"`
	AllowModeChange bool        `json:"allowModeChange"`
	Toggling        bool        `json:"toggling"`
	Error           string      `json:"error,omitempty"`
}

// Command is a frame received from clients.
type Command struct {
	Op string `json:"op"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for connection failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithOriginPatterns allows cross-origin browser clients matching patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = patterns }
}

// Server relays one session. It implements http.Handler.
type Server struct {
	session *viewer.Session
	log     *slog.Logger
	origins []string
}

// New creates a relay for session.
func New(session *viewer.Session, opts ...Option) *Server {
	s := &Server{
		session: session,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ServeHTTP upgrades the request and relays until the client leaves or the
// session is disposed.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.log.Warn("relay: accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := s.session.Events()
	sub := events.Subscribe(32)
	defer events.Unsubscribe(sub)

	replies := make(chan Message, 8)
	go s.readCommands(ctx, cancel, conn, replies)

	if err := wsjson.Write(ctx, conn, s.statusMessage()); err != nil {
		return
	}

	for {
		var msg Message
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				_ = wsjson.Write(ctx, conn, s.statusMessage())
				_ = conn.Close(websocket.StatusGoingAway, "session disposed")
				return
			}
			msg = eventMessage(ev)
		case msg = <-replies:
		}

		if err := wsjson.Write(ctx, conn, msg); err != nil {
			s.log.Debug("relay: write failed", "error", err)
			return
		}
	}
}

// readCommands handles client requests until the connection fails. Replies
// go through the writer loop so only one goroutine writes.
func (s *Server) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, replies chan<- Message) {
	defer cancel()

	for {
		var cmd Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				s.log.Debug("relay: read failed", "error", err)
			}
			return
		}

		var reply Message
		switch cmd.Op {
		case OpStatus:
			reply = s.statusMessage()
		case OpToggleMode:
			toggled := s.session.ToggleMode(ctx)
			reply = Message{
				Type:      TypeToggle,
				SessionID: s.session.ID(),
				Time:      time.Now(),
				Mode:      s.session.Status().Mode,
				Toggled:   &toggled,
			}
		default:
			reply = Message{
				Type:      TypeError,
				SessionID: s.session.ID(),
				Time:      time.Now(),
				Message:   fmt.Sprintf("unknown op %q", cmd.Op),
			}
		}

		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) statusMessage() Message {
	st := s.session.Status()
	ws := &Status{
		State:           st.State.String(),
		Mode:            st.Mode,
		AllowModeChange: st.AllowModeChange,
		Toggling:        st.Toggling,
	}
	if st.Err != nil {
		ws.Error = st.Err.Error()
	}
	return Message{Type: TypeStatus, SessionID: st.ID, Time: time.Now(), Status: ws}
}

func eventMessage(ev viewer.Event) Message {
	msg := Message{
		SessionID: ev.SessionID,
		Time:      ev.Timestamp,
		Mode:      ev.Mode,
		Message:   ev.Message,
	}
	switch ev.Kind {
	case viewer.EventReady:
		msg.Type = TypeReady
	case viewer.EventError:
		msg.Type = TypeError
	case viewer.EventModeChanged:
		msg.Type = TypeModeChanged
	default:
		msg.Type = string(ev.Kind)
	}
	return msg
}

// ListenAndServe serves the relay at path "/" on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves the relay on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	s.log.Info("relay: listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("relay: serve: %w", err)
	}
	return nil
}
