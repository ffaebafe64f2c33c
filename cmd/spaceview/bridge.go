package main

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/spaceview/pkg/viewer"
)

// startBridge forwards session notifications to the program. The goroutine
// only calls p.Send; it never touches model state. The subscription is taken
// before startBridge returns, so a Start issued afterwards is fully observed.
// The returned function stops the bridge and waits for it to exit.
func startBridge(ctx context.Context, p *tea.Program, sess *viewer.Session) context.CancelFunc {
	bridgeCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	events := sess.Events()
	sub := events.Subscribe(32)

	wg.Go(func() {
		defer events.Unsubscribe(sub)
		for {
			select {
			case <-bridgeCtx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					p.Send(sessionClosedMsg{})
					return
				}
				if msg := eventMsg(ev); msg != nil {
					p.Send(msg)
				}
			}
		}
	})

	return func() {
		cancel()
		wg.Wait()
	}
}

// eventMsg converts a session event to a program message.
func eventMsg(ev viewer.Event) tea.Msg {
	switch ev.Kind {
	case viewer.EventReady:
		return viewerReadyMsg{mode: ev.Mode}
	case viewer.EventModeChanged:
		return modeChangedMsg{mode: ev.Mode}
	case viewer.EventError:
		return viewerErrorMsg{message: ev.Message}
	}
	return nil
}
