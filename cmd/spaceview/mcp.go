package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/germanamz/spaceview/pkg/control"
)

// runMCP starts a viewer session and serves its control tools over MCP on
// stdio. Configuration problems do not stop the server; the status tool
// reports the failed session.
func runMCP(o options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log, logCloser, err := newLogger(o.logPath)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	setup, err := loadSettings(o)
	if err != nil {
		return err
	}
	if setup.ConfigErr != nil {
		log.Warn("configuration incomplete", "error", setup.ConfigErr)
	}

	sess, browser := newSession(ctx, setup, log)
	defer browser.Close()
	defer sess.Dispose()

	startRelay(ctx, setup.Settings.RelayListen, sess, log)

	if err := sess.Start(ctx); err != nil {
		log.Warn("viewer did not start", "error", err)
	}

	srv := control.NewServer("spaceview", version, control.Tools(sess)...)
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}
