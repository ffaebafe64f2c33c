package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/spaceview/pkg/hostconfig"
	"github.com/germanamz/spaceview/pkg/relay"
	"github.com/germanamz/spaceview/pkg/smplr"
	"github.com/germanamz/spaceview/pkg/viewer"
)

const version = "0.1.0"

// defaultConfigFile is used when --config is not given and the file exists.
const defaultConfigFile = "spaceview.yaml"

func main() {
	// Handle subcommands before flag parsing.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "init":
			initCmd := flag.NewFlagSet("init", flag.ExitOnError)
			initCmd.Usage = func() {
				fmt.Fprintf(os.Stderr, "Usage: spaceview init [flags]\n\nWrite viewer credentials to an env file.\n\nFlags:\n")
				initCmd.PrintDefaults()
			}
			envPath := initCmd.String("env-file", ".env.local", "env file to create or update")
			yes := initCmd.Bool("yes", false, "write without asking for confirmation")
			_ = initCmd.Parse(os.Args[2:])

			if err := runInit(*envPath, *yes); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		case "mcp":
			mcpCmd := flag.NewFlagSet("mcp", flag.ExitOnError)
			mcpCmd.Usage = func() {
				fmt.Fprintf(os.Stderr, "Usage: spaceview mcp [flags]\n\nServe viewer control tools over MCP on stdio.\n\nFlags:\n")
				mcpCmd.PrintDefaults()
			}
			opts := registerCommonFlags(mcpCmd)
			_ = mcpCmd.Parse(os.Args[2:])

			if err := runMCP(*opts); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: spaceview [flags]\n       spaceview <command> [flags]\n\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n  init    Write viewer credentials to an env file\n  mcp     Serve viewer control tools over MCP on stdio\n")
	}
	opts := registerCommonFlags(flag.CommandLine)
	flag.Parse()

	if err := run(*opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the flags shared by the viewer and mcp commands.
type options struct {
	configPath string
	envFiles   string
	listen     string
	logPath    string
	headless   string
}

func registerCommonFlags(fs *flag.FlagSet) *options {
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "path to configuration file (default: "+defaultConfigFile+" if present)")
	fs.StringVar(&o.envFiles, "env", strings.Join(hostconfig.DefaultEnvFiles, ","), "comma-separated .env files (missing files are ignored)")
	fs.StringVar(&o.listen, "listen", "", "address for the WebSocket relay (overrides config)")
	fs.StringVar(&o.logPath, "log", "", "write logs to this file")
	fs.StringVar(&o.headless, "headless", "", "run Chrome headless: true or false (overrides config)")
	return o
}

// hostSetup is the resolved host configuration. ConfigErr holds missing or
// invalid values; the host still starts and reports them.
type hostSetup struct {
	Settings  hostconfig.Settings
	ConfigErr error
}

// loadSettings loads env files and the config file and resolves them. Only
// unreadable files and bad flags are returned as errors.
func loadSettings(o options) (hostSetup, error) {
	var files []string
	for _, f := range strings.Split(o.envFiles, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	if err := hostconfig.LoadDotEnv(files...); err != nil {
		return hostSetup{}, err
	}

	var file hostconfig.File
	if path := resolveConfigPath(o.configPath); path != "" {
		f, err := hostconfig.LoadFile(path)
		if err != nil {
			return hostSetup{}, err
		}
		file = f
	}

	settings, cfgErr := hostconfig.Resolve(os.LookupEnv, file)

	if o.listen != "" {
		settings.RelayListen = o.listen
	}
	switch strings.ToLower(o.headless) {
	case "":
	case "true", "1":
		settings.Headless = true
	case "false", "0":
		settings.Headless = false
	default:
		return hostSetup{}, fmt.Errorf("invalid --headless value %q", o.headless)
	}

	return hostSetup{Settings: settings, ConfigErr: cfgErr}, nil
}

// resolveConfigPath returns the explicit path, or the default file if it
// exists, or "" when there is no config file.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

// newLogger returns a text logger writing to path, or a discarding logger
// when path is empty. Stderr belongs to the terminal UI.
func newLogger(path string) (*slog.Logger, io.Closer, error) {
	if path == "" {
		return slog.New(slog.DiscardHandler), nopCloser{}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path is a CLI flag
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})), f, nil
}

// newSession wires a session to a Chrome-hosted engine. A configuration
// problem makes the session fail on Start without launching Chrome.
func newSession(ctx context.Context, setup hostSetup, log *slog.Logger) (*viewer.Session, *smplr.Browser) {
	s := setup.Settings
	browser := smplr.NewBrowser(ctx,
		smplr.WithHeadless(s.Headless),
		smplr.WithExecPath(s.ExecPath),
		smplr.WithSDKBaseURL(s.SDKBaseURL),
		smplr.WithLogger(log),
	)
	page := smplr.DefaultPage()
	if s.Viewer.MountID != "" {
		page.MountIDs = []string{s.Viewer.MountID}
	}

	sess := viewer.New(s.Viewer, browser.Loader(page),
		viewer.WithLogger(log),
		viewer.WithStartTimeout(s.StartTimeout),
		viewer.WithTarget(s.Target),
		viewer.WithConfigError(setup.ConfigErr),
	)
	return sess, browser
}

// startRelay serves the WebSocket relay in the background when configured.
func startRelay(ctx context.Context, addr string, sess *viewer.Session, log *slog.Logger) {
	if addr == "" {
		return
	}
	go func() {
		if err := relay.New(sess, relay.WithLogger(log)).ListenAndServe(ctx, addr); err != nil {
			log.Error("relay stopped", "error", err)
		}
	}()
}

func run(o options) error {
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

	model := newAppModel(ctx, sess)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	// Send the program reference so the model can start the bridge.
	go func() {
		p.Send(programReadyMsg{program: p})
	}()

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
