package hostconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/germanamz/spaceview/pkg/viewer"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names. The VITE_ prefixed variants are accepted so an
// existing web project's .env.local keeps working.
const (
	EnvSpaceID         = "SPACE_ID"
	EnvClientToken     = "CLIENT_TOKEN"
	EnvViteSpaceID     = "VITE_SPACE_ID"
	EnvViteClientToken = "VITE_CLIENT_TOKEN"
	EnvMountID         = "SPACEVIEW_MOUNT_ID"
	EnvMode            = "SPACEVIEW_MODE"
	EnvAllowModeChange = "SPACEVIEW_ALLOW_MODE_CHANGE"
	EnvFormat          = "SPACEVIEW_FORMAT"
	EnvEnvironment     = "SPACEVIEW_ENVIRONMENT"
	EnvStartTimeout    = "SPACEVIEW_START_TIMEOUT"
	EnvHeadless        = "SPACEVIEW_HEADLESS"
	EnvSDKBaseURL      = "SPACEVIEW_SDK_BASE_URL"
	EnvRelayListen     = "SPACEVIEW_RELAY_LISTEN"
)

// DefaultStartTimeout bounds engine startup when nothing else is configured.
const DefaultStartTimeout = 60 * time.Second

// DefaultEnvFiles are loaded in order; earlier files win.
var DefaultEnvFiles = []string{".env.local", ".env"}

// MissingHint is appended to a configuration error about missing credentials.
const MissingHint = "Add them to .env.local."

// File is the optional YAML configuration file.
type File struct {
	SpaceID         string        `yaml:"space_id"`
	AccessToken     string        `yaml:"access_token"` //nolint:gosec // configuration field, not a hardcoded secret
	MountID         string        `yaml:"mount_id"`
	Mode            string        `yaml:"mode"`
	AllowModeChange *bool         `yaml:"allow_mode_change"`
	Format          string        `yaml:"format"`
	Environment     string        `yaml:"environment"`
	StartTimeout    string        `yaml:"start_timeout"` // duration string, e.g. "45s"
	Browser         BrowserConfig `yaml:"browser"`
	Relay           RelayConfig   `yaml:"relay"`
}

// BrowserConfig holds settings for the Chrome process hosting the engine.
type BrowserConfig struct {
	Headless   *bool  `yaml:"headless"`
	SDKBaseURL string `yaml:"sdk_base_url"`
	ExecPath   string `yaml:"exec_path"`
}

// RelayConfig holds settings for the WebSocket notification relay.
type RelayConfig struct {
	Listen string `yaml:"listen"` // empty disables the relay
}

// Settings is the fully resolved host configuration.
type Settings struct {
	Viewer       viewer.Config
	Target       viewer.Target
	StartTimeout time.Duration
	Headless     bool
	SDKBaseURL   string
	ExecPath     string
	RelayListen  string
}

// LookupFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads each env file into the process environment. Missing files
// are ignored and variables that are already set are never overwritten, so
// earlier paths take precedence over later ones.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			continue
		}
		return fmt.Errorf("hostconfig: load %s: %w", p, err)
	}
	return nil
}

// LoadFile reads a YAML file. Environment variables referenced as ${VAR} or
// $VAR are expanded before parsing so secrets can stay in .env files.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return File{}, fmt.Errorf("hostconfig: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return File{}, fmt.Errorf("hostconfig: parse config: %w", err)
	}

	return f, nil
}

// Resolve merges environment variables with f (non-empty file values win) and
// applies defaults. The returned Settings are filled as far as possible even
// when an error is returned, so a host can still show what it has. The error,
// if any, is a single *viewer.ConfigurationError naming every problem.
func Resolve(lookup LookupFunc, f File) (Settings, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}
	pick := func(fileVal string, keys ...string) string {
		if strings.TrimSpace(fileVal) != "" {
			return strings.TrimSpace(fileVal)
		}
		return env(keys...)
	}

	ce := &viewer.ConfigurationError{Hint: MissingHint}

	s := Settings{
		Viewer: viewer.DefaultConfig(
			pick(f.SpaceID, EnvSpaceID, EnvViteSpaceID),
			pick(f.AccessToken, EnvClientToken, EnvViteClientToken),
		),
		Target:       viewer.DefaultTarget,
		StartTimeout: DefaultStartTimeout,
		SDKBaseURL:   pick(f.Browser.SDKBaseURL, EnvSDKBaseURL),
		ExecPath:     f.Browser.ExecPath,
		RelayListen:  pick(f.Relay.Listen, EnvRelayListen),
	}

	if s.Viewer.SpaceID == "" {
		ce.Missing = append(ce.Missing, EnvSpaceID)
	}
	if s.Viewer.AccessToken == "" {
		ce.Missing = append(ce.Missing, EnvClientToken)
	}

	if v := pick(f.MountID, EnvMountID); v != "" {
		s.Viewer.MountID = v
	}

	if v := pick(f.Mode, EnvMode); v != "" {
		m, err := viewer.ParseMode(v)
		if err != nil {
			ce.Invalid = append(ce.Invalid, fmt.Sprintf("mode %q", v))
		} else {
			s.Viewer.InitialMode = m
		}
	}

	switch {
	case f.AllowModeChange != nil:
		s.Viewer.AllowModeChange = *f.AllowModeChange
	case env(EnvAllowModeChange) != "":
		b, err := strconv.ParseBool(env(EnvAllowModeChange))
		if err != nil {
			ce.Invalid = append(ce.Invalid, EnvAllowModeChange)
		} else {
			s.Viewer.AllowModeChange = b
		}
	}

	if v := pick(f.Format, EnvFormat); v != "" {
		if v != "esm" && v != "umd" {
			ce.Invalid = append(ce.Invalid, fmt.Sprintf("format %q", v))
		} else {
			s.Target.Format = v
		}
	}
	if v := pick(f.Environment, EnvEnvironment); v != "" {
		if v != "prod" && v != "dev" {
			ce.Invalid = append(ce.Invalid, fmt.Sprintf("environment %q", v))
		} else {
			s.Target.Environment = v
		}
	}

	if v := pick(f.StartTimeout, EnvStartTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			ce.Invalid = append(ce.Invalid, fmt.Sprintf("start timeout %q", v))
		} else {
			s.StartTimeout = d
		}
	}

	switch {
	case f.Browser.Headless != nil:
		s.Headless = *f.Browser.Headless
	case env(EnvHeadless) != "":
		b, err := strconv.ParseBool(env(EnvHeadless))
		if err != nil {
			ce.Invalid = append(ce.Invalid, EnvHeadless)
		} else {
			s.Headless = b
		}
	}

	if len(ce.Missing) == 0 && len(ce.Invalid) == 0 {
		return s, nil
	}
	if len(ce.Missing) == 0 {
		ce.Hint = ""
	}
	return s, ce
}
