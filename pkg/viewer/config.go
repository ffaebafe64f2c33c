package viewer

import "strings"

// DefaultMountID is the mount region id used when none is configured.
const DefaultMountID = "smplr-container"

// Config is the immutable configuration of one Session. Build it with
// DefaultConfig so AllowModeChange and InitialMode get their defaults.
type Config struct {
	SpaceID         string // remote space to load
	AccessToken     string // credential for the remote engine
	MountID         string // id of the page region the engine attaches to
	InitialMode     Mode   // "2d" or "3d"; empty means "3d"
	AllowModeChange bool   // whether the host may toggle the mode
}

// DefaultConfig returns a Config carrying the given credentials and default
// values for everything else.
func DefaultConfig(spaceID, accessToken string) Config {
	return Config{
		SpaceID:         spaceID,
		AccessToken:     accessToken,
		MountID:         DefaultMountID,
		InitialMode:     Mode3D,
		AllowModeChange: true,
	}
}

// Validate reports every missing or invalid value as a single
// *ConfigurationError. It returns nil for a usable config.
func (c Config) Validate() error {
	ce := &ConfigurationError{}
	if strings.TrimSpace(c.SpaceID) == "" {
		ce.add("spaceId")
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		ce.add("accessToken")
	}
	if strings.TrimSpace(c.MountID) == "" {
		ce.add("mountId")
	}
	if c.InitialMode != "" && !c.InitialMode.Valid() {
		ce.Invalid = append(ce.Invalid, "initialMode "+string(c.InitialMode))
	}
	if ce.empty() {
		return nil
	}
	return ce
}

// mode returns the effective initial mode.
func (c Config) mode() Mode {
	if c.InitialMode == "" {
		return Mode3D
	}
	return c.InitialMode
}

// Target selects which build of the engine a Loader resolves.
type Target struct {
	Format      string // "esm" or "umd"
	Environment string // "prod" or "dev"
}

// DefaultTarget is the production ES module build.
var DefaultTarget = Target{Format: "esm", Environment: "prod"}
