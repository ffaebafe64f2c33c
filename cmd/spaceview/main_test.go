package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/germanamz/spaceview/pkg/hostconfig"
	"github.com/germanamz/spaceview/pkg/viewer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetAfter removes variables a dotenv load may have set.
func unsetAfter(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if _, ok := os.LookupEnv(k); ok {
			t.Skipf("%s is set in the environment", k)
		}
	}
	t.Cleanup(func() {
		for _, k := range keys {
			_ = os.Unsetenv(k)
		}
	})
}

func TestResolveConfigPath(t *testing.T) {
	t.Chdir(t.TempDir())

	assert.Equal(t, "custom.yaml", resolveConfigPath("custom.yaml"))
	assert.Empty(t, resolveConfigPath(""))

	require.NoError(t, os.WriteFile(defaultConfigFile, []byte("{}\n"), 0o600))
	assert.Equal(t, defaultConfigFile, resolveConfigPath(""))
}

func TestLoadSettings_FromEnvFile(t *testing.T) {
	unsetAfter(t, hostconfig.EnvSpaceID, hostconfig.EnvClientToken, hostconfig.EnvMode)
	dir := t.TempDir()
	t.Chdir(dir)

	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("SPACE_ID=space\nCLIENT_TOKEN=tok\nSPACEVIEW_MODE=2d\n"), 0o600))

	setup, err := loadSettings(options{envFiles: envPath + ", missing.env"})
	require.NoError(t, err)
	require.NoError(t, setup.ConfigErr)

	assert.Equal(t, "space", setup.Settings.Viewer.SpaceID)
	assert.Equal(t, "tok", setup.Settings.Viewer.AccessToken)
	assert.Equal(t, viewer.Mode2D, setup.Settings.Viewer.InitialMode)
}

func TestLoadSettings_MissingCredentialsIsNotFatal(t *testing.T) {
	unsetAfter(t, hostconfig.EnvSpaceID, hostconfig.EnvClientToken, hostconfig.EnvViteSpaceID, hostconfig.EnvViteClientToken)
	t.Chdir(t.TempDir())

	setup, err := loadSettings(options{})
	require.NoError(t, err)

	var ce *viewer.ConfigurationError
	require.ErrorAs(t, setup.ConfigErr, &ce)
	assert.Equal(t, []string{hostconfig.EnvSpaceID, hostconfig.EnvClientToken}, ce.Missing)
	assert.Equal(t, viewer.DefaultMountID, setup.Settings.Viewer.MountID)
}

func TestLoadSettings_ConfigFile(t *testing.T) {
	unsetAfter(t, hostconfig.EnvSpaceID, hostconfig.EnvClientToken)
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := "space_id: from-file\naccess_token: tok\nmount_id: plan\nrelay:\n  listen: 127.0.0.1:9000\n"
	require.NoError(t, os.WriteFile(defaultConfigFile, []byte(cfg), 0o600))

	setup, err := loadSettings(options{})
	require.NoError(t, err)
	require.NoError(t, setup.ConfigErr)

	assert.Equal(t, "from-file", setup.Settings.Viewer.SpaceID)
	assert.Equal(t, "plan", setup.Settings.Viewer.MountID)
	assert.Equal(t, "127.0.0.1:9000", setup.Settings.RelayListen)
}

func TestLoadSettings_MissingExplicitConfigFails(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := loadSettings(options{configPath: "nope.yaml"})
	assert.Error(t, err)
}

func TestLoadSettings_FlagOverrides(t *testing.T) {
	t.Chdir(t.TempDir())

	setup, err := loadSettings(options{listen: ":7000", headless: "true"})
	require.NoError(t, err)
	assert.Equal(t, ":7000", setup.Settings.RelayListen)
	assert.True(t, setup.Settings.Headless)

	setup, err = loadSettings(options{headless: "0"})
	require.NoError(t, err)
	assert.False(t, setup.Settings.Headless)

	_, err = loadSettings(options{headless: "maybe"})
	assert.EqualError(t, err, `invalid --headless value "maybe"`)
}

func TestNewLogger(t *testing.T) {
	log, closer, err := newLogger("")
	require.NoError(t, err)
	log.Info("dropped")
	require.NoError(t, closer.Close())

	path := filepath.Join(t.TempDir(), "spaceview.log")
	log, closer, err = newLogger(path)
	require.NoError(t, err)
	log.Info("viewer ready", "session", "abc")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Contains(t, string(data), "viewer ready")
	assert.Contains(t, string(data), "session=abc")
}
