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

func TestDefaultWizardValues(t *testing.T) {
	v := defaultWizardValues(nil)

	assert.Empty(t, v.SpaceID)
	assert.Empty(t, v.ClientToken)
	assert.Equal(t, viewer.DefaultMountID, v.MountID)
	assert.Equal(t, string(viewer.Mode3D), v.Mode)
	assert.True(t, v.AllowModeChange)
}

func TestDefaultWizardValues_Prefill(t *testing.T) {
	v := defaultWizardValues(map[string]string{
		hostconfig.EnvViteSpaceID:     "vite-space",
		hostconfig.EnvClientToken:     "tok",
		hostconfig.EnvViteClientToken: "ignored",
		hostconfig.EnvMode:            "2d",
		hostconfig.EnvAllowModeChange: "false",
	})

	assert.Equal(t, "vite-space", v.SpaceID)
	assert.Equal(t, "tok", v.ClientToken)
	assert.Equal(t, "2d", v.Mode)
	assert.False(t, v.AllowModeChange)
}

func TestWizardValues_EnvValuesOmitDefaults(t *testing.T) {
	v := defaultWizardValues(nil)
	v.SpaceID = " space "
	v.ClientToken = "tok"

	assert.Equal(t, map[string]string{
		hostconfig.EnvSpaceID:     "space",
		hostconfig.EnvClientToken: "tok",
	}, v.envValues())
}

func TestWizardValues_EnvValuesNonDefault(t *testing.T) {
	v := wizardValues{
		SpaceID:         "space",
		ClientToken:     "tok",
		MountID:         "floorplan",
		Mode:            "2d",
		AllowModeChange: false,
	}

	got := v.envValues()
	assert.Equal(t, "floorplan", got[hostconfig.EnvMountID])
	assert.Equal(t, "2d", got[hostconfig.EnvMode])
	assert.Equal(t, "false", got[hostconfig.EnvAllowModeChange])
}

func TestWizardValues_PlanKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.local")
	require.NoError(t, os.WriteFile(path, []byte("OTHER=keep\nSPACE_ID=old\n"), 0o600))

	v := defaultWizardValues(nil)
	v.SpaceID = "new-space"
	v.ClientToken = "tok"

	update, err := hostconfig.PlanEnvUpdate(path, v.envValues())
	require.NoError(t, err)

	assert.True(t, update.Changed())
	assert.Contains(t, update.After, `OTHER="keep"`)
	assert.Contains(t, update.After, `SPACE_ID="new-space"`)
	assert.Contains(t, update.Diff(), `-SPACE_ID=old`)
}

func TestValidateRequired(t *testing.T) {
	validate := validateRequired("space ID")

	assert.NoError(t, validate("abc"))
	assert.EqualError(t, validate("  "), "space ID is required")
}

func TestFirst(t *testing.T) {
	assert.Equal(t, "b", first("", "b", "c"))
	assert.Empty(t, first("", ""))
}

func TestConfirmTitle(t *testing.T) {
	dir := t.TempDir()

	plain, err := hostconfig.PlanEnvUpdate(filepath.Join(dir, ".env.local"), map[string]string{hostconfig.EnvSpaceID: "space"})
	require.NoError(t, err)
	assert.Equal(t, "Write these changes to "+plain.Path+"?", confirmTitle(plain))

	path := filepath.Join(dir, "commented.env")
	require.NoError(t, os.WriteFile(path, []byte("# mine\nSPACE_ID=old\n"), 0o600))
	commented, err := hostconfig.PlanEnvUpdate(path, map[string]string{hostconfig.EnvSpaceID: "space"})
	require.NoError(t, err)
	assert.Contains(t, confirmTitle(commented), "Comments in the file will not be kept.")
}
