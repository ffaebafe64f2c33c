package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/germanamz/spaceview/pkg/hostconfig"
	"github.com/germanamz/spaceview/pkg/viewer"
	"github.com/joho/godotenv"
)

// wizardValues are the answers collected by the init wizard.
type wizardValues struct {
	SpaceID         string
	ClientToken     string //nolint:gosec // collected from the user, never logged
	MountID         string
	Mode            string
	AllowModeChange bool
}

// defaultWizardValues prefills the form from an existing env file.
func defaultWizardValues(existing map[string]string) wizardValues {
	v := wizardValues{
		SpaceID:         first(existing[hostconfig.EnvSpaceID], existing[hostconfig.EnvViteSpaceID]),
		ClientToken:     first(existing[hostconfig.EnvClientToken], existing[hostconfig.EnvViteClientToken]),
		MountID:         first(existing[hostconfig.EnvMountID], viewer.DefaultMountID),
		Mode:            first(existing[hostconfig.EnvMode], string(viewer.Mode3D)),
		AllowModeChange: true,
	}
	if raw, ok := existing[hostconfig.EnvAllowModeChange]; ok {
		if b, err := strconv.ParseBool(raw); err == nil {
			v.AllowModeChange = b
		}
	}
	return v
}

// envValues maps wizard answers to env file keys. Defaults are omitted so the
// file stays minimal.
func (v wizardValues) envValues() map[string]string {
	out := map[string]string{
		hostconfig.EnvSpaceID:     strings.TrimSpace(v.SpaceID),
		hostconfig.EnvClientToken: strings.TrimSpace(v.ClientToken),
	}
	if id := strings.TrimSpace(v.MountID); id != "" && id != viewer.DefaultMountID {
		out[hostconfig.EnvMountID] = id
	}
	if v.Mode != "" && v.Mode != string(viewer.Mode3D) {
		out[hostconfig.EnvMode] = v.Mode
	}
	if !v.AllowModeChange {
		out[hostconfig.EnvAllowModeChange] = "false"
	}
	return out
}

func runInit(envPath string, yes bool) error {
	existing, err := godotenv.Read(envPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", envPath, err)
	}

	values := defaultWizardValues(existing)
	if err := runWizard(&values); err != nil {
		return err
	}

	update, err := hostconfig.PlanEnvUpdate(envPath, values.envValues())
	if err != nil {
		return err
	}
	if !update.Changed() {
		fmt.Printf("%s is already up to date\n", envPath)
		return nil
	}

	fmt.Println(update.Diff())

	if !yes {
		apply := true
		if err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().Title(confirmTitle(update)).Value(&apply),
		)).Run(); err != nil {
			return err
		}
		if !apply {
			fmt.Println("Nothing written")
			return nil
		}
	}

	if err := update.Apply(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", envPath)
	fmt.Println("Run 'spaceview' to open the viewer.")
	return nil
}

// confirmTitle asks before writing and warns when comments would be lost.
func confirmTitle(u hostconfig.EnvUpdate) string {
	title := fmt.Sprintf("Write these changes to %s?", u.Path)
	if u.DropsComments() {
		title += " Comments in the file will not be kept."
	}
	return title
}

func runWizard(v *wizardValues) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Space ID").Value(&v.SpaceID).Validate(validateRequired("space ID")),
			huh.NewInput().Title("Client token").EchoMode(huh.EchoModePassword).Value(&v.ClientToken).Validate(validateRequired("client token")),
		),
		huh.NewGroup(
			huh.NewInput().Title("Mount region id").Value(&v.MountID).Validate(validateRequired("mount region id")),
			huh.NewSelect[string]().
				Title("Initial view").
				Options(
					huh.NewOption("3D", string(viewer.Mode3D)),
					huh.NewOption("2D", string(viewer.Mode2D)),
				).
				Value(&v.Mode),
			huh.NewConfirm().Title("Allow switching between 2D and 3D?").Value(&v.AllowModeChange),
		),
	).Run()
}

func validateRequired(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
