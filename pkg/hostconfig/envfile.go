package hostconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pmezard/go-difflib/difflib"
)

// EnvUpdate is a pending rewrite of an env file. Existing keys are kept and
// updated keys replace them.
type EnvUpdate struct {
	Path   string
	Before string // current file content, empty if the file does not exist
	After  string // content Apply will write
	Values map[string]string
}

// PlanEnvUpdate reads path (if it exists) and merges updates into it. Empty
// update values are skipped.
func PlanEnvUpdate(path string, updates map[string]string) (EnvUpdate, error) {
	u := EnvUpdate{Path: path, Values: make(map[string]string)}

	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	switch {
	case err == nil:
		u.Before = string(data)
		existing, err := godotenv.Unmarshal(u.Before)
		if err != nil {
			return EnvUpdate{}, fmt.Errorf("hostconfig: parse %s: %w", path, err)
		}
		for k, v := range existing {
			u.Values[k] = v
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return EnvUpdate{}, fmt.Errorf("hostconfig: read %s: %w", path, err)
	}

	for k, v := range updates {
		if v == "" {
			continue
		}
		u.Values[k] = v
	}

	content, err := godotenv.Marshal(u.Values)
	if err != nil {
		return EnvUpdate{}, fmt.Errorf("hostconfig: marshal env: %w", err)
	}
	u.After = content + "\n"

	return u, nil
}

// Changed reports whether applying the update would change the file.
func (u EnvUpdate) Changed() bool { return u.Before != u.After }

// Diff returns a unified diff from the current file to the planned one.
// Returns an empty string when nothing changes.
func (u EnvUpdate) Diff() string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(u.Before),
		B:        difflib.SplitLines(u.After),
		FromFile: u.Path,
		ToFile:   u.Path,
		Context:  3,
	}

	result, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("(diff error: %v)", err)
	}

	return result
}

// DropsComments reports whether the current file has comment lines, which
// Apply does not keep.
func (u EnvUpdate) DropsComments() bool {
	for _, line := range strings.Split(u.Before, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			return true
		}
	}
	return false
}

// Apply writes the planned content. The file holds credentials, so it is
// created owner-only and an existing file is narrowed to the owner.
func (u EnvUpdate) Apply() error {
	f, err := os.OpenFile(u.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		return fmt.Errorf("hostconfig: write %s: %w", u.Path, err)
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return fmt.Errorf("hostconfig: chmod %s: %w", u.Path, err)
	}
	if _, err := f.WriteString(u.After); err != nil {
		_ = f.Close()
		return fmt.Errorf("hostconfig: write %s: %w", u.Path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("hostconfig: write %s: %w", u.Path, err)
	}
	return nil
}
