package settings

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the directory holding settings, the local database and tokens.
const HomeEnv = "ROSTER_HOME"

const (
	settingsFile = "settings.json"
	lockFile     = "settings.json.lock"
)

// Home returns $ROSTER_HOME or ~/.config/roster, creating it if necessary.
func Home() (string, error) {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, ".config", "roster")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}
