package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/marcus/roster/internal/admin"
	"github.com/marcus/roster/internal/app"
	"github.com/marcus/roster/internal/auth"
	"github.com/marcus/roster/internal/backend"
	"github.com/marcus/roster/internal/gate"
	"github.com/marcus/roster/internal/output"
	"github.com/marcus/roster/internal/settings"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/term"
)

const (
	envLogLevel     = "ROSTER_LOG_LEVEL"
	envLogFormat    = "ROSTER_LOG_FORMAT"
	envClientSecret = "ROSTER_CLIENT_SECRET"
)

// setupLogging installs the default slog handler. The CLI logs warnings and
// above to stderr unless ROSTER_LOG_LEVEL says otherwise.
func setupLogging(levelName, format string) {
	var level slog.Level
	switch strings.ToLower(levelName) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// homeDir returns the --home flag or the default roster home.
func homeDir() (string, error) {
	if homeFlag != "" {
		if err := os.MkdirAll(homeFlag, 0755); err != nil {
			return "", fmt.Errorf("create home dir: %w", err)
		}
		return homeFlag, nil
	}
	return settings.Home()
}

func settingsStore() (*settings.FileStore, error) {
	home, err := homeDir()
	if err != nil {
		return nil, err
	}
	return settings.NewFileStore(home), nil
}

// newProvider builds the Google provider, printing the device code to w.
func newProvider(home string, w io.Writer) *auth.Google {
	g := auth.NewGoogle(home, os.Getenv(envClientSecret))
	g.Prompt = func(r *oauth2.DeviceAuthResponse) {
		fmt.Fprintf(w, "Open %s and enter code: %s\n", r.VerificationURI, r.UserCode)
	}
	return g
}

// activate builds one activation from the persisted settings.
func activate(cmd *cobra.Command) (*app.App, error) {
	home, err := homeDir()
	if err != nil {
		return nil, err
	}
	return app.Activate(app.Options{
		Home:     home,
		Provider: newProvider(home, cmd.OutOrStdout()),
	})
}

// openReady activates and loads the data. When the gate stops short of
// Ready, the recovery guidance is printed and the error returned.
func openReady(cmd *cobra.Command) (*app.App, error) {
	a, err := activate(cmd)
	if err != nil {
		output.Error("%v", err)
		return nil, err
	}
	if err := a.Open(cmd.Context()); err != nil {
		var nr *app.NotReadyError
		if errors.As(err, &nr) {
			fmt.Fprintln(cmd.ErrOrStderr(), output.Guidance(nr.Mode))
		} else {
			output.Error("%v", err)
		}
		a.Close()
		return nil, err
	}
	return a, nil
}

func adminGate() (*admin.Gate, error) {
	home, err := homeDir()
	if err != nil {
		return nil, err
	}
	return admin.New(home), nil
}

// requireAdmin fails unless tab is visible in the current mode.
func requireAdmin(tab admin.Tab) error {
	g, err := adminGate()
	if err != nil {
		return err
	}
	if err := g.Require(tab); err != nil {
		output.Error("%v (run `roster admin login`)", err)
		return err
	}
	return nil
}

// requireEdit fails unless admin mode is on. Every record change needs it.
func requireEdit(tab admin.Tab) error {
	g, err := adminGate()
	if err != nil {
		return err
	}
	if err := g.RequireEdit(tab); err != nil {
		output.Error("%v (run `roster admin login`)", err)
		return err
	}
	return nil
}

// settingsLocked reports whether changing settings needs admin mode. The
// setup and recovery screens stay open to everyone; once the dashboard can
// load, settings move behind the admin gate.
func settingsLocked(m gate.Mode) bool {
	return m.Kind == gate.Loading || m.Kind == gate.Ready
}

// errorCode maps an error to a structured JSON error code.
func errorCode(err error) string {
	var nr *app.NotReadyError
	switch {
	case errors.Is(err, admin.ErrLocked):
		return output.ErrCodeAdminRequired
	case errors.Is(err, backend.ErrNotFound):
		return output.ErrCodeNotFound
	case errors.Is(err, backend.ErrAuthRequired):
		return output.ErrCodeAuthRequired
	case errors.Is(err, backend.ErrStorageQuota):
		return output.ErrCodeStorageQuota
	case errors.As(err, &nr):
		return output.ErrCodeNotReady
	case errors.Is(err, backend.ErrLoad), errors.Is(err, backend.ErrWrite):
		return output.ErrCodeBackendError
	}
	return output.ErrCodeInvalidInput
}

// reportError prints err as styled text or as a JSON error object.
func reportError(jsonOut bool, err error) error {
	if jsonOut {
		output.JSONError(errorCode(err), err.Error())
	} else {
		output.Error("%v", err)
	}
	return err
}

var errConfirmRequired = errors.New("confirmation required: rerun with --yes")

// confirm asks a yes/no question. Without a terminal it refuses unless yes
// was passed on the command line.
func confirm(title, description string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errConfirmRequired
	}
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}
