package cmd

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/roster/internal/app"
	"github.com/marcus/roster/internal/output"
	"github.com/marcus/roster/internal/settings"
	"github.com/marcus/roster/pkg/monitor"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Aliases: []string{"ui"},
	Short:   "Live dashboard of teams on duty and schedules",
	Long: `Launch the live dashboard. It walks through setup, sign-in and loading,
then shows the teams on duty and the schedules for the selected day.
Settings changed from another terminal are picked up automatically.

Key bindings:
  ←/→ or h/l     Previous / next day
  t              Back to today
  Tab/Shift+Tab  Switch tabs
  s              Sign in (Google Sheets)
  r              Reload or retry
  ?              Toggle help
  q              Quit`,
	GroupID: "data",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := homeDir()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		store := settings.NewFileStore(home)
		g, err := adminGate()
		if err != nil {
			return err
		}

		var p *tea.Program
		activate := func() (*app.App, error) {
			provider := newProvider(home, cmd.ErrOrStderr())
			provider.Prompt = func(r *oauth2.DeviceAuthResponse) {
				p.Send(monitor.DeviceCodeMsg{URI: r.VerificationURI, Code: r.UserCode})
			}
			return app.Activate(app.Options{Home: home, Store: store, Provider: provider})
		}
		p = tea.NewProgram(monitor.NewModel(activate, g.Active()), tea.WithAltScreen())

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go watchSettings(ctx, store, p)

		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		return nil
	},
}

// watchSettings forwards reload-worthy settings changes to the program. Each
// watch runs against the snapshot last sent.
func watchSettings(ctx context.Context, store *settings.FileStore, p *tea.Program) {
	active, err := settings.Load(store)
	if err != nil {
		slog.Warn("settings watch disabled", "err", err)
		return
	}
	for {
		var next *settings.Snapshot
		watchCtx, stop := context.WithCancel(ctx)
		err := store.Watch(watchCtx, active, func(s settings.Snapshot) {
			next = &s
			stop()
		})
		stop()
		if next == nil {
			if err != nil {
				slog.Warn("settings watch stopped", "err", err)
			}
			return
		}
		active = *next
		p.Send(monitor.SettingsChangedMsg{Snapshot: active})
	}
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
