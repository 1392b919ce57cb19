package monitor

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/roster/internal/app"
)

func activateCmd(gen int, activate Activator) tea.Cmd {
	return func() tea.Msg {
		a, err := activate()
		return activatedMsg{gen: gen, app: a, err: err}
	}
}

// startCmd runs auth initialization. It returns once the machine settles or
// ctx is cancelled.
func startCmd(ctx context.Context, gen int, a *app.App) tea.Cmd {
	return func() tea.Msg {
		return startedMsg{gen: gen, err: a.Start(ctx)}
	}
}

func loadCmd(ctx context.Context, gen int, a *app.App) tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{gen: gen, err: a.Load(ctx)}
	}
}

func signInCmd(ctx context.Context, gen int, a *app.App) tea.Cmd {
	return func() tea.Msg {
		return signedInMsg{gen: gen, err: a.Auth.SignIn(ctx)}
	}
}

// waitAuthCmd blocks until the next auth transition.
func waitAuthCmd(ctx context.Context, gen int, a *app.App) tea.Cmd {
	changed := a.Auth.Changed()
	return func() tea.Msg {
		select {
		case <-changed:
			return authChangedMsg{gen: gen}
		case <-ctx.Done():
			return nil
		}
	}
}

func scheduleTick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
