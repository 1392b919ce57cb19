// Package monitor is the live dashboard. It follows one activation at a time
// through auth, load and the gate, and starts over when the settings change.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/roster/internal/admin"
	"github.com/marcus/roster/internal/app"
	"github.com/marcus/roster/internal/gate"
)

// Model is the monitor state.
type Model struct {
	activate Activator
	app      *app.App
	gen      int
	ctx      context.Context
	cancel   context.CancelFunc

	// Mode is the last gate verdict.
	Mode gate.Mode
	// Admin is the admin session state at launch. It only takes effect
	// while the mode allows management.
	Admin bool
	Tab   admin.Tab
	Date  time.Time
	Now   func() time.Time
	Err   error
	// DeviceCode is shown while a sign-in waits for the operator.
	DeviceCode *DeviceCodeMsg
	LoadedAt   time.Time

	Width    int
	Height   int
	ShowHelp bool

	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewModel returns a monitor that activates through activate.
func NewModel(activate Activator, adminActive bool) Model {
	now := time.Now
	s := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(titleStyle))
	return Model{
		activate: activate,
		Mode:     gate.Mode{Kind: gate.AuthInitializing},
		Admin:    adminActive,
		Tab:      admin.Landing(false),
		Date:     midnight(now()),
		Now:      now,
		spinner:  s,
		help:     help.New(),
		keys:     defaultKeyMap(),
	}
}

func midnight(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(activateCmd(m.gen, m.activate), m.spinner.Tick, scheduleTick())
}

// admin reports whether admin tabs are open in the current mode.
func (m Model) admin() bool {
	return m.Admin && m.Mode.CanManage()
}

// VisibleTabs lists the tabs for the current mode.
func (m Model) VisibleTabs() []admin.Tab {
	return admin.Visible(m.admin())
}

// closeApp cancels the running activation and releases it.
func (m *Model) closeApp() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.app != nil {
		if err := m.app.Close(); err != nil {
			slog.Warn("close activation", "err", err)
		}
		m.app = nil
	}
}

// refreshMode re-evaluates the gate and keeps the selected tab visible.
func (m *Model) refreshMode() {
	if m.app == nil {
		return
	}
	m.Mode = m.app.Mode()
	for _, t := range m.VisibleTabs() {
		if t == m.Tab {
			return
		}
	}
	m.Tab = admin.Landing(m.admin())
}

// reactivate drops the current activation and builds a new one.
func (m Model) reactivate() (Model, tea.Cmd) {
	m.closeApp()
	m.gen++
	m.Err = nil
	m.DeviceCode = nil
	m.Mode = gate.Mode{Kind: gate.AuthInitializing}
	return m, tea.Batch(activateCmd(m.gen, m.activate), m.spinner.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, scheduleTick()

	case activatedMsg:
		if msg.gen != m.gen {
			if msg.app != nil {
				msg.app.Close()
			}
			return m, nil
		}
		if msg.err != nil {
			m.Err = msg.err
			return m, nil
		}
		m.app = msg.app
		m.ctx, m.cancel = context.WithCancel(context.Background())
		m.refreshMode()
		m.Tab = admin.Landing(m.admin())
		return m, tea.Batch(startCmd(m.ctx, m.gen, m.app), waitAuthCmd(m.ctx, m.gen, m.app))

	case authChangedMsg:
		if msg.gen != m.gen || m.app == nil {
			return m, nil
		}
		m.refreshMode()
		return m, waitAuthCmd(m.ctx, m.gen, m.app)

	case startedMsg:
		if msg.gen != m.gen || m.app == nil {
			return m, nil
		}
		m.Err = msg.err
		m.refreshMode()
		if m.Mode.Kind == gate.Loading {
			return m, tea.Batch(loadCmd(m.ctx, m.gen, m.app), m.spinner.Tick)
		}
		return m, nil

	case signedInMsg:
		if msg.gen != m.gen || m.app == nil {
			return m, nil
		}
		m.DeviceCode = nil
		m.Err = msg.err
		m.refreshMode()
		if msg.err == nil && m.Mode.Kind == gate.Loading {
			return m, tea.Batch(loadCmd(m.ctx, m.gen, m.app), m.spinner.Tick)
		}
		return m, nil

	case loadedMsg:
		if msg.gen != m.gen || m.app == nil {
			return m, nil
		}
		m.refreshMode()
		if msg.err == nil {
			m.LoadedAt = m.Now()
		}
		return m, nil

	case DeviceCodeMsg:
		m.DeviceCode = &msg
		return m, nil

	case SettingsChangedMsg:
		slog.Info("reactivating after settings change", "data_source", msg.Snapshot.DataSource)
		return m.reactivate()
	}
	return m, nil
}

// busy reports whether a spinner should be shown.
func (m Model) busy() bool {
	return m.Mode.Kind == gate.AuthInitializing || m.Mode.Kind == gate.Loading
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.closeApp()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.ShowHelp = !m.ShowHelp
		m.help.ShowAll = m.ShowHelp

	case key.Matches(msg, m.keys.Reload):
		switch m.Mode.Kind {
		case gate.Ready, gate.LoadError:
			if m.app != nil {
				return m, tea.Batch(loadCmd(m.ctx, m.gen, m.app), m.spinner.Tick)
			}
		case gate.Loading, gate.AuthInitializing:
		default:
			return m.reactivate()
		}

	case key.Matches(msg, m.keys.SignIn):
		if m.Mode.Kind == gate.NeedsSignIn && m.app != nil {
			return m, signInCmd(m.ctx, m.gen, m.app)
		}

	case key.Matches(msg, m.keys.PrevDay):
		m.Date = m.Date.AddDate(0, 0, -1)

	case key.Matches(msg, m.keys.NextDay):
		m.Date = m.Date.AddDate(0, 0, 1)

	case key.Matches(msg, m.keys.Today):
		m.Date = midnight(m.Now())

	case key.Matches(msg, m.keys.NextTab):
		m.Tab = m.stepTab(1)

	case key.Matches(msg, m.keys.PrevTab):
		m.Tab = m.stepTab(-1)
	}
	return m, nil
}

// stepTab moves through the visible tabs, wrapping at either end.
func (m Model) stepTab(delta int) admin.Tab {
	tabs := m.VisibleTabs()
	for i, t := range tabs {
		if t == m.Tab {
			return tabs[(i+delta+len(tabs))%len(tabs)]
		}
	}
	return tabs[0]
}
