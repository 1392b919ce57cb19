package monitor

import (
	"time"

	"github.com/marcus/roster/internal/app"
	"github.com/marcus/roster/internal/settings"
)

// Activator builds a fresh activation from the persisted settings.
type Activator func() (*app.App, error)

// RefreshInterval is how often the clock-dependent sections re-render.
const RefreshInterval = 30 * time.Second

// activatedMsg carries a new activation. gen identifies which activation a
// message belongs to; messages from a replaced activation are dropped.
type activatedMsg struct {
	gen int
	app *app.App
	err error
}

// startedMsg is sent when auth initialization has settled.
type startedMsg struct {
	gen int
	err error
}

// loadedMsg is sent when a load finishes.
type loadedMsg struct {
	gen int
	err error
}

// authChangedMsg is sent on every auth state transition.
type authChangedMsg struct {
	gen int
}

// signedInMsg is sent when an interactive sign-in finishes.
type signedInMsg struct {
	gen int
	err error
}

// TickMsg triggers a periodic re-render.
type TickMsg time.Time

// SettingsChangedMsg reports a settings change that requires reloading.
type SettingsChangedMsg struct {
	Snapshot settings.Snapshot
}

// DeviceCodeMsg shows the device-flow code while a sign-in waits for the
// operator.
type DeviceCodeMsg struct {
	URI  string
	Code string
}
