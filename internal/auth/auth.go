// Package auth runs the sign-in state machine for the remote sheet backend.
//
// A Machine starts Uninitialized. Initialize moves it to Initializing, polls
// the identity provider until it is ready, then settles on SignedIn or
// SignedOut. SignIn and SignOut move between those two. Any classified
// failure parks the machine in Failed until the next Initialize.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/marcus/roster/internal/backend/sheets"
)

// State is a machine state.
type State int

const (
	Uninitialized State = iota
	Initializing
	SignedOut
	SignedIn
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case SignedOut:
		return "signed out"
	case SignedIn:
		return "signed in"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is the view of the machine the mode gate consumes.
type Status struct {
	IsInitializing bool
	IsSignedIn     bool
}

// DefaultRetryDelay is the readiness poll interval.
const DefaultRetryDelay = 100 * time.Millisecond

// ErrSignedOut is returned by session operations while signed out.
var ErrSignedOut = errors.New("not signed in")

// Provider is the external identity capability.
type Provider interface {
	// Ready reports whether the provider can be initialized yet.
	Ready(ctx context.Context) bool
	// Init configures the provider and reports whether a stored session is valid.
	Init(ctx context.Context, apiKey, clientID string) (signedIn bool, err error)
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
	// HTTPClient returns a client that authorizes requests with the session.
	HTTPClient(ctx context.Context) (*http.Client, error)
}

// Machine is the authentication state machine. The zero value is not usable;
// call New.
type Machine struct {
	provider Provider

	// RetryDelay is the wait between readiness polls.
	RetryDelay time.Duration
	// MaxAttempts caps readiness polls. Zero polls until the context ends.
	MaxAttempts int

	// DriveURL overrides the spreadsheet listing endpoint.
	DriveURL string

	mu      sync.Mutex
	state   State
	failure *Failure
	apiKey  string
	changed chan struct{}

	// runMu serializes Initialize runs; cancel stops the active one.
	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a machine in the Uninitialized state.
func New(p Provider) *Machine {
	return &Machine{
		provider:   p,
		RetryDelay: DefaultRetryDelay,
		changed:    make(chan struct{}),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status maps the state onto the gate's two flags. Uninitialized counts as
// initializing, matching a freshly mounted dashboard.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		IsInitializing: m.state == Uninitialized || m.state == Initializing,
		IsSignedIn:     m.state == SignedIn,
	}
}

// Failure returns the classified failure, or nil.
func (m *Machine) Failure() *Failure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// Changed returns a channel closed on the next state change.
func (m *Machine) Changed() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

func (m *Machine) set(s State, f *Failure) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.failure = f
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()

	if f != nil {
		slog.Warn("auth failure", "from", prev.String(), "kind", f.Kind.String(), "err", f.Message)
		return
	}
	slog.Debug("auth state", "from", prev.String(), "to", s.String())
}

// Bypass marks the machine signed out without touching the provider. Used
// when the local backend is active.
func (m *Machine) Bypass() {
	m.Stop()
	m.set(SignedOut, nil)
}

// Stop cancels a running Initialize and waits for it to exit.
func (m *Machine) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	m.stopLocked()
}

func (m *Machine) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
}

// Initialize (re)starts initialization for the given credentials. It returns
// once the machine has left Initializing, or when ctx ends. Missing
// credentials settle on SignedOut without contacting the provider.
func (m *Machine) Initialize(ctx context.Context, apiKey, clientID string) error {
	m.runMu.Lock()
	m.stopLocked()

	m.mu.Lock()
	m.apiKey = apiKey
	m.mu.Unlock()

	if apiKey == "" || clientID == "" {
		m.runMu.Unlock()
		m.set(SignedOut, nil)
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.set(Initializing, nil)
	m.runMu.Unlock()

	err := m.run(runCtx, apiKey, clientID)
	close(done)
	return err
}

func (m *Machine) run(ctx context.Context, apiKey, clientID string) error {
	delay := m.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	attempts := 0
	for !m.provider.Ready(ctx) {
		attempts++
		if m.MaxAttempts > 0 && attempts >= m.MaxAttempts {
			f := &Failure{Kind: GenericAuthError, Message: fmt.Sprintf("identity provider not ready after %d attempts", attempts)}
			m.set(Failed, f)
			return f
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	signedIn, err := m.provider.Init(ctx, apiKey, clientID)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		f := Classify(err)
		m.set(Failed, f)
		return f
	}
	if signedIn {
		m.set(SignedIn, nil)
	} else {
		m.set(SignedOut, nil)
	}
	return nil
}

// SignIn runs the provider's interactive sign-in.
func (m *Machine) SignIn(ctx context.Context) error {
	switch st := m.State(); st {
	case SignedIn:
		return nil
	case SignedOut:
	default:
		return fmt.Errorf("cannot sign in while %s", st)
	}
	if err := m.provider.SignIn(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f := Classify(err)
		m.set(Failed, f)
		return f
	}
	m.set(SignedIn, nil)
	return nil
}

// SignOut ends the session. Calling it while signed out does nothing.
func (m *Machine) SignOut(ctx context.Context) error {
	if m.State() != SignedIn {
		return nil
	}
	if err := m.provider.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	m.set(SignedOut, nil)
	return nil
}

// HTTPClient hands out the authorized client while signed in.
func (m *Machine) HTTPClient(ctx context.Context) (*http.Client, error) {
	if m.State() != SignedIn {
		return nil, ErrSignedOut
	}
	return m.provider.HTTPClient(ctx)
}

// ListSpreadsheets lists the user's spreadsheets. A non-empty filter keeps
// names containing it, ignoring case.
func (m *Machine) ListSpreadsheets(ctx context.Context, filter string) ([]sheets.Spreadsheet, error) {
	hc, err := m.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	apiKey := m.apiKey
	m.mu.Unlock()

	c := sheets.NewClient(hc, apiKey)
	if m.DriveURL != "" {
		c.DriveURL = m.DriveURL
	}
	all, err := c.ListSpreadsheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list spreadsheets: %w", err)
	}
	return FilterSpreadsheets(all, filter), nil
}

// FilterSpreadsheets keeps entries whose name contains filter, ignoring case.
func FilterSpreadsheets(all []sheets.Spreadsheet, filter string) []sheets.Spreadsheet {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return all
	}
	var out []sheets.Spreadsheet
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.Name), filter) {
			out = append(out, s)
		}
	}
	return out
}
