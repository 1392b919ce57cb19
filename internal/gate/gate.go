// Package gate derives what the dashboard may show from the data source,
// configuration, auth and load state. Compute is pure.
package gate

import (
	"fmt"
	"strings"

	"github.com/marcus/roster/internal/auth"
	"github.com/marcus/roster/internal/settings"
)

// Kind enumerates the reachable modes.
type Kind int

const (
	NoDataSourceSelected Kind = iota
	NeedsRemoteSetup
	AuthError
	AuthInitializing
	NeedsSignIn
	NeedsSpreadsheetSelection
	Loading
	LoadError
	Ready
)

var kindNames = map[Kind]string{
	NoDataSourceSelected:      "no data source selected",
	NeedsRemoteSetup:          "needs remote setup",
	AuthError:                 "auth error",
	AuthInitializing:          "auth initializing",
	NeedsSignIn:               "needs sign-in",
	NeedsSpreadsheetSelection: "needs spreadsheet selection",
	Loading:                   "loading",
	LoadError:                 "load error",
	Ready:                     "ready",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Input is everything the gate looks at.
type Input struct {
	DataSource  settings.DataSource
	Config      settings.Config
	Auth        auth.Status
	AuthFailure *auth.Failure
	Loading     bool
	LoadErr     error
}

// Mode is the gate's verdict.
type Mode struct {
	Kind Kind
	// Failure is set for AuthError.
	Failure *auth.Failure
	// Message is set for LoadError.
	Message string
	// Remote records whether the sheet backend is selected.
	Remote bool
	signed bool
}

// Compute evaluates the gate. Remote checks run in the order the dashboard
// shows its setup screens; load state applies to both backends.
func Compute(in Input) Mode {
	switch in.DataSource {
	case settings.GoogleSheets:
		m := Mode{Remote: true, signed: in.Auth.IsSignedIn}
		switch {
		case in.Config.APIKey == "" || in.Config.ClientID == "":
			m.Kind = NeedsRemoteSetup
			return m
		case in.AuthFailure != nil:
			m.Kind = AuthError
			m.Failure = in.AuthFailure
			return m
		case in.Auth.IsInitializing:
			m.Kind = AuthInitializing
			return m
		case !in.Auth.IsSignedIn:
			m.Kind = NeedsSignIn
			return m
		case in.Config.SpreadsheetID == "":
			m.Kind = NeedsSpreadsheetSelection
			return m
		}
		return loadMode(m, in)
	case settings.Local:
		return loadMode(Mode{}, in)
	}
	return Mode{Kind: NoDataSourceSelected}
}

func loadMode(m Mode, in Input) Mode {
	switch {
	case in.Loading:
		m.Kind = Loading
	case in.LoadErr != nil:
		m.Kind = LoadError
		m.Message = in.LoadErr.Error()
	default:
		m.Kind = Ready
	}
	return m
}

// CanRender reports whether entity views may render.
func (m Mode) CanRender() bool { return m.Kind == Ready }

// CanManage reports whether admin mode may be entered: always for the local
// backend, only while signed in for the remote one.
func (m Mode) CanManage() bool {
	if m.Kind == NoDataSourceSelected {
		return false
	}
	return !m.Remote || m.signed
}

func (m Mode) String() string {
	switch m.Kind {
	case AuthError:
		if m.Failure != nil {
			return fmt.Sprintf("%s (%s)", m.Kind, m.Failure.Kind)
		}
	case LoadError:
		return fmt.Sprintf("%s: %s", m.Kind, m.Message)
	}
	return m.Kind.String()
}

// CredentialsURL is where OAuth clients are configured.
const CredentialsURL = "https://console.cloud.google.com/apis/credentials"

// Guidance returns markdown telling the operator what to do next.
func (m Mode) Guidance() string {
	var b strings.Builder
	switch m.Kind {
	case NoDataSourceSelected:
		b.WriteString("# Choose a data source\n\n")
		b.WriteString("- `roster use googleSheets` stores data in a shared Google spreadsheet. Needs a Google account and API setup.\n")
		b.WriteString("- `roster use local` stores data on this machine only. No setup needed.\n")
	case NeedsRemoteSetup:
		b.WriteString("# Set up Google Sheets\n\n")
		b.WriteString("Enter the API key and OAuth client id of your Google Cloud project:\n\n")
		b.WriteString("    roster config save --api-key KEY --client-id CLIENT_ID\n\n")
		b.WriteString("Or go back to the data source choice with `roster config reset`.\n")
	case AuthError:
		writeAuthGuidance(&b, m.Failure)
	case AuthInitializing:
		b.WriteString("Initializing Google sign-in...\n")
	case NeedsSignIn:
		b.WriteString("# Sign-in required\n\n")
		b.WriteString("Sign in with your Google account to view or edit data:\n\n")
		b.WriteString("    roster auth login\n")
	case NeedsSpreadsheetSelection:
		b.WriteString("# Last step\n\n")
		b.WriteString("Pick the spreadsheet to use:\n\n")
		b.WriteString("    roster sheets list\n    roster sheets select ID\n")
	case Loading:
		b.WriteString("Loading data...\n")
	case LoadError:
		b.WriteString("# Could not load data\n\n")
		b.WriteString(m.Message + "\n")
	case Ready:
		b.WriteString("Ready.\n")
	}
	return b.String()
}

func writeAuthGuidance(b *strings.Builder, f *auth.Failure) {
	if f == nil {
		b.WriteString("# Google sign-in failed\n")
		return
	}
	switch f.Kind {
	case auth.InvalidClient:
		b.WriteString("# Google sign-in error (invalid client)\n\n")
		b.WriteString("The client id is wrong or not set up in the Google Cloud Console.\n\n")
		b.WriteString("1. Copy the OAuth 2.0 client id again from the [credentials page](" + CredentialsURL + ").\n")
		b.WriteString("2. Save the correct client id and API key with `roster config save`.\n")
	case auth.OriginMismatch:
		b.WriteString("# Google sign-in error (origin not registered)\n\n")
		b.WriteString("This origin is not registered for the OAuth client.\n\n")
		b.WriteString("1. Open the [credentials page](" + CredentialsURL + ").\n")
		b.WriteString("2. Select the OAuth 2.0 client id in use.\n")
		b.WriteString("3. Under *Authorized JavaScript origins* click **+ Add URI**.\n")
		b.WriteString("4. Paste this origin and save:\n\n")
		b.WriteString("        " + f.Origin + "\n\n")
		b.WriteString("5. Run `roster status` again.\n")
	default:
		b.WriteString("# Google sign-in failed\n\n")
		b.WriteString(f.Message + "\n")
	}
	b.WriteString("\nTo start over, run `roster config reset`.\n")
}
