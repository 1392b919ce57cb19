package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// TokenFile is the cached session's file name inside the roster home.
const TokenFile = "token.json"

// GoogleEndpoint is Google's OAuth 2.0 endpoint with device authorization.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:       "https://accounts.google.com/o/oauth2/auth",
	TokenURL:      "https://oauth2.googleapis.com/token",
	DeviceAuthURL: "https://oauth2.googleapis.com/device/code",
	AuthStyle:     oauth2.AuthStyleInParams,
}

// Scopes requested at sign-in: sheet read/write and spreadsheet listing.
var Scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.metadata.readonly",
}

const clientIDSuffix = ".apps.googleusercontent.com"

// Google is the Provider for Google accounts, using the OAuth device flow.
// The session token is cached on disk so later runs start signed in.
type Google struct {
	TokenPath    string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	// Prompt shows the user where to enter the device code.
	Prompt func(resp *oauth2.DeviceAuthResponse)
	// HTTP is used for token and API calls. Nil means http.DefaultClient.
	HTTP *http.Client

	mu  sync.Mutex
	cfg *oauth2.Config
	tok *oauth2.Token
}

// NewGoogle returns a provider caching its token under dir.
func NewGoogle(dir, clientSecret string) *Google {
	return &Google{
		TokenPath:    filepath.Join(dir, TokenFile),
		ClientSecret: clientSecret,
		Endpoint:     GoogleEndpoint,
	}
}

type cachedToken struct {
	ClientID string        `json:"client_id"`
	Token    *oauth2.Token `json:"token"`
}

// Ready is always true: the oauth2 flow needs nothing loaded client-side.
func (g *Google) Ready(ctx context.Context) bool { return true }

func (g *Google) ctx(ctx context.Context) context.Context {
	if g.HTTP != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, g.HTTP)
	}
	return ctx
}

func (g *Google) Init(ctx context.Context, apiKey, clientID string) (bool, error) {
	if !strings.HasSuffix(clientID, clientIDSuffix) {
		return false, &Failure{Kind: InvalidClient, Message: fmt.Sprintf("AUTH_ERROR: Client ID %q is not an OAuth client id", clientID)}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: g.ClientSecret,
		Endpoint:     g.Endpoint,
		Scopes:       Scopes,
	}
	g.tok = nil

	cached, err := g.readToken()
	if err != nil {
		return false, err
	}
	if cached == nil || cached.ClientID != clientID || cached.Token == nil {
		return false, nil
	}
	if !cached.Token.Valid() && cached.Token.RefreshToken == "" {
		return false, nil
	}
	g.tok = cached.Token
	return true, nil
}

func (g *Google) SignIn(ctx context.Context) error {
	g.mu.Lock()
	cfg := g.cfg
	g.mu.Unlock()
	if cfg == nil {
		return errors.New("provider not initialized")
	}

	resp, err := cfg.DeviceAuth(g.ctx(ctx))
	if err != nil {
		return err
	}
	if g.Prompt != nil {
		g.Prompt(resp)
	} else {
		fmt.Fprintf(os.Stderr, "Open %s and enter code: %s\n", resp.VerificationURI, resp.UserCode)
	}

	tok, err := cfg.DeviceAccessToken(g.ctx(ctx), resp)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.tok = tok
	return g.writeToken(tok)
}

func (g *Google) SignOut(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tok = nil
	if err := os.Remove(g.TokenPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (g *Google) HTTPClient(ctx context.Context) (*http.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cfg == nil || g.tok == nil {
		return nil, ErrSignedOut
	}
	src := oauth2.ReuseTokenSource(g.tok, &savingSource{
		base: g.cfg.TokenSource(g.ctx(context.Background()), g.tok),
		g:    g,
	})
	return oauth2.NewClient(g.ctx(ctx), src), nil
}

// savingSource writes refreshed tokens back to the cache file.
type savingSource struct {
	base oauth2.TokenSource
	g    *Google
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if s.g.tok == nil || s.g.tok.AccessToken != tok.AccessToken {
		s.g.tok = tok
		if err := s.g.writeToken(tok); err != nil {
			return nil, err
		}
	}
	return tok, nil
}

func (g *Google) readToken() (*cachedToken, error) {
	f, err := os.Open(g.TokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read token: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var c cachedToken
	if err := json.Unmarshal(data, &c); err != nil {
		// a corrupt cache only costs a sign-in
		return nil, nil
	}
	return &c, nil
}

func (g *Google) writeToken(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(cachedToken{ClientID: g.cfg.ClientID, Token: tok}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(g.TokenPath), 0700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp := g.TokenPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	if err := os.Rename(tmp, g.TokenPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
