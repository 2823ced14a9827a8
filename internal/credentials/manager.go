package credentials

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrAuthRequired means there is no refresh token on file; the operator has
// to walk the consent flow again before anything can be published.
var ErrAuthRequired = errors.New("no stored credentials, authorization required")

// refreshLeeway: tokens expiring within this window are refreshed up front so
// a long upload never starts with a token about to die under it.
const refreshLeeway = 5 * time.Minute

var youtubeScopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube",
}

// Manager owns the OAuth token lifecycle: consent URL, code exchange, and
// proactive refresh with persistence. Safe for concurrent use.
type Manager struct {
	conf  *oauth2.Config
	store Store

	mu  sync.Mutex
	now func() time.Time

	// refresh is swapped out in tests to avoid the network.
	refresh func(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
}

func NewManager(clientID, clientSecret, redirectURL string, store Store) *Manager {
	m := &Manager{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       youtubeScopes,
			Endpoint:     google.Endpoint,
		},
		store: store,
		now:   time.Now,
	}
	m.refresh = func(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
		return m.conf.TokenSource(ctx, tok).Token()
	}
	return m
}

// AuthURL returns the consent URL. Offline access with forced approval is
// required or Google omits the refresh token on repeat consents.
func (m *Manager) AuthURL(state string) string {
	return m.conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades the callback code for tokens and persists them.
func (m *Manager) Exchange(ctx context.Context, code string) error {
	tok, err := m.conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Save(fromToken(tok)); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}
	log.Println("[Auth] credentials stored")
	return nil
}

// EnsureFresh returns a token valid for at least the leeway window, refreshing
// and persisting first when needed. Refreshed credentials are written to the
// store before the token is handed out, so a crash right after refresh never
// loses the rotation.
func (m *Manager) EnsureFresh(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	creds, ok, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if !ok || creds.RefreshToken == "" {
		return nil, ErrAuthRequired
	}

	expiry := time.UnixMilli(creds.ExpiryDate)
	if creds.AccessToken != "" && expiry.After(m.now().Add(refreshLeeway)) {
		return toToken(creds), nil
	}

	log.Println("[Auth] access token expiring, refreshing...")
	fresh, err := m.refresh(ctx, toToken(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}

	// Google often returns no refresh token on refresh; keep the old one.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = creds.RefreshToken
	}

	if err := m.store.Save(fromToken(fresh)); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed credentials: %w", err)
	}
	return fresh, nil
}

func toToken(c Credentials) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       time.UnixMilli(c.ExpiryDate),
		TokenType:    "Bearer",
	}
}

func fromToken(t *oauth2.Token) Credentials {
	return Credentials{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiryDate:   t.Expiry.UnixMilli(),
	}
}
