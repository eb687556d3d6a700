package strava

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/sstent/vo2sync-go/internal/tokenstore"
)

// Endpoint is Strava's OAuth2 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://www.strava.com/oauth/authorize",
	TokenURL: "https://www.strava.com/oauth/token",
}

// OAuthConfig returns the OAuth2 configuration for read-only activity access.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{"read,activity:read"},
	}
}

// AuthCodeURL returns the URL the athlete visits to grant access.
func AuthCodeURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))
}

// Exchange trades an authorization code for a token and saves it.
func Exchange(ctx context.Context, cfg *oauth2.Config, store tokenstore.Store, code string) (*oauth2.Token, error) {
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, &FetchError{Op: "exchanging authorization code", Err: err}
	}
	if err := store.Save(ctx, token); err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}
	return token, nil
}

// NewHTTPClient returns an http.Client that authenticates with the stored
// token. The oauth2 library refreshes an expired token; the refreshed token
// is written back to the store. Every request is bounded by timeout.
func NewHTTPClient(ctx context.Context, cfg *oauth2.Config, store tokenstore.Store, timeout time.Duration, log logrus.FieldLogger) (*http.Client, error) {
	token, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	src := &savingTokenSource{
		src:   cfg.TokenSource(ctx, token),
		store: store,
		last:  token.AccessToken,
		log:   log,
	}
	hc := oauth2.NewClient(ctx, src)
	hc.Timeout = timeout
	return hc, nil
}

// savingTokenSource persists tokens the wrapped source refreshes.
type savingTokenSource struct {
	src   oauth2.TokenSource
	store tokenstore.Store
	log   logrus.FieldLogger

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.src.Token()
	if err != nil {
		return nil, &FetchError{Op: "refreshing token", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		if err := s.store.Save(context.Background(), token); err != nil {
			if s.log != nil {
				s.log.WithError(err).Warn("unable to store refreshed token")
			}
		} else if s.log != nil {
			s.log.Info("updated token")
		}
		s.last = token.AccessToken
	}
	return token, nil
}
