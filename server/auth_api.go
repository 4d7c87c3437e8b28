package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/testgenie-labs/testgenie-go/internal/platform/env"
	"github.com/testgenie-labs/testgenie-go/internal/platform/httpserver"
	"github.com/testgenie-labs/testgenie-go/internal/platform/session"
)

const (
	atlassianAuthURL  = "https://auth.atlassian.com/authorize"
	atlassianTokenURL = "https://auth.atlassian.com/oauth/token"
	atlassianAPIBase  = "https://api.atlassian.com"

	stateTTL      = 10 * time.Minute
	sessionMaxAge = 8 * time.Hour

	cookieAccountID = "jiraAccountId"
	cookieCloudID   = "jiraCloudId"
)

type authConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	FrontendURL  string
	Scopes       []string
	CookieSecret string
	SecureCookie bool
}

func authConfigFromEnv() (authConfig, error) {
	clientID := env.String("ATLASSIAN_CLIENT_ID", "")
	if clientID == "" {
		// Login is optional; a blank id disables the whole surface.
		return authConfig{}, nil
	}
	clientSecret, err := env.Required("ATLASSIAN_CLIENT_SECRET")
	if err != nil {
		return authConfig{}, err
	}
	redirectURL, err := env.Required("OAUTH_REDIRECT_URL")
	if err != nil {
		return authConfig{}, err
	}
	cookieSecret, err := env.Required("SESSION_SECRET")
	if err != nil {
		return authConfig{}, err
	}
	secure, err := env.Bool("SESSION_COOKIE_SECURE", true)
	if err != nil {
		return authConfig{}, err
	}
	return authConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		FrontendURL:  strings.TrimRight(env.String("FRONTEND_URL", "/"), "/"),
		Scopes:       env.Strings("ATLASSIAN_SCOPES", []string{"read:jira-user", "read:jira-work", "offline_access"}),
		CookieSecret: cookieSecret,
		SecureCookie: secure,
	}, nil
}

func (c authConfig) enabled() bool { return c.ClientID != "" }

// pendingLogin is one outstanding authorization round trip.
type pendingLogin struct {
	verifier  string
	expiresAt time.Time
}

// stateStore holds PKCE verifiers keyed by the opaque state parameter.
// States are single use and expire after ten minutes.
type stateStore struct {
	mu      sync.Mutex
	pending map[string]pendingLogin
	now     func() time.Time
}

func newStateStore() *stateStore {
	return &stateStore{pending: make(map[string]pendingLogin), now: time.Now}
}

func (s *stateStore) put(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, p := range s.pending {
		if now.After(p.expiresAt) {
			delete(s.pending, k)
		}
	}
	s.pending[state] = pendingLogin{verifier: verifier, expiresAt: now.Add(stateTTL)}
}

// take consumes a state, returning its verifier when still valid.
func (s *stateStore) take(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[state]
	if !ok {
		return "", false
	}
	delete(s.pending, state)
	if s.now().After(p.expiresAt) {
		return "", false
	}
	return p.verifier, true
}

type authService struct {
	logger *slog.Logger
	cfg    authConfig
	oauth  *oauth2.Config
	signer *session.Signer
	states *stateStore

	// identity is swapped in tests to avoid calling Atlassian.
	identity func(ctx context.Context, token *oauth2.Token) (accountID, cloudID string, err error)
}

func newAuthService(logger *slog.Logger, cfg authConfig) (*authService, error) {
	if !cfg.enabled() {
		return nil, nil
	}
	signer, err := session.NewSigner(cfg.CookieSecret)
	if err != nil {
		return nil, err
	}
	svc := &authService{
		logger: logger,
		cfg:    cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  atlassianAuthURL,
				TokenURL: atlassianTokenURL,
			},
		},
		signer: signer,
		states: newStateStore(),
	}
	svc.identity = svc.fetchIdentity
	return svc, nil
}

func (s *authService) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/atlassian/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/atlassian/callback", s.handleCallback)
	mux.HandleFunc("GET /api/auth/atlassian/me", s.handleMe)
	mux.HandleFunc("POST /api/auth/atlassian/logout", s.handleLogout)
}

func (s *authService) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	s.states.put(state, verifier)

	url := s.oauth.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("audience", "api.atlassian.com"),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *authService) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		s.logger.Warn("authorization denied", "error", errCode)
		s.redirectFrontend(w, r, "auth_denied")
		return
	}
	state := q.Get("state")
	code := q.Get("code")
	if state == "" || code == "" {
		s.redirectFrontend(w, r, "auth_invalid")
		return
	}
	verifier, ok := s.states.take(state)
	if !ok {
		s.logger.Warn("unknown or expired oauth state")
		s.redirectFrontend(w, r, "auth_expired")
		return
	}

	token, err := s.oauth.Exchange(r.Context(), code, oauth2.VerifierOption(verifier))
	if err != nil {
		s.logger.Error("code exchange failed", "error", err)
		s.redirectFrontend(w, r, "auth_failed")
		return
	}

	accountID, cloudID, err := s.identity(r.Context(), token)
	if err != nil {
		s.logger.Error("identity lookup failed", "error", err)
		s.redirectFrontend(w, r, "auth_failed")
		return
	}

	s.setCookie(w, cookieAccountID, accountID)
	s.setCookie(w, cookieCloudID, cloudID)
	s.redirectFrontend(w, r, "")
}

// fetchIdentity resolves the logged-in user and their first accessible
// site using the fresh access token.
func (s *authService) fetchIdentity(ctx context.Context, token *oauth2.Token) (string, string, error) {
	client := s.oauth.Client(ctx, token)

	var me struct {
		AccountID string `json:"account_id"`
	}
	if err := getJSON(ctx, client, atlassianAPIBase+"/me", &me); err != nil {
		return "", "", fmt.Errorf("fetch profile: %w", err)
	}
	if me.AccountID == "" {
		return "", "", errors.New("profile has no account id")
	}

	var sites []struct {
		ID string `json:"id"`
	}
	if err := getJSON(ctx, client, atlassianAPIBase+"/oauth/token/accessible-resources", &sites); err != nil {
		return "", "", fmt.Errorf("fetch accessible resources: %w", err)
	}
	if len(sites) == 0 {
		return "", "", errors.New("no accessible jira sites")
	}
	return me.AccountID, sites[0].ID, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}

func (s *authService) redirectFrontend(w http.ResponseWriter, r *http.Request, errCode string) {
	target := s.cfg.FrontendURL
	if target == "" {
		target = "/"
	}
	if errCode != "" {
		target += "?auth_error=" + errCode
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *authService) setCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    s.signer.Sign(value),
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *authService) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// readCookie returns the verified value of a signed cookie.
func (s *authService) readCookie(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	value, err := s.signer.Unsign(c.Value)
	if err != nil {
		return "", false
	}
	return value, true
}

func (s *authService) handleMe(w http.ResponseWriter, r *http.Request) {
	accountID, okAccount := s.readCookie(r, cookieAccountID)
	cloudID, okCloud := s.readCookie(r, cookieCloudID)
	if !okAccount || !okCloud {
		httpserver.WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"account_id":    accountID,
		"cloud_id":      cloudID,
	})
}

func (s *authService) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearCookie(w, cookieAccountID)
	s.clearCookie(w, cookieCloudID)
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
}
