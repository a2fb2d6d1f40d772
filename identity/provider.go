// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity talks to the account backends behind the users
// commands: a Keycloak-compatible admin API for creating and querying
// accounts, and a signup-page service for self-service registration
// links. Both are optional; the bot runs without them and the command
// layer reports them as disabled.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/strixbot/strix/lib/clock"
	"github.com/strixbot/strix/lib/netutil"
)

// ErrAmbiguousUser is returned when an attribute lookup matches more
// than one account. The caller asked a question with one answer; an
// ambiguous directory is an operator problem, not something to pick
// from silently.
var ErrAmbiguousUser = fmt.Errorf("identity: more than one user matched")

// tokenLeeway is subtracted from a token's lifetime so we refresh
// before the provider actually rejects it.
const tokenLeeway = 10 * time.Second

// User is an account record as the provider returns it. Only the
// fields the bot uses are decoded.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Enabled  bool   `json:"enabled"`
}

// ProviderConfig holds configuration for creating a Provider.
type ProviderConfig struct {
	// URL is the base URL of the provider (e.g., "https://idp.example.com").
	URL string
	// Realm is the realm accounts are managed in.
	Realm string
	// ClientID and ClientSecret authenticate against the realm's token
	// endpoint with a client-credentials grant.
	ClientID     string
	ClientSecret string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Clock drives token expiry checks. If nil, the real clock is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default() is
	// used.
	Logger *slog.Logger
}

// Provider is a client for a Keycloak-compatible admin REST API. Safe
// for concurrent use; the service-account token is fetched lazily and
// cached until shortly before expiry.
type Provider struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	clock        clock.Clock
	logger       *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewProvider creates a Provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("identity: URL is required")
	}
	if _, err := url.Parse(config.URL); err != nil {
		return nil, fmt.Errorf("identity: invalid URL %q: %w", config.URL, err)
	}
	if config.Realm == "" {
		return nil, fmt.Errorf("identity: Realm is required")
	}
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("identity: ClientID and ClientSecret are required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		baseURL:      strings.TrimRight(config.URL, "/"),
		realm:        config.Realm,
		clientID:     config.ClientID,
		clientSecret: config.ClientSecret,
		httpClient:   httpClient,
		clock:        clk,
		logger:       logger,
	}, nil
}

// accessToken returns a valid service-account token, fetching a fresh
// one through the client-credentials grant when the cached token is
// missing or about to expire.
func (p *Provider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.clock.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
	}
	tokenURL := p.baseURL + "/realms/" + p.realm + "/protocol/openid-connect/token"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("identity: failed to create token request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := p.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("identity: token request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity: token endpoint returned %d: %s",
			response.StatusCode, netutil.ErrorBody(response.Body))
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := netutil.DecodeResponse(response.Body, &grant); err != nil {
		return "", fmt.Errorf("identity: failed to parse token response: %w", err)
	}
	if grant.AccessToken == "" {
		return "", fmt.Errorf("identity: token endpoint returned no access_token")
	}

	p.token = grant.AccessToken
	p.tokenExpiry = p.clock.Now().Add(time.Duration(grant.ExpiresIn)*time.Second - tokenLeeway)
	return p.token, nil
}

// doRequest performs an authenticated request against the admin API and
// returns the response. The caller owns the response and must close
// its body.
func (p *Provider) doRequest(ctx context.Context, method, path string, requestBody any, query url.Values) (*http.Response, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	requestURL := p.baseURL + "/admin/realms/" + p.realm + path
	if query != nil {
		requestURL += "?" + query.Encode()
	}

	var bodyReader *bytes.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("identity: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	var request *http.Request
	if bodyReader != nil {
		request, err = http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	} else {
		request, err = http.NewRequestWithContext(ctx, method, requestURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("identity: failed to create request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Authorization", "Bearer "+token)

	response, err := p.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("identity: request to %s %s failed: %w", method, path, err)
	}
	return response, nil
}

// ListUsers returns every account in the realm.
func (p *Provider) ListUsers(ctx context.Context) ([]User, error) {
	response, err := p.doRequest(ctx, http.MethodGet, "/users", nil, nil)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity: listing users returned %d: %s",
			response.StatusCode, netutil.ErrorBody(response.Body))
	}
	var users []User
	if err := netutil.DecodeResponse(response.Body, &users); err != nil {
		return nil, fmt.Errorf("identity: failed to parse user list: %w", err)
	}
	return users, nil
}

// userByAttr looks up the single account matching an exact attribute
// value. Returns nil when nothing matches and ErrAmbiguousUser when
// more than one account does.
func (p *Provider) userByAttr(ctx context.Context, attr, value string) (*User, error) {
	query := url.Values{attr: {value}, "exact": {"true"}}
	response, err := p.doRequest(ctx, http.MethodGet, "/users", nil, query)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity: user lookup by %s returned %d: %s",
			attr, response.StatusCode, netutil.ErrorBody(response.Body))
	}
	var users []User
	if err := netutil.DecodeResponse(response.Body, &users); err != nil {
		return nil, fmt.Errorf("identity: failed to parse user lookup: %w", err)
	}
	switch len(users) {
	case 0:
		return nil, nil
	case 1:
		return &users[0], nil
	default:
		return nil, fmt.Errorf("%w: %s = %q", ErrAmbiguousUser, attr, value)
	}
}

// UserByEmail returns the account registered with the given email, or
// nil when none exists.
func (p *Provider) UserByEmail(ctx context.Context, email string) (*User, error) {
	return p.userByAttr(ctx, "email", email)
}

// UserByUsername returns the account with the given username, or nil
// when none exists.
func (p *Provider) UserByUsername(ctx context.Context, username string) (*User, error) {
	return p.userByAttr(ctx, "username", username)
}

// CreateUser creates an enabled account with a pre-verified email and
// returns its ID. The account has no password; follow with
// SendPasswordReset so the owner sets one.
func (p *Provider) CreateUser(ctx context.Context, username, email string) (string, error) {
	payload := map[string]any{
		"email":         email,
		"emailVerified": true,
		"enabled":       true,
		"username":      username,
	}
	response, err := p.doRequest(ctx, http.MethodPost, "/users", payload, nil)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("identity: creating user %q returned %d: %s",
			username, response.StatusCode, netutil.ErrorBody(response.Body))
	}

	// The admin API returns the new account's URL in Location, with the
	// ID as the final path segment.
	location := response.Header.Get("Location")
	id := location[strings.LastIndex(location, "/")+1:]
	if id == "" {
		return "", fmt.Errorf("identity: creating user %q returned no Location header", username)
	}

	p.logger.Info("created identity provider account",
		"username", username,
		"user_id", id,
	)
	return id, nil
}

// SendPasswordReset emails the account owner a link to set their
// password.
func (p *Provider) SendPasswordReset(ctx context.Context, userID string) error {
	response, err := p.doRequest(ctx, http.MethodPut,
		"/users/"+userID+"/execute-actions-email", []string{"UPDATE_PASSWORD"}, nil)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusNoContent {
		return fmt.Errorf("identity: password reset for %s returned %d: %s",
			userID, response.StatusCode, netutil.ErrorBody(response.Body))
	}
	return nil
}
