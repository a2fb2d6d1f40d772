// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

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

	"github.com/strixbot/strix/lib/netutil"
)

// DefaultInviteValidDays is how long a single-use invite page stays
// open.
const DefaultInviteValidDays = 7

// SignupConfig holds configuration for creating a SignupClient.
type SignupConfig struct {
	// URL is the base URL of the signup-page service.
	URL string
	// Token authenticates page-creation calls.
	Token string
	// InviteValidDays overrides DefaultInviteValidDays for single-use
	// invites when positive.
	InviteValidDays int
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is
	// used.
	Logger *slog.Logger
}

// SignupClient creates self-service registration pages on the signup
// service. Each page is a tokenised URL that allows a bounded number of
// account signups for a bounded number of days.
type SignupClient struct {
	baseURL         string
	token           string
	inviteValidDays int
	httpClient      *http.Client
	logger          *slog.Logger
}

// NewSignupClient creates a SignupClient.
func NewSignupClient(config SignupConfig) (*SignupClient, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("identity: signup URL is required")
	}
	if _, err := url.Parse(config.URL); err != nil {
		return nil, fmt.Errorf("identity: invalid signup URL %q: %w", config.URL, err)
	}
	if config.Token == "" {
		return nil, fmt.Errorf("identity: signup Token is required")
	}

	inviteValidDays := config.InviteValidDays
	if inviteValidDays <= 0 {
		inviteValidDays = DefaultInviteValidDays
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SignupClient{
		baseURL:         strings.TrimRight(config.URL, "/"),
		token:           config.Token,
		inviteValidDays: inviteValidDays,
		httpClient:      httpClient,
		logger:          logger,
	}, nil
}

// CreateSignupLink creates a signup page allowing maxSignups
// registrations over validDays days and returns its URL. creator is
// recorded by the service for audit.
func (s *SignupClient) CreateSignupLink(ctx context.Context, creator string, maxSignups, validDays int) (string, error) {
	if maxSignups < 1 || validDays < 1 {
		return "", fmt.Errorf("identity: maxSignups and validDays must be positive")
	}

	payload := map[string]any{
		"creator":    creator,
		"maxSignups": maxSignups,
		"validDays":  validDays,
		"token":      s.token,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("identity: failed to encode signup request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/api/pages", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("identity: failed to create signup request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("identity: signup request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("identity: signup service returned %d: %s",
			response.StatusCode, netutil.ErrorBody(response.Body))
	}

	var page struct {
		SignupToken string `json:"signup_token"`
	}
	if err := netutil.DecodeResponse(response.Body, &page); err != nil {
		return "", fmt.Errorf("identity: failed to parse signup response: %w", err)
	}
	if page.SignupToken == "" {
		return "", fmt.Errorf("identity: signup service returned no signup_token")
	}

	s.logger.Info("created signup page",
		"creator", creator,
		"max_signups", maxSignups,
		"valid_days", validDays,
	)
	return s.baseURL + "/" + page.SignupToken, nil
}

// CreateInviteLink creates a single-use signup page for inviting one
// person and returns its URL.
func (s *SignupClient) CreateInviteLink(ctx context.Context, creator string) (string, error) {
	return s.CreateSignupLink(ctx, creator, 1, s.inviteValidDays)
}
