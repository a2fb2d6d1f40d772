// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the bot.
//
// Configuration is loaded from a single YAML file passed via --config.
// There are no fallbacks or automatic discovery. Unknown fields are
// rejected so a typo fails loud at startup instead of silently running
// with a default. Secrets (access token, passwords, API tokens) can be
// supplied or overridden through environment variables, keeping them
// out of the config file on deployments that inject secrets into the
// process environment.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/strixbot/strix/lib/ref"
)

// Config is the bot's full configuration.
type Config struct {
	// Homeserver configures the Matrix connection.
	Homeserver HomeserverConfig `yaml:"homeserver"`

	// Database configures the SQLite store.
	Database DatabaseConfig `yaml:"database"`

	// Access lists the user IDs (and room IDs, expanded to their
	// joined members) holding each permission tier.
	Access AccessConfig `yaml:"access"`

	// Permissions controls power-level enforcement on ensured rooms.
	Permissions PermissionsConfig `yaml:"permissions"`

	// IdentityProvider configures the Keycloak-compatible admin API
	// used by the users commands. Disabled by default.
	IdentityProvider IdentityProviderConfig `yaml:"identity_provider"`

	// SignupService configures the self-signup page service used by
	// users signuplink / users invite. Disabled by default.
	SignupService SignupServiceConfig `yaml:"signup_service"`

	// CommandPrefix marks messages addressed to the bot. Defaults to
	// "!strix".
	CommandPrefix string `yaml:"command_prefix"`
}

// HomeserverConfig configures the Matrix connection.
type HomeserverConfig struct {
	// URL is the base URL of the homeserver
	// (e.g., "https://matrix.example.com").
	URL string `yaml:"url"`

	// ServerName is the Matrix server name used to build aliases and
	// user IDs (e.g., "example.com"). Usually differs from the URL
	// host on delegated deployments.
	ServerName string `yaml:"server_name"`

	// UserID is the bot's fully-qualified Matrix user ID.
	UserID string `yaml:"user_id"`

	// AccessToken authenticates the bot directly. When set, Password
	// is ignored. Override: STRIX_ACCESS_TOKEN.
	AccessToken string `yaml:"access_token" env:"STRIX_ACCESS_TOKEN"`

	// Password is used for m.login.password when no access token is
	// configured. Override: STRIX_PASSWORD.
	Password string `yaml:"password" env:"STRIX_PASSWORD"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the SQLite database file. The parent directory must
	// exist.
	Path string `yaml:"path"`
}

// AccessConfig lists the principals holding each tier. Entries are
// either user IDs ("@alice:example.com") or room IDs
// ("!xyz:example.com"); room IDs expand to the room's joined members
// at check time.
type AccessConfig struct {
	Admins       []string `yaml:"admins"`
	Coordinators []string `yaml:"coordinators"`
}

// PermissionsConfig controls power-level enforcement on rooms the bot
// maintains.
type PermissionsConfig struct {
	// PromoteUsers raises coordinators to moderator (50) in ensured
	// rooms.
	PromoteUsers bool `yaml:"promote_users"`

	// DemoteUsers lowers users who hold moderator power without
	// being coordinators. Users absent from the coordinator set with
	// power above default are always demoted when this is set.
	DemoteUsers bool `yaml:"demote_users"`
}

// IdentityProviderConfig configures the Keycloak-compatible admin API.
type IdentityProviderConfig struct {
	Enabled bool `yaml:"enabled"`

	// URL is the base URL of the provider (e.g., "https://idp.example.com").
	URL string `yaml:"url"`

	// Realm is the realm users are managed in.
	Realm string `yaml:"realm"`

	// ClientID and ClientSecret authenticate the bot against the
	// provider's token endpoint. Override: STRIX_IDP_CLIENT_SECRET.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret" env:"STRIX_IDP_CLIENT_SECRET"`
}

// SignupServiceConfig configures the self-signup page service.
type SignupServiceConfig struct {
	Enabled bool `yaml:"enabled"`

	// URL is the base URL of the signup service API.
	URL string `yaml:"url"`

	// Token authenticates API calls. Override: STRIX_SIGNUP_TOKEN.
	Token string `yaml:"token" env:"STRIX_SIGNUP_TOKEN"`
}

// Load reads, overrides, and validates configuration from the given
// YAML file. Environment variables are applied after the file, so a
// set STRIX_* variable wins over the file value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates configuration from YAML bytes, applying
// environment overrides. Split from Load for tests.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := strictUnmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: applying environment overrides: %w", err)
	}

	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "!strix"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// strictUnmarshal decodes YAML rejecting unknown fields.
func strictUnmarshal(data []byte, out *Config) error {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	if node.Kind == 0 {
		return fmt.Errorf("empty configuration")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// Validate checks required fields and cross-field constraints.
func (c *Config) Validate() error {
	if c.Homeserver.URL == "" {
		return fmt.Errorf("homeserver.url is required")
	}
	if c.Homeserver.ServerName == "" {
		return fmt.Errorf("homeserver.server_name is required")
	}
	if c.Homeserver.UserID == "" {
		return fmt.Errorf("homeserver.user_id is required")
	}
	if _, err := ref.ParseUserID(c.Homeserver.UserID); err != nil {
		return fmt.Errorf("homeserver.user_id: %w", err)
	}
	if c.Homeserver.AccessToken == "" && c.Homeserver.Password == "" {
		return fmt.Errorf("one of homeserver.access_token or homeserver.password is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	for _, entry := range append(append([]string{}, c.Access.Admins...), c.Access.Coordinators...) {
		if err := validateAccessEntry(entry); err != nil {
			return err
		}
	}

	if c.IdentityProvider.Enabled {
		if c.IdentityProvider.URL == "" {
			return fmt.Errorf("identity_provider.url is required when enabled")
		}
		if c.IdentityProvider.Realm == "" {
			return fmt.Errorf("identity_provider.realm is required when enabled")
		}
		if c.IdentityProvider.ClientID == "" || c.IdentityProvider.ClientSecret == "" {
			return fmt.Errorf("identity_provider.client_id and client_secret are required when enabled")
		}
	}

	if c.SignupService.Enabled {
		if c.SignupService.URL == "" {
			return fmt.Errorf("signup_service.url is required when enabled")
		}
		if c.SignupService.Token == "" {
			return fmt.Errorf("signup_service.token is required when enabled")
		}
	}

	return nil
}

// validateAccessEntry accepts user IDs and room IDs; anything else is
// a config mistake.
func validateAccessEntry(entry string) error {
	if _, err := ref.ParseUserID(entry); err == nil {
		return nil
	}
	if _, err := ref.ParseRoomID(entry); err == nil {
		return nil
	}
	return fmt.Errorf("access entry %q is neither a user ID nor a room ID", entry)
}

// BotUserID returns the parsed bot user ID. Validate must have
// succeeded first.
func (c *Config) BotUserID() ref.UserID {
	return ref.MustParseUserID(c.Homeserver.UserID)
}
