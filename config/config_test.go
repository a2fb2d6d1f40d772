// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"strings"
	"testing"
)

const validYAML = `
homeserver:
  url: https://matrix.test.local
  server_name: test.local
  user_id: "@strix:test.local"
  access_token: syt_token
database:
  path: /tmp/strix.db
access:
  admins:
    - "@admin:test.local"
  coordinators:
    - "@coord:test.local"
    - "!staffroom:test.local"
permissions:
  promote_users: true
  demote_users: false
`

func TestParseValid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Homeserver.ServerName != "test.local" {
		t.Errorf("ServerName = %q", cfg.Homeserver.ServerName)
	}
	if cfg.BotUserID().Localpart() != "strix" {
		t.Errorf("BotUserID = %v", cfg.BotUserID())
	}
	if !cfg.Permissions.PromoteUsers || cfg.Permissions.DemoteUsers {
		t.Errorf("permissions = %+v", cfg.Permissions)
	}
	if len(cfg.Access.Coordinators) != 2 {
		t.Errorf("coordinators = %v", cfg.Access.Coordinators)
	}
	if cfg.IdentityProvider.Enabled {
		t.Error("identity provider should default to disabled")
	}
	if cfg.CommandPrefix != "!strix" {
		t.Errorf("CommandPrefix default = %q", cfg.CommandPrefix)
	}
}

func TestCommandPrefixOverride(t *testing.T) {
	cfg, err := Parse([]byte(validYAML + "command_prefix: \"!bot\"\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.CommandPrefix != "!bot" {
		t.Errorf("CommandPrefix = %q", cfg.CommandPrefix)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	yaml := validYAML + "\nhomserver_url: typo\n"
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseMissingRequired(t *testing.T) {
	cases := []struct {
		name   string
		remove string
		want   string
	}{
		{"no url", "url: https://matrix.test.local", "homeserver.url"},
		{"no server name", "server_name: test.local", "server_name"},
		{"no user id", `user_id: "@strix:test.local"`, "user_id"},
		{"no credentials", "access_token: syt_token", "access_token or homeserver.password"},
		{"no database", "path: /tmp/strix.db", "database.path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			yaml := strings.Replace(validYAML, tc.remove, "", 1)
			_, err := Parse([]byte(yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestParseBadAccessEntry(t *testing.T) {
	yaml := strings.Replace(validYAML, `- "@admin:test.local"`, `- "admin-without-sigil"`, 1)
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected error for malformed access entry")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("STRIX_ACCESS_TOKEN", "syt_from_env")
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Homeserver.AccessToken != "syt_from_env" {
		t.Errorf("AccessToken = %q, want env override", cfg.Homeserver.AccessToken)
	}
}

func TestIdentityProviderValidation(t *testing.T) {
	yaml := validYAML + `
identity_provider:
  enabled: true
  url: https://idp.test.local
  realm: main
  client_id: strix
`
	// client_secret missing → error.
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected error for missing client_secret")
	}

	t.Setenv("STRIX_IDP_CLIENT_SECRET", "s3cret")
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse with env secret: %v", err)
	}
	if cfg.IdentityProvider.ClientSecret != "s3cret" {
		t.Errorf("ClientSecret = %q", cfg.IdentityProvider.ClientSecret)
	}
}
