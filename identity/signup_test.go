// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestSignupClient(t *testing.T, handler http.HandlerFunc) *SignupClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewSignupClient(SignupConfig{
		URL:    server.URL,
		Token:  "signup-secret",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewSignupClient: %v", err)
	}
	return client
}

func TestCreateSignupLink(t *testing.T) {
	var payload map[string]any
	client := newTestSignupClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/pages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		writeJSON(w, map[string]string{"signup_token": "tok123"})
	})

	link, err := client.CreateSignupLink(context.Background(), "@alice:test.local", 10, 30)
	if err != nil {
		t.Fatalf("CreateSignupLink: %v", err)
	}
	if !strings.HasSuffix(link, "/tok123") {
		t.Errorf("link = %q", link)
	}
	if payload["creator"] != "@alice:test.local" {
		t.Errorf("creator = %v", payload["creator"])
	}
	if payload["maxSignups"] != float64(10) || payload["validDays"] != float64(30) {
		t.Errorf("limits = %v / %v", payload["maxSignups"], payload["validDays"])
	}
	if payload["token"] != "signup-secret" {
		t.Errorf("token = %v", payload["token"])
	}
}

func TestCreateSignupLinkRejectsBadLimits(t *testing.T) {
	client := newTestSignupClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := client.CreateSignupLink(context.Background(), "@a:t", 0, 30); err == nil {
		t.Error("expected error for zero maxSignups")
	}
	if _, err := client.CreateSignupLink(context.Background(), "@a:t", 1, -1); err == nil {
		t.Error("expected error for negative validDays")
	}
}

func TestCreateInviteLink(t *testing.T) {
	var payload map[string]any
	client := newTestSignupClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		writeJSON(w, map[string]string{"signup_token": "invite-tok"})
	})

	link, err := client.CreateInviteLink(context.Background(), "@alice:test.local")
	if err != nil {
		t.Fatalf("CreateInviteLink: %v", err)
	}
	if !strings.HasSuffix(link, "/invite-tok") {
		t.Errorf("link = %q", link)
	}
	if payload["maxSignups"] != float64(1) {
		t.Errorf("invite pages must be single use, got %v", payload["maxSignups"])
	}
	if payload["validDays"] != float64(DefaultInviteValidDays) {
		t.Errorf("validDays = %v", payload["validDays"])
	}
}

func TestSignupServiceError(t *testing.T) {
	client := newTestSignupClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusForbidden)
	})
	if _, err := client.CreateSignupLink(context.Background(), "@a:t", 1, 1); err == nil {
		t.Error("expected error on 403")
	}
}
