// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"testing"
)

func TestParseUserID(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		u, err := ParseUserID("@alice:example.com")
		if err != nil {
			t.Fatalf("ParseUserID: %v", err)
		}
		if u.Localpart() != "alice" {
			t.Errorf("Localpart = %q, want %q", u.Localpart(), "alice")
		}
		if u.Server() != "example.com" {
			t.Errorf("Server = %q, want %q", u.Server(), "example.com")
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, raw := range []string{"", "alice", "@alice", "@:example.com", "@alice:"} {
			if _, err := ParseUserID(raw); err == nil {
				t.Errorf("ParseUserID(%q): expected error", raw)
			}
		}
	})
}

func TestParseRoomID(t *testing.T) {
	r, err := ParseRoomID("!abc123:example.com")
	if err != nil {
		t.Fatalf("ParseRoomID: %v", err)
	}
	if r.IsZero() {
		t.Error("valid room ID reported as zero")
	}
	for _, raw := range []string{"", "abc", "#abc:example.com", "!:example.com", "!abc"} {
		if _, err := ParseRoomID(raw); err == nil {
			t.Errorf("ParseRoomID(%q): expected error", raw)
		}
	}
}

func TestParseRoomAlias(t *testing.T) {
	a, err := ParseRoomAlias("#general:example.com")
	if err != nil {
		t.Fatalf("ParseRoomAlias: %v", err)
	}
	if a.Localpart() != "general" {
		t.Errorf("Localpart = %q, want %q", a.Localpart(), "general")
	}

	built, err := NewRoomAlias("general", "example.com")
	if err != nil {
		t.Fatalf("NewRoomAlias: %v", err)
	}
	if built != a {
		t.Errorf("NewRoomAlias = %v, want %v", built, a)
	}
}

func TestParseEventID(t *testing.T) {
	if _, err := ParseEventID("$abcdef"); err != nil {
		t.Fatalf("ParseEventID: %v", err)
	}
	for _, raw := range []string{"", "$", "abcdef"} {
		if _, err := ParseEventID(raw); err == nil {
			t.Errorf("ParseEventID(%q): expected error", raw)
		}
	}
}

func TestParseGroupID(t *testing.T) {
	g, err := ParseGroupID("+staff:example.com")
	if err != nil {
		t.Fatalf("ParseGroupID: %v", err)
	}
	if g.Localpart() != "staff" {
		t.Errorf("Localpart = %q, want %q", g.Localpart(), "staff")
	}

	built, err := NewGroupID("staff", "example.com")
	if err != nil {
		t.Fatalf("NewGroupID: %v", err)
	}
	if built != g {
		t.Errorf("NewGroupID = %v, want %v", built, g)
	}

	for _, raw := range []string{"", "staff", "+staff", "+:example.com"} {
		if _, err := ParseGroupID(raw); err == nil {
			t.Errorf("ParseGroupID(%q): expected error", raw)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		User  UserID  `json:"user"`
		Room  RoomID  `json:"room"`
		Event EventID `json:"event,omitempty"`
	}
	in := wrapper{
		User:  MustParseUserID("@bot:example.com"),
		Room:  MustParseRoomID("!room:example.com"),
		Event: MustParseEventID("$ev1"),
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out wrapper
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}

	var bad wrapper
	if err := json.Unmarshal([]byte(`{"user":"not-a-user"}`), &bad); err == nil {
		t.Error("expected error unmarshaling malformed user ID")
	}
}
