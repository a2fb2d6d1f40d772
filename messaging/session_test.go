// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/strixbot/strix/lib/ref"
)

// newTestSession creates a Client and DirectSession pointing at a test server.
func newTestSession(t *testing.T, handler http.Handler) *DirectSession {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client.SessionFromToken(ref.MustParseUserID("@strix:test.local"), "test-token")
}

func assertAuth(t *testing.T, request *http.Request, expectedToken string) {
	t.Helper()
	auth := request.Header.Get("Authorization")
	expected := "Bearer " + expectedToken
	if auth != expected {
		t.Errorf("unexpected auth header: got %q, want %q", auth, expected)
	}
}

func writeJSON(writer http.ResponseWriter, value any) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(value)
}

func writeMatrixError(writer http.ResponseWriter, status int, code, message string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(map[string]string{
		"errcode": code,
		"error":   message,
	})
}

func asMatrixError(err error, target **MatrixError) bool {
	return errors.As(err, target)
}

func TestWhoAmI(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request, "test-token")
		if request.URL.Path != "/_matrix/client/v3/account/whoami" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writeJSON(writer, WhoAmIResponse{UserID: ref.MustParseUserID("@strix:test.local"), DeviceID: "DEV1"})
	}))

	userID, err := session.WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("WhoAmI failed: %v", err)
	}
	if userID != ref.MustParseUserID("@strix:test.local") {
		t.Errorf("unexpected user ID: %s", userID)
	}
}

func TestCreateRoom(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request, "test-token")
		if request.URL.Path != "/_matrix/client/v3/createRoom" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}

		var body CreateRoomRequest
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if body.Name != "General" {
			t.Errorf("unexpected name: %s", body.Name)
		}
		if body.Alias != "general" {
			t.Errorf("unexpected alias: %s", body.Alias)
		}
		if body.Visibility != "public" {
			t.Errorf("unexpected visibility: %s", body.Visibility)
		}
		if len(body.InitialState) != 1 || body.InitialState[0].Type != EventTypeEncryption {
			t.Errorf("unexpected initial state: %+v", body.InitialState)
		}

		writeJSON(writer, CreateRoomResponse{RoomID: ref.MustParseRoomID("!room1:test.local")})
	}))

	response, err := session.CreateRoom(context.Background(), CreateRoomRequest{
		Name:       "General",
		Alias:      "general",
		Visibility: "public",
		InitialState: []StateEvent{
			{Type: EventTypeEncryption, Content: EncryptionContent{Algorithm: MegolmAlgorithm}},
		},
	})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if response.RoomID != ref.MustParseRoomID("!room1:test.local") {
		t.Errorf("unexpected room ID: %s", response.RoomID)
	}
}

func TestResolveAlias(t *testing.T) {
	t.Run("existing alias", func(t *testing.T) {
		session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if !strings.HasPrefix(request.URL.EscapedPath(), "/_matrix/client/v3/directory/room/") {
				t.Errorf("unexpected path: %s", request.URL.EscapedPath())
			}
			writeJSON(writer, ResolveAliasResponse{
				RoomID:  ref.MustParseRoomID("!room1:test.local"),
				Servers: []string{"test.local"},
			})
		}))

		roomID, err := session.ResolveAlias(context.Background(), ref.MustParseRoomAlias("#general:test.local"))
		if err != nil {
			t.Fatalf("ResolveAlias failed: %v", err)
		}
		if roomID != ref.MustParseRoomID("!room1:test.local") {
			t.Errorf("unexpected room ID: %s", roomID)
		}
	})

	t.Run("unknown alias", func(t *testing.T) {
		session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writeMatrixError(writer, http.StatusNotFound, "M_NOT_FOUND", "Room alias not found")
		}))

		_, err := session.ResolveAlias(context.Background(), ref.MustParseRoomAlias("#missing:test.local"))
		if !IsMatrixError(err, ErrCodeNotFound) {
			t.Errorf("expected M_NOT_FOUND, got: %v", err)
		}
	})
}

func TestRoomAliasManagement(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.Method != http.MethodPut {
				t.Errorf("unexpected method: %s", request.Method)
			}
			var body AliasMapping
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			if body.RoomID != ref.MustParseRoomID("!room1:test.local") {
				t.Errorf("unexpected room ID: %s", body.RoomID)
			}
			writeJSON(writer, struct{}{})
		}))

		err := session.CreateRoomAlias(context.Background(),
			ref.MustParseRoomAlias("#general:test.local"),
			ref.MustParseRoomID("!room1:test.local"))
		if err != nil {
			t.Fatalf("CreateRoomAlias failed: %v", err)
		}
	})

	t.Run("create conflict", func(t *testing.T) {
		session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writeMatrixError(writer, http.StatusConflict, "M_ROOM_IN_USE", "Room alias already taken")
		}))

		err := session.CreateRoomAlias(context.Background(),
			ref.MustParseRoomAlias("#general:test.local"),
			ref.MustParseRoomID("!room1:test.local"))
		if !IsMatrixError(err, ErrCodeRoomInUse) {
			t.Errorf("expected M_ROOM_IN_USE, got: %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.Method != http.MethodDelete {
				t.Errorf("unexpected method: %s", request.Method)
			}
			writeJSON(writer, struct{}{})
		}))

		if err := session.DeleteRoomAlias(context.Background(), ref.MustParseRoomAlias("#general:test.local")); err != nil {
			t.Fatalf("DeleteRoomAlias failed: %v", err)
		}
	})
}

func TestPowerLevelsRoundTrip(t *testing.T) {
	serverContent := PowerLevelsContent{
		Users:         map[string]int{"@admin:test.local": 100},
		UsersDefault:  0,
		Events:        map[string]int{"m.room.name": 50},
		EventsDefault: 0,
		StateDefault:  50,
		Ban:           50,
		Kick:          50,
		Redact:        50,
		Invite:        0,
	}

	var written PowerLevelsContent
	session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.Method {
		case http.MethodGet:
			writeJSON(writer, serverContent)
		case http.MethodPut:
			if err := json.NewDecoder(request.Body).Decode(&written); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			writeJSON(writer, SendEventResponse{EventID: ref.MustParseEventID("$pl1")})
		}
	}))

	roomID := ref.MustParseRoomID("!room1:test.local")
	content, err := session.PowerLevels(context.Background(), roomID)
	if err != nil {
		t.Fatalf("PowerLevels failed: %v", err)
	}
	if content.Users["@admin:test.local"] != 100 {
		t.Errorf("unexpected admin power: %d", content.Users["@admin:test.local"])
	}

	content.Users["@strix:test.local"] = 50
	if err := session.SetPowerLevels(context.Background(), roomID, content); err != nil {
		t.Fatalf("SetPowerLevels failed: %v", err)
	}

	// The write-back must carry everything the server sent, with only
	// the Users change applied. A lossy round trip would silently
	// reset moderation thresholds.
	if written.Ban != 50 || written.Kick != 50 || written.StateDefault != 50 {
		t.Errorf("power level defaults lost in round trip: %+v", written)
	}
	if written.Users["@strix:test.local"] != 50 {
		t.Errorf("user power change not written: %+v", written.Users)
	}
	if written.Users["@admin:test.local"] != 100 {
		t.Errorf("existing user power lost: %+v", written.Users)
	}
}

func TestDirectoryVisibility(t *testing.T) {
	var setTo string
	session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.Method {
		case http.MethodGet:
			writeJSON(writer, DirectoryVisibility{Visibility: "private"})
		case http.MethodPut:
			var body DirectoryVisibility
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			setTo = body.Visibility
			writeJSON(writer, struct{}{})
		}
	}))

	roomID := ref.MustParseRoomID("!room1:test.local")
	visibility, err := session.DirectoryVisibility(context.Background(), roomID)
	if err != nil {
		t.Fatalf("DirectoryVisibility failed: %v", err)
	}
	if visibility != "private" {
		t.Errorf("unexpected visibility: %s", visibility)
	}

	if err := session.SetDirectoryVisibility(context.Background(), roomID, "public"); err != nil {
		t.Fatalf("SetDirectoryVisibility failed: %v", err)
	}
	if setTo != "public" {
		t.Errorf("unexpected visibility written: %s", setTo)
	}
}

func TestJoinedMembers(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, "/joined_members") {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writeJSON(writer, map[string]any{
			"joined": map[string]any{
				"@alice:test.local": map[string]string{"display_name": "Alice"},
				"@bob:test.local":   map[string]string{},
			},
		})
	}))

	members, err := session.JoinedMembers(context.Background(), ref.MustParseRoomID("!room1:test.local"))
	if err != nil {
		t.Fatalf("JoinedMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("unexpected member count: %d", len(members))
	}
	found := map[string]bool{}
	for _, member := range members {
		found[member.String()] = true
	}
	if !found["@alice:test.local"] || !found["@bob:test.local"] {
		t.Errorf("unexpected members: %v", members)
	}
}

func TestSendMessage(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPut {
			t.Errorf("unexpected method: %s", request.Method)
		}
		if !strings.Contains(request.URL.Path, "/send/m.room.message/") {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}

		var content MessageContent
		if err := json.NewDecoder(request.Body).Decode(&content); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if content.MsgType != "m.notice" {
			t.Errorf("unexpected msgtype: %s", content.MsgType)
		}
		if content.Format != "org.matrix.custom.html" {
			t.Errorf("unexpected format: %s", content.Format)
		}

		writeJSON(writer, SendEventResponse{EventID: ref.MustParseEventID("$msg1")})
	}))

	eventID, err := session.SendMessage(context.Background(),
		ref.MustParseRoomID("!room1:test.local"),
		NewHTMLNotice("hello", "<p>hello</p>"))
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if eventID != ref.MustParseEventID("$msg1") {
		t.Errorf("unexpected event ID: %s", eventID)
	}
}

func TestSendReaction(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !strings.Contains(request.URL.Path, "/send/m.reaction/") {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}

		var content ReactionContent
		if err := json.NewDecoder(request.Body).Decode(&content); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if content.RelatesTo.RelType != "m.annotation" {
			t.Errorf("unexpected rel_type: %s", content.RelatesTo.RelType)
		}
		if content.RelatesTo.EventID != ref.MustParseEventID("$target") {
			t.Errorf("unexpected target: %s", content.RelatesTo.EventID)
		}
		if content.RelatesTo.Key != "👍" {
			t.Errorf("unexpected key: %s", content.RelatesTo.Key)
		}

		writeJSON(writer, SendEventResponse{EventID: ref.MustParseEventID("$react1")})
	}))

	_, err := session.SendReaction(context.Background(),
		ref.MustParseRoomID("!room1:test.local"),
		ref.MustParseEventID("$target"), "👍")
	if err != nil {
		t.Fatalf("SendReaction failed: %v", err)
	}
}

func TestForceJoinUser(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasPrefix(request.URL.EscapedPath(), "/_synapse/admin/v1/join/") {
			t.Errorf("unexpected path: %s", request.URL.EscapedPath())
		}
		var body map[string]string
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if body["user_id"] != "@alice:test.local" {
			t.Errorf("unexpected user_id: %s", body["user_id"])
		}
		writeJSON(writer, map[string]string{"room_id": "!room1:test.local"})
	}))

	admin := NewSynapseAdmin(session)
	err := admin.ForceJoinUser(context.Background(),
		ref.MustParseRoomID("!room1:test.local"),
		ref.MustParseUserID("@alice:test.local"))
	if err != nil {
		t.Fatalf("ForceJoinUser failed: %v", err)
	}
}

func TestGroups(t *testing.T) {
	t.Run("profile of missing group", func(t *testing.T) {
		session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writeMatrixError(writer, http.StatusNotFound, "M_NOT_FOUND", "Group not found")
		}))

		_, err := session.GetGroupProfile(context.Background(), ref.MustParseGroupID("+staff:test.local"))
		if !IsNotFound(err) {
			t.Errorf("expected not-found error, got: %v", err)
		}
	})

	t.Run("create group", func(t *testing.T) {
		session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/_matrix/client/r0/create_group" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			var body CreateGroupRequest
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			if body.Localpart != "staff" {
				t.Errorf("unexpected localpart: %s", body.Localpart)
			}
			if body.Profile.Name != "Staff" {
				t.Errorf("unexpected name: %s", body.Profile.Name)
			}
			writeJSON(writer, CreateGroupResponse{GroupID: ref.MustParseGroupID("+staff:test.local")})
		}))

		groupID, err := session.CreateGroup(context.Background(), CreateGroupRequest{
			Localpart: "staff",
			Profile:   GroupProfile{Name: "Staff"},
		})
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if groupID != ref.MustParseGroupID("+staff:test.local") {
			t.Errorf("unexpected group ID: %s", groupID)
		}
	})
}
