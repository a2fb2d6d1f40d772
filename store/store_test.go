// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/strixbot/strix/lib/ref"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "strix.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestRoomUpsertAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alias := ref.MustParseRoomAlias("#general:test.local")
	room := TrackedRoom{
		Alias:     alias,
		Name:      "General",
		RoomID:    ref.MustParseRoomID("!one:test.local"),
		Title:     "General chat",
		Encrypted: false,
		Public:    true,
		Type:      TypeRoom,
	}
	if err := s.UpsertRoom(ctx, room); err != nil {
		t.Fatalf("UpsertRoom: %v", err)
	}

	got, err := s.RoomByAlias(ctx, alias)
	if err != nil {
		t.Fatalf("RoomByAlias: %v", err)
	}
	if got == nil {
		t.Fatal("RoomByAlias returned nil")
	}
	if *got != room {
		t.Errorf("room = %+v, want %+v", *got, room)
	}

	// Upsert with the same alias replaces, not duplicates.
	room.Title = "Updated"
	if err := s.UpsertRoom(ctx, room); err != nil {
		t.Fatalf("UpsertRoom update: %v", err)
	}
	rooms, err := s.Rooms(ctx)
	if err != nil {
		t.Fatalf("Rooms: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("expected 1 room, got %d", len(rooms))
	}
	if rooms[0].Title != "Updated" {
		t.Errorf("Title = %q", rooms[0].Title)
	}

	missing, err := s.RoomByAlias(ctx, ref.MustParseRoomAlias("#missing:test.local"))
	if err != nil {
		t.Fatalf("RoomByAlias missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing alias, got %+v", missing)
	}
}

func TestRoomRepointAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alias := ref.MustParseRoomAlias("#general:test.local")
	oldID := ref.MustParseRoomID("!old:test.local")
	newID := ref.MustParseRoomID("!new:test.local")

	if err := s.UpsertRoom(ctx, TrackedRoom{Alias: alias, Name: "General", RoomID: oldID}); err != nil {
		t.Fatalf("UpsertRoom: %v", err)
	}

	if err := s.SetRoomID(ctx, alias, newID); err != nil {
		t.Fatalf("SetRoomID: %v", err)
	}
	got, err := s.RoomByID(ctx, newID)
	if err != nil {
		t.Fatalf("RoomByID: %v", err)
	}
	if got == nil || got.Alias != alias {
		t.Fatalf("repointed room not found by new ID: %+v", got)
	}
	if old, _ := s.RoomByID(ctx, oldID); old != nil {
		t.Errorf("old room ID still resolves: %+v", old)
	}

	if err := s.SetRoomID(ctx, ref.MustParseRoomAlias("#nope:test.local"), newID); err == nil {
		t.Error("SetRoomID on unknown alias should fail")
	}

	deleted, err := s.DeleteRoomByID(ctx, newID)
	if err != nil {
		t.Fatalf("DeleteRoomByID: %v", err)
	}
	if !deleted {
		t.Error("expected delete to report a removed row")
	}
	deleted, err = s.DeleteRoomByID(ctx, newID)
	if err != nil {
		t.Fatalf("DeleteRoomByID second: %v", err)
	}
	if deleted {
		t.Error("second delete should report no removed row")
	}
}

func TestCommunities(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertCommunity(ctx, TrackedCommunity{Alias: "staff", Name: "Staff", Title: "Staff community"}); err != nil {
		t.Fatalf("UpsertCommunity: %v", err)
	}
	if err := s.UpsertCommunity(ctx, TrackedCommunity{Alias: "staff", Name: "Staff", Title: "Renamed"}); err != nil {
		t.Fatalf("UpsertCommunity update: %v", err)
	}

	communities, err := s.Communities(ctx)
	if err != nil {
		t.Fatalf("Communities: %v", err)
	}
	if len(communities) != 1 {
		t.Fatalf("expected 1 community, got %d", len(communities))
	}
	if communities[0].Title != "Renamed" {
		t.Errorf("Title = %q", communities[0].Title)
	}
}

func TestRecreateRequestLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	roomID := ref.MustParseRoomID("!general:test.local")
	alice := ref.MustParseUserID("@alice:test.local")
	bob := ref.MustParseUserID("@bob:test.local")
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// No request yet.
	request, err := s.RecreateRequestFor(ctx, roomID)
	if err != nil {
		t.Fatalf("RecreateRequestFor: %v", err)
	}
	if request != nil {
		t.Fatalf("expected no request, got %+v", request)
	}

	// First request is written.
	written, err := s.PutRecreateRequest(ctx, roomID, alice, start)
	if err != nil {
		t.Fatalf("PutRecreateRequest: %v", err)
	}
	if !written {
		t.Fatal("first request should be written")
	}

	// A stale pending request is replaced, restarting the window.
	written, err = s.PutRecreateRequest(ctx, roomID, bob, start.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("PutRecreateRequest replace: %v", err)
	}
	if !written {
		t.Fatal("pending request should be replaceable")
	}
	request, err = s.RecreateRequestFor(ctx, roomID)
	if err != nil {
		t.Fatalf("RecreateRequestFor: %v", err)
	}
	if request.Requester != bob {
		t.Errorf("requester = %v, want %v", request.Requester, bob)
	}
	if !request.RequestedAt.Equal(start.Add(5 * time.Minute)) {
		t.Errorf("requested at = %v", request.RequestedAt)
	}

	// Exactly one confirm wins.
	applied, err := s.MarkRecreateApplied(ctx, roomID)
	if err != nil {
		t.Fatalf("MarkRecreateApplied: %v", err)
	}
	if !applied {
		t.Fatal("first confirm should apply")
	}
	applied, err = s.MarkRecreateApplied(ctx, roomID)
	if err != nil {
		t.Fatalf("MarkRecreateApplied second: %v", err)
	}
	if applied {
		t.Fatal("second confirm must not apply")
	}

	// Applied rooms permanently reject new requests.
	written, err = s.PutRecreateRequest(ctx, roomID, alice, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("PutRecreateRequest after applied: %v", err)
	}
	if written {
		t.Fatal("applied room must reject new recreate requests")
	}
	request, err = s.RecreateRequestFor(ctx, roomID)
	if err != nil {
		t.Fatalf("RecreateRequestFor: %v", err)
	}
	if !request.Applied {
		t.Error("request should remain applied")
	}
	if request.Requester != bob {
		t.Errorf("applied request mutated: %+v", request)
	}
}

func TestResetRecreateApplied(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	roomID := ref.MustParseRoomID("!general:test.local")
	alice := ref.MustParseUserID("@alice:test.local")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := s.PutRecreateRequest(ctx, roomID, alice, at); err != nil {
		t.Fatalf("PutRecreateRequest: %v", err)
	}
	if _, err := s.MarkRecreateApplied(ctx, roomID); err != nil {
		t.Fatalf("MarkRecreateApplied: %v", err)
	}
	if err := s.ResetRecreateApplied(ctx, roomID); err != nil {
		t.Fatalf("ResetRecreateApplied: %v", err)
	}

	// Back to pending: a confirm can claim it again.
	applied, err := s.MarkRecreateApplied(ctx, roomID)
	if err != nil {
		t.Fatalf("MarkRecreateApplied after reset: %v", err)
	}
	if !applied {
		t.Error("reset request should be claimable again")
	}
}

func TestBreakoutRoomMappingAndRetention(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	oldEvent := ref.MustParseEventID("$old")
	newEvent := ref.MustParseEventID("$new")
	roomID := ref.MustParseRoomID("!breakout:test.local")
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := s.PutBreakoutRoom(ctx, oldEvent, roomID, now.Add(-31*24*time.Hour)); err != nil {
		t.Fatalf("PutBreakoutRoom old: %v", err)
	}

	got, found, err := s.BreakoutRoom(ctx, oldEvent)
	if err != nil {
		t.Fatalf("BreakoutRoom: %v", err)
	}
	if !found || got != roomID {
		t.Fatalf("mapping not found: %v %v", got, found)
	}

	// Inserting a new mapping purges entries past retention.
	if err := s.PutBreakoutRoom(ctx, newEvent, roomID, now); err != nil {
		t.Fatalf("PutBreakoutRoom new: %v", err)
	}
	_, found, err = s.BreakoutRoom(ctx, oldEvent)
	if err != nil {
		t.Fatalf("BreakoutRoom after purge: %v", err)
	}
	if found {
		t.Error("expired mapping should have been purged")
	}
	_, found, err = s.BreakoutRoom(ctx, newEvent)
	if err != nil {
		t.Fatalf("BreakoutRoom new: %v", err)
	}
	if !found {
		t.Error("fresh mapping missing")
	}
}
