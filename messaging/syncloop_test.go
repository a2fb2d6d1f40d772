// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strixbot/strix/lib/clock"
	"github.com/strixbot/strix/lib/ref"
)

// fakeSession implements Session for the methods under test. The
// embedded interface panics on anything else, which is the desired
// behavior: a sync-loop test touching other endpoints is a bug.
type fakeSession struct {
	Session
	sync     func(ctx context.Context, options SyncOptions) (*SyncResponse, error)
	joinRoom func(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error)
}

func (f *fakeSession) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	return f.sync(ctx, options)
}

func (f *fakeSession) JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error) {
	return f.joinRoom(ctx, roomID)
}

func TestRunSyncLoopRetriesWithBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.Fake(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	var syncCalls atomic.Int64
	var handled atomic.Int64
	session := &fakeSession{
		sync: func(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
			call := syncCalls.Add(1)
			if call <= 2 {
				return nil, fmt.Errorf("connection refused")
			}
			return &SyncResponse{NextBatch: fmt.Sprintf("batch-%d", call)}, nil
		},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		RunSyncLoop(ctx, session, SyncConfig{}, "batch-0", func(ctx context.Context, response *SyncResponse) {
			if handled.Add(1) == 1 {
				if response.NextBatch != "batch-3" {
					t.Errorf("unexpected next batch: %s", response.NextBatch)
				}
				cancel()
			}
		}, clk, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	// Drive the fake clock until the loop finishes. Each advance
	// releases any pending backoff wait.
	for {
		select {
		case <-done:
			if syncCalls.Load() < 3 {
				t.Errorf("expected at least 3 sync calls, got %d", syncCalls.Load())
			}
			if handled.Load() < 1 {
				t.Error("handler never called")
			}
			return
		default:
			clk.Advance(2 * time.Second)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRunSyncLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := &fakeSession{
		sync: func(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
			t.Error("sync called after cancellation")
			return nil, ctx.Err()
		},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		RunSyncLoop(ctx, session, SyncConfig{}, "", func(context.Context, *SyncResponse) {
			t.Error("handler called after cancellation")
		}, clock.Real(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sync loop did not stop on cancelled context")
	}
}

func TestAcceptInvites(t *testing.T) {
	room1 := ref.MustParseRoomID("!one:test.local")
	room2 := ref.MustParseRoomID("!two:test.local")

	session := &fakeSession{
		joinRoom: func(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error) {
			if roomID == room2 {
				return ref.RoomID{}, &MatrixError{Code: ErrCodeForbidden, StatusCode: 403, Message: "not invited"}
			}
			return roomID, nil
		},
	}

	invites := map[ref.RoomID]InvitedRoom{
		room1: {},
		room2: {},
	}

	accepted := AcceptInvites(context.Background(), session, invites, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted invite, got %d", len(accepted))
	}
	if accepted[0] != room1 {
		t.Errorf("unexpected accepted room: %s", accepted[0])
	}
}
