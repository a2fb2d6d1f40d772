// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists the bot's durable state in SQLite: the rooms
// and communities it maintains, pending and applied room recreation
// requests, and the breakout-announcement reaction mapping.
//
// Every table is small and keyed by a natural identifier (alias, room
// ID, event ID), so the store is plain SQL over the sqlitepool
// connection pool — no ORM, no query builder. Writes rely on
// single-statement atomicity; the one transition that must be
// race-safe (recreate Pending→Applied) is a conditional UPDATE whose
// change count decides the winner.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/strixbot/strix/lib/ref"
	"github.com/strixbot/strix/lib/sqlitepool"
)

// breakoutRetention bounds how long a breakout announcement keeps
// accepting reaction invites. Older mappings are purged
// opportunistically on insert.
const breakoutRetention = 30 * 24 * time.Hour

// RoomType distinguishes plain rooms from spaces in the rooms table.
type RoomType string

const (
	TypeRoom  RoomType = ""
	TypeSpace RoomType = "space"
)

// TrackedRoom is one row of the rooms table: a room the bot maintains
// through the reconciliation sweep, keyed by alias.
type TrackedRoom struct {
	Alias     ref.RoomAlias
	Name      string
	RoomID    ref.RoomID
	Title     string
	Encrypted bool
	Public    bool
	Type      RoomType
}

// TrackedCommunity is one row of the communities table.
type TrackedCommunity struct {
	Alias string // group localpart, without the '+' sigil
	Name  string
	Title string
}

// RecreateRequest is one row of the recreate_requests table. Applied
// rows are never deleted: a room that has been recreated is
// permanently rejected for further recreation (its successor gets its
// own row under the new room ID).
type RecreateRequest struct {
	RoomID      ref.RoomID
	Requester   ref.UserID
	RequestedAt time.Time
	Applied     bool
}

// Store wraps the SQLite pool with the bot's persistence operations.
// Safe for concurrent use.
type Store struct {
	pool *sqlitepool.Pool
}

// Open opens (creating if needed) the database at path and migrates
// the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      path,
		Logger:    logger,
		OnConnect: migrate,
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// --- rooms ---

// UpsertRoom inserts or replaces the tracked room row for its alias.
func (s *Store) UpsertRoom(ctx context.Context, room TrackedRoom) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO rooms (alias, name, room_id, title, encrypted, public, room_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(alias) DO UPDATE SET
			name = excluded.name,
			room_id = excluded.room_id,
			title = excluded.title,
			encrypted = excluded.encrypted,
			public = excluded.public,
			room_type = excluded.room_type`,
		&sqlitex.ExecOptions{Args: []any{
			room.Alias.String(), room.Name, room.RoomID.String(), room.Title,
			boolToInt(room.Encrypted), boolToInt(room.Public), string(room.Type),
		}})
	if err != nil {
		return fmt.Errorf("store: upsert room %s: %w", room.Alias, err)
	}
	return nil
}

// RoomByAlias returns the tracked room for an alias, or nil if none.
func (s *Store) RoomByAlias(ctx context.Context, alias ref.RoomAlias) (*TrackedRoom, error) {
	rooms, err := s.queryRooms(ctx, "WHERE alias = ?", alias.String())
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, nil
	}
	return &rooms[0], nil
}

// RoomByID returns the tracked room for a room ID, or nil if none.
func (s *Store) RoomByID(ctx context.Context, roomID ref.RoomID) (*TrackedRoom, error) {
	rooms, err := s.queryRooms(ctx, "WHERE room_id = ?", roomID.String())
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, nil
	}
	return &rooms[0], nil
}

// Rooms returns all tracked rooms ordered by alias.
func (s *Store) Rooms(ctx context.Context) ([]TrackedRoom, error) {
	return s.queryRooms(ctx, "ORDER BY alias")
}

func (s *Store) queryRooms(ctx context.Context, clause string, args ...any) ([]TrackedRoom, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var rooms []TrackedRoom
	var scanErr error
	err = sqlitex.Execute(conn,
		"SELECT alias, name, room_id, title, encrypted, public, room_type FROM rooms "+clause,
		&sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				alias, err := ref.ParseRoomAlias(stmt.ColumnText(0))
				if err != nil {
					scanErr = fmt.Errorf("store: corrupt room alias %q: %w", stmt.ColumnText(0), err)
					return scanErr
				}
				roomID, err := ref.ParseRoomID(stmt.ColumnText(2))
				if err != nil {
					scanErr = fmt.Errorf("store: corrupt room id %q: %w", stmt.ColumnText(2), err)
					return scanErr
				}
				rooms = append(rooms, TrackedRoom{
					Alias:     alias,
					Name:      stmt.ColumnText(1),
					RoomID:    roomID,
					Title:     stmt.ColumnText(3),
					Encrypted: stmt.ColumnInt(4) != 0,
					Public:    stmt.ColumnInt(5) != 0,
					Type:      RoomType(stmt.ColumnText(6)),
				})
				return nil
			},
		})
	if err != nil {
		if scanErr != nil {
			return nil, scanErr
		}
		return nil, fmt.Errorf("store: query rooms: %w", err)
	}
	return rooms, nil
}

// SetRoomID repoints a tracked room (by alias) at a new room ID. Used
// after recreation, when the alias moves to the successor room.
func (s *Store) SetRoomID(ctx context.Context, alias ref.RoomAlias, roomID ref.RoomID) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "UPDATE rooms SET room_id = ? WHERE alias = ?",
		&sqlitex.ExecOptions{Args: []any{roomID.String(), alias.String()}})
	if err != nil {
		return fmt.Errorf("store: repoint room %s: %w", alias, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: no tracked room with alias %s", alias)
	}
	return nil
}

// DeleteRoomByID removes a tracked room row by room ID. Returns
// whether a row existed. The Matrix room itself is untouched.
func (s *Store) DeleteRoomByID(ctx context.Context, roomID ref.RoomID) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM rooms WHERE room_id = ?",
		&sqlitex.ExecOptions{Args: []any{roomID.String()}})
	if err != nil {
		return false, fmt.Errorf("store: delete room %s: %w", roomID, err)
	}
	return conn.Changes() > 0, nil
}

// --- communities ---

// UpsertCommunity inserts or replaces the tracked community row for
// its alias.
func (s *Store) UpsertCommunity(ctx context.Context, community TrackedCommunity) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO communities (alias, name, title) VALUES (?, ?, ?)
		ON CONFLICT(alias) DO UPDATE SET
			name = excluded.name,
			title = excluded.title`,
		&sqlitex.ExecOptions{Args: []any{community.Alias, community.Name, community.Title}})
	if err != nil {
		return fmt.Errorf("store: upsert community %s: %w", community.Alias, err)
	}
	return nil
}

// Communities returns all tracked communities ordered by alias.
func (s *Store) Communities(ctx context.Context) ([]TrackedCommunity, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var communities []TrackedCommunity
	err = sqlitex.Execute(conn,
		"SELECT alias, name, title FROM communities ORDER BY alias",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				communities = append(communities, TrackedCommunity{
					Alias: stmt.ColumnText(0),
					Name:  stmt.ColumnText(1),
					Title: stmt.ColumnText(2),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: query communities: %w", err)
	}
	return communities, nil
}

// --- recreate requests ---

// RecreateRequestFor returns the recreate request row for a room, or
// nil if none exists.
func (s *Store) RecreateRequestFor(ctx context.Context, roomID ref.RoomID) (*RecreateRequest, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var request *RecreateRequest
	var scanErr error
	err = sqlitex.Execute(conn,
		"SELECT requester, requested_at, applied FROM recreate_requests WHERE room_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{roomID.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				requester, err := ref.ParseUserID(stmt.ColumnText(0))
				if err != nil {
					scanErr = fmt.Errorf("store: corrupt requester %q: %w", stmt.ColumnText(0), err)
					return scanErr
				}
				request = &RecreateRequest{
					RoomID:      roomID,
					Requester:   requester,
					RequestedAt: time.Unix(stmt.ColumnInt64(1), 0).UTC(),
					Applied:     stmt.ColumnInt(2) != 0,
				}
				return nil
			},
		})
	if err != nil {
		if scanErr != nil {
			return nil, scanErr
		}
		return nil, fmt.Errorf("store: query recreate request for %s: %w", roomID, err)
	}
	return request, nil
}

// PutRecreateRequest records a pending recreate request, replacing any
// stale unapplied request for the same room (which restarts the
// confirmation window). Returns false without writing when the room
// already has an applied request — recreation of a replaced room is
// permanently rejected.
func (s *Store) PutRecreateRequest(ctx context.Context, roomID ref.RoomID, requester ref.UserID, at time.Time) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO recreate_requests (room_id, requester, requested_at, applied)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(room_id) DO UPDATE SET
			requester = excluded.requester,
			requested_at = excluded.requested_at
		WHERE recreate_requests.applied = 0`,
		&sqlitex.ExecOptions{Args: []any{roomID.String(), requester.String(), at.Unix()}})
	if err != nil {
		return false, fmt.Errorf("store: put recreate request for %s: %w", roomID, err)
	}
	return conn.Changes() > 0, nil
}

// MarkRecreateApplied flips a pending request to applied. Returns true
// only for the caller that performed the transition: the UPDATE is
// conditional on applied=0, so with two concurrent confirms exactly
// one sees a change count of 1.
func (s *Store) MarkRecreateApplied(ctx context.Context, roomID ref.RoomID) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"UPDATE recreate_requests SET applied = 1 WHERE room_id = ? AND applied = 0",
		&sqlitex.ExecOptions{Args: []any{roomID.String()}})
	if err != nil {
		return false, fmt.Errorf("store: mark recreate applied for %s: %w", roomID, err)
	}
	return conn.Changes() > 0, nil
}

// ResetRecreateApplied returns an applied request to pending. Used when
// the recreation itself fails after the applied flag was claimed, so
// the requester can retry.
func (s *Store) ResetRecreateApplied(ctx context.Context, roomID ref.RoomID) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"UPDATE recreate_requests SET applied = 0 WHERE room_id = ?",
		&sqlitex.ExecOptions{Args: []any{roomID.String()}})
	if err != nil {
		return fmt.Errorf("store: reset recreate applied for %s: %w", roomID, err)
	}
	return nil
}

// --- breakout rooms ---

// PutBreakoutRoom records the announcement-event → room mapping that
// reaction invites resolve against. Mappings older than the retention
// window are purged in the same call, keeping the table bounded
// without a background sweeper.
func (s *Store) PutBreakoutRoom(ctx context.Context, eventID ref.EventID, roomID ref.RoomID, now time.Time) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	cutoff := now.Add(-breakoutRetention).Unix()
	err = sqlitex.Execute(conn, "DELETE FROM breakout_rooms WHERE created_at < ?",
		&sqlitex.ExecOptions{Args: []any{cutoff}})
	if err != nil {
		return fmt.Errorf("store: purge breakout rooms: %w", err)
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO breakout_rooms (event_id, room_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		&sqlitex.ExecOptions{Args: []any{eventID.String(), roomID.String(), now.Unix()}})
	if err != nil {
		return fmt.Errorf("store: put breakout room %s: %w", eventID, err)
	}
	return nil
}

// BreakoutRoom resolves an announcement event ID to its breakout room.
// The second return is false when no mapping exists (unknown event or
// purged by retention).
func (s *Store) BreakoutRoom(ctx context.Context, eventID ref.EventID) (ref.RoomID, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return ref.RoomID{}, false, err
	}
	defer s.pool.Put(conn)

	var roomID ref.RoomID
	var found bool
	var scanErr error
	err = sqlitex.Execute(conn,
		"SELECT room_id FROM breakout_rooms WHERE event_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{eventID.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				parsed, err := ref.ParseRoomID(stmt.ColumnText(0))
				if err != nil {
					scanErr = fmt.Errorf("store: corrupt breakout room id %q: %w", stmt.ColumnText(0), err)
					return scanErr
				}
				roomID = parsed
				found = true
				return nil
			},
		})
	if err != nil {
		if scanErr != nil {
			return ref.RoomID{}, false, scanErr
		}
		return ref.RoomID{}, false, fmt.Errorf("store: query breakout room %s: %w", eventID, err)
	}
	return roomID, found, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
