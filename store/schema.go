// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// schemaVersion is the current PRAGMA user_version. Bump when adding a
// migration step below.
const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS rooms (
    alias      TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    room_id    TEXT NOT NULL,
    title      TEXT NOT NULL DEFAULT '',
    encrypted  INTEGER NOT NULL DEFAULT 0,
    public     INTEGER NOT NULL DEFAULT 0,
    room_type  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS rooms_room_id ON rooms (room_id);

CREATE TABLE IF NOT EXISTS communities (
    alias  TEXT PRIMARY KEY,
    name   TEXT NOT NULL,
    title  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS recreate_requests (
    room_id    TEXT PRIMARY KEY,
    requester  TEXT NOT NULL,
    requested_at INTEGER NOT NULL,
    applied    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS breakout_rooms (
    event_id   TEXT PRIMARY KEY,
    room_id    TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
`

// migrate brings a connection's database up to schemaVersion. Runs on
// every pool connection; the user_version check makes repeat runs
// no-ops.
func migrate(conn *sqlite.Conn) error {
	version, err := userVersion(conn)
	if err != nil {
		return err
	}
	if version >= schemaVersion {
		return nil
	}

	if version < 1 {
		if err := sqlitex.ExecuteScript(conn, schemaV1, nil); err != nil {
			return fmt.Errorf("store: applying schema v1: %w", err)
		}
	}

	if err := sqlitex.ExecuteTransient(conn,
		fmt.Sprintf("PRAGMA user_version = %d", schemaVersion), nil); err != nil {
		return fmt.Errorf("store: setting user_version: %w", err)
	}
	return nil
}

func userVersion(conn *sqlite.Conn) (int, error) {
	var version int
	err := sqlitex.ExecuteTransient(conn, "PRAGMA user_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("store: reading user_version: %w", err)
	}
	return version, nil
}
