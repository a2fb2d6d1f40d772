// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identity references
// for Matrix identifiers: user IDs, room IDs, room aliases, and event
// IDs. External identifiers arrive as strings from the homeserver,
// configuration, and command arguments, and are parsed into these
// types at the boundary.
//
// All constructors validate their inputs and return errors for
// malformed identifiers. Once constructed, a ref is immutable. The
// zero value of each type is not valid; use IsZero to check.
//
// The canonical serialization form is the full Matrix identifier
// (e.g., "@user:example.com", "!abc:example.com", "#room:example.com").
// JSON marshaling uses this form via encoding.TextMarshaler.
package ref
