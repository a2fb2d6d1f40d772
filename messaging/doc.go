// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the Matrix client-server API surface the bot
// uses: room management, state events, invites, power levels, the room
// directory, aliases, reactions, and incremental /sync.
//
// The package provides two core types. [Client] is an unauthenticated
// Matrix client that handles login, returning authenticated sessions.
// Client holds the homeserver URL and HTTP transport, shared across
// all sessions derived from it. [DirectSession] wraps a Client with an
// access token for the authenticated operations; [Session] is the
// interface form that components depend on, so tests can substitute
// fakes.
//
// All API errors are returned as [*MatrixError] with the standard
// Matrix error code (M_FORBIDDEN, M_NOT_FOUND, M_ROOM_IN_USE, etc.)
// and HTTP status code. [IsMatrixError] tests for a specific error
// code. Request URLs are built by string concatenation rather than
// url.URL to avoid double-encoding of path segments that contain
// URL-encoded characters (such as room aliases).
//
// [RunSyncLoop] is the bot's event source: a /sync long-poll loop with
// exponential backoff on transient errors. [SynapseAdmin] covers the
// one non-standard endpoint the bot needs (force-joining members into
// a replacement room), and the deprecated groups API lives behind
// [DirectSession.GetGroupProfile] and [DirectSession.CreateGroup] for
// deployments still running communities.
package messaging
