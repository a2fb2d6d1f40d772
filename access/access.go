// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Package access decides who may run which commands. Two tiers exist:
// coordinators run day-to-day commands, admins additionally run the
// destructive ones. The admin set is always part of the coordinator
// set, so holding the higher tier implies the lower.
//
// Tier membership is configured as a list of entries per tier. An
// entry is either a user ID, matched directly, or a room ID, which
// expands to the room's currently joined members. Expansion queries
// the homeserver on every check — membership changes take effect
// immediately, and there is no cache to invalidate or go stale.
//
// Authorization fails closed: if a room entry cannot be expanded, the
// check denies rather than guessing.
package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/strixbot/strix/lib/ref"
)

// Tier is a permission level.
type Tier int

const (
	// Coordinator may run room, community, user, and breakout
	// commands.
	Coordinator Tier = iota
	// Admin may additionally run destructive commands (recreate
	// confirm, admin power grants).
	Admin
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case Coordinator:
		return "coordinator"
	case Admin:
		return "admin"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// MembershipSource resolves a room to its currently joined members.
// *messaging.DirectSession satisfies it.
type MembershipSource interface {
	JoinedMembers(ctx context.Context, roomID ref.RoomID) ([]ref.UserID, error)
}

// Gate evaluates tier membership against configured entries.
type Gate struct {
	admins       []string
	coordinators []string
	members      MembershipSource
	logger       *slog.Logger
}

// NewGate creates a Gate from the configured entry lists. Entries are
// user IDs or room IDs as validated by the config package.
func NewGate(admins, coordinators []string, members MembershipSource, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		admins:       admins,
		coordinators: coordinators,
		members:      members,
		logger:       logger,
	}
}

// Authorize reports whether sender holds the given tier. Room entries
// are expanded through the MembershipSource at call time. Any
// expansion failure denies: a membership lookup that cannot be
// completed must not grant access.
func (g *Gate) Authorize(ctx context.Context, sender ref.UserID, tier Tier) bool {
	users, err := g.Users(ctx, tier)
	if err != nil {
		g.logger.Error("permission check failed, denying",
			"sender", sender,
			"tier", tier.String(),
			"error", err,
		)
		return false
	}
	for _, user := range users {
		if user == sender {
			return true
		}
	}
	return false
}

// Users returns the expanded user set for a tier. The coordinator set
// includes every admin entry, making permission monotonic by
// construction. Order is unspecified; duplicates are removed.
func (g *Gate) Users(ctx context.Context, tier Tier) ([]ref.UserID, error) {
	entries := g.admins
	if tier == Coordinator {
		entries = append(append([]string{}, g.admins...), g.coordinators...)
	}

	seen := make(map[ref.UserID]bool)
	var users []ref.UserID
	add := func(user ref.UserID) {
		if !seen[user] {
			seen[user] = true
			users = append(users, user)
		}
	}

	for _, entry := range entries {
		if user, err := ref.ParseUserID(entry); err == nil {
			add(user)
			continue
		}
		roomID, err := ref.ParseRoomID(entry)
		if err != nil {
			return nil, fmt.Errorf("access: entry %q is neither a user ID nor a room ID", entry)
		}
		members, err := g.members.JoinedMembers(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("access: expanding room entry %s: %w", roomID, err)
		}
		for _, member := range members {
			add(member)
		}
	}
	return users, nil
}
