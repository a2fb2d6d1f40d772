// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package rooms

import (
	"context"
	"fmt"

	"github.com/strixbot/strix/lib/ref"
	"github.com/strixbot/strix/messaging"
)

// CreateBreakout creates a private breakout room named name and brings
// the creator in as an admin. The room is deliberately untracked: it
// belongs to its creator, not to the bot's reconciliation sweep. The
// bot keeps admin power so it can service reaction invites later.
func (s *Service) CreateBreakout(ctx context.Context, name string, creator ref.UserID) (ref.RoomID, error) {
	if name == "" {
		return ref.RoomID{}, fmt.Errorf("rooms: breakout room needs a name")
	}

	response, err := s.session.CreateRoom(ctx, messaging.CreateRoomRequest{
		Name:       name,
		Visibility: "private",
		Preset:     "private_chat",
		Invite:     []string{creator.String()},
		PowerLevelContentOverride: map[string]any{
			"users": map[string]int{
				s.session.UserID().String(): adminPower,
				creator.String():            adminPower,
			},
		},
	})
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("rooms: creating breakout room %q: %w", name, err)
	}

	s.logger.Info("created breakout room",
		"room_id", response.RoomID,
		"name", name,
		"creator", creator,
	)
	return response.RoomID, nil
}
