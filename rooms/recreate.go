// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/strixbot/strix/lib/ref"
	"github.com/strixbot/strix/messaging"
)

// ConfirmWindow is how long a recreate request stays confirmable.
const ConfirmWindow = 60 * time.Second

// oldRoomPrefix is prepended to a replaced room's name.
const oldRoomPrefix = "OLD"

// Recreate flow errors. The command layer translates these into
// replies; anything else is an internal failure.
var (
	// ErrNoPendingRequest means confirm was issued without a prior
	// request.
	ErrNoPendingRequest = errors.New("rooms: no pending recreate request")
	// ErrWrongRequester means someone other than the requester tried to
	// confirm.
	ErrWrongRequester = errors.New("rooms: recreate must be confirmed by its requester")
	// ErrWindowExpired means the confirmation arrived too late.
	ErrWindowExpired = errors.New("rooms: recreate confirmation window expired")
	// ErrAlreadyRecreated means the room has already been replaced.
	// Replaced rooms are permanently rejected for further recreation.
	ErrAlreadyRecreated = errors.New("rooms: room has already been recreated")
)

// RequestRecreate opens the confirmation window for recreating a room.
// A pending request for the same room is replaced, restarting the
// window.
func (s *Service) RequestRecreate(ctx context.Context, roomID ref.RoomID, requester ref.UserID) error {
	written, err := s.store.PutRecreateRequest(ctx, roomID, requester, s.clock.Now())
	if err != nil {
		return err
	}
	if !written {
		return ErrAlreadyRecreated
	}
	s.logger.Info("recreate requested",
		"room_id", roomID,
		"requester", requester,
	)
	return nil
}

// ConfirmRecreate validates a confirmation against the pending request
// and, when it holds, replaces the room. The confirmation must come
// from the original requester within ConfirmWindow of the request.
// The applied flag is flipped before any Matrix call, so a room is
// recreated at most once even with concurrent confirms.
//
// confirmEventID is the event carrying the confirmation; it becomes
// the predecessor event ID in the successor's creation content.
func (s *Service) ConfirmRecreate(ctx context.Context, roomID ref.RoomID, sender ref.UserID, confirmEventID ref.EventID) (ref.RoomID, error) {
	request, err := s.store.RecreateRequestFor(ctx, roomID)
	if err != nil {
		return ref.RoomID{}, err
	}
	switch {
	case request == nil:
		return ref.RoomID{}, ErrNoPendingRequest
	case request.Applied:
		return ref.RoomID{}, ErrAlreadyRecreated
	case request.Requester != sender:
		return ref.RoomID{}, ErrWrongRequester
	case s.clock.Now().Sub(request.RequestedAt) > ConfirmWindow:
		return ref.RoomID{}, ErrWindowExpired
	}

	// Claim the applied flag first: the conditional UPDATE makes one of
	// two concurrent confirms the winner. A failed recreation hands the
	// flag back so the request stays pending and retryable.
	applied, err := s.store.MarkRecreateApplied(ctx, roomID)
	if err != nil {
		return ref.RoomID{}, err
	}
	if !applied {
		return ref.RoomID{}, ErrAlreadyRecreated
	}

	newRoomID, err := s.recreate(ctx, roomID, confirmEventID)
	if err != nil {
		if resetErr := s.store.ResetRecreateApplied(ctx, roomID); resetErr != nil {
			s.logger.Error("failed to return recreate request to pending",
				"room_id", roomID,
				"error", resetErr,
			)
		}
		return ref.RoomID{}, err
	}
	return newRoomID, nil
}

// oldRoomState is the snapshot of the room being replaced.
type oldRoomState struct {
	name       string
	topic      string
	encrypted  bool
	alias      string
	altAliases []string
	avatarURL  string
	visibility string
	power      *messaging.PowerLevelsContent
	members    []ref.UserID
}

// recreate replaces a room: a successor room is created carrying the
// old room's attributes and a predecessor pointer, the alias and
// directory entry move over, members are brought across, and both
// rooms get a message linking to the other. Member moves are best
// effort — a user who cannot be joined or invited is logged and
// skipped, never a reason to abort a half-finished replacement.
func (s *Service) recreate(ctx context.Context, roomID ref.RoomID, confirmEventID ref.EventID) (ref.RoomID, error) {
	old, err := s.snapshotRoom(ctx, roomID)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("rooms: snapshotting %s: %w", roomID, err)
	}

	// Free the alias before creating the successor, which takes it over.
	if old.alias != "" {
		if alias, err := ref.ParseRoomAlias(old.alias); err == nil {
			if err := s.session.DeleteRoomAlias(ctx, alias); err != nil {
				s.logger.Warn("failed to delete old room alias",
					"alias", alias,
					"error", err,
				)
			}
		}
		if _, err := s.session.SendStateEvent(ctx, roomID, messaging.EventTypeCanonicalAlias, "",
			messaging.CanonicalAliasContent{}); err != nil {
			s.logger.Warn("failed to clear canonical alias on old room",
				"room_id", roomID,
				"error", err,
			)
		}
	}

	newRoomID, err := s.createSuccessor(ctx, roomID, confirmEventID, old)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("rooms: creating successor for %s: %w", roomID, err)
	}
	s.logger.Info("created successor room",
		"old_room_id", roomID,
		"new_room_id", newRoomID,
	)

	// Everything below is cleanup and migration around a room that now
	// exists. Failures are logged, not returned.
	s.renameOldRoom(ctx, roomID, old.name)
	s.moveAvatar(ctx, roomID, newRoomID, old.avatarURL)
	s.moveAlias(ctx, newRoomID, old)
	s.moveDirectoryEntry(ctx, roomID, newRoomID, old.visibility)
	s.moveMembers(ctx, newRoomID, old.members)
	s.postReplacementNotices(ctx, roomID, newRoomID, old.name)

	return newRoomID, nil
}

func (s *Service) snapshotRoom(ctx context.Context, roomID ref.RoomID) (*oldRoomState, error) {
	old := &oldRoomState{visibility: "private"}

	var name messaging.NameContent
	if err := s.getOptionalState(ctx, roomID, messaging.EventTypeName, &name); err != nil {
		return nil, err
	}
	old.name = name.Name

	var topic messaging.TopicContent
	if err := s.getOptionalState(ctx, roomID, messaging.EventTypeTopic, &topic); err != nil {
		return nil, err
	}
	old.topic = topic.Topic

	var encryption messaging.EncryptionContent
	if err := s.getOptionalState(ctx, roomID, messaging.EventTypeEncryption, &encryption); err != nil {
		return nil, err
	}
	old.encrypted = encryption.Algorithm != ""

	var canonical messaging.CanonicalAliasContent
	if err := s.getOptionalState(ctx, roomID, messaging.EventTypeCanonicalAlias, &canonical); err != nil {
		return nil, err
	}
	old.alias = canonical.Alias
	old.altAliases = canonical.AltAliases

	var avatar messaging.AvatarContent
	if err := s.getOptionalState(ctx, roomID, messaging.EventTypeAvatar, &avatar); err != nil {
		return nil, err
	}
	old.avatarURL = avatar.URL

	if visibility, err := s.session.DirectoryVisibility(ctx, roomID); err == nil {
		old.visibility = visibility
	}

	power, err := s.session.PowerLevels(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("reading power levels: %w", err)
	}
	old.power = power

	members, err := s.session.JoinedMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	botUser := s.session.UserID()
	for _, member := range members {
		if member != botUser {
			old.members = append(old.members, member)
		}
	}

	return old, nil
}

// getOptionalState unmarshals a state event into out, treating a
// missing event as the zero value.
func (s *Service) getOptionalState(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, out any) error {
	raw, err := s.session.GetStateEvent(ctx, roomID, eventType, "")
	if err != nil {
		if messaging.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", eventType, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing %s: %w", eventType, err)
	}
	return nil
}

func (s *Service) createSuccessor(ctx context.Context, oldRoomID ref.RoomID, confirmEventID ref.EventID, old *oldRoomState) (ref.RoomID, error) {
	// Carry the old power levels over, keeping the bot an admin so it
	// can finish the migration.
	power := map[string]any{}
	if encoded, err := json.Marshal(old.power); err == nil {
		json.Unmarshal(encoded, &power)
	}
	users, _ := power["users"].(map[string]any)
	if users == nil {
		users = map[string]any{}
	}
	users[s.session.UserID().String()] = adminPower
	power["users"] = users

	request := messaging.CreateRoomRequest{
		Name:       old.name,
		Topic:      old.topic,
		Visibility: old.visibility,
		CreationContent: map[string]any{
			"predecessor": messaging.PredecessorContent{
				RoomID:  oldRoomID,
				EventID: confirmEventID,
			},
		},
		PowerLevelContentOverride: power,
	}
	if old.encrypted {
		request.InitialState = append(request.InitialState, messaging.StateEvent{
			Type:    messaging.EventTypeEncryption,
			Content: messaging.EncryptionContent{Algorithm: messaging.MegolmAlgorithm},
		})
	}

	response, err := s.session.CreateRoom(ctx, request)
	if err != nil {
		return ref.RoomID{}, err
	}
	return response.RoomID, nil
}

func (s *Service) renameOldRoom(ctx context.Context, roomID ref.RoomID, name string) {
	renamed := oldRoomPrefix
	if name != "" {
		renamed = oldRoomPrefix + " " + name
	}
	if _, err := s.session.SendStateEvent(ctx, roomID, messaging.EventTypeName, "",
		messaging.NameContent{Name: renamed}); err != nil {
		s.logger.Warn("failed to rename old room", "room_id", roomID, "error", err)
	}
}

func (s *Service) moveAvatar(ctx context.Context, oldRoomID, newRoomID ref.RoomID, avatarURL string) {
	if avatarURL == "" {
		return
	}
	if _, err := s.session.SendStateEvent(ctx, newRoomID, messaging.EventTypeAvatar, "",
		messaging.AvatarContent{URL: avatarURL}); err != nil {
		s.logger.Warn("failed to set avatar on new room", "room_id", newRoomID, "error", err)
		return
	}
	if _, err := s.session.SendStateEvent(ctx, oldRoomID, messaging.EventTypeAvatar, "",
		messaging.AvatarContent{}); err != nil {
		s.logger.Warn("failed to clear avatar on old room", "room_id", oldRoomID, "error", err)
	}
}

// moveAlias points the old room's aliases at the successor and updates
// the tracking row when the alias is one the bot maintains.
func (s *Service) moveAlias(ctx context.Context, newRoomID ref.RoomID, old *oldRoomState) {
	if old.alias == "" {
		return
	}
	alias, err := ref.ParseRoomAlias(old.alias)
	if err != nil {
		s.logger.Warn("old room had unparseable canonical alias", "alias", old.alias)
		return
	}

	if err := s.session.CreateRoomAlias(ctx, alias, newRoomID); err != nil {
		s.logger.Warn("failed to point alias at new room",
			"alias", alias,
			"room_id", newRoomID,
			"error", err,
		)
	}
	if _, err := s.session.SendStateEvent(ctx, newRoomID, messaging.EventTypeCanonicalAlias, "",
		messaging.CanonicalAliasContent{Alias: old.alias, AltAliases: old.altAliases}); err != nil {
		s.logger.Warn("failed to set canonical alias on new room",
			"room_id", newRoomID,
			"error", err,
		)
	}

	tracked, err := s.store.RoomByAlias(ctx, alias)
	if err != nil {
		s.logger.Warn("failed to look up tracking row", "alias", alias, "error", err)
		return
	}
	if tracked != nil {
		if err := s.store.SetRoomID(ctx, alias, newRoomID); err != nil {
			s.logger.Warn("failed to repoint tracking row", "alias", alias, "error", err)
		}
	}
}

func (s *Service) moveDirectoryEntry(ctx context.Context, oldRoomID, newRoomID ref.RoomID, visibility string) {
	if visibility != "public" {
		return
	}
	if err := s.session.SetDirectoryVisibility(ctx, oldRoomID, "private"); err != nil {
		s.logger.Warn("failed to unlist old room", "room_id", oldRoomID, "error", err)
	}
	if err := s.session.SetDirectoryVisibility(ctx, newRoomID, "public"); err != nil {
		s.logger.Warn("failed to list new room", "room_id", newRoomID, "error", err)
	}
}

// moveMembers brings the old room's members into the successor. Local
// users are force joined through the Synapse admin API when it is
// available; everyone else (and every force-join failure) gets a
// regular invite.
func (s *Service) moveMembers(ctx context.Context, newRoomID ref.RoomID, members []ref.UserID) {
	forceJoin := s.admin != nil && s.admin.Available(ctx)

	for _, member := range members {
		if forceJoin && member.Server() == s.serverName {
			if err := s.admin.ForceJoinUser(ctx, newRoomID, member); err == nil {
				continue
			} else {
				s.logger.Warn("force join failed, falling back to invite",
					"user_id", member,
					"room_id", newRoomID,
					"error", err,
				)
			}
		}
		if err := s.session.InviteUser(ctx, newRoomID, member); err != nil {
			s.logger.Warn("failed to invite member to new room",
				"user_id", member,
				"room_id", newRoomID,
				"error", err,
			)
		}
	}
}

func (s *Service) postReplacementNotices(ctx context.Context, oldRoomID, newRoomID ref.RoomID, name string) {
	oldLink := fmt.Sprintf("https://matrix.to/#/%s?via=%s", oldRoomID, s.serverName)
	newLink := fmt.Sprintf("https://matrix.to/#/%s?via=%s", newRoomID, s.serverName)

	if _, err := s.session.SendMessage(ctx, oldRoomID, messaging.NewNotice(
		"This room has been replaced. To continue the discussion, follow this link: "+newLink)); err != nil {
		s.logger.Warn("failed to post replacement notice in old room",
			"room_id", oldRoomID,
			"error", err,
		)
	}
	if _, err := s.session.SendMessage(ctx, newRoomID, messaging.NewNotice(
		fmt.Sprintf("This room replaces the old %q room %s. The old room is available here: %s",
			name, oldRoomID, oldLink))); err != nil {
		s.logger.Warn("failed to post replacement notice in new room",
			"room_id", newRoomID,
			"error", err,
		)
	}
}
