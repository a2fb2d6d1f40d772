// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Package rooms maintains the rooms and spaces the bot is responsible
// for: idempotent ensure-exists reconciliation against the homeserver,
// power-level enforcement, breakout room creation, and the two-phase
// room recreation flow.
package rooms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/strixbot/strix/access"
	"github.com/strixbot/strix/lib/clock"
	"github.com/strixbot/strix/lib/ref"
	"github.com/strixbot/strix/messaging"
	"github.com/strixbot/strix/reconcile"
	"github.com/strixbot/strix/store"
)

// moderatorPower and adminPower are the two power levels the bot
// grants through the power command.
const (
	moderatorPower = 50
	adminPower     = 100
)

// AdminAPI is the Synapse admin surface used during recreation.
// *messaging.SynapseAdmin satisfies it; a nil AdminAPI disables
// force joins and falls back to invites.
type AdminAPI interface {
	Available(ctx context.Context) bool
	ForceJoinUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error
}

// TierSource resolves the expanded user set of a permission tier.
// *access.Gate satisfies it.
type TierSource interface {
	Users(ctx context.Context, tier access.Tier) ([]ref.UserID, error)
}

// Permissions controls power-level enforcement on ensured rooms.
type Permissions struct {
	// PromoteUsers raises joined coordinators below moderator power to
	// moderator.
	PromoteUsers bool
	// DemoteUsers lowers non-coordinators holding elevated power back
	// to the default.
	DemoteUsers bool
}

// Service maintains tracked rooms and spaces.
type Service struct {
	session     messaging.Session
	store       *store.Store
	admin       AdminAPI
	tiers       TierSource
	permissions Permissions
	serverName  string
	clock       clock.Clock
	logger      *slog.Logger
}

// ServiceConfig holds dependencies for creating a Service.
type ServiceConfig struct {
	Session messaging.Session
	Store   *store.Store
	// Admin enables Synapse force joins during recreation. May be nil.
	Admin AdminAPI
	// Tiers resolves the coordinator set for power enforcement. May be
	// nil, which disables promotion and demotion.
	Tiers       TierSource
	Permissions Permissions
	// ServerName qualifies local aliases and identifies local users.
	ServerName string
	// Clock drives the recreation confirmation window. If nil, the
	// real clock is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default() is
	// used.
	Logger *slog.Logger
}

// NewService creates a rooms Service.
func NewService(config ServiceConfig) (*Service, error) {
	if config.Session == nil {
		return nil, fmt.Errorf("rooms: Session is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("rooms: Store is required")
	}
	if config.ServerName == "" {
		return nil, fmt.Errorf("rooms: ServerName is required")
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		session:     config.Session,
		store:       config.Store,
		admin:       config.Admin,
		tiers:       config.Tiers,
		permissions: config.Permissions,
		serverName:  config.ServerName,
		clock:       clk,
		logger:      logger,
	}, nil
}

// EnsureExists makes sure the tracked room is present on the
// homeserver and recorded in the store, then enforces power levels.
// The alias decides existence: when it resolves, the room is adopted
// as-is; when it does not, the room is created with the tracked
// attributes. Safe to repeat — a second call with the same row changes
// nothing.
func (s *Service) EnsureExists(ctx context.Context, room store.TrackedRoom) (store.TrackedRoom, reconcile.Outcome) {
	status := reconcile.AlreadyExists

	roomID, err := s.session.ResolveAlias(ctx, room.Alias)
	switch {
	case err == nil:
		room.RoomID = roomID
	case messaging.IsNotFound(err):
		s.logger.Info("room not found, creating",
			"alias", room.Alias,
			"name", room.Name,
		)
		roomID, err = s.createRoom(ctx, room)
		if err != nil {
			return room, reconcile.Failure(fmt.Errorf("creating room %s: %w", room.Alias, err))
		}
		room.RoomID = roomID
		status = reconcile.Created
	default:
		return room, reconcile.Failure(fmt.Errorf("resolving alias %s: %w", room.Alias, err))
	}

	if err := s.store.UpsertRoom(ctx, room); err != nil {
		return room, reconcile.Failure(fmt.Errorf("tracking room %s: %w", room.Alias, err))
	}

	if room.Encrypted && status == reconcile.AlreadyExists {
		if err := s.ensureEncrypted(ctx, room.RoomID); err != nil {
			return room, reconcile.Failure(fmt.Errorf("ensuring encryption in %s: %w", room.Alias, err))
		}
	}

	if err := s.EnsurePowerLevels(ctx, room.RoomID); err != nil {
		// The room exists and is tracked; a power-level failure is
		// logged but does not fail the reconciliation.
		s.logger.Warn("power level enforcement failed",
			"room_id", room.RoomID,
			"error", err,
		)
	}

	return room, reconcile.OK(status)
}

func (s *Service) createRoom(ctx context.Context, room store.TrackedRoom) (ref.RoomID, error) {
	visibility := "private"
	preset := "private_chat"
	if room.Public {
		visibility = "public"
		preset = "public_chat"
	}

	request := messaging.CreateRoomRequest{
		Name:       room.Name,
		Topic:      room.Title,
		Alias:      room.Alias.Localpart(),
		Visibility: visibility,
		Preset:     preset,
		PowerLevelContentOverride: map[string]any{
			"users": map[string]int{
				s.session.UserID().String(): adminPower,
			},
		},
	}
	if room.Encrypted {
		request.InitialState = append(request.InitialState, messaging.StateEvent{
			Type:    messaging.EventTypeEncryption,
			Content: messaging.EncryptionContent{Algorithm: messaging.MegolmAlgorithm},
		})
	}
	if room.Type == store.TypeSpace {
		request.CreationContent = map[string]any{"type": "m.space"}
	}

	response, err := s.session.CreateRoom(ctx, request)
	if err != nil {
		return ref.RoomID{}, err
	}
	return response.RoomID, nil
}

// ensureEncrypted turns encryption on in a room that should have it
// but predates the setting. Encryption can never be turned off again,
// so an existing state event of any algorithm is left alone.
func (s *Service) ensureEncrypted(ctx context.Context, roomID ref.RoomID) error {
	_, err := s.session.GetStateEvent(ctx, roomID, messaging.EventTypeEncryption, "")
	if err == nil {
		return nil
	}
	if !messaging.IsNotFound(err) {
		return err
	}
	_, err = s.session.SendStateEvent(ctx, roomID, messaging.EventTypeEncryption, "",
		messaging.EncryptionContent{Algorithm: messaging.MegolmAlgorithm})
	return err
}

// EnsurePowerLevels applies the configured promotion and demotion
// rules to a room. Coordinators joined to the room get moderator
// power; users holding elevated power without being coordinators, or
// without being in the room at all, are demoted. The bot's own entry
// is never touched. The power-level event is only written when the
// result differs from the current content.
func (s *Service) EnsurePowerLevels(ctx context.Context, roomID ref.RoomID) error {
	if s.tiers == nil || (!s.permissions.PromoteUsers && !s.permissions.DemoteUsers) {
		return nil
	}

	content, err := s.session.PowerLevels(ctx, roomID)
	if err != nil {
		return fmt.Errorf("rooms: reading power levels: %w", err)
	}
	members, err := s.session.JoinedMembers(ctx, roomID)
	if err != nil {
		return fmt.Errorf("rooms: listing members: %w", err)
	}
	coordinators, err := s.tiers.Users(ctx, access.Coordinator)
	if err != nil {
		return fmt.Errorf("rooms: resolving coordinators: %w", err)
	}

	joined := make(map[string]bool, len(members))
	for _, member := range members {
		joined[member.String()] = true
	}
	isCoordinator := make(map[string]bool, len(coordinators))
	for _, user := range coordinators {
		isCoordinator[user.String()] = true
	}

	users := make(map[string]int, len(content.Users))
	for user, level := range content.Users {
		users[user] = level
	}
	botUser := s.session.UserID().String()

	for user, level := range users {
		if user == botUser {
			continue
		}
		if s.permissions.PromoteUsers && isCoordinator[user] && joined[user] && level < moderatorPower {
			users[user] = moderatorPower
		}
		if s.permissions.DemoteUsers && !isCoordinator[user] && level > content.UsersDefault {
			users[user] = content.UsersDefault
		}
		// Power without presence is always removed.
		if !joined[user] {
			users[user] = content.UsersDefault
		}
	}
	if s.permissions.PromoteUsers {
		for user := range isCoordinator {
			if joined[user] && user != botUser && users[user] < moderatorPower {
				users[user] = moderatorPower
			}
		}
	}

	if equalPower(content.Users, users) {
		return nil
	}

	s.logger.Info("updating room power levels", "room_id", roomID)
	updated := *content
	updated.Users = users
	if err := s.session.SetPowerLevels(ctx, roomID, &updated); err != nil {
		return fmt.Errorf("rooms: writing power levels: %w", err)
	}
	return nil
}

func equalPower(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for user, level := range a {
		if b[user] != level {
			return false
		}
	}
	return true
}

// SetUserPower grants a user the given power level in a room through a
// read-modify-write of the power-level event.
func (s *Service) SetUserPower(ctx context.Context, roomID ref.RoomID, userID ref.UserID, level int) error {
	content, err := s.session.PowerLevels(ctx, roomID)
	if err != nil {
		return fmt.Errorf("rooms: reading power levels: %w", err)
	}
	if content.Users == nil {
		content.Users = map[string]int{}
	}
	if content.Users[userID.String()] == level {
		return nil
	}
	content.Users[userID.String()] = level
	if err := s.session.SetPowerLevels(ctx, roomID, content); err != nil {
		return fmt.Errorf("rooms: writing power levels: %w", err)
	}
	s.logger.Info("set user power",
		"room_id", roomID,
		"user_id", userID,
		"level", level,
	)
	return nil
}

// EnsureAll reconciles every tracked room, continuing past individual
// failures. Used by the startup sweep.
func (s *Service) EnsureAll(ctx context.Context) (reconcile.Summary, error) {
	tracked, err := s.store.Rooms(ctx)
	if err != nil {
		return reconcile.Summary{}, fmt.Errorf("rooms: listing tracked rooms: %w", err)
	}

	var summary reconcile.Summary
	for _, room := range tracked {
		_, outcome := s.EnsureExists(ctx, room)
		if outcome.Failed() {
			s.logger.Error("room reconciliation failed",
				"alias", room.Alias,
				"detail", outcome.Detail,
			)
		}
		summary.Add(outcome)
	}
	return summary, nil
}
