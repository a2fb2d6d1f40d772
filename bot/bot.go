// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Package bot is the command layer: it turns inbound room messages
// into parsed commands, gates them on the sender's permission tier,
// dispatches to a handler, and sends the responses back into the
// originating room. Reaction events are resolved against the breakout
// room mapping to invite reactors.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/strixbot/strix/access"
	"github.com/strixbot/strix/community"
	"github.com/strixbot/strix/identity"
	"github.com/strixbot/strix/lib/clock"
	"github.com/strixbot/strix/lib/ref"
	"github.com/strixbot/strix/messaging"
	"github.com/strixbot/strix/rooms"
	"github.com/strixbot/strix/store"
)

const (
	deniedCoordinator = "Sorry, I'm afraid I cannot do that for you. Coordinator level access needed."
	deniedAdmin       = "Sorry, I'm afraid I cannot do that for you. Admin level access needed."
	commandFailed     = "Sorry, the command failed. Please see the logs or contact support."
)

// Authorizer is the permission check the dispatcher and handlers use.
// *access.Gate satisfies it.
type Authorizer interface {
	Authorize(ctx context.Context, sender ref.UserID, tier access.Tier) bool
}

// handlerFunc runs one command and returns the markdown reply to post.
// An empty return means the handler sent its own messages.
type handlerFunc func(ctx context.Context, cmd Command) string

// handlerEntry binds a verb to its handler and the tier the dispatcher
// enforces before running it. A nil tier means the verb is open to
// everyone; handlers may still require a higher tier for individual
// subcommands.
type handlerEntry struct {
	tier *access.Tier
	run  handlerFunc
}

// Bot dispatches commands and reaction invites.
type Bot struct {
	session     messaging.Session
	gate        Authorizer
	rooms       *rooms.Service
	communities *community.Service
	store       *store.Store
	provider    *identity.Provider
	signup      *identity.SignupClient
	serverName  string
	prefix      string
	clock       clock.Clock
	logger      *slog.Logger

	handlers map[string]handlerEntry
}

// BotConfig holds dependencies for creating a Bot. Provider and Signup
// are nil when the corresponding backend is disabled; the users
// commands then answer with a "not configured" message.
type BotConfig struct {
	Session     messaging.Session
	Gate        Authorizer
	Rooms       *rooms.Service
	Communities *community.Service
	Store       *store.Store
	Provider    *identity.Provider
	Signup      *identity.SignupClient
	ServerName  string
	Prefix      string
	Clock       clock.Clock
	Logger      *slog.Logger
}

// New creates a Bot and builds its dispatch table.
func New(config BotConfig) (*Bot, error) {
	if config.Session == nil || config.Gate == nil || config.Rooms == nil ||
		config.Communities == nil || config.Store == nil {
		return nil, fmt.Errorf("bot: Session, Gate, Rooms, Communities and Store are required")
	}
	if config.ServerName == "" {
		return nil, fmt.Errorf("bot: ServerName is required")
	}
	if config.Prefix == "" {
		return nil, fmt.Errorf("bot: Prefix is required")
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bot{
		session:     config.Session,
		gate:        config.Gate,
		rooms:       config.Rooms,
		communities: config.Communities,
		store:       config.Store,
		provider:    config.Provider,
		signup:      config.Signup,
		serverName:  config.ServerName,
		prefix:      config.Prefix,
		clock:       clk,
		logger:      logger,
	}

	coordinator := access.Coordinator
	b.handlers = map[string]handlerEntry{
		"help":        {run: b.handleHelp},
		"breakout":    {run: b.handleBreakout},
		"rooms":       {tier: &coordinator, run: b.handleRooms},
		"spaces":      {tier: &coordinator, run: b.handleSpaces},
		"communities": {tier: &coordinator, run: b.handleCommunities},
		"power":       {tier: &coordinator, run: b.handlePower},
		"invite":      {tier: &coordinator, run: b.handleInvite},
		"users":       {run: b.handleUsers},
	}
	return b, nil
}

// HandleMessage processes one inbound m.room.message. Messages not
// addressed to the bot (wrong prefix, or sent by the bot itself) are
// ignored silently.
func (b *Bot) HandleMessage(ctx context.Context, roomID ref.RoomID, sender ref.UserID, eventID ref.EventID, body string) {
	if sender == b.session.UserID() {
		return
	}
	body = strings.TrimSpace(body)
	if body != b.prefix && !strings.HasPrefix(body, b.prefix+" ") {
		return
	}
	text := strings.TrimSpace(strings.TrimPrefix(body, b.prefix))

	verb, args, ok := parseCommand(text)
	if !ok {
		b.reply(ctx, roomID, helpMain)
		return
	}

	cmd := Command{
		Raw:    text,
		Verb:   verb,
		Args:   args,
		Sender: sender,
		Room:   roomID,
		Event:  eventID,
	}

	entry, known := b.handlers[verb]
	if !known {
		b.reply(ctx, roomID, fmt.Sprintf(
			"Unknown command %q. Try the `help` command for more information.", text))
		return
	}

	b.logger.Info("handling command",
		"verb", verb,
		"sender", sender,
		"room_id", roomID,
	)

	if entry.tier != nil && !b.gate.Authorize(ctx, sender, *entry.tier) {
		b.reply(ctx, roomID, denialFor(*entry.tier))
		return
	}

	if response := entry.run(ctx, cmd); response != "" {
		b.reply(ctx, roomID, response)
	}
}

// HandleReaction invites the reactor into the breakout room announced
// by the reacted-to message, if there is one. Reactions to anything
// else are ignored.
func (b *Bot) HandleReaction(ctx context.Context, roomID ref.RoomID, sender ref.UserID, target ref.EventID) {
	if sender == b.session.UserID() || target.IsZero() {
		return
	}

	breakoutRoom, found, err := b.store.BreakoutRoom(ctx, target)
	if err != nil {
		b.logger.Error("breakout room lookup failed",
			"event_id", target,
			"error", err,
		)
		return
	}
	if !found {
		return
	}

	if err := b.session.InviteUser(ctx, breakoutRoom, sender); err != nil {
		// Repeat reactions produce "already in the room" errors; those
		// are not worth a log line.
		if !messaging.IsMatrixError(err, messaging.ErrCodeForbidden) {
			b.logger.Warn("breakout invite failed",
				"room_id", breakoutRoom,
				"user_id", sender,
				"error", err,
			)
		}
		return
	}
	b.logger.Info("invited reactor to breakout room",
		"room_id", breakoutRoom,
		"user_id", sender,
	)
}

// reply renders markdown and posts it to the room as an m.notice.
func (b *Bot) reply(ctx context.Context, roomID ref.RoomID, markdown string) {
	if _, err := b.session.SendMessage(ctx, roomID, renderNotice(markdown)); err != nil {
		b.logger.Error("failed to send response",
			"room_id", roomID,
			"error", err,
		)
	}
}

// authorized checks a tier requirement inside a handler.
func (b *Bot) authorized(ctx context.Context, sender ref.UserID, tier access.Tier) bool {
	return b.gate.Authorize(ctx, sender, tier)
}

func denialFor(tier access.Tier) string {
	if tier == access.Admin {
		return deniedAdmin
	}
	return deniedCoordinator
}

// resolveRoom turns a room argument (alias or room ID) into a room ID.
func (b *Bot) resolveRoom(ctx context.Context, arg string) (ref.RoomID, error) {
	if roomID, err := ref.ParseRoomID(arg); err == nil {
		return roomID, nil
	}
	alias, err := ref.ParseRoomAlias(arg)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("bot: %q is neither a room ID nor an alias", arg)
	}
	roomID, err := b.session.ResolveAlias(ctx, alias)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("bot: resolving %s: %w", alias, err)
	}
	return roomID, nil
}
