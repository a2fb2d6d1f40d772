// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/strixbot/strix/access"
	"github.com/strixbot/strix/lib/ref"
	"github.com/strixbot/strix/reconcile"
	"github.com/strixbot/strix/rooms"
	"github.com/strixbot/strix/store"
)

func (b *Bot) handleHelp(ctx context.Context, cmd Command) string {
	return helpMain
}

// handleBreakout creates a breakout room and announces it. The
// announcement event ID is recorded so later reactions invite the
// reactor; a failed recording is surfaced as a degraded-mode warning
// since the advertised react-to-join flow silently breaks without it.
func (b *Bot) handleBreakout(ctx context.Context, cmd Command) string {
	if wantsHelp(cmd.Args) {
		return helpBreakout
	}
	name := strings.Join(cmd.Args, " ")

	breakoutRoom, err := b.rooms.CreateBreakout(ctx, name, cmd.Sender)
	if err != nil {
		b.logger.Error("breakout creation failed", "name", name, "error", err)
		return commandFailed
	}

	announcement := fmt.Sprintf(
		"Breakout room '%s' created!\n\nReact to this message with any emoji to get invited to the room.",
		name)
	eventID, err := b.session.SendMessage(ctx, cmd.Room, renderNotice(announcement))
	if err != nil {
		b.logger.Error("breakout announcement failed", "room_id", cmd.Room, "error", err)
		return commandFailed
	}

	if err := b.store.PutBreakoutRoom(ctx, eventID, breakoutRoom, b.clock.Now()); err != nil {
		b.logger.Error("failed to store breakout room mapping",
			"event_id", eventID,
			"room_id", breakoutRoom,
			"error", err,
		)
		return "*Error: failed to store breakout room data. The room was created, but invites via reactions will not work.*"
	}
	return ""
}

func (b *Bot) handleRooms(ctx context.Context, cmd Command) string {
	return b.roomsCommand(ctx, cmd, store.TypeRoom)
}

func (b *Bot) handleSpaces(ctx context.Context, cmd Command) string {
	return b.roomsCommand(ctx, cmd, store.TypeSpace)
}

func kindName(kind store.RoomType) string {
	if kind == store.TypeSpace {
		return "space"
	}
	return "room"
}

func kindTitle(kind store.RoomType) string {
	if kind == store.TypeSpace {
		return "Space"
	}
	return "Room"
}

func (b *Bot) roomsCommand(ctx context.Context, cmd Command, kind store.RoomType) string {
	if len(cmd.Args) == 0 {
		return b.listRooms(ctx, kind)
	}
	switch cmd.Args[0] {
	case "help":
		return roomsHelp(kindName(kind))
	case "list":
		return b.listRooms(ctx, kind)
	case "list-no-admin":
		return b.listNoAdminRooms(ctx, kind)
	case "create":
		return b.createRoom(ctx, cmd, kind)
	case "recreate":
		subcommand := ""
		if len(cmd.Args) > 1 {
			subcommand = cmd.Args[1]
		}
		return b.recreateRoom(ctx, cmd, subcommand)
	case "unlink":
		return b.unlinkRoom(ctx, cmd, false)
	case "unlink-and-leave":
		return b.unlinkRoom(ctx, cmd, true)
	default:
		return "Unknown subcommand. Try `" + cmd.Verb + " help`."
	}
}

func (b *Bot) listRooms(ctx context.Context, kind store.RoomType) string {
	tracked, err := b.store.Rooms(ctx)
	if err != nil {
		b.logger.Error("listing tracked rooms failed", "error", err)
		return commandFailed
	}

	var lines []string
	for _, room := range tracked {
		if room.Type != kind {
			continue
		}
		lines = append(lines, fmt.Sprintf("* %s / %s / %s", room.Name, room.Alias, room.RoomID))
	}
	header := fmt.Sprintf("I currently maintain the following %ss:\n\n", kindName(kind))
	return header + strings.Join(lines, "\n")
}

// listNoAdminRooms lists tracked rooms where the bot lacks admin
// power, with member and other-admin counts so the operator can judge
// whether a recreate is needed.
func (b *Bot) listNoAdminRooms(ctx context.Context, kind store.RoomType) string {
	tracked, err := b.store.Rooms(ctx)
	if err != nil {
		b.logger.Error("listing tracked rooms failed", "error", err)
		return commandFailed
	}

	botUser := b.session.UserID().String()
	var lines []string
	for _, room := range tracked {
		if room.Type != kind {
			continue
		}
		power, err := b.session.PowerLevels(ctx, room.RoomID)
		if err != nil {
			lines = append(lines, fmt.Sprintf("* %s / %s / power levels unavailable: %v",
				room.Name, room.Alias, err))
			continue
		}
		if power.Users[botUser] >= 100 {
			continue
		}

		line := fmt.Sprintf("* %s / %s / %s", room.Name, room.Alias, room.RoomID)
		if members, err := b.session.JoinedMembers(ctx, room.RoomID); err == nil {
			line += fmt.Sprintf(" / users: %d", len(members))
		}
		otherAdmins := 0
		for user, level := range power.Users {
			if user != botUser && level >= 100 {
				otherAdmins++
			}
		}
		if otherAdmins > 0 {
			line += fmt.Sprintf(". **The %s has %d other admins.**", kindName(kind), otherAdmins)
		}
		lines = append(lines, line)
	}
	header := fmt.Sprintf("I lack admin power in the following %ss I maintain:\n\n", kindName(kind))
	return header + strings.Join(lines, "\n")
}

func (b *Bot) createRoom(ctx context.Context, cmd Command, kind store.RoomType) string {
	usage := "Wrong number or bad arguments. Usage:\n\n" + roomsHelp(kindName(kind))

	params, err := splitQuoted(cmd.Args[1:])
	if err != nil {
		return usage
	}
	if len(params) != 5 || params[0] == "help" ||
		!isYesNo(params[3]) || !isYesNo(params[4]) {
		return usage
	}

	alias, err := ref.NewRoomAlias(params[1], b.serverName)
	if err != nil {
		return fmt.Sprintf("Bad alias %q: %v", params[1], err)
	}

	ensured, outcome := b.rooms.EnsureExists(ctx, store.TrackedRoom{
		Alias:     alias,
		Name:      params[0],
		Title:     params[2],
		Encrypted: params[3] == "yes",
		Public:    params[4] == "yes",
		Type:      kind,
	})

	switch outcome.Status {
	case reconcile.Created:
		return fmt.Sprintf("%s %s (%s) created successfully.", kindTitle(kind), params[0], ensured.Alias)
	case reconcile.AlreadyExists:
		return fmt.Sprintf("Sorry! %s %s (%s) already exists.", kindTitle(kind), params[0], ensured.Alias)
	default:
		return fmt.Sprintf("Error creating %s: %s", kindName(kind), outcome.Detail)
	}
}

// recreateRoom drives the two-phase recreation of the room the command
// was issued in. Both phases are admin-gated on top of the coordinator
// gate the rooms verb already passed.
func (b *Bot) recreateRoom(ctx context.Context, cmd Command, subcommand string) string {
	if !b.authorized(ctx, cmd.Sender, access.Admin) {
		return deniedAdmin
	}

	switch subcommand {
	case "":
		if err := b.rooms.RequestRecreate(ctx, cmd.Room, cmd.Sender); err != nil {
			if errors.Is(err, rooms.ErrAlreadyRecreated) {
				return "Can only recreate a room once, this room has already been recreated."
			}
			b.logger.Error("recreate request failed", "room_id", cmd.Room, "error", err)
			return commandFailed
		}
		return fmt.Sprintf(
			"Recreate this room? This creates a new room, moves the alias over and invites "+
				"everyone to the new room. **This cannot be undone.**\n\n"+
				"Confirm within %.0f seconds with `%s %s recreate confirm`.",
			rooms.ConfirmWindow.Seconds(), b.prefix, cmd.Verb)
	case "confirm":
		_, err := b.rooms.ConfirmRecreate(ctx, cmd.Room, cmd.Sender, cmd.Event)
		switch {
		case err == nil:
			// The recreation already posted the replacement notices.
			return ""
		case errors.Is(err, rooms.ErrNoPendingRequest):
			return "Cannot confirm room recreate before requesting room recreate."
		case errors.Is(err, rooms.ErrWrongRequester):
			return "Room recreate confirm must be given by the room recreate requester."
		case errors.Is(err, rooms.ErrWindowExpired):
			return "Room recreate confirmation must be given within 60 seconds. Please request recreation again."
		case errors.Is(err, rooms.ErrAlreadyRecreated):
			return "Can only recreate a room once, this room has already been recreated."
		default:
			b.logger.Error("recreate failed", "room_id", cmd.Room, "error", err)
			return "Failed to recreate the room. The request is still pending; you may retry with `" +
				b.prefix + " " + cmd.Verb + " recreate confirm`."
		}
	default:
		return "Unknown subcommand. Usage:\n\n" + helpRecreate
	}
}

func (b *Bot) unlinkRoom(ctx context.Context, cmd Command, leave bool) string {
	if len(cmd.Args) < 2 || cmd.Args[1] == "help" {
		return roomsHelp(kindName(store.TypeRoom))
	}

	roomID, err := b.resolveRoom(ctx, cmd.Args[1])
	if err != nil {
		return "Could not resolve room ID. Please ensure the room exists."
	}

	tracked, err := b.store.RoomByID(ctx, roomID)
	if err != nil {
		b.logger.Error("room lookup failed", "room_id", roomID, "error", err)
		return commandFailed
	}
	if tracked == nil {
		return fmt.Sprintf("Cannot unlink room %s which doesn't seem to be tracked by me.", roomID)
	}

	if _, err := b.store.DeleteRoomByID(ctx, roomID); err != nil {
		b.logger.Error("unlink failed", "room_id", roomID, "error", err)
		return commandFailed
	}

	response := fmt.Sprintf("Room %s has been removed from the database.", roomID)
	if leave {
		if err := b.session.LeaveRoom(ctx, roomID); err != nil {
			b.logger.Warn("failed to leave unlinked room", "room_id", roomID, "error", err)
			return response + " Leaving the room failed, though."
		}
		response += " I have also left the room."
	}
	return response
}

func (b *Bot) handleCommunities(ctx context.Context, cmd Command) string {
	if len(cmd.Args) == 0 {
		return b.listCommunities(ctx)
	}
	switch cmd.Args[0] {
	case "help":
		return helpCommunities
	case "create":
		return b.createCommunity(ctx, cmd)
	default:
		return "Unknown subcommand. Try `communities help`."
	}
}

func (b *Bot) listCommunities(ctx context.Context) string {
	tracked, err := b.store.Communities(ctx)
	if err != nil {
		b.logger.Error("listing tracked communities failed", "error", err)
		return commandFailed
	}

	var lines []string
	for _, c := range tracked {
		lines = append(lines, fmt.Sprintf("* %s / +%s:%s / %s", c.Name, c.Alias, b.serverName, c.Title))
	}
	return "I currently maintain the following communities:\n\n" + strings.Join(lines, "\n")
}

func (b *Bot) createCommunity(ctx context.Context, cmd Command) string {
	params, err := splitQuoted(cmd.Args[1:])
	if err != nil || len(params) != 3 || params[0] == "help" {
		return "Wrong number or bad arguments. Usage:\n\n" + helpCommunities
	}

	outcome := b.communities.EnsureExists(ctx, store.TrackedCommunity{
		Name:  params[0],
		Alias: params[1],
		Title: params[2],
	})
	qualified := fmt.Sprintf("+%s:%s", params[1], b.serverName)
	switch outcome.Status {
	case reconcile.Created:
		return fmt.Sprintf("Community %s (%s) created successfully.", params[0], qualified)
	case reconcile.AlreadyExists:
		return fmt.Sprintf("Sorry! Community %s (%s) already exists.", params[0], qualified)
	default:
		return "Error creating community: " + outcome.Detail
	}
}

// handlePower grants moderator or admin power in a room. Moderator
// grants ride on the coordinator gate; admin grants require the admin
// tier on top.
func (b *Bot) handlePower(ctx context.Context, cmd Command) string {
	if wantsHelp(cmd.Args) {
		return helpPower
	}
	if len(cmd.Args) < 2 {
		return "Cannot understand arguments.\n\n" + helpPower
	}

	userID, err := ref.ParseUserID(cmd.Args[0])
	if err != nil {
		return fmt.Sprintf("Invalid user mxid: %s", cmd.Args[0])
	}
	roomID, err := b.resolveRoom(ctx, cmd.Args[1])
	if err != nil {
		return "Could not resolve room ID. Please ensure the room exists."
	}

	level := "moderator"
	if len(cmd.Args) > 2 {
		level = cmd.Args[2]
	}
	var power int
	switch level {
	case "moderator":
		power = 50
	case "admin":
		if !b.authorized(ctx, cmd.Sender, access.Admin) {
			return "Only bot admins can set admin level power, sorry."
		}
		power = 100
	default:
		return "Level must be 'moderator' or 'admin'."
	}

	if err := b.rooms.SetUserPower(ctx, roomID, userID, power); err != nil {
		return fmt.Sprintf("Sorry, command failed.\n\n%v", err)
	}
	return "Power level was successfully set as requested."
}

// handleInvite invites the sender (no user arguments) or the listed
// users to the given room.
func (b *Bot) handleInvite(ctx context.Context, cmd Command) string {
	if wantsHelp(cmd.Args) {
		return helpInvite
	}

	roomID, err := b.resolveRoom(ctx, cmd.Args[0])
	if err != nil {
		return "Could not resolve room ID. Please ensure the room exists."
	}

	targets := cmd.Args[1:]
	if len(targets) == 0 {
		if err := b.session.InviteUser(ctx, roomID, cmd.Sender); err != nil {
			return fmt.Sprintf("Failed to invite you to %s:\n\n%v", cmd.Args[0], err)
		}
		return fmt.Sprintf("Invited you to %s.", cmd.Args[0])
	}

	var lines []string
	for _, target := range targets {
		userID, err := ref.ParseUserID(target)
		if err != nil {
			lines = append(lines, fmt.Sprintf("Invalid user mxid: %s", target))
			continue
		}
		if err := b.session.InviteUser(ctx, roomID, userID); err != nil {
			lines = append(lines, fmt.Sprintf("Failed to invite %s: %v", userID, err))
			continue
		}
		lines = append(lines, fmt.Sprintf("Invited %s to %s.", userID, cmd.Args[0]))
	}
	return strings.Join(lines, "\n")
}

func isYesNo(value string) bool {
	return value == "yes" || value == "no"
}
