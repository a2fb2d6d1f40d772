// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/strixbot/strix/access"
	"github.com/strixbot/strix/identity"
)

// handleUsers manages identity-provider accounts and signup links.
// Listing and creating accounts is admin-gated; signup links are
// coordinator-gated. With no provider configured, every subcommand
// answers with the same disabled message.
func (b *Bot) handleUsers(ctx context.Context, cmd Command) string {
	if b.provider == nil {
		return helpUsersDisabled
	}
	if wantsHelp(cmd.Args) {
		return helpUsers
	}

	switch cmd.Args[0] {
	case "list":
		if !b.authorized(ctx, cmd.Sender, access.Admin) {
			return deniedAdmin
		}
		return b.listUsers(ctx)
	case "create":
		if !b.authorized(ctx, cmd.Sender, access.Admin) {
			return deniedAdmin
		}
		if wantsHelp(cmd.Args[1:]) {
			return helpUsers
		}
		return b.createUsers(ctx, cmd.Args[1:])
	case "invite":
		if !b.authorized(ctx, cmd.Sender, access.Coordinator) {
			return deniedCoordinator
		}
		if b.signup == nil {
			return helpSignupDisabled
		}
		if wantsHelp(cmd.Args[1:]) {
			return helpUsers
		}
		return b.inviteUsers(ctx, cmd, cmd.Args[1:])
	case "signuplink":
		if !b.authorized(ctx, cmd.Sender, access.Coordinator) {
			return deniedCoordinator
		}
		if b.signup == nil {
			return helpSignupDisabled
		}
		return b.signupLink(ctx, cmd)
	default:
		return "Unknown subcommand. Usage:\n\n" + helpUsers
	}
}

func (b *Bot) listUsers(ctx context.Context) string {
	users, err := b.provider.ListUsers(ctx)
	if err != nil {
		b.logger.Error("listing users failed", "error", err)
		return commandFailed
	}
	usernames := make([]string, 0, len(users))
	for _, user := range users {
		usernames = append(usernames, user.Username)
	}
	return "The following usernames were found: " + strings.Join(usernames, ", ")
}

// createUsers creates one account per email. Each email succeeds or
// fails independently; the response reports every email on its own
// line.
func (b *Bot) createUsers(ctx context.Context, emails []string) string {
	var lines []string
	for _, email := range dedupe(emails) {
		lines = append(lines, b.createUser(ctx, email))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) createUser(ctx context.Context, email string) string {
	address, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Sprintf("The email %s looks invalid: %v", email, err)
	}
	email = address.Address

	existing, err := b.provider.UserByEmail(ctx, email)
	if err != nil {
		return fmt.Sprintf("Error looking up existing users by email %s: %v", email, err)
	}
	if existing != nil {
		return fmt.Sprintf("Found an existing user by email %s - ignoring.", email)
	}

	base := identity.DeriveUsername(email)
	username, err := b.provider.AvailableUsername(ctx, base)
	if err != nil {
		return fmt.Sprintf("Failed to find a free username for %s: %v", email, err)
	}

	userID, err := b.provider.CreateUser(ctx, username, email)
	if err != nil {
		b.logger.Error("user creation failed", "email", email, "error", err)
		return fmt.Sprintf("Failed to create user for email %s.", email)
	}
	if err := b.provider.SendPasswordReset(ctx, userID); err != nil {
		b.logger.Error("password reset email failed",
			"email", email,
			"user_id", userID,
			"error", err,
		)
		return fmt.Sprintf("Created %s, but sending the password reset email failed.", email)
	}
	return fmt.Sprintf("Successfully created %s!", email)
}

// inviteUsers creates a single-use signup link per email. The signup
// service owns email delivery; the links are surfaced in the room so
// the coordinator can pass them on.
func (b *Bot) inviteUsers(ctx context.Context, cmd Command, emails []string) string {
	var lines []string
	for _, email := range dedupe(emails) {
		address, err := mail.ParseAddress(email)
		if err != nil {
			lines = append(lines, fmt.Sprintf("The email %s looks invalid: %v", email, err))
			continue
		}
		link, err := b.signup.CreateInviteLink(ctx, cmd.Sender.String())
		if err != nil {
			b.logger.Error("invite link creation failed", "email", address.Address, "error", err)
			lines = append(lines, fmt.Sprintf("Error inviting %s, please see logs.", address.Address))
			continue
		}
		lines = append(lines, fmt.Sprintf("Invite link for %s: %s", address.Address, link))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) signupLink(ctx context.Context, cmd Command) string {
	args := cmd.Args[1:]
	if len(args) < 2 || args[0] == "help" {
		return helpUsers
	}
	maxSignups, err := strconv.Atoi(args[0])
	if err != nil || maxSignups < 1 {
		return helpUsers
	}
	daysValid, err := strconv.Atoi(args[1])
	if err != nil || daysValid < 1 {
		return helpUsers
	}

	link, err := b.signup.CreateSignupLink(ctx, cmd.Sender.String(), maxSignups, daysValid)
	if err != nil {
		b.logger.Error("signup link creation failed", "error", err)
		return "Error creating signup link. Please contact an administrator."
	}
	return fmt.Sprintf(
		"Signup link created for %d signups with a validity of %d days. The link is %s",
		maxSignups, daysValid, link)
}

// dedupe removes duplicate entries preserving first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var result []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		result = append(result, value)
	}
	return result
}
