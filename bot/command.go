// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/strixbot/strix/lib/ref"
)

// Command is one parsed inbound command: verb, positional arguments,
// and the event it arrived in. Immutable once parsed.
type Command struct {
	Raw    string
	Verb   string
	Args   []string
	Sender ref.UserID
	Room   ref.RoomID
	Event  ref.EventID
}

// parseCommand splits raw command text (prefix already stripped) into
// a verb and whitespace-separated arguments. Returns false for empty
// input.
func parseCommand(raw string) (verb string, args []string, ok bool) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// splitQuoted re-parses arguments with quoted-field splitting, so a
// quoted argument may contain embedded spaces. Used by create-style
// subcommands whose names and titles are free text.
func splitQuoted(args []string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(strings.Join(args, " ")))
	reader.Comma = ' '
	record, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("bot: parsing quoted arguments: %w", err)
	}
	return record, nil
}

// wantsHelp reports whether the command should short-circuit to help
// text: no arguments at all, or the literal first argument "help".
// Every handler honors this before doing any work.
func wantsHelp(args []string) bool {
	return len(args) == 0 || args[0] == "help"
}
