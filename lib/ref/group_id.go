// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// GroupID is a validated Matrix community (group) identifier
// (e.g., "+staff:example.com"). Communities are the deprecated
// predecessor of spaces; some deployments still run on them, so the
// identifier keeps the same validated-value treatment as the other
// Matrix ID types.
//
// GroupID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type GroupID struct {
	id string
}

// ParseGroupID validates and wraps a raw Matrix group ID string.
func ParseGroupID(raw string) (GroupID, error) {
	_, _, err := parseSigil(raw, '+', "group ID")
	if err != nil {
		return GroupID{}, err
	}
	return GroupID{id: raw}, nil
}

// MustParseGroupID is like ParseGroupID but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseGroupID(raw string) GroupID {
	g, err := ParseGroupID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseGroupID(%q): %v", raw, err))
	}
	return g
}

// NewGroupID constructs a GroupID from a localpart and server name.
// The localpart must not include the '+' sigil.
func NewGroupID(localpart, server string) (GroupID, error) {
	return ParseGroupID("+" + localpart + ":" + server)
}

// String returns the full group ID string.
func (g GroupID) String() string { return g.id }

// IsZero reports whether the GroupID is the zero value (uninitialized).
func (g GroupID) IsZero() bool { return g.id == "" }

// Localpart returns the group localpart without the '+' prefix or
// ':server' suffix.
func (g GroupID) Localpart() string {
	if g.id == "" {
		return ""
	}
	localpart, _, _ := parseSigil(g.id, '+', "group ID")
	return localpart
}

// Server returns the server name from the group ID.
func (g GroupID) Server() string {
	if g.id == "" {
		return ""
	}
	_, server, _ := parseSigil(g.id, '+', "group ID")
	return server
}

// MarshalText implements encoding.TextMarshaler.
func (g GroupID) MarshalText() ([]byte, error) {
	if g.id == "" {
		return []byte{}, nil
	}
	return []byte(g.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// group ID format. An empty input produces the zero value.
func (g *GroupID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*g = GroupID{}
		return nil
	}
	parsed, err := ParseGroupID(string(data))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
