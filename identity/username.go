// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// maxUsernameAttempts bounds the disambiguation loop. A realm with a
// thousand collisions on one localpart is broken in a way a bigger
// counter will not fix.
const maxUsernameAttempts = 1000

// DeriveUsername turns an email address into a username candidate: the
// lowercased localpart with every character outside [a-z0-9._-]
// removed.
func DeriveUsername(email string) string {
	localpart, _, _ := strings.Cut(email, "@")
	localpart = strings.ToLower(localpart)
	var b strings.Builder
	for _, r := range localpart {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AvailableUsername finds a free username starting from base, appending
// an incrementing numeric suffix (base, base1, base2, ...) until the
// provider reports no existing account. A lookup error counts as taken
// and moves to the next candidate rather than risking a duplicate.
func (p *Provider) AvailableUsername(ctx context.Context, base string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("identity: empty username candidate")
	}
	candidate := base
	for counter := 1; counter <= maxUsernameAttempts; counter++ {
		existing, err := p.UserByUsername(ctx, candidate)
		if err == nil && existing == nil {
			return candidate, nil
		}
		if err != nil {
			p.logger.Warn("username availability check failed, treating as taken",
				"candidate", candidate,
				"error", err,
			)
		}
		candidate = base + strconv.Itoa(counter)
	}
	return "", fmt.Errorf("identity: no free username found for %q", base)
}
