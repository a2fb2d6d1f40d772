// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/strixbot/strix/lib/ref"
)

// SynapseAdmin wraps the Synapse admin HTTP API. The session must
// belong to a homeserver administrator. These endpoints are
// Synapse-specific — other homeservers return M_UNRECOGNIZED, which
// callers should treat as "admin features unavailable" rather than a
// hard failure.
type SynapseAdmin struct {
	session *DirectSession
}

// NewSynapseAdmin creates a SynapseAdmin backed by the given session.
func NewSynapseAdmin(session *DirectSession) *SynapseAdmin {
	return &SynapseAdmin{session: session}
}

// Available probes whether the homeserver exposes the Synapse admin
// API by requesting the server version endpoint.
func (a *SynapseAdmin) Available(ctx context.Context) bool {
	_, err := a.session.client.doRequest(ctx, http.MethodGet,
		"/_synapse/admin/v1/server_version", a.session.accessToken, nil)
	return err == nil
}

// ForceJoinUser joins a local user to a room without an invite. The
// admin's session must itself be in the room. This is how members of
// a replaced room are moved into its successor without waiting for
// each of them to accept an invite.
//
// Corresponds to POST /_synapse/admin/v1/join/{roomIdOrAlias}.
func (a *SynapseAdmin) ForceJoinUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error {
	path := "/_synapse/admin/v1/join/" + url.PathEscape(roomID.String())
	requestBody := map[string]any{
		"user_id": userID.String(),
	}

	_, err := a.session.client.doRequest(ctx, http.MethodPost, path, a.session.accessToken, requestBody)
	if err != nil {
		return fmt.Errorf("messaging: force join %q to %q failed: %w", userID, roomID, err)
	}
	return nil
}
