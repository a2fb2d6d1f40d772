// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/strixbot/strix/lib/ref"
)

// The groups (communities) API predates spaces and was never stabilized
// past r0. Synapse still serves it when experimental group support is
// enabled; homeservers without it return M_UNRECOGNIZED. Deployments
// that migrated to spaces should manage them as rooms with
// creation_content {"type": "m.space"} instead.

// GroupProfile is the profile section of a community.
type GroupProfile struct {
	Name             string `json:"name,omitempty"`
	ShortDescription string `json:"short_description,omitempty"`
	LongDescription  string `json:"long_description,omitempty"`
	AvatarURL        string `json:"avatar_url,omitempty"`
}

// CreateGroupRequest is the request body for creating a community.
type CreateGroupRequest struct {
	Localpart string       `json:"localpart"`
	Profile   GroupProfile `json:"profile"`
}

// CreateGroupResponse is returned by CreateGroup.
type CreateGroupResponse struct {
	GroupID ref.GroupID `json:"group_id"`
}

// GetGroupProfile fetches a community's profile. Returns a
// *MatrixError satisfying IsNotFound when the community does not
// exist — the existence probe for idempotent creation.
func (s *DirectSession) GetGroupProfile(ctx context.Context, groupID ref.GroupID) (*GroupProfile, error) {
	path := fmt.Sprintf("/_matrix/client/r0/groups/%s/profile", url.PathEscape(groupID.String()))
	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: get group profile for %q failed: %w", groupID, err)
	}

	var profile GroupProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse group profile response: %w", err)
	}
	return &profile, nil
}

// CreateGroup creates a community with the given localpart and profile.
func (s *DirectSession) CreateGroup(ctx context.Context, request CreateGroupRequest) (ref.GroupID, error) {
	body, err := s.client.doRequest(ctx, http.MethodPost, "/_matrix/client/r0/create_group", s.accessToken, request)
	if err != nil {
		return ref.GroupID{}, fmt.Errorf("messaging: create group %q failed: %w", request.Localpart, err)
	}

	var response CreateGroupResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.GroupID{}, fmt.Errorf("messaging: failed to parse create group response: %w", err)
	}

	s.client.logger.Info("created matrix community",
		"group_id", response.GroupID,
		"name", request.Profile.Name,
	)
	return response.GroupID, nil
}
