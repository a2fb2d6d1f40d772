// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Package community reconciles tracked communities against the
// homeserver's groups API. Communities predate spaces; the API is
// deprecated but still served by Synapse deployments that never
// migrated. Reconciliation is idempotent: a community that already
// exists is left untouched.
package community

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/strixbot/strix/lib/ref"
	"github.com/strixbot/strix/messaging"
	"github.com/strixbot/strix/reconcile"
	"github.com/strixbot/strix/store"
)

// GroupsAPI is the slice of the Matrix session the reconciler needs.
// *messaging.DirectSession satisfies it.
type GroupsAPI interface {
	GetGroupProfile(ctx context.Context, groupID ref.GroupID) (*messaging.GroupProfile, error)
	CreateGroup(ctx context.Context, request messaging.CreateGroupRequest) (ref.GroupID, error)
}

// Service maintains tracked communities.
type Service struct {
	session    GroupsAPI
	store      *store.Store
	serverName string
	logger     *slog.Logger
}

// NewService creates a community Service. serverName is the homeserver
// name used to qualify community localparts into group IDs.
func NewService(session GroupsAPI, st *store.Store, serverName string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		session:    session,
		store:      st,
		serverName: serverName,
		logger:     logger,
	}
}

// EnsureExists makes sure the community is present on the homeserver
// and tracked in the store. The profile probe decides: a 200 means the
// community exists and nothing is changed, a not-found triggers
// creation, anything else is a failure. The tracking row is upserted
// on either success so startup sweeps converge the store too.
func (s *Service) EnsureExists(ctx context.Context, community store.TrackedCommunity) reconcile.Outcome {
	groupID, err := ref.NewGroupID(community.Alias, s.serverName)
	if err != nil {
		return reconcile.Failure(fmt.Errorf("community alias %q: %w", community.Alias, err))
	}

	outcome := s.ensureOnServer(ctx, groupID, community)
	if outcome.Failed() {
		return outcome
	}

	if err := s.store.UpsertCommunity(ctx, community); err != nil {
		return reconcile.Failure(fmt.Errorf("tracking community %s: %w", groupID, err))
	}
	return outcome
}

func (s *Service) ensureOnServer(ctx context.Context, groupID ref.GroupID, community store.TrackedCommunity) reconcile.Outcome {
	_, err := s.session.GetGroupProfile(ctx, groupID)
	if err == nil {
		return reconcile.OK(reconcile.AlreadyExists)
	}
	if !messaging.IsNotFound(err) {
		return reconcile.Failure(fmt.Errorf("probing community %s: %w", groupID, err))
	}

	s.logger.Info("community not found, creating",
		"group_id", groupID,
		"name", community.Name,
	)
	_, err = s.session.CreateGroup(ctx, messaging.CreateGroupRequest{
		Localpart: community.Alias,
		Profile: messaging.GroupProfile{
			Name:             community.Name,
			ShortDescription: community.Title,
		},
	})
	if err != nil {
		return reconcile.Failure(fmt.Errorf("creating community %s: %w", groupID, err))
	}
	return reconcile.OK(reconcile.Created)
}

// EnsureAll reconciles every tracked community, continuing past
// individual failures. Used by the startup sweep.
func (s *Service) EnsureAll(ctx context.Context) (reconcile.Summary, error) {
	communities, err := s.store.Communities(ctx)
	if err != nil {
		return reconcile.Summary{}, fmt.Errorf("community: listing tracked communities: %w", err)
	}

	var summary reconcile.Summary
	for _, community := range communities {
		outcome := s.EnsureExists(ctx, community)
		if outcome.Failed() {
			s.logger.Error("community reconciliation failed",
				"alias", community.Alias,
				"detail", outcome.Detail,
			)
		}
		summary.Add(outcome)
	}
	return summary, nil
}
