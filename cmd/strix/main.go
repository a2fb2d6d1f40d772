// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Strix is a Matrix community steward bot. It maintains rooms, spaces,
// and communities on a homeserver, manages user accounts through a
// Keycloak-compatible identity provider, and answers prefix-addressed
// commands in the rooms it is joined to.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/strixbot/strix/access"
	"github.com/strixbot/strix/bot"
	"github.com/strixbot/strix/community"
	"github.com/strixbot/strix/config"
	"github.com/strixbot/strix/identity"
	"github.com/strixbot/strix/lib/clock"
	"github.com/strixbot/strix/lib/ref"
	"github.com/strixbot/strix/messaging"
	"github.com/strixbot/strix/rooms"
	"github.com/strixbot/strix/store"
)

// syncFilter restricts /sync to the event types the bot reacts to.
// Presence and ephemeral events are noise at this bot's scale.
const syncFilter = `{"room":{"timeline":{"types":["m.room.message","m.reaction"],"limit":50},"ephemeral":{"types":[]}},"presence":{"types":[]}}`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		logLevel   string
	)
	pflag.StringVar(&configPath, "config", "", "path to the YAML configuration file (required)")
	pflag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pflag.Parse()

	if configPath == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Homeserver.URL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	session, err := establishSession(ctx, client, cfg)
	if err != nil {
		return err
	}
	logger.Info("session established", "user_id", session.UserID())

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	gate := access.NewGate(cfg.Access.Admins, cfg.Access.Coordinators, session, logger)

	roomService, err := rooms.NewService(rooms.ServiceConfig{
		Session: session,
		Store:   st,
		Admin:   messaging.NewSynapseAdmin(session),
		Tiers:   gate,
		Permissions: rooms.Permissions{
			PromoteUsers: cfg.Permissions.PromoteUsers,
			DemoteUsers:  cfg.Permissions.DemoteUsers,
		},
		ServerName: cfg.Homeserver.ServerName,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	communityService := community.NewService(session, st, cfg.Homeserver.ServerName, logger)

	var provider *identity.Provider
	if cfg.IdentityProvider.Enabled {
		provider, err = identity.NewProvider(identity.ProviderConfig{
			URL:          cfg.IdentityProvider.URL,
			Realm:        cfg.IdentityProvider.Realm,
			ClientID:     cfg.IdentityProvider.ClientID,
			ClientSecret: cfg.IdentityProvider.ClientSecret,
			Logger:       logger,
		})
		if err != nil {
			return err
		}
	}
	var signup *identity.SignupClient
	if cfg.SignupService.Enabled {
		signup, err = identity.NewSignupClient(identity.SignupConfig{
			URL:    cfg.SignupService.URL,
			Token:  cfg.SignupService.Token,
			Logger: logger,
		})
		if err != nil {
			return err
		}
	}

	b, err := bot.New(bot.BotConfig{
		Session:     session,
		Gate:        gate,
		Rooms:       roomService,
		Communities: communityService,
		Store:       st,
		Provider:    provider,
		Signup:      signup,
		ServerName:  cfg.Homeserver.ServerName,
		Prefix:      cfg.CommandPrefix,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	// Bring tracked rooms and communities in line with the homeserver
	// before taking commands. Individual failures are logged by the
	// services; only a sweep that cannot run at all is fatal.
	roomSummary, err := roomService.EnsureAll(ctx)
	if err != nil {
		return err
	}
	logger.Info("room reconciliation finished",
		"created", roomSummary.Created,
		"existing", roomSummary.AlreadyExists,
		"failed", roomSummary.Failed,
	)
	communitySummary, err := communityService.EnsureAll(ctx)
	if err != nil {
		return err
	}
	logger.Info("community reconciliation finished",
		"created", communitySummary.Created,
		"existing", communitySummary.AlreadyExists,
		"failed", communitySummary.Failed,
	)

	// The initial sync snapshot is only used for pending invites; its
	// timeline events predate this process and are not replayed as
	// commands.
	sinceToken, snapshot, err := messaging.InitialSync(ctx, session, syncFilter)
	if err != nil {
		return err
	}
	messaging.AcceptInvites(ctx, session, snapshot.Rooms.Invite, logger)

	logger.Info("entering sync loop", "command_prefix", cfg.CommandPrefix)
	messaging.RunSyncLoop(ctx, session, messaging.SyncConfig{Filter: syncFilter}, sinceToken,
		func(ctx context.Context, response *messaging.SyncResponse) {
			messaging.AcceptInvites(ctx, session, response.Rooms.Invite, logger)
			for roomID, joined := range response.Rooms.Join {
				for _, event := range joined.Timeline.Events {
					// Handlers run off the sync goroutine so a slow
					// command (a recreation, an identity-provider round
					// trip) never stalls the long-poll loop.
					go dispatchEvent(ctx, b, roomID, event)
				}
			}
		}, clock.Real(), logger)

	logger.Info("shutting down")
	return nil
}

// establishSession authenticates against the homeserver, preferring a
// configured access token over password login, and verifies the
// session belongs to the configured bot user.
func establishSession(ctx context.Context, client *messaging.Client, cfg *config.Config) (*messaging.DirectSession, error) {
	var session *messaging.DirectSession
	if cfg.Homeserver.AccessToken != "" {
		session = client.SessionFromToken(cfg.BotUserID(), cfg.Homeserver.AccessToken)
	} else {
		var err error
		session, err = client.Login(ctx, cfg.Homeserver.UserID, cfg.Homeserver.Password)
		if err != nil {
			return nil, fmt.Errorf("logging in as %s: %w", cfg.Homeserver.UserID, err)
		}
	}

	userID, err := session.WhoAmI(ctx)
	if err != nil {
		return nil, fmt.Errorf("validating session: %w", err)
	}
	if userID != cfg.BotUserID() {
		return nil, fmt.Errorf("session belongs to %s, configured bot user is %s", userID, cfg.BotUserID())
	}
	return session, nil
}

// dispatchEvent routes one timeline event into the bot. Messages carry
// commands; reactions drive breakout room invites.
func dispatchEvent(ctx context.Context, b *bot.Bot, roomID ref.RoomID, event messaging.Event) {
	switch event.Type {
	case messaging.EventTypeMessage:
		body, ok := event.Content["body"].(string)
		if !ok {
			return
		}
		b.HandleMessage(ctx, roomID, event.Sender, event.EventID, body)
	case messaging.EventTypeReaction:
		relates, ok := event.Content["m.relates_to"].(map[string]any)
		if !ok || relates["rel_type"] != "m.annotation" {
			return
		}
		rawTarget, _ := relates["event_id"].(string)
		target, err := ref.ParseEventID(rawTarget)
		if err != nil {
			return
		}
		b.HandleReaction(ctx, roomID, event.Sender, target)
	}
}
