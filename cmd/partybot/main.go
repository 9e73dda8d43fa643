// Command partybot joins a party as a headless viewer. It keeps a simulated
// player in sync and logs chat and role changes, which makes it useful for
// load and soak testing the server.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sharetube/party/pkg/ctxlogger"
	"github.com/sharetube/party/pkg/partyclient"
	"github.com/sharetube/party/pkg/synchronizer"
)

func main() {
	serverURL := pflag.String("server", "http://localhost:80", "Party server base URL")
	token := pflag.String("token", os.Getenv("PARTYBOT_TOKEN"), "Bearer token, see cmd/devtoken")
	userID := pflag.String("user-id", "", "User id the token was issued for")
	code := pflag.String("code", "", "Party code to join; a new party is created when empty")
	contentID := pflag.String("content-id", "bot-movie", "Content id for a created party")
	name := pflag.String("name", "partybot", "Display name")
	say := pflag.String("say", "", "Chat message to post after joining")
	autoplay := pflag.Bool("autoplay", true, "Start playback when hosting a created party")
	pollInterval := pflag.Duration("poll-interval", 1500*time.Millisecond, "State poll interval")
	pflag.Parse()

	if *token == "" || *userID == "" {
		log.Fatal("token and user-id must be set")
	}

	logger := slog.New(&ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := partyclient.New(*serverURL, *token)
	player := &clockPlayer{}

	partyCode := *code
	if partyCode == "" {
		p, err := client.Create(ctx, partyclient.CreateParams{
			ContentID:   *contentID,
			ContentKind: "movie",
			DisplayName: *name,
		})
		if err != nil {
			log.Fatalf("failed to create party: %v", err)
		}
		partyCode = p.Code
		if *autoplay {
			player.Play()
		}
		logger.Info("party created", "party_code", partyCode)
	} else {
		state, err := client.Join(ctx, partyCode, partyclient.JoinParams{DisplayName: *name})
		if err != nil {
			log.Fatalf("failed to join party: %v", err)
		}
		partyCode = state.Party.Code
		logger.Info("joined party", "party_code", partyCode, "members", len(state.Party.Members))
	}

	if *say != "" {
		if _, err := client.PostChat(ctx, partyCode, *say); err != nil {
			logger.Warn("failed to post chat", "error", err)
		}
	}

	cfg := synchronizer.DefaultConfig()
	cfg.PollInterval = *pollInterval
	cfg.Logger = logger
	cfg.OnRoleChange = func(isHost bool) {
		logger.Info("role changed", "is_host", isHost)
	}
	cfg.OnChat = func(msgs []partyclient.ChatMessage) {
		for _, m := range msgs {
			logger.Info("chat", "author", m.AuthorName, "text", m.Text, "at", m.CreatedAt)
		}
	}

	err := synchronizer.New(client, player, partyCode, *userID, cfg).Run(ctx)

	leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if res, leaveErr := client.Leave(leaveCtx, partyCode); leaveErr != nil {
		logger.Warn("failed to leave party", "error", leaveErr)
	} else {
		logger.Info("left party", "removed", res.Removed)
	}

	if err != nil && !errors.Is(err, synchronizer.ErrPartyEnded) {
		log.Fatal(err)
	}
}
