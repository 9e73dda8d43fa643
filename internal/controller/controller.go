package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sharetube/party/internal/auth"
	"github.com/sharetube/party/internal/service/party"
	"github.com/sharetube/party/pkg/validator"
)

type iPartyService interface {
	CreateParty(context.Context, *party.CreatePartyParams) (party.Party, error)
	PreviewParty(ctx context.Context, userID, code string) (party.Preview, error)
	JoinParty(context.Context, *party.JoinPartyParams) (party.State, error)
	GetState(context.Context, *party.GetStateParams) (party.State, error)
	LeaveParty(context.Context, *party.LeavePartyParams) (party.LeaveResponse, error)
	SyncPlayback(context.Context, *party.SyncPlaybackParams) (party.Playback, error)
	PostChat(context.Context, *party.PostChatParams) (party.ChatMessage, error)
	GetChat(context.Context, *party.GetChatParams) (party.Chat, error)
}

// iIdentityResolver maps a request to the caller's identity. Credential
// validation lives behind it.
type iIdentityResolver interface {
	Resolve(*http.Request) (auth.Identity, error)
}

type Config struct {
	AllowedOrigins []string
	// RateLimit is the number of party API requests a user may make per minute; 0 disables it.
	RateLimit int
}

type controller struct {
	partyService iPartyService
	identity     iIdentityResolver
	validate     *validator.Validator
	logger       *slog.Logger
	cfg          Config
}

func NewController(partyService iPartyService, identity iIdentityResolver, logger *slog.Logger, cfg *Config) *controller {
	return &controller{
		partyService: partyService,
		identity:     identity,
		validate:     validator.NewValidator(),
		logger:       logger,
		cfg:          *cfg,
	}
}
