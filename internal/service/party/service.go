package party

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sharetube/party/internal/domain"
	"github.com/sharetube/party/internal/repository/party"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrPartyNotFound   = errors.New("party not found or ended")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
)

type iPartyRepo interface {
	CreateParty(context.Context, *party.CreatePartyParams) (domain.Party, error)
	GetParty(context.Context, string) (domain.Party, error)
	JoinParty(context.Context, *party.JoinPartyParams) (domain.Party, error)
	TouchMember(ctx context.Context, code, userID string) (domain.Party, error)
	LeaveParty(ctx context.Context, code, userID string) (party.LeaveResult, error)
	UpdatePlayback(context.Context, *party.UpdatePlaybackParams) (domain.Playback, error)
	AddChatMessage(context.Context, *party.AddChatMessageParams) (domain.ChatMessage, error)
	GetChatMessages(ctx context.Context, code string, since *time.Time) ([]domain.ChatMessage, error)
	SweepExpired(context.Context) (party.SweepResult, error)
	Count(context.Context) (int, error)
}

type Config struct {
	ChatMaxLength int
	NameMaxLength int
}

type service struct {
	partyRepo     iPartyRepo
	logger        *slog.Logger
	chatMaxLength int
	nameMaxLength int
	now           func() time.Time
}

func NewService(partyRepo iPartyRepo, logger *slog.Logger, cfg *Config) *service {
	return &service{
		partyRepo:     partyRepo,
		logger:        logger,
		chatMaxLength: cfg.ChatMaxLength,
		nameMaxLength: cfg.NameMaxLength,
		now:           time.Now,
	}
}
