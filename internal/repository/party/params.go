package party

import (
	"context"
	"time"

	"github.com/sharetube/party/internal/domain"
)

type CreatePartyParams struct {
	ContentID   string
	ContentKind domain.ContentKind
	EpisodeID   *string
	HostID      string
	HostName    string
	HostAvatar  *string
}

type JoinPartyParams struct {
	Code      string
	UserID    string
	Name      string
	AvatarURL *string
}

type UpdatePlaybackParams struct {
	Code      string
	UserID    string
	Position  float64
	IsPlaying bool
}

type AddChatMessageParams struct {
	Code      string
	UserID    string
	Name      string
	AvatarURL *string
	Text      string
}

type LeaveResult struct {
	Left      bool
	Removed   bool
	NewHostID string
}

type SweepResult struct {
	ExpiredParties []string
	EmptiedParties []string
	DroppedMembers int
}

// Store is the contract shared by the in-memory and redis implementations.
type Store interface {
	CreateParty(context.Context, *CreatePartyParams) (domain.Party, error)
	GetParty(context.Context, string) (domain.Party, error)
	JoinParty(context.Context, *JoinPartyParams) (domain.Party, error)
	TouchMember(ctx context.Context, code, userID string) (domain.Party, error)
	LeaveParty(ctx context.Context, code, userID string) (LeaveResult, error)
	UpdatePlayback(context.Context, *UpdatePlaybackParams) (domain.Playback, error)
	AddChatMessage(context.Context, *AddChatMessageParams) (domain.ChatMessage, error)
	GetChatMessages(ctx context.Context, code string, since *time.Time) ([]domain.ChatMessage, error)
	SweepExpired(context.Context) (SweepResult, error)
	Count(context.Context) (int, error)
}
