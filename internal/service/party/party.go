package party

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sharetube/party/internal/domain"
	"github.com/sharetube/party/internal/metrics"
	"github.com/sharetube/party/internal/repository/party"
)

type CreatePartyParams struct {
	UserID      string
	ContentID   string
	ContentKind string
	EpisodeID   *string
	DisplayName string
	AvatarURL   *string
}

func (s service) CreateParty(ctx context.Context, params *CreatePartyParams) (Party, error) {
	if err := checkIdentity(params.UserID); err != nil {
		return Party{}, err
	}

	kind := domain.ContentKind(params.ContentKind)
	if !kind.Valid() {
		return Party{}, validationError("unknown content kind %q", params.ContentKind)
	}

	if strings.TrimSpace(params.ContentID) == "" {
		return Party{}, validationError("content id is required")
	}

	name, err := s.displayName(params.DisplayName, params.UserID)
	if err != nil {
		return Party{}, err
	}

	episodeID := params.EpisodeID
	if kind != domain.ContentKindSeries {
		episodeID = nil
	}

	p, err := s.partyRepo.CreateParty(ctx, &party.CreatePartyParams{
		ContentID:   params.ContentID,
		ContentKind: kind,
		EpisodeID:   episodeID,
		HostID:      params.UserID,
		HostName:    name,
		HostAvatar:  params.AvatarURL,
	})
	if err != nil {
		s.logger.InfoContext(ctx, "failed to create party", "error", err)
		return Party{}, mapRepoError(err)
	}

	metrics.PartiesCreated.Inc()
	s.logger.InfoContext(ctx, "party created", "party_code", p.Code, "content_id", p.ContentID)

	return newParty(&p), nil
}

type JoinPartyParams struct {
	UserID      string
	Code        string
	DisplayName string
	AvatarURL   *string
	Since       *time.Time
}

func (s service) JoinParty(ctx context.Context, params *JoinPartyParams) (State, error) {
	if err := checkIdentity(params.UserID); err != nil {
		return State{}, err
	}

	name, err := s.displayName(params.DisplayName, params.UserID)
	if err != nil {
		return State{}, err
	}

	p, err := s.partyRepo.JoinParty(ctx, &party.JoinPartyParams{
		Code:      params.Code,
		UserID:    params.UserID,
		Name:      name,
		AvatarURL: params.AvatarURL,
	})
	if err != nil {
		s.logger.InfoContext(ctx, "failed to join party", "error", err)
		return State{}, mapRepoError(err)
	}

	return s.state(&p, params.Since), nil
}

func (s service) PreviewParty(ctx context.Context, userID, code string) (Preview, error) {
	if err := checkIdentity(userID); err != nil {
		return Preview{}, err
	}

	p, err := s.partyRepo.GetParty(ctx, code)
	if err != nil {
		return Preview{}, mapRepoError(err)
	}

	host, _ := p.Member(p.HostID)

	return Preview{
		Code:        p.Code,
		ContentID:   p.ContentID,
		ContentKind: string(p.ContentKind),
		EpisodeID:   p.EpisodeID,
		HostName:    host.Name,
		MemberCount: len(p.Members),
	}, nil
}

type GetStateParams struct {
	UserID string
	Code   string
	Since  *time.Time
}

// GetState is the operation viewers poll. It also counts as presence.
func (s service) GetState(ctx context.Context, params *GetStateParams) (State, error) {
	if err := checkIdentity(params.UserID); err != nil {
		return State{}, err
	}

	p, err := s.partyRepo.TouchMember(ctx, params.Code, params.UserID)
	if err != nil {
		s.logger.DebugContext(ctx, "failed to get party state", "error", err)
		return State{}, mapRepoError(err)
	}

	return s.state(&p, params.Since), nil
}

type LeavePartyParams struct {
	UserID string
	Code   string
}

// LeaveParty is idempotent: leaving an unknown party or one the caller is
// not in reports Left=false.
func (s service) LeaveParty(ctx context.Context, params *LeavePartyParams) (LeaveResponse, error) {
	if err := checkIdentity(params.UserID); err != nil {
		return LeaveResponse{}, err
	}

	res, err := s.partyRepo.LeaveParty(ctx, params.Code, params.UserID)
	if err != nil {
		if errors.Is(err, party.ErrPartyNotFound) {
			return LeaveResponse{}, nil
		}
		s.logger.InfoContext(ctx, "failed to leave party", "error", err)
		return LeaveResponse{}, mapRepoError(err)
	}

	resp := LeaveResponse{Left: res.Left, Removed: res.Removed}
	if res.NewHostID != "" {
		resp.NewHostID = &res.NewHostID
		s.logger.InfoContext(ctx, "host migrated", "new_host_id", res.NewHostID)
	}
	if res.Removed {
		metrics.PartiesEnded.WithLabelValues("left").Inc()
		s.logger.InfoContext(ctx, "party ended, last member left")
	}

	return resp, nil
}

type SyncPlaybackParams struct {
	UserID    string
	Code      string
	Position  float64
	IsPlaying bool
}

func (s service) SyncPlayback(ctx context.Context, params *SyncPlaybackParams) (Playback, error) {
	if err := checkIdentity(params.UserID); err != nil {
		return Playback{}, err
	}

	if !domain.ValidPosition(params.Position) {
		metrics.PlaybackSyncs.WithLabelValues("invalid").Inc()
		return Playback{}, validationError("position must be a finite number >= 0")
	}

	pb, err := s.partyRepo.UpdatePlayback(ctx, &party.UpdatePlaybackParams{
		Code:      params.Code,
		UserID:    params.UserID,
		Position:  params.Position,
		IsPlaying: params.IsPlaying,
	})
	if err != nil {
		err = mapRepoError(err)
		switch {
		case errors.Is(err, ErrForbidden):
			metrics.PlaybackSyncs.WithLabelValues("forbidden").Inc()
		case errors.Is(err, ErrPartyNotFound):
			metrics.PlaybackSyncs.WithLabelValues("not_found").Inc()
		default:
			s.logger.InfoContext(ctx, "failed to update playback", "error", err)
		}
		return Playback{}, err
	}

	metrics.PlaybackSyncs.WithLabelValues("accepted").Inc()

	return newPlayback(pb), nil
}

type PostChatParams struct {
	UserID string
	Code   string
	Text   string
}

func (s service) PostChat(ctx context.Context, params *PostChatParams) (ChatMessage, error) {
	if err := checkIdentity(params.UserID); err != nil {
		return ChatMessage{}, err
	}

	text := strings.TrimSpace(params.Text)
	if text == "" {
		return ChatMessage{}, validationError("text must not be empty")
	}
	if n := utf8.RuneCountInString(text); n > s.chatMaxLength {
		return ChatMessage{}, validationError("text must not exceed %d characters, got %d", s.chatMaxLength, n)
	}

	msg, err := s.partyRepo.AddChatMessage(ctx, &party.AddChatMessageParams{
		Code:   params.Code,
		UserID: params.UserID,
		Text:   text,
	})
	if err != nil {
		s.logger.DebugContext(ctx, "failed to add chat message", "error", err)
		return ChatMessage{}, mapRepoError(err)
	}

	metrics.ChatMessages.Inc()

	return newChatMessage(msg), nil
}

type GetChatParams struct {
	UserID string
	Code   string
	Since  *time.Time
}

func (s service) GetChat(ctx context.Context, params *GetChatParams) (Chat, error) {
	if err := checkIdentity(params.UserID); err != nil {
		return Chat{}, err
	}

	if _, err := s.partyRepo.TouchMember(ctx, params.Code, params.UserID); err != nil {
		s.logger.DebugContext(ctx, "failed to get chat", "error", err)
		return Chat{}, mapRepoError(err)
	}

	msgs, err := s.partyRepo.GetChatMessages(ctx, params.Code, params.Since)
	if err != nil {
		s.logger.DebugContext(ctx, "failed to get chat", "error", err)
		return Chat{}, mapRepoError(err)
	}

	return Chat{
		Messages:   newChatMessages(msgs),
		ServerTime: s.now().UTC(),
	}, nil
}

// SweepExpired runs the store's expiry policy and refreshes the gauges.
func (s service) SweepExpired(ctx context.Context) error {
	res, err := s.partyRepo.SweepExpired(ctx)
	if err != nil {
		return err
	}

	metrics.PartiesEnded.WithLabelValues("expired").Add(float64(len(res.ExpiredParties)))
	metrics.PartiesEnded.WithLabelValues("emptied").Add(float64(len(res.EmptiedParties)))
	metrics.MembersDropped.Add(float64(res.DroppedMembers))

	count, err := s.partyRepo.Count(ctx)
	if err != nil {
		return err
	}
	metrics.PartiesActive.Set(float64(count))

	return nil
}

func (s service) state(p *domain.Party, since *time.Time) State {
	return State{
		Party:      newParty(p),
		Messages:   newChatMessages(p.ChatSince(since)),
		ServerTime: s.now().UTC(),
	}
}

// displayName validates an explicit name. Without one the user id stands in,
// cut to the length limit, since identities need not carry a name.
func (s service) displayName(name, userID string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		if runes := []rune(userID); len(runes) > s.nameMaxLength {
			return string(runes[:s.nameMaxLength]), nil
		}
		return userID, nil
	}
	if utf8.RuneCountInString(name) > s.nameMaxLength {
		return "", validationError("display name must not exceed %d characters", s.nameMaxLength)
	}

	return name, nil
}
