package inmemory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/party/internal/domain"
	"github.com/sharetube/party/internal/repository/party"
	"golang.org/x/exp/maps"
)

type entry struct {
	mu      sync.Mutex
	party   *domain.Party
	deleted bool
}

// repo keeps parties in process memory. Lock order is always entry.mu before
// repo.mu, and repo.mu is never held while waiting for an entry.
type repo struct {
	party.Core
	parties map[string]*entry
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewRepo(policy party.Policy, logger *slog.Logger) *repo {
	return &repo{
		Core:    party.NewCore(policy),
		parties: make(map[string]*entry),
		logger:  logger,
	}
}

func (r *repo) getEntry(code string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.parties[code]
	return e, ok
}

// deleteLocked must be called with e.mu held.
func (r *repo) deleteLocked(code string, e *entry) {
	e.deleted = true

	r.mu.Lock()
	if r.parties[code] == e {
		delete(r.parties, code)
	}
	r.mu.Unlock()
}

// withParty runs fn with exclusive access to the live party behind code.
// Expired parties are removed and reported as not found; parties left empty
// by fn are removed.
func (r *repo) withParty(code string, fn func(p *domain.Party, now time.Time) error) error {
	e, ok := r.getEntry(code)
	if !ok {
		return party.ErrPartyNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return party.ErrPartyNotFound
	}

	now := r.Now()
	if e.party.IsExpired(now, r.Policy.PartyTTL) {
		r.deleteLocked(code, e)
		return party.ErrPartyNotFound
	}

	err := fn(e.party, now)
	if e.party.IsEmpty() {
		r.deleteLocked(code, e)
	}

	return err
}

func (r *repo) CreateParty(ctx context.Context, params *party.CreatePartyParams) (domain.Party, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	if _, err := r.SweepExpired(ctx); err != nil {
		r.logger.WarnContext(ctx, "failed to sweep expired parties", "error", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.GenerateCode(func(code string) (bool, error) {
		_, ok := r.parties[code]
		return ok, nil
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Party{}, err
	}

	p := domain.NewParty(code, params.ContentID, params.ContentKind, params.EpisodeID, domain.Member{
		ID:        params.HostID,
		Name:      params.HostName,
		AvatarURL: params.HostAvatar,
	}, r.Now())
	r.parties[code] = &entry{party: p}

	return p.Clone(), nil
}

func (r *repo) GetParty(ctx context.Context, code string) (domain.Party, error) {
	r.logger.DebugContext(ctx, "called", "code", code)

	var res domain.Party
	if err := r.withParty(code, func(p *domain.Party, _ time.Time) error {
		res = p.Clone()
		return nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Party{}, err
	}

	return res, nil
}

func (r *repo) JoinParty(ctx context.Context, params *party.JoinPartyParams) (domain.Party, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	var res domain.Party
	if err := r.withParty(params.Code, func(p *domain.Party, now time.Time) error {
		p.Join(domain.Member{
			ID:        params.UserID,
			Name:      params.Name,
			AvatarURL: params.AvatarURL,
		}, now)
		res = p.Clone()
		return nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Party{}, err
	}

	return res, nil
}

func (r *repo) TouchMember(ctx context.Context, code, userID string) (domain.Party, error) {
	var res domain.Party
	if err := r.withParty(code, func(p *domain.Party, now time.Time) error {
		if err := p.Touch(userID, now); err != nil {
			return err
		}
		res = p.Clone()
		return nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Party{}, err
	}

	return res, nil
}

func (r *repo) LeaveParty(ctx context.Context, code, userID string) (party.LeaveResult, error) {
	r.logger.DebugContext(ctx, "called", "code", code, "user_id", userID)

	var res party.LeaveResult
	if err := r.withParty(code, func(p *domain.Party, now time.Time) error {
		res.Left, res.NewHostID = p.Leave(userID, now)
		res.Removed = p.IsEmpty()
		return nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return party.LeaveResult{}, err
	}

	return res, nil
}

func (r *repo) UpdatePlayback(ctx context.Context, params *party.UpdatePlaybackParams) (domain.Playback, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	var res domain.Playback
	if err := r.withParty(params.Code, func(p *domain.Party, now time.Time) error {
		var err error
		res, err = p.SetPlayback(params.UserID, params.Position, params.IsPlaying, now)
		return err
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Playback{}, err
	}

	return res, nil
}

func (r *repo) AddChatMessage(ctx context.Context, params *party.AddChatMessageParams) (domain.ChatMessage, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	var res domain.ChatMessage
	if err := r.withParty(params.Code, func(p *domain.Party, now time.Time) error {
		var err error
		res, err = p.AddChatMessage(domain.ChatMessage{
			ID:         r.NewID(),
			AuthorID:   params.UserID,
			AuthorName: params.Name,
			AvatarURL:  params.AvatarURL,
			Text:       params.Text,
		}, now, r.Policy.ChatLimit)
		return err
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.ChatMessage{}, err
	}

	return res, nil
}

func (r *repo) GetChatMessages(ctx context.Context, code string, since *time.Time) ([]domain.ChatMessage, error) {
	var res []domain.ChatMessage
	if err := r.withParty(code, func(p *domain.Party, _ time.Time) error {
		res = p.ChatSince(since)
		return nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return res, nil
}

// SweepExpired visits parties one at a time so it never holds more than one
// party lock and never blocks operations on other parties.
func (r *repo) SweepExpired(ctx context.Context) (party.SweepResult, error) {
	r.mu.RLock()
	codes := maps.Keys(r.parties)
	r.mu.RUnlock()

	var res party.SweepResult
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		e, ok := r.getEntry(code)
		if !ok {
			continue
		}

		e.mu.Lock()
		if !e.deleted {
			now := r.Now()
			if e.party.IsExpired(now, r.Policy.PartyTTL) {
				r.deleteLocked(code, e)
				res.ExpiredParties = append(res.ExpiredParties, code)
			} else {
				res.DroppedMembers += len(e.party.DropIdleMembers(now, r.Policy.MemberTimeout))
				if e.party.IsEmpty() {
					r.deleteLocked(code, e)
					res.EmptiedParties = append(res.EmptiedParties, code)
				}
			}
		}
		e.mu.Unlock()
	}

	if len(res.ExpiredParties) > 0 || len(res.EmptiedParties) > 0 || res.DroppedMembers > 0 {
		r.logger.DebugContext(ctx, "swept parties",
			"expired", len(res.ExpiredParties),
			"emptied", len(res.EmptiedParties),
			"dropped_members", res.DroppedMembers,
		)
	}

	return res, nil
}

func (r *repo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.parties), nil
}
