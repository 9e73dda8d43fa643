package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/party/internal/domain"
	"github.com/sharetube/party/internal/repository/party"
)

const maxTxRetries = 32

var ErrTxConflict = errors.New("party is under contention, transaction retries exhausted")

type txAction int

const (
	txKeep txAction = iota
	txSave
	txDelete
)

// repo stores every party as a single JSON document, so a party can be shared
// by several server instances. Each operation is one optimistic WATCH/MULTI
// transaction over that document.
type repo struct {
	party.Core
	rc     *redis.Client
	logger *slog.Logger
}

func NewRepo(rc *redis.Client, policy party.Policy, logger *slog.Logger) *repo {
	return &repo{
		Core:   party.NewCore(policy),
		rc:     rc,
		logger: logger,
	}
}

func (r *repo) getPartyKey(code string) string {
	return "party:" + code
}

func (r *repo) encode(p *domain.Party) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode party: %w", err)
	}

	return data, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *repo) load(ctx context.Context, c getter, key string) (*domain.Party, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, party.ErrPartyNotFound
		}
		return nil, fmt.Errorf("failed to get party: %w", err)
	}

	var p domain.Party
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode party: %w", err)
	}

	return &p, nil
}

// txParty loads the party under WATCH and lets fn decide what to do with it.
// The error returned by fn is reported once the chosen action has been
// committed. Saving an empty party deletes it.
func (r *repo) txParty(ctx context.Context, code string, fn func(p *domain.Party, now time.Time) (txAction, error)) error {
	key := r.getPartyKey(code)

	for n := 0; n < maxTxRetries; n++ {
		var fnErr error
		err := r.rc.Watch(ctx, func(tx *redis.Tx) error {
			p, err := r.load(ctx, tx, key)
			if err != nil {
				return err
			}

			var action txAction
			action, fnErr = fn(p, r.Now())
			if action == txSave && p.IsEmpty() {
				action = txDelete
			}

			var data []byte
			if action == txSave {
				if data, err = r.encode(p); err != nil {
					return err
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				switch action {
				case txSave:
					pipe.Set(ctx, key, data, r.Policy.PartyTTL)
				case txDelete:
					pipe.Del(ctx, key)
				default:
					// keeps the read inside the transaction so a concurrent write is detected
					pipe.Exists(ctx, key)
				}
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}

		return fnErr
	}

	return ErrTxConflict
}

// withParty is txParty behind the lazy expiry check.
func (r *repo) withParty(ctx context.Context, code string, fn func(p *domain.Party, now time.Time) (txAction, error)) error {
	return r.txParty(ctx, code, func(p *domain.Party, now time.Time) (txAction, error) {
		if p.IsExpired(now, r.Policy.PartyTTL) {
			return txDelete, party.ErrPartyNotFound
		}

		return fn(p, now)
	})
}

func (r *repo) CreateParty(ctx context.Context, params *party.CreatePartyParams) (domain.Party, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	if _, err := r.SweepExpired(ctx); err != nil {
		r.logger.WarnContext(ctx, "failed to sweep expired parties", "error", err)
	}

	var p *domain.Party
	if _, err := r.GenerateCode(func(code string) (bool, error) {
		p = domain.NewParty(code, params.ContentID, params.ContentKind, params.EpisodeID, domain.Member{
			ID:        params.HostID,
			Name:      params.HostName,
			AvatarURL: params.HostAvatar,
		}, r.Now())

		data, err := r.encode(p)
		if err != nil {
			return false, err
		}

		ok, err := r.rc.SetNX(ctx, r.getPartyKey(code), data, r.Policy.PartyTTL).Result()
		if err != nil {
			return false, fmt.Errorf("failed to set party: %w", err)
		}

		return !ok, nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Party{}, err
	}

	return p.Clone(), nil
}

func (r *repo) GetParty(ctx context.Context, code string) (domain.Party, error) {
	r.logger.DebugContext(ctx, "called", "code", code)

	var res domain.Party
	if err := r.withParty(ctx, code, func(p *domain.Party, _ time.Time) (txAction, error) {
		res = *p
		return txKeep, nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Party{}, err
	}

	return res, nil
}

func (r *repo) JoinParty(ctx context.Context, params *party.JoinPartyParams) (domain.Party, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	var res domain.Party
	if err := r.withParty(ctx, params.Code, func(p *domain.Party, now time.Time) (txAction, error) {
		p.Join(domain.Member{
			ID:        params.UserID,
			Name:      params.Name,
			AvatarURL: params.AvatarURL,
		}, now)
		res = p.Clone()
		return txSave, nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Party{}, err
	}

	return res, nil
}

func (r *repo) TouchMember(ctx context.Context, code, userID string) (domain.Party, error) {
	var res domain.Party
	if err := r.withParty(ctx, code, func(p *domain.Party, now time.Time) (txAction, error) {
		if err := p.Touch(userID, now); err != nil {
			return txKeep, err
		}
		res = p.Clone()
		return txSave, nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Party{}, err
	}

	return res, nil
}

func (r *repo) LeaveParty(ctx context.Context, code, userID string) (party.LeaveResult, error) {
	r.logger.DebugContext(ctx, "called", "code", code, "user_id", userID)

	var res party.LeaveResult
	if err := r.withParty(ctx, code, func(p *domain.Party, now time.Time) (txAction, error) {
		res.Left, res.NewHostID = p.Leave(userID, now)
		res.Removed = p.IsEmpty()
		if !res.Left {
			return txKeep, nil
		}
		return txSave, nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return party.LeaveResult{}, err
	}

	return res, nil
}

func (r *repo) UpdatePlayback(ctx context.Context, params *party.UpdatePlaybackParams) (domain.Playback, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	var res domain.Playback
	if err := r.withParty(ctx, params.Code, func(p *domain.Party, now time.Time) (txAction, error) {
		var err error
		if res, err = p.SetPlayback(params.UserID, params.Position, params.IsPlaying, now); err != nil {
			return txKeep, err
		}
		return txSave, nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Playback{}, err
	}

	return res, nil
}

func (r *repo) AddChatMessage(ctx context.Context, params *party.AddChatMessageParams) (domain.ChatMessage, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	var res domain.ChatMessage
	if err := r.withParty(ctx, params.Code, func(p *domain.Party, now time.Time) (txAction, error) {
		var err error
		if res, err = p.AddChatMessage(domain.ChatMessage{
			ID:         r.NewID(),
			AuthorID:   params.UserID,
			AuthorName: params.Name,
			AvatarURL:  params.AvatarURL,
			Text:       params.Text,
		}, now, r.Policy.ChatLimit); err != nil {
			return txKeep, err
		}
		return txSave, nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.ChatMessage{}, err
	}

	return res, nil
}

func (r *repo) GetChatMessages(ctx context.Context, code string, since *time.Time) ([]domain.ChatMessage, error) {
	var res []domain.ChatMessage
	if err := r.withParty(ctx, code, func(p *domain.Party, _ time.Time) (txAction, error) {
		res = p.ChatSince(since)
		return txKeep, nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return res, nil
}

func (r *repo) scanCodes(ctx context.Context, fn func(code string) error) error {
	prefix := r.getPartyKey("")
	iter := r.rc.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()[len(prefix):]); err != nil {
			return err
		}
	}

	return iter.Err()
}

func (r *repo) SweepExpired(ctx context.Context) (party.SweepResult, error) {
	var res party.SweepResult
	err := r.scanCodes(ctx, func(code string) error {
		var (
			expired, emptied bool
			dropped          int
		)
		err := r.txParty(ctx, code, func(p *domain.Party, now time.Time) (txAction, error) {
			expired, emptied, dropped = false, false, 0
			if p.IsExpired(now, r.Policy.PartyTTL) {
				expired = true
				return txDelete, nil
			}

			dropped = len(p.DropIdleMembers(now, r.Policy.MemberTimeout))
			if dropped == 0 {
				return txKeep, nil
			}

			emptied = p.IsEmpty()
			return txSave, nil
		})
		if errors.Is(err, party.ErrPartyNotFound) {
			return nil
		}
		if err != nil {
			r.logger.WarnContext(ctx, "failed to sweep party", "code", code, "error", err)
			return nil
		}

		if expired {
			res.ExpiredParties = append(res.ExpiredParties, code)
		}
		if emptied {
			res.EmptiedParties = append(res.EmptiedParties, code)
		}
		res.DroppedMembers += dropped
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("failed to sweep parties: %w", err)
	}

	return res, nil
}

func (r *repo) Count(ctx context.Context) (int, error) {
	count := 0
	if err := r.scanCodes(ctx, func(string) error {
		count++
		return nil
	}); err != nil {
		return 0, fmt.Errorf("failed to count parties: %w", err)
	}

	return count, nil
}
