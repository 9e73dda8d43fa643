package domain

import (
	"slices"
	"time"
)

type ContentKind string

const (
	ContentKindMovie  ContentKind = "movie"
	ContentKindSeries ContentKind = "series"
)

func (k ContentKind) Valid() bool {
	return k == ContentKindMovie || k == ContentKindSeries
}

// Party is the aggregate owned by a party store. It carries no locking of its
// own; the store serializes every call on a given party.
type Party struct {
	Code         string        `json:"code"`
	ContentID    string        `json:"content_id"`
	ContentKind  ContentKind   `json:"content_kind"`
	EpisodeID    *string       `json:"episode_id,omitempty"`
	HostID       string        `json:"host_id"`
	Members      []Member      `json:"members"`
	Playback     Playback      `json:"playback"`
	Chat         []ChatMessage `json:"chat"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`
}

func NewParty(code, contentID string, kind ContentKind, episodeID *string, host Member, now time.Time) *Party {
	host.IsHost = true
	host.JoinedAt = now
	host.LastSeen = now

	return &Party{
		Code:         code,
		ContentID:    contentID,
		ContentKind:  kind,
		EpisodeID:    episodeID,
		HostID:       host.ID,
		Members:      []Member{host},
		Playback:     Playback{Position: 0, IsPlaying: false, UpdatedAt: now},
		Chat:         []ChatMessage{},
		CreatedAt:    now,
		LastActivity: now,
	}
}

func (p *Party) IsEmpty() bool {
	return len(p.Members) == 0
}

func (p *Party) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.LastActivity) > ttl
}

// Clone returns a deep copy safe to hand out of the store.
func (p *Party) Clone() Party {
	c := *p
	c.Members = slices.Clone(p.Members)
	c.Chat = slices.Clone(p.Chat)
	if p.EpisodeID != nil {
		episodeID := *p.EpisodeID
		c.EpisodeID = &episodeID
	}

	return c
}
