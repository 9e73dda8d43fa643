package party

import (
	"time"

	"github.com/sharetube/party/internal/domain"
)

type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL *string   `json:"avatar_url"`
	IsHost    bool      `json:"is_host"`
	JoinedAt  time.Time `json:"joined_at"`
	LastSeen  time.Time `json:"last_seen"`
}

type Playback struct {
	Position  float64   `json:"position"`
	IsPlaying bool      `json:"is_playing"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Party struct {
	Code         string    `json:"code"`
	ContentID    string    `json:"content_id"`
	ContentKind  string    `json:"content_kind"`
	EpisodeID    *string   `json:"episode_id"`
	HostID       string    `json:"host_id"`
	Members      []Member  `json:"members"`
	Playback     Playback  `json:"playback"`
	ChatCount    int       `json:"chat_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

type ChatMessage struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AvatarURL  *string   `json:"avatar_url"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// State is what a viewer polls: the party, chat since the viewer's watermark
// and the server clock for skew estimation.
type State struct {
	Party      Party         `json:"party"`
	Messages   []ChatMessage `json:"messages"`
	ServerTime time.Time     `json:"server_time"`
}

type Chat struct {
	Messages   []ChatMessage `json:"messages"`
	ServerTime time.Time     `json:"server_time"`
}

type LeaveResponse struct {
	Left      bool    `json:"left"`
	Removed   bool    `json:"removed"`
	NewHostID *string `json:"new_host_id"`
}

func newPlayback(pb domain.Playback) Playback {
	return Playback{
		Position:  pb.Position,
		IsPlaying: pb.IsPlaying,
		UpdatedAt: pb.UpdatedAt.UTC(),
	}
}

func newParty(p *domain.Party) Party {
	members := make([]Member, 0, len(p.Members))
	for _, m := range p.Members {
		members = append(members, Member{
			ID:        m.ID,
			Name:      m.Name,
			AvatarURL: m.AvatarURL,
			IsHost:    m.IsHost,
			JoinedAt:  m.JoinedAt.UTC(),
			LastSeen:  m.LastSeen.UTC(),
		})
	}

	return Party{
		Code:         p.Code,
		ContentID:    p.ContentID,
		ContentKind:  string(p.ContentKind),
		EpisodeID:    p.EpisodeID,
		HostID:       p.HostID,
		Members:      members,
		Playback:     newPlayback(p.Playback),
		ChatCount:    len(p.Chat),
		CreatedAt:    p.CreatedAt.UTC(),
		LastActivity: p.LastActivity.UTC(),
	}
}

func newChatMessage(m domain.ChatMessage) ChatMessage {
	return ChatMessage{
		ID:         m.ID,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		AvatarURL:  m.AvatarURL,
		Text:       m.Text,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

func newChatMessages(msgs []domain.ChatMessage) []ChatMessage {
	res := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, newChatMessage(m))
	}

	return res
}

// Preview is what a non-member may learn about a party before joining.
type Preview struct {
	Code        string  `json:"code"`
	ContentID   string  `json:"content_id"`
	ContentKind string  `json:"content_kind"`
	EpisodeID   *string `json:"episode_id"`
	HostName    string  `json:"host_name"`
	MemberCount int     `json:"member_count"`
}
