package partyclient

import "time"

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

// Host returns the host's member record.
func (p Party) Host() (Member, bool) {
	for _, m := range p.Members {
		if m.ID == p.HostID {
			return m, true
		}
	}

	return Member{}, false
}

type ChatMessage struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AvatarURL  *string   `json:"avatar_url"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

type State struct {
	Party      Party         `json:"party"`
	Messages   []ChatMessage `json:"messages"`
	ServerTime time.Time     `json:"server_time"`
}

type Chat struct {
	Messages   []ChatMessage `json:"messages"`
	ServerTime time.Time     `json:"server_time"`
}

type LeaveResult struct {
	Left      bool    `json:"left"`
	Removed   bool    `json:"removed"`
	NewHostID *string `json:"new_host_id"`
}

type Preview struct {
	Code        string  `json:"code"`
	ContentID   string  `json:"content_id"`
	ContentKind string  `json:"content_kind"`
	EpisodeID   *string `json:"episode_id"`
	HostName    string  `json:"host_name"`
	MemberCount int     `json:"member_count"`
}

type CreateParams struct {
	ContentID   string  `json:"content_id"`
	ContentKind string  `json:"content_kind"`
	EpisodeID   *string `json:"episode_id,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

type JoinParams struct {
	DisplayName string  `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}
