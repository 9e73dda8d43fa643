package domain

import (
	"slices"
	"strings"
	"time"
)

type ChatMessage struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// AddChatMessage appends msg to the log and keeps only the newest limit
// messages. Missing author details are taken from the member record.
// CreatedAt is kept strictly increasing within the party.
func (p *Party) AddChatMessage(msg ChatMessage, now time.Time, limit int) (ChatMessage, error) {
	i := p.memberIndex(msg.AuthorID)
	if i < 0 {
		return ChatMessage{}, ErrNotMember
	}

	if msg.AuthorName == "" {
		msg.AuthorName = p.Members[i].Name
	}
	if msg.AvatarURL == nil {
		msg.AvatarURL = p.Members[i].AvatarURL
	}

	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		return ChatMessage{}, ErrEmptyMessage
	}

	msg.CreatedAt = now
	if n := len(p.Chat); n > 0 && !msg.CreatedAt.After(p.Chat[n-1].CreatedAt) {
		msg.CreatedAt = p.Chat[n-1].CreatedAt.Add(time.Nanosecond)
	}

	p.Chat = append(p.Chat, msg)
	if limit > 0 && len(p.Chat) > limit {
		p.Chat = slices.Clone(p.Chat[len(p.Chat)-limit:])
	}

	p.Members[i].LastSeen = now
	p.LastActivity = now

	return msg, nil
}

// ChatSince returns messages created strictly after since, oldest first. A nil
// since returns the whole log.
func (p *Party) ChatSince(since *time.Time) []ChatMessage {
	if since == nil {
		return slices.Clone(p.Chat)
	}

	i, _ := slices.BinarySearchFunc(p.Chat, *since, func(m ChatMessage, t time.Time) int {
		if m.CreatedAt.After(t) {
			return 1
		}
		return -1
	})

	return slices.Clone(p.Chat[i:])
}
