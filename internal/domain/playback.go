package domain

import (
	"math"
	"time"
)

type Playback struct {
	Position  float64   `json:"position"`
	IsPlaying bool      `json:"is_playing"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ValidPosition(position float64) bool {
	return position >= 0 && !math.IsInf(position, 0) && !math.IsNaN(position)
}

// SetPlayback overwrites the playback state. Only the host may call it.
func (p *Party) SetPlayback(userID string, position float64, isPlaying bool, now time.Time) (Playback, error) {
	i := p.memberIndex(userID)
	if i < 0 || !p.Members[i].IsHost {
		return Playback{}, ErrNotHost
	}

	if !ValidPosition(position) {
		return Playback{}, ErrInvalidTime
	}

	p.Playback = Playback{
		Position:  position,
		IsPlaying: isPlaying,
		UpdatedAt: now,
	}
	p.Members[i].LastSeen = now
	p.LastActivity = now

	return p.Playback, nil
}
