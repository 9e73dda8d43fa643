package domain

import "time"

type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	IsHost    bool      `json:"is_host"`
	JoinedAt  time.Time `json:"joined_at"`
	LastSeen  time.Time `json:"last_seen"`
}

func (p *Party) memberIndex(userID string) int {
	for i := range p.Members {
		if p.Members[i].ID == userID {
			return i
		}
	}

	return -1
}

func (p *Party) Member(userID string) (Member, bool) {
	i := p.memberIndex(userID)
	if i < 0 {
		return Member{}, false
	}

	return p.Members[i], true
}

func (p *Party) IsMember(userID string) bool {
	return p.memberIndex(userID) >= 0
}

// Join adds member as a guest. A repeated join by the same user only refreshes
// its profile and presence, and rejoined is true.
func (p *Party) Join(member Member, now time.Time) (rejoined bool) {
	p.LastActivity = now

	if i := p.memberIndex(member.ID); i >= 0 {
		p.Members[i].Name = member.Name
		p.Members[i].AvatarURL = member.AvatarURL
		p.Members[i].LastSeen = now
		return true
	}

	member.IsHost = false
	member.JoinedAt = now
	member.LastSeen = now
	p.Members = append(p.Members, member)

	return false
}

// Leave removes userID. When the host leaves, the earliest remaining member
// becomes host and its id is returned as newHostID.
func (p *Party) Leave(userID string, now time.Time) (left bool, newHostID string) {
	i := p.memberIndex(userID)
	if i < 0 {
		return false, ""
	}

	wasHost := p.Members[i].IsHost
	p.Members = append(p.Members[:i], p.Members[i+1:]...)
	p.LastActivity = now

	if len(p.Members) == 0 {
		p.HostID = ""
		return true, ""
	}

	if wasHost {
		p.Members[0].IsHost = true
		p.HostID = p.Members[0].ID
		newHostID = p.HostID
	}

	return true, newHostID
}

// Touch records activity from userID.
func (p *Party) Touch(userID string, now time.Time) error {
	i := p.memberIndex(userID)
	if i < 0 {
		return ErrNotMember
	}

	p.Members[i].LastSeen = now
	p.LastActivity = now

	return nil
}

// DropIdleMembers removes every member not seen within timeout, applying host
// migration for each removal in turn.
func (p *Party) DropIdleMembers(now time.Time, timeout time.Duration) []string {
	var idle []string
	for _, m := range p.Members {
		if now.Sub(m.LastSeen) > timeout {
			idle = append(idle, m.ID)
		}
	}

	for _, id := range idle {
		p.Leave(id, p.LastActivity)
	}

	return idle
}
