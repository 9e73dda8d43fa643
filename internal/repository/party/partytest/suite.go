// Package partytest holds the behaviour every party store implementation must share.
package partytest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sharetube/party/internal/domain"
	"github.com/sharetube/party/internal/repository/party"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Store = party.Store

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory builds a fresh store. The returned core must be the one the store
// reads its clock and generators from.
type Factory func(t *testing.T) (Store, *party.Core)

type seqGenerator struct {
	mu    sync.Mutex
	codes []string
}

func (g *seqGenerator) GenerateRandomString(int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := g.codes[0]
	if len(g.codes) > 1 {
		g.codes = g.codes[1:]
	}
	return code
}

func setup(t *testing.T, newStore Factory) (Store, *Clock, *party.Core) {
	t.Helper()
	store, core := newStore(t)
	clock := NewClock()
	core.Now = clock.Now
	return store, clock, core
}

func createParty(t *testing.T, ctx context.Context, s Store) domain.Party {
	t.Helper()
	p, err := s.CreateParty(ctx, &party.CreatePartyParams{
		ContentID:   "M1",
		ContentKind: domain.ContentKindMovie,
		HostID:      "a",
		HostName:    "alice",
	})
	require.NoError(t, err)
	return p
}

func join(t *testing.T, ctx context.Context, s Store, code, userID string) domain.Party {
	t.Helper()
	p, err := s.JoinParty(ctx, &party.JoinPartyParams{Code: code, UserID: userID, Name: userID})
	require.NoError(t, err)
	return p
}

func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore) })
	t.Run("CodeCollision", func(t *testing.T) { testCodeCollision(t, newStore) })
	t.Run("JoinTwice", func(t *testing.T) { testJoinTwice(t, newStore) })
	t.Run("HostMigration", func(t *testing.T) { testHostMigration(t, newStore) })
	t.Run("SoleMemberLeaves", func(t *testing.T) { testSoleMemberLeaves(t, newStore) })
	t.Run("Playback", func(t *testing.T) { testPlayback(t, newStore) })
	t.Run("Chat", func(t *testing.T) { testChat(t, newStore) })
	t.Run("ChatLimit", func(t *testing.T) { testChatLimit(t, newStore) })
	t.Run("Expiry", func(t *testing.T) { testExpiry(t, newStore) })
	t.Run("Sweep", func(t *testing.T) { testSweep(t, newStore) })
	t.Run("Touch", func(t *testing.T) { testTouch(t, newStore) })
	t.Run("ConcurrentMembership", func(t *testing.T) { testConcurrentMembership(t, newStore) })
}

func testCreateAndGet(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s, clock, _ := setup(t, newStore)

	episode := "S01E02"
	avatar := "https://cdn.example/a.png"
	created, err := s.CreateParty(ctx, &party.CreatePartyParams{
		ContentID:   "show-1",
		ContentKind: domain.ContentKindSeries,
		EpisodeID:   &episode,
		HostID:      "a",
		HostName:    "alice",
		HostAvatar:  &avatar,
	})
	require.NoError(t, err)

	assert.Len(t, created.Code, party.DefaultPolicy().CodeLength)
	for _, r := range created.Code {
		assert.True(t, strings.ContainsRune(party.CodeAlphabet, r))
	}
	assert.Equal(t, "a", created.HostID)
	require.Len(t, created.Members, 1)
	assert.True(t, created.Members[0].IsHost)
	assert.Equal(t, avatar, *created.Members[0].AvatarURL)
	assert.Equal(t, 0.0, created.Playback.Position)
	assert.False(t, created.Playback.IsPlaying)

	got, err := s.GetParty(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, created.Code, got.Code)
	assert.Equal(t, "show-1", got.ContentID)
	assert.Equal(t, domain.ContentKindSeries, got.ContentKind)
	assert.Equal(t, episode, *got.EpisodeID)
	assert.True(t, clock.Now().Equal(got.CreatedAt))

	_, err = s.GetParty(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, party.ErrPartyNotFound)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testCodeCollision(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s, _, core := setup(t, newStore)
	core.Codes = &seqGenerator{codes: []string{"AAAAAA", "AAAAAA", "BBBBBB"}}

	first := createParty(t, ctx, s)
	second := createParty(t, ctx, s)
	assert.Equal(t, "AAAAAA", first.Code)
	assert.Equal(t, "BBBBBB", second.Code)

	core.Codes = &seqGenerator{codes: []string{"AAAAAA"}}
	_, err := s.CreateParty(ctx, &party.CreatePartyParams{ContentID: "M1", ContentKind: domain.ContentKindMovie, HostID: "x"})
	assert.ErrorIs(t, err, party.ErrCodeSpaceExhausted)
}

func testJoinTwice(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s, clock, _ := setup(t, newStore)
	p := createParty(t, ctx, s)

	clock.Advance(time.Second)
	join(t, ctx, s, p.Code, "b")
	clock.Advance(time.Second)
	got := join(t, ctx, s, p.Code, "b")

	require.Len(t, got.Members, 2)
	b, ok := got.Member("b")
	require.True(t, ok)
	assert.False(t, b.IsHost)
	assert.True(t, clock.Now().Equal(b.LastSeen))
	assert.True(t, clock.Now().Equal(got.LastActivity))

	_, err := s.JoinParty(ctx, &party.JoinPartyParams{Code: "NOPE22", UserID: "b"})
	assert.ErrorIs(t, err, party.ErrPartyNotFound)
}

func testHostMigration(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s, _, _ := setup(t, newStore)
	p := createParty(t, ctx, s)
	join(t, ctx, s, p.Code, "b")
	join(t, ctx, s, p.Code, "c")

	res, err := s.LeaveParty(ctx, p.Code, "a")
	require.NoError(t, err)
	assert.Equal(t, party.LeaveResult{Left: true, Removed: false, NewHostID: "b"}, res)

	got, err := s.GetParty(ctx, p.Code)
	require.NoError(t, err)
	assert.Equal(t, "b", got.HostID)
	hosts := 0
	for _, m := range got.Members {
		if m.IsHost {
			hosts++
			assert.Equal(t, "b", m.ID)
		}
	}
	assert.Equal(t, 1, hosts)

	_, err = s.UpdatePlayback(ctx, &party.UpdatePlaybackParams{Code: p.Code, UserID: "b", Position: 10, IsPlaying: true})
	assert.NoError(t, err, "new host must be able to drive playback")

	res, err = s.LeaveParty(ctx, p.Code, "a")
	require.NoError(t, err)
	assert.False(t, res.Left)
}

func testSoleMemberLeaves(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s, _, _ := setup(t, newStore)
	p := createParty(t, ctx, s)

	res, err := s.LeaveParty(ctx, p.Code, "a")
	require.NoError(t, err)
	assert.True(t, res.Left)
	assert.True(t, res.Removed)

	_, err = s.GetParty(ctx, p.Code)
	assert.ErrorIs(t, err, party.ErrPartyNotFound)

	_, err = s.LeaveParty(ctx, p.Code, "a")
	assert.ErrorIs(t, err, party.ErrPartyNotFound)
}

func testPlayback(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s, clock, _ := setup(t, newStore)
	p := createParty(t, ctx, s)
	join(t, ctx, s, p.Code, "b")

	clock.Advance(5 * time.Second)
	pb, err := s.UpdatePlayback(ctx, &party.UpdatePlaybackParams{Code: p.Code, UserID: "a", Position: 120, IsPlaying: true})
	require.NoError(t, err)
	assert.Equal(t, 120.0, pb.Position)
	assert.True(t, pb.IsPlaying)
	assert.True(t, clock.Now().Equal(pb.UpdatedAt))

	_, err = s.UpdatePlayback(ctx, &party.UpdatePlaybackParams{Code: p.Code, UserID: "b", Position: 3, IsPlaying: false})
	assert.ErrorIs(t, err, domain.ErrNotHost)

	got, err := s.GetParty(ctx, p.Code)
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.Playback.Position, "rejected sync must not change playback")
	assert.True(t, got.Playback.IsPlaying)

	_, err = s.UpdatePlayback(ctx, &party.UpdatePlaybackParams{Code: "NOPE22", UserID: "a"})
	assert.ErrorIs(t, err, party.ErrPartyNotFound)
}

func testChat(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s, clock, _ := setup(t, newStore)
	p := createParty(t, ctx, s)
	join(t, ctx, s, p.Code, "b")

	_, err := s.AddChatMessage(ctx, &party.AddChatMessageParams{Code: p.Code, UserID: "x", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotMember)

	var posted []domain.ChatMessage
	for i, author := range []string{"a", "b", "a", "b"} {
		clock.Advance(time.Second)
		msg, err := s.AddChatMessage(ctx, &party.AddChatMessageParams{
			Code:   p.Code,
			UserID: author,
			Name:   author,
			Text:   fmt.Sprintf("  msg %d  ", i),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, fmt.Sprintf("msg %d", i), msg.Text)
		posted = append(posted, msg)
	}

	all, err := s.GetChatMessages(ctx, p.Code, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := range all {
		assert.Equal(t, posted[i].ID, all[i].ID)
	}

	since := posted[1].CreatedAt
	delta, err := s.GetChatMessages(ctx, p.Code, &since)
	require.NoError(t, err)
	require.Len(t, delta, 2)
	assert.Equal(t, posted[2].ID, delta[0].ID)
	assert.Equal(t, posted[3].ID, delta[1].ID)

	_, err = s.GetChatMessages(ctx, "NOPE22", nil)
	assert.ErrorIs(t, err, party.ErrPartyNotFound)
}

func testChatLimit(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s, clock, _ := setup(t, newStore)
	p := createParty(t, ctx, s)

	for i := 0; i < 130; i++ {
		clock.Advance(time.Millisecond)
		_, err := s.AddChatMessage(ctx, &party.AddChatMessageParams{Code: p.Code, UserID: "a", Text: fmt.Sprint(i)})
		require.NoError(t, err)
	}

	all, err := s.GetChatMessages(ctx, p.Code, nil)
	require.NoError(t, err)
	require.Len(t, all, 100)
	assert.Equal(t, "30", all[0].Text)
	assert.Equal(t, "129", all[99].Text)
}

func testExpiry(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s, clock, _ := setup(t, newStore)
	p := createParty(t, ctx, s)

	clock.Advance(2*time.Hour - time.Second)
	_, err := s.GetParty(ctx, p.Code)
	require.NoError(t, err, "party must still be alive inside the expiry window")

	clock.Advance(2 * time.Second)
	_, err = s.GetParty(ctx, p.Code)
	assert.ErrorIs(t, err, party.ErrPartyNotFound)

	_, err = s.JoinParty(ctx, &party.JoinPartyParams{Code: p.Code, UserID: "b"})
	assert.ErrorIs(t, err, party.ErrPartyNotFound)
}

func testSweep(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s, clock, _ := setup(t, newStore)

	stale := createParty(t, ctx, s)
	clock.Advance(time.Hour)
	idle := createParty(t, ctx, s)
	join(t, ctx, s, idle.Code, "b")

	clock.Advance(20 * time.Second)
	_, err := s.TouchMember(ctx, idle.Code, "b")
	require.NoError(t, err)

	clock.Advance(15 * time.Second)
	res, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DroppedMembers)
	assert.Empty(t, res.ExpiredParties)

	got, err := s.GetParty(ctx, idle.Code)
	require.NoError(t, err)
	require.Len(t, got.Members, 1)
	assert.Equal(t, "b", got.HostID)
	assert.True(t, got.Members[0].IsHost)

	// stale has been idle for its whole life: host dropped, party emptied.
	_, err = s.GetParty(ctx, stale.Code)
	assert.ErrorIs(t, err, party.ErrPartyNotFound)

	clock.Advance(time.Minute)
	res, err = s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{idle.Code}, res.EmptiedParties)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func testTouch(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s, clock, _ := setup(t, newStore)
	p := createParty(t, ctx, s)

	clock.Advance(time.Minute)
	got, err := s.TouchMember(ctx, p.Code, "a")
	require.NoError(t, err)
	assert.True(t, clock.Now().Equal(got.Members[0].LastSeen))

	_, err = s.TouchMember(ctx, p.Code, "stranger")
	assert.ErrorIs(t, err, domain.ErrNotMember)
}

func testConcurrentMembership(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s, _, _ := setup(t, newStore)
	p := createParty(t, ctx, s)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", w)
			for i := 0; i < 10; i++ {
				switch i % 3 {
				case 0, 1:
					_, err := s.JoinParty(ctx, &party.JoinPartyParams{Code: p.Code, UserID: userID, Name: userID})
					assert.NoError(t, err)
				default:
					_, err := s.LeaveParty(ctx, p.Code, userID)
					assert.NoError(t, err)
				}
				_, _ = s.AddChatMessage(ctx, &party.AddChatMessageParams{Code: p.Code, UserID: userID, Text: "x"})
			}
		}()
	}
	wg.Wait()

	got, err := s.GetParty(ctx, p.Code)
	require.NoError(t, err)

	seen := map[string]bool{}
	hosts := 0
	for _, m := range got.Members {
		assert.False(t, seen[m.ID], "duplicate member %s", m.ID)
		seen[m.ID] = true
		if m.IsHost {
			hosts++
		}
	}
	assert.Equal(t, 1, hosts)
	assert.Equal(t, "a", got.HostID)
	assert.Len(t, got.Members, 9)

	msgs, err := s.GetChatMessages(ctx, p.Code, nil)
	require.NoError(t, err)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].CreatedAt.After(msgs[i-1].CreatedAt))
	}
}
