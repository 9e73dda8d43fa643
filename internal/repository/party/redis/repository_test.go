package redis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/party/internal/domain"
	"github.com/sharetube/party/internal/repository/party"
	"github.com/sharetube/party/internal/repository/party/partytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*repo, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	return NewRepo(rc, party.DefaultPolicy(), slog.Default()), s
}

func TestRepo(t *testing.T) {
	partytest.Run(t, func(t *testing.T) (partytest.Store, *party.Core) {
		r, _ := newTestRepo(t)
		return r, &r.Core
	})
}

func TestPartyKeyCarriesTTL(t *testing.T) {
	ctx := context.Background()
	r, s := newTestRepo(t)

	p, err := r.CreateParty(ctx, &party.CreatePartyParams{ContentID: "M1", ContentKind: domain.ContentKindMovie, HostID: "a"})
	require.NoError(t, err)

	key := r.getPartyKey(p.Code)
	require.True(t, s.Exists(key))
	assert.Equal(t, 2*time.Hour, s.TTL(key))

	s.FastForward(2*time.Hour + time.Second)
	_, err = r.GetParty(ctx, p.Code)
	assert.ErrorIs(t, err, party.ErrPartyNotFound)
}

func TestLastLeaveDeletesKey(t *testing.T) {
	ctx := context.Background()
	r, s := newTestRepo(t)

	p, err := r.CreateParty(ctx, &party.CreatePartyParams{ContentID: "M1", ContentKind: domain.ContentKindMovie, HostID: "a"})
	require.NoError(t, err)

	res, err := r.LeaveParty(ctx, p.Code, "a")
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.False(t, s.Exists(r.getPartyKey(p.Code)))
}

func TestCorruptDocumentFailsOnlyThatParty(t *testing.T) {
	ctx := context.Background()
	r, s := newTestRepo(t)

	good, err := r.CreateParty(ctx, &party.CreatePartyParams{ContentID: "M1", ContentKind: domain.ContentKindMovie, HostID: "a"})
	require.NoError(t, err)
	require.NoError(t, s.Set(r.getPartyKey("BROKEN"), "{not json"))

	_, err = r.GetParty(ctx, "BROKEN")
	require.Error(t, err)
	assert.NotErrorIs(t, err, party.ErrPartyNotFound)

	_, err = r.GetParty(ctx, good.Code)
	assert.NoError(t, err)

	_, err = r.SweepExpired(ctx)
	assert.NoError(t, err, "a corrupt document must not abort the sweep")
}
