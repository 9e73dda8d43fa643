// Package synchronizer keeps one viewer's player in step with a party.
//
// A Synchronizer runs two loops. The poll loop fetches party state, detects
// role changes, delivers new chat and, for guests, moves the local player to
// the host's extrapolated position. The push loop runs only while the viewer
// is host and reports local playback to the server.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sharetube/party/pkg/partyclient"
	"golang.org/x/sync/errgroup"
)

var (
	ErrPartyEnded = errors.New("party ended")
	ErrRemoved    = errors.New("removed from party")
)

// Player is the local media player. Implementations must be safe for use
// from more than one goroutine.
type Player interface {
	Position() float64
	IsPlaying() bool
	Seek(position float64)
	Play()
	Pause()
}

type API interface {
	State(ctx context.Context, code string, since *time.Time) (partyclient.State, error)
	SyncPlayback(ctx context.Context, code string, position float64, isPlaying bool) (partyclient.Playback, error)
}

type Config struct {
	PollInterval  time.Duration
	PushInterval  time.Duration
	WatchInterval time.Duration
	// Tolerance is the drift allowed between the local player and the party
	// before a guest seeks or a host reports a move.
	Tolerance time.Duration

	// Callbacks run on the poll loop goroutine and never after Run returns.
	OnState      func(partyclient.State)
	OnChat       func([]partyclient.ChatMessage)
	OnRoleChange func(isHost bool)
	OnEnded      func(error)

	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		PollInterval:  1500 * time.Millisecond,
		PushInterval:  2 * time.Second,
		WatchInterval: 250 * time.Millisecond,
		Tolerance:     time.Second,
	}
}

type pushed struct {
	position  float64
	isPlaying bool
}

type Synchronizer struct {
	api    API
	player Player
	code   string
	userID string
	cfg    Config
	logger *slog.Logger

	// poll loop only
	since      *time.Time
	roleKnown  bool
	reportedAs bool

	mu         sync.Mutex
	isHost     bool
	lastPushed *pushed

	becameHost chan struct{}
}

func New(api API, player Player, code, userID string, cfg Config) *Synchronizer {
	defaults := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = defaults.PushInterval
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = defaults.WatchInterval
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = defaults.Tolerance
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Synchronizer{
		api:        api,
		player:     player,
		code:       code,
		userID:     userID,
		cfg:        cfg,
		logger:     logger.With("party_code", code, "user_id", userID),
		becameHost: make(chan struct{}, 1),
	}
}

func (s *Synchronizer) IsHost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isHost
}

// Run blocks until ctx is cancelled or the viewer can no longer take part.
// It returns nil on cancellation, ErrPartyEnded or ErrRemoved when the party
// is gone for this viewer, and the client error when authentication fails.
// Both loops have exited by the time Run returns. Run must be called once.
func (s *Synchronizer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.pollLoop(ctx) })
	g.Go(func() error { return s.pushLoop(ctx) })

	return g.Wait()
}

func (s *Synchronizer) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.poll(ctx); err != nil {
			if s.cfg.OnEnded != nil && (errors.Is(err, ErrPartyEnded) || errors.Is(err, ErrRemoved)) {
				s.cfg.OnEnded(err)
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Synchronizer) poll(ctx context.Context) error {
	state, err := s.api.State(ctx, s.code, s.since)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, partyclient.ErrPartyNotFound):
			return ErrPartyEnded
		case errors.Is(err, partyclient.ErrForbidden):
			return ErrRemoved
		case errors.Is(err, partyclient.ErrUnauthenticated):
			return fmt.Errorf("failed to poll party: %w", err)
		default:
			s.logger.WarnContext(ctx, "failed to poll party, retrying", "error", err)
			return nil
		}
	}

	isHost := state.Party.HostID == s.userID
	s.setRole(isHost)
	if !s.roleKnown || s.reportedAs != isHost {
		s.roleKnown, s.reportedAs = true, isHost
		s.logger.DebugContext(ctx, "role changed", "is_host", isHost)
		if s.cfg.OnRoleChange != nil {
			s.cfg.OnRoleChange(isHost)
		}
	}

	if !isHost {
		s.reconcile(state)
	}

	if n := len(state.Messages); n > 0 {
		last := state.Messages[n-1].CreatedAt
		s.since = &last
		if s.cfg.OnChat != nil {
			s.cfg.OnChat(state.Messages)
		}
	}

	if s.cfg.OnState != nil {
		s.cfg.OnState(state)
	}

	return nil
}

func (s *Synchronizer) setRole(isHost bool) {
	s.mu.Lock()
	promoted := isHost && !s.isHost
	s.isHost = isHost
	if promoted {
		s.lastPushed = nil
	}
	s.mu.Unlock()

	if promoted {
		select {
		case s.becameHost <- struct{}{}:
		default:
		}
	}
}

// ExpectedPosition is where the host's player is at serverTime given the
// last reported playback.
func ExpectedPosition(pb partyclient.Playback, serverTime time.Time) float64 {
	position := pb.Position
	if pb.IsPlaying {
		if elapsed := serverTime.Sub(pb.UpdatedAt); elapsed > 0 {
			position += elapsed.Seconds()
		}
	}

	return position
}

func (s *Synchronizer) reconcile(state partyclient.State) {
	pb := state.Party.Playback
	expected := ExpectedPosition(pb, state.ServerTime)

	if math.Abs(s.player.Position()-expected) > s.cfg.Tolerance.Seconds() {
		s.player.Seek(expected)
	}

	switch playing := s.player.IsPlaying(); {
	case pb.IsPlaying && !playing:
		s.player.Play()
	case !pb.IsPlaying && playing:
		s.player.Pause()
	}
}

func (s *Synchronizer) pushLoop(ctx context.Context) error {
	watch := time.NewTicker(s.cfg.WatchInterval)
	defer watch.Stop()
	push := time.NewTicker(s.cfg.PushInterval)
	defer push.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.becameHost:
			s.push(ctx, true, false)
		case <-watch.C:
			s.push(ctx, false, false)
		case <-push.C:
			s.push(ctx, false, true)
		}
	}
}

// push reports local playback when the viewer is host and force is set, the
// playing flag flipped since the last report, or checkMoved is set and the
// position moved beyond the tolerance.
func (s *Synchronizer) push(ctx context.Context, force, checkMoved bool) {
	s.mu.Lock()
	isHost, last := s.isHost, s.lastPushed
	s.mu.Unlock()
	if !isHost {
		return
	}

	position, isPlaying := s.player.Position(), s.player.IsPlaying()
	switch {
	case force, last == nil, last.isPlaying != isPlaying:
	case checkMoved && math.Abs(position-last.position) > s.cfg.Tolerance.Seconds():
	default:
		return
	}

	if _, err := s.api.SyncPlayback(ctx, s.code, position, isPlaying); err != nil {
		switch {
		case ctx.Err() != nil:
		case errors.Is(err, partyclient.ErrForbidden):
			s.logger.InfoContext(ctx, "no longer host")
			s.mu.Lock()
			s.isHost = false
			s.mu.Unlock()
		default:
			s.logger.WarnContext(ctx, "failed to push playback", "error", err)
		}
		return
	}

	s.mu.Lock()
	if s.isHost {
		s.lastPushed = &pushed{position: position, isPlaying: isPlaying}
	}
	s.mu.Unlock()
}
