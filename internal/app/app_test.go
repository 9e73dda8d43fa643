package app

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	repo "github.com/sharetube/party/internal/repository/party"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Secret:        "secret",
		Host:          "127.0.0.1",
		Port:          8080,
		LogLevel:      "INFO",
		Store:         StoreMemory,
		PartyTTL:      2 * time.Hour,
		MemberTimeout: 30 * time.Second,
		ChatLimit:     100,
		ChatMaxLength: 500,
		CodeLength:    6,
		SweepInterval: 10 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(cfg *AppConfig)
		want   string
	}{
		{"no secret", func(cfg *AppConfig) { cfg.Secret = "" }, "secret"},
		{"bad port", func(cfg *AppConfig) { cfg.Port = 0 }, "port"},
		{"unknown store", func(cfg *AppConfig) { cfg.Store = "postgres" }, "store"},
		{"zero ttl", func(cfg *AppConfig) { cfg.PartyTTL = 0 }, "party ttl"},
		{"zero member timeout", func(cfg *AppConfig) { cfg.MemberTimeout = 0 }, "member timeout"},
		{"zero chat limit", func(cfg *AppConfig) { cfg.ChatLimit = 0 }, "chat limit"},
		{"short code", func(cfg *AppConfig) { cfg.CodeLength = 3 }, "code length"},
		{"zero sweep interval", func(cfg *AppConfig) { cfg.SweepInterval = 0 }, "sweep interval"},
		{"negative rate limit", func(cfg *AppConfig) { cfg.RateLimit = -1 }, "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	for _, store := range []string{StoreMemory, StoreRedis} {
		t.Run(store, func(t *testing.T) {
			cfg := validConfig()
			cfg.Store = store
			if store == StoreRedis {
				s := miniredis.RunT(t)
				cfg.RedisHost = s.Host()
				cfg.RedisPort = s.Server().Addr().Port
			}

			s, closeStore, err := newStore(cfg, slog.Default())
			require.NoError(t, err)
			defer closeStore()

			p, err := s.CreateParty(ctx, &repo.CreatePartyParams{
				ContentID:   "M1",
				ContentKind: "movie",
				HostID:      "A",
				HostName:    "A",
			})
			require.NoError(t, err)
			assert.Len(t, p.Code, cfg.CodeLength)

			count, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestNewStoreRedisUnavailable(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	cfg := validConfig()
	cfg.Store = StoreRedis
	cfg.RedisHost = s.Host()
	cfg.RedisPort = s.Server().Addr().Port
	s.Close()

	_, _, err = newStore(cfg, slog.Default())
	assert.Error(t, err)
}

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) SweepExpired(context.Context) error {
	s.calls.Add(1)
	return nil
}

func TestRunSweeper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sweeper := &countingSweeper{}

	done := make(chan struct{})
	go func() {
		runSweeper(ctx, sweeper, 5*time.Millisecond, slog.Default())
		close(done)
	}()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func waitServe(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
		return nil
	}
}

func TestServeReturnsListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	server := &http.Server{Addr: l.Addr().String(), Handler: http.NotFoundHandler()}
	sig := make(chan os.Signal, 1)

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), server, sig, slog.Default()) }()

	assert.Error(t, waitServe(t, done))
}

func TestServeStopsOnSignal(t *testing.T) {
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	sig := make(chan os.Signal, 1)

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), server, sig, slog.Default()) }()

	sig <- syscall.SIGTERM
	assert.NoError(t, waitServe(t, done))
}

func TestServeStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- serve(ctx, server, make(chan os.Signal), slog.Default()) }()

	cancel()
	assert.NoError(t, waitServe(t, done))
}
