package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sharetube/party/internal/auth"
	"github.com/sharetube/party/internal/controller"
	repo "github.com/sharetube/party/internal/repository/party"
	"github.com/sharetube/party/internal/repository/party/inmemory"
	"github.com/sharetube/party/internal/repository/party/redis"
	"github.com/sharetube/party/internal/service/party"
	"github.com/sharetube/party/pkg/ctxlogger"
	"github.com/sharetube/party/pkg/redisclient"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type AppConfig struct {
	Secret         string        `json:"-"`
	JWTIssuer      string        `json:"jwt_issuer"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	LogLevel       string        `json:"log_level"`
	Store          string        `json:"store"`
	RedisPort      int           `json:"redis_port"`
	RedisHost      string        `json:"redis_host"`
	RedisPassword  string        `json:"-"`
	RedisDB        int           `json:"redis_db"`
	PartyTTL       time.Duration `json:"party_ttl"`
	MemberTimeout  time.Duration `json:"member_timeout"`
	ChatLimit      int           `json:"chat_limit"`
	ChatMaxLength  int           `json:"chat_max_length"`
	CodeLength     int           `json:"code_length"`
	SweepInterval  time.Duration `json:"sweep_interval"`
	AllowedOrigins []string      `json:"allowed_origins"`
	RateLimit      int           `json:"rate_limit"`
}

func (cfg *AppConfig) Validate() error {
	var errs []error

	if cfg.Secret == "" {
		errs = append(errs, errors.New("secret must be set"))
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", cfg.Port))
	}
	if cfg.Store != StoreMemory && cfg.Store != StoreRedis {
		errs = append(errs, fmt.Errorf("store must be %q or %q, got %q", StoreMemory, StoreRedis, cfg.Store))
	}
	if cfg.PartyTTL <= 0 {
		errs = append(errs, errors.New("party ttl must be positive"))
	}
	if cfg.MemberTimeout <= 0 {
		errs = append(errs, errors.New("member timeout must be positive"))
	}
	if cfg.ChatLimit < 1 {
		errs = append(errs, errors.New("chat limit must be greater than 0"))
	}
	if cfg.ChatMaxLength < 1 {
		errs = append(errs, errors.New("chat max length must be greater than 0"))
	}
	if cfg.CodeLength < 4 {
		errs = append(errs, errors.New("code length must be at least 4"))
	}
	if cfg.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	if cfg.RateLimit < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}

	return errors.Join(errs...)
}

func (cfg *AppConfig) policy() repo.Policy {
	return repo.Policy{
		PartyTTL:      cfg.PartyTTL,
		MemberTimeout: cfg.MemberTimeout,
		ChatLimit:     cfg.ChatLimit,
		CodeLength:    cfg.CodeLength,
	}
}

// newStore returns the configured party store and a func releasing its resources.
func newStore(cfg *AppConfig, logger *slog.Logger) (repo.Store, func(), error) {
	switch cfg.Store {
	case StoreRedis:
		rc, err := redisclient.NewRedisClient(&redisclient.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
		}

		return redis.NewRepo(rc, cfg.policy(), logger), func() { rc.Close() }, nil
	default:
		return inmemory.NewRepo(cfg.policy(), logger), func() {}, nil
	}
}

type iSweeper interface {
	SweepExpired(context.Context) error
}

// runSweeper calls SweepExpired every interval until ctx is done.
func runSweeper(ctx context.Context, s iSweeper, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepExpired(ctx); err != nil && ctx.Err() == nil {
				logger.ErrorContext(ctx, "failed to sweep parties", "error", err)
			}
		}
	}
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	store, closeStore, err := newStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	partyService := party.NewService(store, logger, &party.Config{
		ChatMaxLength: cfg.ChatMaxLength,
		NameMaxLength: 32,
	})
	controller := controller.NewController(partyService, auth.NewJWTResolver(cfg.Secret, cfg.JWTIssuer), logger, &controller.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           controller.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go runSweeper(sweepCtx, partyService, cfg.SweepInterval, logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)

	logger.InfoContext(ctx, "starting server", "address", server.Addr, "store", cfg.Store)

	return serve(ctx, server, sig, logger)
}

// serve runs server until a signal arrives on sig or ctx is done, then shuts
// it down gracefully. The shutdown goroutine exits with serve in every case.
func serve(ctx context.Context, server *http.Server, sig <-chan os.Signal, logger *slog.Logger) error {
	stopped := make(chan struct{})
	shutdownDone := make(chan struct{})

	// graceful shutdown
	go func() {
		defer close(shutdownDone)

		select {
		case <-stopped:
			return
		case <-sig:
		case <-ctx.Done():
		}

		shutdownCtx, c := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer c()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(shutdownCtx, "graceful shutdown failed, forcing exit", "error", err)
			server.Close()
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		close(stopped)
		<-shutdownDone
		return err
	}

	<-shutdownDone

	return nil
}
