package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/party/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	secret = configVar[string]{
		envKey:  "SERVER_SECRET",
		flagKey: "secret",
		usage:   "Secret used to verify identity tokens",
	}
	jwtIssuer = configVar[string]{
		envKey:       "SERVER_JWT_ISSUER",
		flagKey:      "jwt-issuer",
		defaultValue: "sharetube",
		usage:        "Expected identity token issuer",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	store = configVar[string]{
		envKey:       "SERVER_STORE",
		flagKey:      "store",
		defaultValue: app.StoreMemory,
		usage:        "Party store: memory or redis",
	}
	partyTTL = configVar[time.Duration]{
		envKey:       "SERVER_PARTY_TTL",
		flagKey:      "party-ttl",
		defaultValue: 2 * time.Hour,
		usage:        "Idle time after which a party expires",
	}
	memberTimeout = configVar[time.Duration]{
		envKey:       "SERVER_MEMBER_TIMEOUT",
		flagKey:      "member-timeout",
		defaultValue: 30 * time.Second,
		usage:        "Time without polls after which a member is dropped",
	}
	chatLimit = configVar[int]{
		envKey:       "SERVER_CHAT_LIMIT",
		flagKey:      "chat-limit",
		defaultValue: 100,
		usage:        "Number of chat messages kept per party",
	}
	chatMaxLength = configVar[int]{
		envKey:       "SERVER_CHAT_MAX_LENGTH",
		flagKey:      "chat-max-length",
		defaultValue: 500,
		usage:        "Maximum chat message length in characters",
	}
	codeLength = configVar[int]{
		envKey:       "SERVER_CODE_LENGTH",
		flagKey:      "code-length",
		defaultValue: 6,
		usage:        "Party code length",
	}
	sweepInterval = configVar[time.Duration]{
		envKey:       "SERVER_SWEEP_INTERVAL",
		flagKey:      "sweep-interval",
		defaultValue: 10 * time.Second,
		usage:        "Interval between expiry sweeps",
	}
	allowedOrigins = configVar[[]string]{
		envKey:       "SERVER_ALLOWED_ORIGINS",
		flagKey:      "allowed-origins",
		defaultValue: []string{"*"},
		usage:        "CORS allowed origins",
	}
	rateLimit = configVar[int]{
		envKey:       "SERVER_RATE_LIMIT",
		flagKey:      "rate-limit",
		defaultValue: 120,
		usage:        "Party API requests per user per minute, 0 disables",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:  "REDIS_PASSWORD",
		flagKey: "redis-password",
		usage:   "Redis password",
	}
	redisDB = configVar[int]{
		envKey:  "REDIS_DB",
		flagKey: "redis-db",
		usage:   "Redis database",
	}
)

func bind[T any](v configVar[T], define func(name string, value T, usage string) *T) {
	define(v.flagKey, v.defaultValue, v.usage)
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	bind(secret, pflag.String)
	bind(jwtIssuer, pflag.String)
	bind(port, pflag.Int)
	bind(host, pflag.String)
	bind(logLevel, pflag.String)
	bind(store, pflag.String)
	bind(partyTTL, pflag.Duration)
	bind(memberTimeout, pflag.Duration)
	bind(chatLimit, pflag.Int)
	bind(chatMaxLength, pflag.Int)
	bind(codeLength, pflag.Int)
	bind(sweepInterval, pflag.Duration)
	bind(allowedOrigins, pflag.StringSlice)
	bind(rateLimit, pflag.Int)
	bind(redisPort, pflag.Int)
	bind(redisHost, pflag.String)
	bind(redisPassword, pflag.String)
	bind(redisDB, pflag.Int)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	config := &app.AppConfig{
		Secret:         viper.GetString(secret.flagKey),
		JWTIssuer:      viper.GetString(jwtIssuer.flagKey),
		Host:           viper.GetString(host.flagKey),
		Port:           viper.GetInt(port.flagKey),
		LogLevel:       viper.GetString(logLevel.flagKey),
		Store:          viper.GetString(store.flagKey),
		PartyTTL:       viper.GetDuration(partyTTL.flagKey),
		MemberTimeout:  viper.GetDuration(memberTimeout.flagKey),
		ChatLimit:      viper.GetInt(chatLimit.flagKey),
		ChatMaxLength:  viper.GetInt(chatMaxLength.flagKey),
		CodeLength:     viper.GetInt(codeLength.flagKey),
		SweepInterval:  viper.GetDuration(sweepInterval.flagKey),
		AllowedOrigins: viper.GetStringSlice(allowedOrigins.flagKey),
		RateLimit:      viper.GetInt(rateLimit.flagKey),
		RedisPort:      viper.GetInt(redisPort.flagKey),
		RedisHost:      viper.GetString(redisHost.flagKey),
		RedisPassword:  viper.GetString(redisPassword.flagKey),
		RedisDB:        viper.GetInt(redisDB.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
