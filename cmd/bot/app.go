package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"voltgo"
)

const (
	envConfigFile         = "VOLTGO_CONFIG_FILE"
	envToken              = "VOLTGO_TOKEN"
	defaultConfigFilePath = "config/bot.json"
)

type appConfig struct {
	logLevel          slog.Level
	token             string
	apiBase           string
	gatewayURL        string
	messageCacheLimit int
	heartbeatInterval time.Duration
}

type fileConfig struct {
	LogLevel          string `json:"log_level"`
	Token             string `json:"token"`
	APIBase           string `json:"api_base"`
	GatewayURL        string `json:"gateway_url"`
	MessageCacheLimit *int   `json:"message_cache_limit"`
	HeartbeatInterval string `json:"heartbeat_interval"`
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))

	options := []voltgo.Option{
		voltgo.WithLogger(logger),
	}
	if cfg.apiBase != "" {
		options = append(options, voltgo.WithAPIBase(cfg.apiBase))
	}
	if cfg.gatewayURL != "" {
		options = append(options, voltgo.WithGatewayURL(cfg.gatewayURL))
	}
	if cfg.messageCacheLimit > 0 {
		options = append(options, voltgo.WithMessageCacheLimit(cfg.messageCacheLimit))
	}
	if cfg.heartbeatInterval > 0 {
		options = append(options, voltgo.WithHeartbeatInterval(cfg.heartbeatInterval))
	}

	client := voltgo.New(options...)
	registerListeners(client, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Run(ctx, cfg.token); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run client: %w", err)
	}

	return nil
}

func registerListeners(client *voltgo.Client, logger *slog.Logger) {
	client.Listen(string(voltgo.EventReady), func(ctx context.Context, event voltgo.Event) error {
		ready, ok := event.(*voltgo.ReadyEvent)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", event)
		}
		logger.InfoContext(ctx, "session ready",
			"users", len(ready.Users),
			"servers", len(ready.Servers),
			"channels", len(ready.Channels),
		)

		return nil
	})

	client.Listen(string(voltgo.EventMessage), func(ctx context.Context, event voltgo.Event) error {
		created, ok := event.(*voltgo.MessageEvent)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", event)
		}
		if self, known := client.Self(); known && self.ID == created.Message.AuthorID {
			return nil
		}
		if strings.TrimSpace(created.Message.Content) != "ping" {
			return nil
		}

		if _, err := client.SendMessage(ctx, created.Message.ChannelID, "pong"); err != nil {
			return fmt.Errorf("reply to ping: %w", err)
		}

		return nil
	})
}

func loadConfig() (appConfig, error) {
	cfg := appConfig{logLevel: slog.LevelInfo}

	configFile := strings.TrimSpace(os.Getenv(envConfigFile))
	if configFile == "" {
		configFile = defaultConfigFilePath
	}

	data, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err := applyConfigFile(&cfg, configFile, data); err != nil {
			return appConfig{}, err
		}
	case errors.Is(err, os.ErrNotExist):
		// Token-from-env operation needs no config file.
	default:
		return appConfig{}, fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if token := strings.TrimSpace(os.Getenv(envToken)); token != "" {
		cfg.token = token
	}
	if cfg.token == "" {
		return appConfig{}, fmt.Errorf("no token; set %s or token in %s", envToken, configFile)
	}

	return cfg, nil
}

func applyConfigFile(cfg *appConfig, path string, data []byte) error {
	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	cfg.token = strings.TrimSpace(parsed.Token)
	cfg.apiBase = strings.TrimSpace(parsed.APIBase)
	cfg.gatewayURL = strings.TrimSpace(parsed.GatewayURL)

	if parsed.MessageCacheLimit != nil {
		if *parsed.MessageCacheLimit <= 0 {
			return fmt.Errorf("parse message_cache_limit: must be > 0")
		}
		cfg.messageCacheLimit = *parsed.MessageCacheLimit
	}

	if rawInterval := strings.TrimSpace(parsed.HeartbeatInterval); rawInterval != "" {
		interval, err := time.ParseDuration(rawInterval)
		if err != nil {
			return fmt.Errorf("parse heartbeat_interval: %w", err)
		}
		if interval <= 0 {
			return fmt.Errorf("parse heartbeat_interval: must be > 0")
		}
		cfg.heartbeatInterval = interval
	}

	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
