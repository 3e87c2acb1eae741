package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"coursehub/internal/app"
	"coursehub/internal/config"
	"coursehub/internal/server"
	"coursehub/internal/session"
	"coursehub/internal/util"
	"coursehub/pkg/storage"
	"coursehub/pkg/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.InitLogger(cfg.LogLevel)

	metadata := buildStore(cfg)
	relay := buildRelay(cfg)
	sessions, err := buildSessions(cfg)
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}

	appCore := app.New(metadata, relay)
	httpServer, err := server.New(server.Config{
		App:            appCore,
		Sessions:       sessions,
		AllowedOrigins: cfg.AllowedOrigins,
		CookieSecure:   cfg.CookieSecure,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("coursehub listening", "addr", addr, "store", cfg.StoreDriver, "storage", cfg.StorageMode)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "err", err)
	}
}

func configPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "config.yaml"
}

// buildStore connects the configured metadata backend, falling back to the
// in-memory store when a remote backend is unreachable at startup.
func buildStore(cfg config.Config) store.Store {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	switch cfg.StoreDriver {
	case "redis":
		s, err := store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err == nil {
			return s
		}
		slog.Warn("redis unreachable, using in-memory store", "addr", cfg.RedisAddr, "err", err)
	case "restkv":
		s, err := store.NewRestKVStore(ctx, cfg.KVRestURL, cfg.KVRestToken)
		if err == nil {
			return s
		}
		slog.Warn("kv endpoint unreachable, using in-memory store", "url", cfg.KVRestURL, "err", err)
	case "postgres":
		s, err := store.NewGormStore(cfg.DatabaseURL)
		if err == nil {
			return s
		}
		slog.Warn("postgres unreachable, using in-memory store", "err", err)
	}
	return store.NewMemoryStore()
}

// buildRelay connects the configured blob backend, falling back to local
// disk when MinIO is unreachable at startup.
func buildRelay(cfg config.Config) storage.Relay {
	if cfg.StorageMode == "minio" {
		relay, err := storage.NewMinioRelay(
			cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
			cfg.MinioBucket, cfg.MinioUseSSL, cfg.PresignExpiry,
		)
		if err == nil {
			return relay
		}
		slog.Warn("minio unreachable, using local file storage", "endpoint", cfg.MinioEndpoint, "err", err)
	}
	relay, err := storage.NewFileRelay(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to init local file storage: %v", err)
	}
	return relay
}

func buildSessions(cfg config.Config) (session.Store, error) {
	switch cfg.SessionDriver {
	case "redis":
		return session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL), nil
	case "jwt":
		return session.NewJWTStore(cfg.SessionSecret, cfg.SessionTTL)
	default:
		return session.NewMemoryStore(cfg.SessionTTL), nil
	}
}
