package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is loaded from an optional YAML file and overridden by
// environment variables. Every deployment knob the service recognizes
// lives here.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// StoreDriver selects the metadata backend: memory, redis, restkv, or
	// postgres. Unreachable remote backends fall back to memory at startup.
	StoreDriver   string `yaml:"storeDriver"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	KVRestURL     string `yaml:"kvRestURL"`
	KVRestToken   string `yaml:"kvRestToken"`
	DatabaseURL   string `yaml:"databaseURL"`

	// StorageMode selects the blob relay: local or minio.
	StorageMode    string        `yaml:"storageMode"`
	UploadDir      string        `yaml:"uploadDir"`
	MinioEndpoint  string        `yaml:"minioEndpoint"`
	MinioAccessKey string        `yaml:"minioAccessKey"`
	MinioSecretKey string        `yaml:"minioSecretKey"`
	MinioBucket    string        `yaml:"minioBucket"`
	MinioUseSSL    bool          `yaml:"minioUseSSL"`
	PresignExpiry  time.Duration `yaml:"presignExpiry"`

	AllowedOrigins []string `yaml:"allowedOrigins"`

	// SessionDriver selects session persistence: memory, redis, or jwt.
	SessionDriver string        `yaml:"sessionDriver"`
	SessionSecret string        `yaml:"sessionSecret"`
	SessionTTL    time.Duration `yaml:"sessionTTL"`
	CookieSecure  bool          `yaml:"cookieSecure"`

	MaxUploadBytes int64 `yaml:"maxUploadBytes"`
}

// Load reads the YAML file when present, applies environment overrides, and
// validates. A missing file is not an error; env-only deployments are the
// production norm.
func Load(path string) (Config, error) {
	cfg := Config{
		Port:          "8080",
		LogLevel:      "info",
		StoreDriver:   "redis",
		RedisAddr:     "localhost:6379",
		StorageMode:   "local",
		UploadDir:     "uploads",
		SessionDriver: "memory",
		SessionTTL:    24 * time.Hour,
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.StoreDriver = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("KV_REST_URL"); v != "" {
		cfg.KVRestURL = v
	}
	if v := os.Getenv("KV_REST_TOKEN"); v != "" {
		cfg.KVRestToken = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("STORAGE_MODE"); v != "" {
		cfg.StorageMode = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("PRESIGN_EXPIRY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PresignExpiry = d
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("SESSION_DRIVER"); v != "" {
		cfg.SessionDriver = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = d
		}
	}
	if v := os.Getenv("COOKIE_SECURE"); v == "true" {
		cfg.CookieSecure = true
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
}

func validate(cfg Config) error {
	switch cfg.StoreDriver {
	case "memory", "redis":
	case "restkv":
		if cfg.KVRestURL == "" {
			return errors.New("config: kvRestURL is required for the restkv store driver")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for the postgres store driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", cfg.StoreDriver)
	}
	switch cfg.StorageMode {
	case "local":
		if cfg.UploadDir == "" {
			return errors.New("config: uploadDir is required for local storage")
		}
	case "minio":
		if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint, minioAccessKey, minioSecretKey, and minioBucket are required for minio storage")
		}
	default:
		return fmt.Errorf("config: unknown storage mode %q", cfg.StorageMode)
	}
	switch cfg.SessionDriver {
	case "memory", "redis":
	case "jwt":
		if cfg.SessionSecret == "" {
			return errors.New("config: sessionSecret is required for jwt sessions")
		}
	default:
		return fmt.Errorf("config: unknown session driver %q", cfg.SessionDriver)
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
