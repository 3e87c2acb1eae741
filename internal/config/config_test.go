package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StoreDriver != "redis" || cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected store defaults: %+v", cfg)
	}
	if cfg.StorageMode != "local" || cfg.UploadDir != "uploads" {
		t.Fatalf("unexpected storage defaults: %+v", cfg)
	}
	if cfg.SessionDriver != "memory" || cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("unexpected session defaults: %+v", cfg)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "port: \"9090\"\nstoreDriver: memory\nallowedOrigins:\n  - https://app.example.com\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.StoreDriver != "memory" {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://app.example.com"}) {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: \"9090\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORT", "7070")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test, https://b.test,")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("env should win over file, got %q", cfg.Port)
	}
	if cfg.StoreDriver != "memory" {
		t.Fatalf("unexpected store driver: %q", cfg.StoreDriver)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("unexpected ttl: %v", cfg.SessionTTL)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://a.test", "https://b.test"}) {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.MaxUploadBytes != 1048576 {
		t.Fatalf("unexpected max upload bytes: %d", cfg.MaxUploadBytes)
	}
}

func TestValidateDriverRequirements(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"restkv without url", map[string]string{"STORE_DRIVER": "restkv"}},
		{"postgres without dsn", map[string]string{"STORE_DRIVER": "postgres"}},
		{"unknown store driver", map[string]string{"STORE_DRIVER": "etcd"}},
		{"minio without credentials", map[string]string{"STORAGE_MODE": "minio"}},
		{"unknown storage mode", map[string]string{"STORAGE_MODE": "tape"}},
		{"jwt without secret", map[string]string{"SESSION_DRIVER": "jwt"}},
		{"unknown session driver", map[string]string{"SESSION_DRIVER": "ldap"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
