package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig("")
	if cfg.Web.Port != 3002 {
		t.Fatalf("port = %d, want 3002", cfg.Web.Port)
	}
	if cfg.WhatsApp.MaxReconnectAttempts != 5 || cfg.WhatsApp.ReconnectDelaySec != 5 {
		t.Fatalf("reconnect defaults = %+v", cfg.WhatsApp)
	}
	if cfg.Database.Type != "sqlite" {
		t.Fatalf("db type = %q", cfg.Database.Type)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "baileys.yml")
	data := []byte("web:\n  port: 4100\nwhatsapp:\n  max_reconnect_attempts: 9\n")
	if err := os.WriteFile(cfile, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := LoadConfig(cfile)
	if cfg.Web.Port != 4100 {
		t.Fatalf("port = %d, want 4100", cfg.Web.Port)
	}
	if cfg.WhatsApp.MaxReconnectAttempts != 9 {
		t.Fatalf("max attempts = %d, want 9", cfg.WhatsApp.MaxReconnectAttempts)
	}
	// Untouched sections keep their defaults.
	if cfg.WhatsApp.ConnectWaitSec != 10 {
		t.Fatalf("connect wait = %d, want 10", cfg.WhatsApp.ConnectWaitSec)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "5005")
	t.Setenv("MAX_RECONNECT_ATTEMPTS", "2")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := LoadConfig("")
	if cfg.Web.Port != 5005 {
		t.Fatalf("port = %d, want env override", cfg.Web.Port)
	}
	if cfg.WhatsApp.MaxReconnectAttempts != 2 {
		t.Fatalf("max attempts = %d, want 2", cfg.WhatsApp.MaxReconnectAttempts)
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.Web.AllowedOrigins)
	}
}

func TestLoadConfigOriginsOverrideKeepsDefaults(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://override.example")

	cfg := LoadConfig("")
	if len(cfg.Web.AllowedOrigins) != 1 || cfg.Web.AllowedOrigins[0] != "https://override.example" {
		t.Fatalf("origins = %v", cfg.Web.AllowedOrigins)
	}

	// The override must not write through to the package defaults.
	if got := DefaultAppConfig.Web.AllowedOrigins[0]; got != "http://localhost:5173" {
		t.Fatalf("default origins corrupted: %v", DefaultAppConfig.Web.AllowedOrigins)
	}

	t.Setenv("ALLOWED_ORIGINS", "")
	fresh := LoadConfig("")
	if len(fresh.Web.AllowedOrigins) != 3 || fresh.Web.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("later load sees origins = %v", fresh.Web.AllowedOrigins)
	}
}
