package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Messaging.OutboxDrainInterval != 5*time.Second {
		t.Errorf("drain interval = %v, want 5s", cfg.Messaging.OutboxDrainInterval)
	}
	if !cfg.Inventory.AutoReorderAlerts {
		t.Error("auto reorder alerts should default on")
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boxworks.yaml")
	yamlDoc := []byte("web:\n  port: 9100\ndatabase:\n  driver: postgres\n  postgres:\n    host: db.internal\n")
	if err := os.WriteFile(path, yamlDoc, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOXWORKS_POSTGRES_HOST", "db.override")
	t.Setenv("BOXWORKS_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Web.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Web.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Database.Postgres.Host != "db.override" {
		t.Errorf("host = %q, want env override", cfg.Database.Postgres.Host)
	}
	if cfg.Database.Postgres.Port != 5432 {
		t.Errorf("postgres port = %d, want default 5432", cfg.Database.Postgres.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Defaults()
	cfg.Messaging.Backend = "mqtt"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Messaging.Backend != "mqtt" {
		t.Errorf("backend = %q, want mqtt", got.Messaging.Backend)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	if l := NewLogger(LogConfig{Level: "warn", Format: "text"}); l.GetLevel() != logrus.WarnLevel {
		t.Errorf("level = %v, want warn", l.GetLevel())
	}
	if l := NewLogger(LogConfig{Level: "bogus"}); l.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info fallback", l.GetLevel())
	}
}
