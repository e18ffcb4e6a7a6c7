package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 0\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Pipeline.StageTimeoutSec != 30 || cfg.Pipeline.OverallTimeoutSec != 120 {
		t.Errorf("pipeline timeouts = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.MaxUploadSizeBytes != 10<<20 {
		t.Errorf("max upload = %d", cfg.Pipeline.MaxUploadSizeBytes)
	}
	if len(cfg.OCR.Languages) != 1 || cfg.OCR.Languages[0] != "eng" {
		t.Errorf("ocr languages = %v", cfg.OCR.Languages)
	}
	if cfg.SQLite.Path != "historify.db" {
		t.Errorf("sqlite path = %q", cfg.SQLite.Path)
	}
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	path := writeConfig(t, `
openai:
  apiKey: from-file
postgres:
  host: db.example.com
  password: from-file
`)
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("POSTGRES_PASSWORD", "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.OpenAI.APIKey != "from-env" {
		t.Errorf("openai api key = %q", cfg.OpenAI.APIKey)
	}
	if cfg.Postgres.Password != "env-secret" {
		t.Errorf("postgres password = %q", cfg.Postgres.Password)
	}
	if cfg.Postgres.Host != "db.example.com" {
		t.Errorf("postgres host = %q", cfg.Postgres.Host)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{}
	cfg.Postgres.Host = "db.example.com"
	cfg.Postgres.Port = 5432
	cfg.Postgres.User = "historify"
	cfg.Postgres.Password = "secret"
	cfg.Postgres.Name = "analyses"

	want := "host=db.example.com port=5432 user=historify password=secret dbname=analyses sslmode=require"
	if got := cfg.PostgresDSN(); got != want {
		t.Errorf("dsn = %q", got)
	}
}

func TestMySQLDSNEnablesParseTime(t *testing.T) {
	cfg := &Config{}
	cfg.MySQL.Host = "127.0.0.1"
	cfg.MySQL.Port = 3306
	cfg.MySQL.User = "root"
	cfg.MySQL.Password = "secret"
	cfg.MySQL.Name = "analyses"

	want := "root:secret@tcp(127.0.0.1:3306)/analyses?parseTime=true&charset=utf8mb4&loc=UTC"
	if got := cfg.MySQLDSN(); got != want {
		t.Errorf("dsn = %q", got)
	}
}
