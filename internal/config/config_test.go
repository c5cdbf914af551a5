package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("ROOMIES_TOKEN_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBPath != "roomies.db" {
		t.Errorf("port/db = %s/%s", cfg.Port, cfg.DBPath)
	}
	if cfg.StoreTimeout != 10*time.Second {
		t.Errorf("store timeout = %s, want 10s", cfg.StoreTimeout)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "roomies.yaml", `
port: "9000"
db_path: /var/lib/roomies.db
log_format: json
store_timeout: 3s
s3:
  bucket: proofs
  public_url: https://cdn.example.com/proofs
`)
	t.Setenv(FileEnv, yamlPath)
	t.Setenv("ROOMIES_TOKEN_SECRET", "from-env")
	t.Setenv("ROOMIES_PORT", "9100")

	cfg, err := Load(filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("port = %s, want env value 9100", cfg.Port)
	}
	if cfg.DBPath != "/var/lib/roomies.db" {
		t.Errorf("db path = %s, want yaml value", cfg.DBPath)
	}
	if cfg.LogFormat != "json" || cfg.StoreTimeout != 3*time.Second {
		t.Errorf("log format/timeout = %s/%s", cfg.LogFormat, cfg.StoreTimeout)
	}
	if cfg.S3.Bucket != "proofs" || cfg.S3.PublicURL != "https://cdn.example.com/proofs" {
		t.Errorf("s3 = %+v", cfg.S3)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "ROOMIES_TOKEN_SECRET=dotenv-secret\nROOMIES_JOIN_RATE_LIMIT=3\n")
	t.Setenv(FileEnv, "")
	// Registered so t.Setenv restores them after godotenv sets them.
	t.Setenv("ROOMIES_TOKEN_SECRET", "")
	t.Setenv("ROOMIES_JOIN_RATE_LIMIT", "")
	os.Unsetenv("ROOMIES_TOKEN_SECRET")
	os.Unsetenv("ROOMIES_JOIN_RATE_LIMIT")

	cfg, err := Load(envPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TokenSecret != "dotenv-secret" || cfg.JoinRateLimit != 3 {
		t.Errorf("secret/limit = %q/%d", cfg.TokenSecret, cfg.JoinRateLimit)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"no secret", map[string]string{"ROOMIES_TOKEN_SECRET": ""}},
		{"bad timeout", map[string]string{"ROOMIES_TOKEN_SECRET": "x", "ROOMIES_STORE_TIMEOUT": "soon"}},
		{"zero rate", map[string]string{"ROOMIES_TOKEN_SECRET": "x", "ROOMIES_JOIN_RATE_LIMIT": "0"}},
		{"bad format", map[string]string{"ROOMIES_TOKEN_SECRET": "x", "ROOMIES_LOG_FORMAT": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(FileEnv, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(missing); err == nil {
				t.Error("expected error")
			}
		})
	}
}
