package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 5000 {
		t.Fatalf("expected default port 5000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected default gin mode release, got %q", cfg.GinMode)
	}
	if cfg.DropWindow != 24*time.Hour || cfg.NoteTTL != 24*time.Hour || !cfg.SeedDemo {
		t.Fatalf("unexpected windows drop=%v ttl=%v", cfg.DropWindow, cfg.NoteTTL)
	}
}

func TestLoadConfigFromEnv_MissingSecret(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{
		"MASTER_SECRET":       "x",
		"PORT":                "1234",
		"DROP_WINDOW_SECONDS": "60",
		"NOTE_TTL_SECONDS":    "120",
		"STATE_FILE":          "/tmp/state.json",
		"SEED_DEMO":           "false",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected port 1234, got %d", cfg.Port)
	}
	if cfg.DropWindow != time.Minute || cfg.NoteTTL != 2*time.Minute || cfg.StateFile != "/tmp/state.json" || cfg.SeedDemo {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigFromEnv_InvalidWindow(t *testing.T) {
	if _, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x", "DROP_WINDOW_SECONDS": "-1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadClientConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadClientConfigFromEnv(mapEnv{"HOME": "/home/u"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("unexpected api url %q", cfg.APIURL)
	}
	if cfg.StateDir != "/home/u/.dropnote" || cfg.CredentialFilePath() != "/home/u/.dropnote/credential.json" {
		t.Fatalf("unexpected state dir %q", cfg.StateDir)
	}
	if cfg.CredentialStore != CredentialFile || cfg.HTTPTimeout != DefaultHTTPTimeout {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.LogLevel != logrus.WarnLevel {
		t.Fatalf("unexpected log level %v", cfg.LogLevel)
	}
}

func TestLoadClientConfigFromEnv_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dropnote.yaml")
	yaml := "api_url: https://notes.example.com/\ncredential_store: memory\nhttp_timeout_seconds: 3\nlog_level: debug\nlive: true\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadClientConfigFromEnv(mapEnv{
		"DROPNOTE_CONFIG":  path,
		"DROPNOTE_API_URL": "http://localhost:9000",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIURL != "http://localhost:9000" {
		t.Fatalf("env must win over yaml, got %q", cfg.APIURL)
	}
	if cfg.CredentialStore != CredentialMemory || cfg.HTTPTimeout != 3*time.Second || !cfg.Live {
		t.Fatalf("expected yaml values, got %+v", cfg)
	}
	if cfg.LogLevel != logrus.DebugLevel {
		t.Fatalf("unexpected log level %v", cfg.LogLevel)
	}
}

func TestLoadClientConfigFromEnv_Invalid(t *testing.T) {
	cases := []mapEnv{
		{"DROPNOTE_API_URL": "localhost:5000"},
		{"DROPNOTE_CREDENTIAL_STORE": "keychain"},
		{"DROPNOTE_CREDENTIAL_STORE": "redis"},
		{"DROPNOTE_HTTP_TIMEOUT_SECONDS": "zero"},
		{"DROPNOTE_LOG_LEVEL": "loud"},
		{"DROPNOTE_LIVE": "maybe"},
		{"DROPNOTE_CONFIG": "/does/not/exist.yaml"},
	}
	for _, env := range cases {
		if _, err := LoadClientConfigFromEnv(env); err == nil {
			t.Fatalf("expected error for %v", env)
		}
	}
}

func TestLoadDotEnv_SkipsMissingAndKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DROPNOTE_DOTENV_A=from-file\nDROPNOTE_DOTENV_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("DROPNOTE_DOTENV_B", "from-env")
	t.Setenv("DROPNOTE_DOTENV_A", "")
	os.Unsetenv("DROPNOTE_DOTENV_A")

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("DROPNOTE_DOTENV_A"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("DROPNOTE_DOTENV_B"); got != "from-env" {
		t.Fatalf("existing variable must win, got %q", got)
	}
}
