package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL      = "http://localhost:5000"
	DefaultHTTPTimeout = 15 * time.Second
)

type CredentialBackend string

const (
	CredentialFile   CredentialBackend = "file"
	CredentialMemory CredentialBackend = "memory"
	CredentialRedis  CredentialBackend = "redis"
)

// ClientConfig configures the command line client.
type ClientConfig struct {
	APIURL          string            `yaml:"api_url"`
	StateDir        string            `yaml:"state_dir"`
	CredentialStore CredentialBackend `yaml:"credential_store"`
	RedisAddr       string            `yaml:"redis_addr"`
	RedisPassword   string            `yaml:"redis_password"`
	RedisPrefix     string            `yaml:"redis_prefix"`
	HTTPTimeout     time.Duration     `yaml:"-"`
	HTTPTimeoutSecs int               `yaml:"http_timeout_seconds"`
	LogLevel        logrus.Level      `yaml:"-"`
	LogLevelName    string            `yaml:"log_level"`
	Live            bool              `yaml:"live"`
}

// CredentialFilePath is where the file backend keeps the credential.
func (c ClientConfig) CredentialFilePath() string {
	return filepath.Join(c.StateDir, "credential.json")
}

func LoadClientConfig() (ClientConfig, error) {
	return LoadClientConfigFromEnv(osEnv{})
}

// LoadClientConfigFromEnv builds the client config from defaults, then the
// YAML file named by DROPNOTE_CONFIG, then DROPNOTE_* variables.
func LoadClientConfigFromEnv(env Env) (ClientConfig, error) {
	cfg := ClientConfig{
		APIURL:          DefaultAPIURL,
		CredentialStore: CredentialFile,
		RedisPrefix:     "dropnote:",
		LogLevelName:    "warning",
	}
	if home := env.Getenv("HOME"); home != "" {
		cfg.StateDir = filepath.Join(home, ".dropnote")
	} else {
		cfg.StateDir = ".dropnote"
	}

	if path := env.Getenv("DROPNOTE_CONFIG"); path != "" {
		if err := loadClientYAML(path, &cfg); err != nil {
			return ClientConfig{}, err
		}
	}

	if raw := env.Getenv("DROPNOTE_API_URL"); raw != "" {
		cfg.APIURL = raw
	}
	if raw := env.Getenv("DROPNOTE_STATE_DIR"); raw != "" {
		cfg.StateDir = raw
	}
	if raw := env.Getenv("DROPNOTE_CREDENTIAL_STORE"); raw != "" {
		cfg.CredentialStore = CredentialBackend(strings.ToLower(raw))
	}
	if raw := env.Getenv("DROPNOTE_REDIS_ADDR"); raw != "" {
		cfg.RedisAddr = raw
	}
	if raw := env.Getenv("DROPNOTE_REDIS_PASSWORD"); raw != "" {
		cfg.RedisPassword = raw
	}
	if raw := env.Getenv("DROPNOTE_REDIS_PREFIX"); raw != "" {
		cfg.RedisPrefix = raw
	}
	if raw := env.Getenv("DROPNOTE_HTTP_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return ClientConfig{}, fmt.Errorf("invalid DROPNOTE_HTTP_TIMEOUT_SECONDS")
		}
		cfg.HTTPTimeoutSecs = seconds
	}
	if raw := env.Getenv("DROPNOTE_LOG_LEVEL"); raw != "" {
		cfg.LogLevelName = raw
	}
	if raw := env.Getenv("DROPNOTE_LIVE"); raw != "" {
		live, err := strconv.ParseBool(raw)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("invalid DROPNOTE_LIVE")
		}
		cfg.Live = live
	}

	return cfg, cfg.finish()
}

func (c *ClientConfig) finish() error {
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("invalid api url %q", c.APIURL)
	}

	switch c.CredentialStore {
	case CredentialFile, CredentialMemory:
	case CredentialRedis:
		if c.RedisAddr == "" {
			return errors.New("DROPNOTE_REDIS_ADDR is required for the redis credential store")
		}
	default:
		return fmt.Errorf("unknown credential store %q", c.CredentialStore)
	}

	c.HTTPTimeout = DefaultHTTPTimeout
	if c.HTTPTimeoutSecs > 0 {
		c.HTTPTimeout = time.Duration(c.HTTPTimeoutSecs) * time.Second
	} else if c.HTTPTimeoutSecs < 0 {
		return fmt.Errorf("invalid http timeout %d", c.HTTPTimeoutSecs)
	}

	level, err := logrus.ParseLevel(c.LogLevelName)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	c.LogLevel = level
	return nil
}

func loadClientYAML(path string, cfg *ClientConfig) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read client config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse client config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env (%s): %w", path, err)
		}
	}
	return nil
}
