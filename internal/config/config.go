package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config configures the development note service.
type Config struct {
	Port         int
	MasterSecret string
	GinMode      string
	TLSCertFile  string
	TLSKeyFile   string
	TokenExpiry  time.Duration
	DropWindow   time.Duration
	NoteTTL      time.Duration
	StateFile    string
	SeedDemo     bool
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:        5000,
		GinMode:     "release",
		TokenExpiry: 7 * 24 * time.Hour,
		DropWindow:  24 * time.Hour,
		NoteTTL:     24 * time.Hour,
		SeedDemo:    true,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return Config{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	cfg.StateFile = env.Getenv("STATE_FILE")

	if raw := env.Getenv("SEED_DEMO"); raw != "" {
		seed, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SEED_DEMO")
		}
		cfg.SeedDemo = seed
	}

	var err error
	if cfg.TokenExpiry, err = secondsFromEnv(env, "TOKEN_EXPIRY_SECONDS", cfg.TokenExpiry); err != nil {
		return Config{}, err
	}
	if cfg.DropWindow, err = secondsFromEnv(env, "DROP_WINDOW_SECONDS", cfg.DropWindow); err != nil {
		return Config{}, err
	}
	if cfg.NoteTTL, err = secondsFromEnv(env, "NOTE_TTL_SECONDS", cfg.NoteTTL); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func secondsFromEnv(env Env, key string, def time.Duration) (time.Duration, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return def, nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return time.Duration(seconds) * time.Second, nil
}
