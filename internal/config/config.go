// Package config loads the YAML configuration document plus an optional
// .env overlay for secrets, replacing the teacher's hand-written INI
// reader (readFile/parseINI below this point in the original) with the
// pattern progressdb-ProgressDB/server/pkg/config/config.go uses:
// gopkg.in/yaml.v3 for the document, environment variables (here via
// godotenv) for values that should not live in a tracked file.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AuthConfig configures the auth-role Listener.
type AuthConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	AuthVersion  uint32 `yaml:"auth_version"`
	RealmID      uint32 `yaml:"realm_id"`
	RealmGroupID uint32 `yaml:"realm_group_id"`
	AuthMessage  uint32 `yaml:"auth_message"`
}

// WorldConfig configures the world-role Listener.
type WorldConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	AuthVersion  uint32 `yaml:"auth_version"`
	RealmID      uint32 `yaml:"realm_id"`
	RealmGroupID uint32 `yaml:"realm_group_id"`
	AuthMessage  uint32 `yaml:"auth_message"`
}

// PersistenceConfig configures the QuestPersistence MySQL adapter and
// scheduler cadence. MySQLPassword is intentionally absent here; it is
// loaded from the QUEST_DB_PASSWORD environment variable by Load, the same
// split the teacher's database.go draws between tracked config values and
// runtime secrets.
type PersistenceConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	MySQLHost       string `yaml:"mysql_host"`
	MySQLPort       int    `yaml:"mysql_port"`
	MySQLUser       string `yaml:"mysql_user"`
	MySQLDatabase   string `yaml:"mysql_database"`
}

// RateLimitConfig configures the pre-auth Rate Limiter.
type RateLimitConfig struct {
	WindowMs int `yaml:"window_ms"`
	Limit    int `yaml:"limit"`
}

// Config is the full process configuration document.
type Config struct {
	Auth        AuthConfig        `yaml:"auth"`
	World       WorldConfig       `yaml:"world"`
	Persistence PersistenceConfig `yaml:"persistence"`
	RateLimit   RateLimitConfig   `yaml:"ratelimit"`

	// MySQLPassword is populated from the environment by Load, never from
	// the YAML document.
	MySQLPassword string `yaml:"-"`
}

// Load reads the YAML document at path, then overlays a .env file (if
// envPath is non-empty) to populate secret fields. A missing or unreadable
// .env file is not an error: whatever godotenv.Load returns is ignored and
// not passed to the caller, mirroring the teacher's tolerant stance toward
// optional config sources.
func Load(path, envPath string) (*Config, error) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	cfg.MySQLPassword = os.Getenv("QUEST_DB_PASSWORD")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Auth.Port == 0 {
		cfg.Auth.Port = 6600
	}
	if cfg.World.Port == 0 {
		cfg.World.Port = 23115
	}
	if cfg.RateLimit.WindowMs == 0 {
		cfg.RateLimit.WindowMs = 60000
	}
	if cfg.RateLimit.Limit == 0 {
		cfg.RateLimit.Limit = 5
	}
	if cfg.Persistence.IntervalSeconds == 0 {
		cfg.Persistence.IntervalSeconds = 30
	}
}
