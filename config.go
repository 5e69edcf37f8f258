package dronectl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the fixed controller configuration: the receiver host,
// the account and secret used to reach it, and the identity of the
// service being controlled. Credentials are never embedded in source;
// they come from the config file, a .env file, or DRONECTL_* variables.
type Config struct {
	// Host is the receiver host address
	Host string `yaml:"host" env:"DRONECTL_HOST"`

	// Port is the SSH port
	Port int `yaml:"port" env:"DRONECTL_PORT"`

	// User is the remote account
	User string `yaml:"user" env:"DRONECTL_USER"`

	// Secret is the authentication material
	Secret string `yaml:"secret" env:"DRONECTL_SECRET"`

	// Entrypoint is the init script started by the launcher
	Entrypoint string `yaml:"entrypoint" env:"DRONECTL_ENTRYPOINT"`

	// RemoteDir is the remote scratch directory for the reap routine
	RemoteDir string `yaml:"remote_dir" env:"DRONECTL_REMOTE_DIR"`

	// Patterns identifies the receiver processes by command-line fragment
	Patterns []string `yaml:"patterns"`

	// ReportPath, when set, receives the rendered stop report
	ReportPath string `yaml:"report_path" env:"DRONECTL_REPORT"`
}

// LoadConfig builds the configuration in layers: an optional .env file,
// the YAML file at path (may be empty for env-only operation), DRONECTL_*
// environment overrides, then defaults and validation.
func LoadConfig(path string) (*Config, error) {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decoding environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Entrypoint == "" {
		c.Entrypoint = DefaultEntrypoint
	}
	if c.RemoteDir == "" {
		c.RemoteDir = DefaultRemoteDir
	}
	if len(c.Patterns) == 0 {
		c.Patterns = DefaultPatterns()
	}
}

// Validate checks the fields no default can supply.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("dronectl: host is required")
	}
	if c.User == "" {
		return errors.New("dronectl: user is required")
	}
	if c.Secret == "" {
		return errors.New("dronectl: secret is required")
	}
	return PatternSet(c.Patterns).Validate()
}

// Redacted returns a copy safe for logging, with the secret masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Secret != "" {
		out.Secret = "[redacted]"
	}
	return out
}
