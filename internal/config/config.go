// Package config handles the configuration directory, config file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// AppName is the application directory name.
	AppName = "taskmate"

	// ConfigFile is the optional config filename.
	ConfigFile = "config.yaml"

	// SessionFile is the persisted session filename.
	SessionFile = "session.json"
)

// Backend names.
const (
	BackendFirebase = "firebase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Firebase holds the web app configuration of a Firebase project.
type Firebase struct {
	APIKey            string `yaml:"api_key"`
	AuthDomain        string `yaml:"auth_domain"`
	ProjectID         string `yaml:"project_id"`
	StorageBucket     string `yaml:"storage_bucket"`
	MessagingSenderID string `yaml:"messaging_sender_id"`
	AppID             string `yaml:"app_id"`
	MeasurementID     string `yaml:"measurement_id"`
}

// Postgres holds the connection settings of the self-hosted backend.
type Postgres struct {
	DSN string `yaml:"dsn"`
}

// File is the on-disk shape of config.yaml.
type File struct {
	Backend  string   `yaml:"backend"`
	Firebase Firebase `yaml:"firebase"`
	Postgres Postgres `yaml:"postgres"`
}

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Backend selects the backend implementation.
	Backend string

	Firebase Firebase
	Postgres Postgres
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/taskmate or $HOME/.config/taskmate.
// The config file is read if present; environment variables override it.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir, Backend: BackendFirebase}

	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.FilePath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", ConfigFile, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid %s: %w", ConfigFile, err)
	}
	if f.Backend != "" {
		c.Backend = f.Backend
	}
	c.Firebase = f.Firebase
	c.Postgres = f.Postgres
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Backend, "TASKMATE_BACKEND")
	set(&c.Firebase.APIKey, "FIREBASE_API_KEY")
	set(&c.Firebase.AuthDomain, "FIREBASE_AUTH_DOMAIN")
	set(&c.Firebase.ProjectID, "FIREBASE_PROJECT_ID")
	set(&c.Firebase.StorageBucket, "FIREBASE_STORAGE_BUCKET")
	set(&c.Firebase.MessagingSenderID, "FIREBASE_MESSAGING_SENDER_ID")
	set(&c.Firebase.AppID, "FIREBASE_APP_ID")
	set(&c.Firebase.MeasurementID, "FIREBASE_MEASUREMENT_ID")
	set(&c.Postgres.DSN, "DATABASE_URL")
}

// Validate checks that the selected backend has what it needs.
// The backend name is normalized to lower case.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case BackendFirebase:
		if c.Firebase.APIKey == "" {
			return fmt.Errorf("firebase api_key not set (FIREBASE_API_KEY or %s)", c.FilePath())
		}
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("firebase project_id not set (FIREBASE_PROJECT_ID or %s)", c.FilePath())
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres dsn not set (DATABASE_URL or %s)", c.FilePath())
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown backend: %s", c.Backend)
	}
	return nil
}

// FilePath returns the path to config.yaml.
func (c *Config) FilePath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// SessionPath returns the path to the persisted session file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasSession checks if the session file exists.
func (c *Config) HasSession() bool {
	_, err := os.Stat(c.SessionPath())
	return err == nil
}

// RemoveSession deletes the session file.
func (c *Config) RemoveSession() error {
	return os.Remove(c.SessionPath())
}
