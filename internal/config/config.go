// Package config collects every knob the engine reads into one explicit
// struct handed to constructors. The core loop never reads ambient globals.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// StoreBackend selects the execution-record store implementation.
type StoreBackend string

const (
	StoreSQLite StoreBackend = "sqlite"
	StoreMySQL  StoreBackend = "mysql"
	StoreMemory StoreBackend = "memory"
)

// Config is the full engine configuration.
type Config struct {
	// Environment is the deploy environment name (production, staging, ...)
	// matched against EnvRestricted payload declarations.
	Environment string `yaml:"environment"`

	// AllowedEnvironments, when non-empty, restricts which environments may
	// run batches at all. Empty allows every environment.
	AllowedEnvironments []string `yaml:"allowed_environments"`

	// SchemaChangeDirs are the directories scanned for .sql schema changes.
	SchemaChangeDirs []string `yaml:"schema_change_dirs"`

	// Store selects and configures the execution-record backend.
	Store struct {
		Backend    StoreBackend `yaml:"backend"`
		SQLitePath string       `yaml:"sqlite_path"`
		MySQL      struct {
			DSN      string `yaml:"dsn"`
			Host     string `yaml:"host"`
			Port     string `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Database string `yaml:"database"`
		} `yaml:"mysql"`
	} `yaml:"store"`

	// Lock configures the isolation mutex.
	Lock struct {
		Name       string        `yaml:"name"`
		ConsulAddr string        `yaml:"consul_addr"`
		Timeout    time.Duration `yaml:"timeout"`
		TTL        time.Duration `yaml:"ttl"`
	} `yaml:"lock"`

	// Queue configures the in-process async dispatcher.
	Queue struct {
		Workers int `yaml:"workers"`
		Buffer  int `yaml:"buffer"`
	} `yaml:"queue"`

	// WrapInTransaction is the default transaction-wrapping behavior for
	// synchronous operations that do not declare their own preference.
	WrapInTransaction bool `yaml:"wrap_in_transaction"`

	// KillSwitchVar names the environment variable of the emergency stop.
	KillSwitchVar string `yaml:"kill_switch_var"`

	// MaintenanceMarker is the path whose presence blocks runs.
	MaintenanceMarker string `yaml:"maintenance_marker"`
}

// Default returns the baseline configuration.
func Default() *Config {
	cfg := &Config{
		Environment:      "production",
		SchemaChangeDirs: []string{"schema_changes"},
		KillSwitchVar:    "TASKRUN_DISABLED",
	}
	cfg.Store.Backend = StoreSQLite
	cfg.Store.SQLitePath = "taskrun.db"
	cfg.Lock.Name = "taskrun"
	cfg.Lock.Timeout = 10 * time.Second
	cfg.Lock.TTL = 10 * time.Minute
	cfg.Queue.Workers = 2
	cfg.Queue.Buffer = 64
	return cfg
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that override order. A .env file in the working
// directory is read first when present.
func Load(path string) (*Config, error) {
	_ = loadDotEnv()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TASKRUN_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("TASKRUN_SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("TASKRUN_STORE"); v != "" {
		c.Store.Backend = StoreBackend(v)
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		c.Store.MySQL.DSN = v
	}
	if v := os.Getenv("MYSQL_HOST"); v != "" {
		c.Store.MySQL.Host = v
	}
	if v := os.Getenv("MYSQL_PORT"); v != "" {
		c.Store.MySQL.Port = v
	}
	if v := os.Getenv("MYSQL_USER"); v != "" {
		c.Store.MySQL.User = v
	}
	if v := os.Getenv("MYSQL_PASS"); v != "" {
		c.Store.MySQL.Password = v
	}
	if v := os.Getenv("MYSQL_DB"); v != "" {
		c.Store.MySQL.Database = v
	}
	if v := os.Getenv("CONSUL_ADDR"); v != "" {
		c.Lock.ConsulAddr = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreSQLite, StoreMySQL, StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == StoreSQLite && c.Store.SQLitePath == "" {
		return fmt.Errorf("sqlite store requires a path")
	}
	if c.Lock.Timeout <= 0 || c.Lock.TTL <= 0 {
		return fmt.Errorf("lock timeout and ttl must be positive")
	}
	return nil
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}
