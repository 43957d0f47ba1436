package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, StoreSQLite, cfg.Store.Backend)
	assert.Equal(t, "taskrun.db", cfg.Store.SQLitePath)
	assert.Equal(t, []string{"schema_changes"}, cfg.SchemaChangeDirs)
	assert.Equal(t, 10*time.Second, cfg.Lock.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.Store.Backend)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskrun.yaml")
	content := `
environment: staging
schema_change_dirs:
  - db/changes
store:
  backend: memory
queue:
  workers: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, []string{"db/changes"}, cfg.SchemaChangeDirs)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, 5, cfg.Queue.Workers)
	// Untouched keys keep their defaults.
	assert.Equal(t, "taskrun", cfg.Lock.Name)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o644))

	t.Setenv("TASKRUN_ENV", "qa")
	t.Setenv("TASKRUN_STORE", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "qa", cfg.Environment)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:      "unknown backend",
			mutate:    func(c *Config) { c.Store.Backend = "postgres" },
			expectErr: true,
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Store.Backend = StoreSQLite
				c.Store.SQLitePath = ""
			},
			expectErr: true,
		},
		{
			name:      "non-positive lock timeout",
			mutate:    func(c *Config) { c.Lock.Timeout = 0 },
			expectErr: true,
		},
		{
			name:      "memory backend needs no path",
			mutate:    func(c *Config) { c.Store.Backend = StoreMemory; c.Store.SQLitePath = "" },
			expectErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
