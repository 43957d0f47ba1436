package guard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentGuard(t *testing.T) {
	tests := []struct {
		name    string
		guard   EnvironmentGuard
		allowed bool
	}{
		{
			name:    "empty allow list allows everything",
			guard:   EnvironmentGuard{Current: "production"},
			allowed: true,
		},
		{
			name:    "current in allow list",
			guard:   EnvironmentGuard{Current: "staging", AllowedEnv: []string{"staging", "production"}},
			allowed: true,
		},
		{
			name:    "current not in allow list",
			guard:   EnvironmentGuard{Current: "local", AllowedEnv: []string{"production"}},
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.guard.Allowed())
			if !tt.allowed {
				assert.NotEmpty(t, tt.guard.BlockingReason())
			}
		})
	}
}

func TestKillSwitchGuard(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		unset   bool
		allowed bool
	}{
		{name: "unset allows", unset: true, allowed: true},
		{name: "true blocks", value: "true", allowed: false},
		{name: "1 blocks", value: "1", allowed: false},
		{name: "false allows", value: "false", allowed: true},
		{name: "garbage allows", value: "maybe", allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &KillSwitchGuard{Variable: "TASKRUN_DISABLED_TEST"}
			if tt.unset {
				os.Unsetenv(g.Variable)
			} else {
				t.Setenv(g.Variable, tt.value)
			}
			assert.Equal(t, tt.allowed, g.Allowed())
		})
	}
}

func TestMaintenanceGuard(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "maintenance")

	g := &MaintenanceGuard{MarkerPath: marker}
	assert.True(t, g.Allowed())

	require.NoError(t, os.WriteFile(marker, nil, 0o644))
	assert.False(t, g.Allowed())
	assert.Contains(t, g.BlockingReason(), marker)
}

func TestMaintenanceGuard_EmptyPathAllows(t *testing.T) {
	g := &MaintenanceGuard{}
	assert.True(t, g.Allowed())
}

func TestSet_Check_FirstBlockerWins(t *testing.T) {
	set := Set{
		&EnvironmentGuard{Current: "prod"},
		&EnvironmentGuard{Current: "prod", AllowedEnv: []string{"staging"}},
		&EnvironmentGuard{Current: "prod", AllowedEnv: []string{"qa"}},
	}

	ok, reason := set.Check()
	assert.False(t, ok)
	assert.Contains(t, reason, "staging")
}

func TestSet_Check_AllAllowed(t *testing.T) {
	set := Set{
		&EnvironmentGuard{Current: "prod"},
		&MaintenanceGuard{},
	}
	ok, reason := set.Check()
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestSet_Check_Empty(t *testing.T) {
	ok, _ := Set{}.Check()
	assert.True(t, ok)
}
