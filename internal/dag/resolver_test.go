package dag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deployops/taskrun/internal/errors"
	"github.com/deployops/taskrun/internal/task"
)

func mustTask(t *testing.T, kind task.Kind, identity string, deps ...string) *task.Task {
	t.Helper()
	tk, err := task.New(kind, identity, nil)
	require.NoError(t, err)
	if len(deps) > 0 {
		tk.WithDependencies(deps)
	}
	return tk
}

func identities(tasks []*task.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.Identity
	}
	return ids
}

func TestResolver_Sort_PreservesChronologicalOrder(t *testing.T) {
	tasks := []*task.Task{
		mustTask(t, task.KindSchemaChange, "2026_01_01_000000_create_accounts"),
		mustTask(t, task.KindOperation, "2026_01_02_000000_seed_accounts"),
		mustTask(t, task.KindOperation, "2026_01_03_000000_reindex"),
	}

	sorted, err := NewResolver().Sort(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2026_01_01_000000_create_accounts",
		"2026_01_02_000000_seed_accounts",
		"2026_01_03_000000_reindex",
	}, identities(sorted))
}

func TestResolver_Sort_DependencyBeatsTimestamp(t *testing.T) {
	// A is chronologically first but depends on C, which is last.
	a := mustTask(t, task.KindOperation, "2026_01_01_000000_a", "2026_01_03_000000_c")
	b := mustTask(t, task.KindOperation, "2026_01_02_000000_b")
	c := mustTask(t, task.KindOperation, "2026_01_03_000000_c")

	sorted, err := NewResolver().Sort(context.Background(), []*task.Task{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2026_01_02_000000_b",
		"2026_01_03_000000_c",
		"2026_01_01_000000_a",
	}, identities(sorted))
}

func TestResolver_Sort_ChainReversesFully(t *testing.T) {
	a := mustTask(t, task.KindOperation, "2026_01_01_000000_a", "2026_01_02_000000_b")
	b := mustTask(t, task.KindOperation, "2026_01_02_000000_b", "2026_01_03_000000_c")
	c := mustTask(t, task.KindOperation, "2026_01_03_000000_c")

	sorted, err := NewResolver().Sort(context.Background(), []*task.Task{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2026_01_03_000000_c",
		"2026_01_02_000000_b",
		"2026_01_01_000000_a",
	}, identities(sorted))
}

func TestResolver_Sort_DependencyChainAcrossEqualTimestamps(t *testing.T) {
	// C shares A's timestamp but depends on B, which is newer than both.
	a := mustTask(t, task.KindOperation, "2024_01_01_000000_a")
	b := mustTask(t, task.KindOperation, "2024_01_02_000000_b", "2024_01_01_000000_a")
	c := mustTask(t, task.KindOperation, "2024_01_01_000000_c", "2024_01_02_000000_b")

	sorted, err := NewResolver().Sort(context.Background(), []*task.Task{a, c, b})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2024_01_01_000000_a",
		"2024_01_02_000000_b",
		"2024_01_01_000000_c",
	}, identities(sorted))
}

func TestResolver_Sort_MutualDependencyIsCircular(t *testing.T) {
	a := mustTask(t, task.KindOperation, "2026_01_01_000000_a", "2026_01_02_000000_b")
	b := mustTask(t, task.KindOperation, "2026_01_02_000000_b", "2026_01_01_000000_a")

	_, err := NewResolver().Sort(context.Background(), []*task.Task{a, b})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCircularDependency))
	assert.Contains(t, err.Error(), "2026_01_01_000000_a")
	assert.Contains(t, err.Error(), "2026_01_02_000000_b")
}

func TestResolver_Sort_SelfDependencyIsCircular(t *testing.T) {
	a := mustTask(t, task.KindOperation, "2026_01_01_000000_a", "2026_01_01_000000_a")

	_, err := NewResolver().Sort(context.Background(), []*task.Task{a})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCircularDependency))
}

func TestResolver_Sort_PartialCycleNamesOnlyCycleMembers(t *testing.T) {
	free := mustTask(t, task.KindOperation, "2026_01_01_000000_free")
	a := mustTask(t, task.KindOperation, "2026_01_02_000000_a", "2026_01_03_000000_b")
	b := mustTask(t, task.KindOperation, "2026_01_03_000000_b", "2026_01_02_000000_a")

	_, err := NewResolver().Sort(context.Background(), []*task.Task{free, a, b})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "2026_01_01_000000_free")
}

func TestResolver_Sort_UndiscoveredDependencyDoesNotConstrain(t *testing.T) {
	// The dependency points at a task from a previous deployment; it is not
	// in this batch and must not block ordering.
	a := mustTask(t, task.KindOperation, "2026_01_01_000000_a", "2025_06_01_000000_old")
	b := mustTask(t, task.KindOperation, "2026_01_02_000000_b")

	sorted, err := NewResolver().Sort(context.Background(), []*task.Task{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2026_01_01_000000_a",
		"2026_01_02_000000_b",
	}, identities(sorted))
}

func TestResolver_Sort_Empty(t *testing.T) {
	sorted, err := NewResolver().Sort(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, sorted)
}

type declaredDeps struct {
	deps []string
}

func (d *declaredDeps) Run(ctx context.Context) error { return nil }
func (d *declaredDeps) DependsOn() []string           { return d.deps }

func TestResolver_Sort_PayloadDeclaredDependencies(t *testing.T) {
	a, err := task.New(task.KindOperation, "2026_01_01_000000_a", func() (interface{}, error) {
		return &declaredDeps{deps: []string{"2026_01_02_000000_b"}}, nil
	})
	require.NoError(t, err)
	b := mustTask(t, task.KindOperation, "2026_01_02_000000_b")

	sorted, err := NewResolver().Sort(context.Background(), []*task.Task{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2026_01_02_000000_b",
		"2026_01_01_000000_a",
	}, identities(sorted))
}
