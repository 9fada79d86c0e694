package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/tankbench/internal/lifecycle"
)

func TestTransitionTable(t *testing.T) {
	legal := []struct{ from, to lifecycle.State }{
		{lifecycle.StatePending, lifecycle.StateGenerated},
		{lifecycle.StateGenerated, lifecycle.StateCompiled},
		{lifecycle.StateGenerated, lifecycle.StateMalformed},
		{lifecycle.StateCompiled, lifecycle.StateBuildFailed},
		{lifecycle.StateCompiled, lifecycle.StateDryRunOk},
		{lifecycle.StateBuildFailed, lifecycle.StateRepairing},
		{lifecycle.StateRepairing, lifecycle.StateGenerated},
		{lifecycle.StateDryRunOk, lifecycle.StateTournament},
		{lifecycle.StateTournament, lifecycle.StateScored},
	}
	for _, tt := range legal {
		v := variantIn(t, tt.from)
		assert.NoError(t, v.To(tt.to), "%s -> %s", tt.from, tt.to)
	}

	illegal := []struct{ from, to lifecycle.State }{
		{lifecycle.StatePending, lifecycle.StateTournament},
		{lifecycle.StateGenerated, lifecycle.StateScored},
		{lifecycle.StateScored, lifecycle.StateGenerated},
		{lifecycle.StateFailed, lifecycle.StateGenerated},
		{lifecycle.StateDryRunOk, lifecycle.StateRepairing},
		{lifecycle.StateTournament, lifecycle.StateFailed},
	}
	for _, tt := range illegal {
		v := variantIn(t, tt.from)
		assert.Error(t, v.To(tt.to), "%s -> %s must be rejected", tt.from, tt.to)
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, lifecycle.StateScored.Terminal())
	assert.True(t, lifecycle.StateFailed.Terminal())
	assert.False(t, lifecycle.StatePending.Terminal())
	assert.False(t, lifecycle.StateRepairing.Terminal())
}

func TestVariantPersistence(t *testing.T) {
	root := t.TempDir()
	v := lifecycle.NewVariant(root, "model-a", "model-a_v0", "cafebabe", 1)
	require.NoError(t, v.To(lifecycle.StateGenerated))
	require.NoError(t, v.To(lifecycle.StateCompiled))

	loaded, err := lifecycle.LoadVariant(root)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateCompiled, loaded.State)
	assert.Equal(t, "model-a", loaded.ModelID)
	assert.Equal(t, "cafebabe", loaded.ConfigHash)
	assert.Equal(t, 1, loaded.RepairBudget)
	assert.False(t, loaded.UpdatedAt.IsZero())

	// A reloaded variant keeps honoring the transition table.
	require.NoError(t, loaded.To(lifecycle.StateDryRunOk))
	assert.Error(t, loaded.To(lifecycle.StateScored))
}

func TestRepairBudgetBookkeeping(t *testing.T) {
	v := variantIn(t, lifecycle.StateBuildFailed)
	require.True(t, v.RepairAvailable())
	require.NoError(t, v.UseRepair())
	assert.Equal(t, lifecycle.StateRepairing, v.State)
	assert.Equal(t, 1, v.RepairsUsed)

	require.NoError(t, v.To(lifecycle.StateGenerated))
	require.NoError(t, v.To(lifecycle.StateCompiled))
	require.NoError(t, v.To(lifecycle.StateBuildFailed))
	assert.False(t, v.RepairAvailable())
	assert.Error(t, v.UseRepair())
}

func TestFailIsTerminal(t *testing.T) {
	v := variantIn(t, lifecycle.StateBuildFailed)
	require.NoError(t, v.Fail(lifecycle.FailureBuild))
	assert.Equal(t, lifecycle.StateFailed, v.State)
	assert.Equal(t, lifecycle.FailureBuild, v.FailureKind)
	assert.Error(t, v.Fail(lifecycle.FailureDryRun))
}

// variantIn walks a fresh variant to the wanted state through legal
// edges so the tests never construct impossible histories.
func variantIn(t *testing.T, s lifecycle.State) *lifecycle.Variant {
	t.Helper()
	v := lifecycle.NewVariant(t.TempDir(), "m", "m_v0", "hash", 1)
	paths := map[lifecycle.State][]lifecycle.State{
		lifecycle.StatePending:     {},
		lifecycle.StateGenerated:   {lifecycle.StateGenerated},
		lifecycle.StateMalformed:   {lifecycle.StateGenerated, lifecycle.StateMalformed},
		lifecycle.StateCompiled:    {lifecycle.StateGenerated, lifecycle.StateCompiled},
		lifecycle.StateBuildFailed: {lifecycle.StateGenerated, lifecycle.StateCompiled, lifecycle.StateBuildFailed},
		lifecycle.StateDryRunOk:    {lifecycle.StateGenerated, lifecycle.StateCompiled, lifecycle.StateDryRunOk},
		lifecycle.StateRepairing:   {lifecycle.StateGenerated, lifecycle.StateRepairing},
		lifecycle.StateTournament:  {lifecycle.StateGenerated, lifecycle.StateCompiled, lifecycle.StateDryRunOk, lifecycle.StateTournament},
		lifecycle.StateScored:      {lifecycle.StateGenerated, lifecycle.StateCompiled, lifecycle.StateDryRunOk, lifecycle.StateTournament, lifecycle.StateScored},
		lifecycle.StateFailed:      {lifecycle.StateGenerated, lifecycle.StateMalformed, lifecycle.StateFailed},
	}
	for _, step := range paths[s] {
		require.NoError(t, v.To(step))
	}
	return v
}
