package updates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/util"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewLedger(st)
}

func TestBeginAndFinalize(t *testing.T) {
	ledger := testLedger(t)
	ctx := context.Background()

	update := &types.Update{
		Operation: types.OperationBuildBuild,
		Target:    types.ResourceTarget{Type: types.TargetBuild, ID: "b1"},
		Operator:  "u1",
	}
	id, err := ledger.Begin(ctx, update)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, id, update.ID)

	stored, err := ledger.Store.Updates.GetOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.UpdateInProgress, stored.Status)
	assert.NotZero(t, stored.StartTS)
	assert.Zero(t, stored.EndTS)

	update.Logs = append(update.Logs, types.SimpleLog("build", "done"))
	require.NoError(t, ledger.Finalize(ctx, update))

	stored, err = ledger.Store.Updates.GetOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.UpdateComplete, stored.Status)
	assert.True(t, stored.Success)
	assert.GreaterOrEqual(t, stored.EndTS, stored.StartTS)
}

func TestFinalizeDerivesFailure(t *testing.T) {
	ledger := testLedger(t)
	ctx := context.Background()

	update := &types.Update{
		Operation: types.OperationBuildBuild,
		Target:    types.ResourceTarget{Type: types.TargetBuild, ID: "b1"},
	}
	_, err := ledger.Begin(ctx, update)
	require.NoError(t, err)

	update.Logs = []types.Log{
		types.SimpleLog("clone", "ok"),
		types.ErrorLog("build", "builder busy"),
	}
	require.NoError(t, ledger.Finalize(ctx, update))

	stored, err := ledger.Store.Updates.GetOne(ctx, update.ID)
	require.NoError(t, err)
	assert.False(t, stored.Success)
}

func TestAddCompletedUpdate(t *testing.T) {
	ledger := testLedger(t)
	ctx := context.Background()

	update := &types.Update{
		Operation: types.OperationCreateServer,
		Target:    types.ResourceTarget{Type: types.TargetServer, ID: "s1"},
		Success:   true,
	}
	id, err := ledger.Add(ctx, update)
	require.NoError(t, err)

	stored, err := ledger.Store.Updates.GetOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.UpdateComplete, stored.Status)
	assert.NotZero(t, stored.EndTS)
}

func TestListByTarget(t *testing.T) {
	ledger := testLedger(t)
	ctx := context.Background()

	for i, target := range []types.ResourceTarget{
		{Type: types.TargetBuild, ID: "b1"},
		{Type: types.TargetBuild, ID: "b2"},
		{Type: types.TargetBuild, ID: "b1"},
	} {
		_, err := ledger.Add(ctx, &types.Update{
			Operation: types.OperationBuildBuild,
			Target:    target,
			StartTS:   int64(100 + i),
			Success:   true,
		})
		require.NoError(t, err)
	}

	b1 := &types.ResourceTarget{Type: types.TargetBuild, ID: "b1"}
	listed, err := ledger.List(ctx, ListOptions{Target: b1})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	// most recent first
	assert.Equal(t, int64(102), listed[0].StartTS)
	assert.Equal(t, int64(100), listed[1].StartTS)
}

func TestSweepOnce(t *testing.T) {
	ledger := testLedger(t)
	ctx := context.Background()

	stale := &types.Update{
		Operation: types.OperationBuildBuild,
		Target:    types.ResourceTarget{Type: types.TargetBuild, ID: "b1"},
		StartTS:   util.UnixMillis() - time.Hour.Milliseconds(),
	}
	_, err := ledger.Begin(ctx, stale)
	require.NoError(t, err)

	fresh := &types.Update{
		Operation: types.OperationDeployDeployment,
		Target:    types.ResourceTarget{Type: types.TargetDeployment, ID: "d1"},
	}
	_, err = ledger.Begin(ctx, fresh)
	require.NoError(t, err)

	sweeper := NewSweeper(ledger, time.Minute, 30*time.Minute)
	require.NoError(t, sweeper.SweepOnce(ctx))

	swept, err := ledger.Store.Updates.GetOne(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, types.UpdateComplete, swept.Status)
	assert.False(t, swept.Success)
	require.NotEmpty(t, swept.Logs)
	assert.Equal(t, "stale", swept.Logs[len(swept.Logs)-1].Stage)

	untouched, err := ledger.Store.Updates.GetOne(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, types.UpdateInProgress, untouched.Status)
}
