package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscouncil/opscouncil/internal/analyzer"
	"github.com/opscouncil/opscouncil/internal/apply"
	"github.com/opscouncil/opscouncil/internal/audit"
	"github.com/opscouncil/opscouncil/internal/clock"
	"github.com/opscouncil/opscouncil/internal/council"
	"github.com/opscouncil/opscouncil/internal/engine"
	"github.com/opscouncil/opscouncil/internal/snapshot"
	"github.com/opscouncil/opscouncil/internal/types"
)

func newWatchFixture(t *testing.T) (*engine.Engine, *audit.Archive) {
	t.Helper()

	clk := clock.System{}
	cncl, err := council.New(&council.Config{
		Registry: analyzer.DefaultRegistry(clk),
	})
	require.NoError(t, err)

	eng, err := engine.New(&engine.Config{
		Council: cncl,
		Applier: apply.Simulator{},
		Clock:   clk,
	})
	require.NoError(t, err)

	arc, err := audit.New(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { arc.Close() })

	return eng, arc
}

func TestRunWatchCycleSnapshotErrorIsReturned(t *testing.T) {
	eng, arc := newWatchFixture(t)

	loadErr := errors.New("stat /tmp/snap.json: no such file or directory")
	result, err := runWatchCycle(context.Background(), eng, arc,
		func() (*types.Snapshot, error) { return nil, loadErr })

	// A transient read failure must come back to the loop, never
	// terminate the process.
	require.Error(t, err)
	assert.ErrorIs(t, err, loadErr)
	assert.Nil(t, result)

	// The engine is untouched by the failed iteration.
	assert.Empty(t, eng.GetImprovements())
}

func TestRunWatchCycleSucceedsAfterSnapshotError(t *testing.T) {
	eng, arc := newWatchFixture(t)
	ctx := context.Background()

	_, err := runWatchCycle(ctx, eng, arc,
		func() (*types.Snapshot, error) { return nil, errors.New("read failed") })
	require.Error(t, err)

	result, err := runWatchCycle(ctx, eng, arc,
		func() (*types.Snapshot, error) { return snapshot.Demo(time.Now()), nil })
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.Pending)
}
