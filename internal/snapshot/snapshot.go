// Package snapshot loads system-state snapshots for the CLI. In-process
// callers build types.Snapshot directly; the CLI reads one from a JSON
// file exported by the surrounding system, or falls back to a small
// demo snapshot for standalone runs.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/opscouncil/opscouncil/internal/types"
)

// Load reads a snapshot from a JSON file.
func Load(path string) (*types.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot file: %w", err)
	}
	return &snap, nil
}

// Demo returns a deterministic sample snapshot that exercises every
// analyzer: stale and sparse records, a hot action type, an export
// burst, and degraded metrics.
func Demo(now time.Time) *types.Snapshot {
	snap := &types.Snapshot{
		Metrics: types.PerformanceMetrics{
			AvgResponseTimeMs:     1400,
			ErrorRate:             0.03,
			UserSatisfactionScore: 5.2,
			DataFreshnessScore:    61,
		},
	}

	for i := 0; i < 8; i++ {
		rec := types.BusinessRecord{
			ID:        fmt.Sprintf("rec-%03d", i),
			UpdatedAt: now.Add(-time.Duration(i*4) * 24 * time.Hour),
			Fields: map[string]interface{}{
				"name":  fmt.Sprintf("Vendor %d", i),
				"state": "MT",
			},
		}
		if i%2 == 0 {
			rec.Fields["email"] = fmt.Sprintf("vendor%d@example.com", i)
			rec.Fields["annual_revenue"] = 100000 + i*1000
		}
		snap.Records = append(snap.Records, rec)
	}

	for i := 0; i < 120; i++ {
		snap.Actions = append(snap.Actions, types.UserAction{
			Type:      "search-records",
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
		})
	}
	for i := 0; i < 55; i++ {
		snap.Actions = append(snap.Actions, types.UserAction{
			Type:      "export-csv",
			Timestamp: now.Add(-time.Duration(i*10) * time.Minute),
		})
	}
	return snap
}
