package analyzer

import (
	"time"

	"github.com/opscouncil/opscouncil/internal/clock"
	"github.com/opscouncil/opscouncil/internal/types"
)

// baseTime is the fixed "now" all analyzer tests run against.
var baseTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testClock() *clock.Fake {
	return clock.NewFake(baseTime)
}

// fullRecord returns a record updated recently with every expected field
// populated.
func fullRecord(id string) types.BusinessRecord {
	return types.BusinessRecord{
		ID:        id,
		UpdatedAt: baseTime.Add(-24 * time.Hour),
		Fields: map[string]interface{}{
			"name":     "Acme Rentals " + id,
			"email":    id + "@example.com",
			"phone":    "555-0100",
			"address":  "1 Main St",
			"city":     "Boise",
			"state":    "ID",
			"website":  "https://example.com",
			"industry": "equipment rental",
			"owner":    "pat",
			"notes":    "renewed contract",
		},
	}
}

// staleRecord returns a fully populated record last updated 30 days ago.
func staleRecord(id string) types.BusinessRecord {
	rec := fullRecord(id)
	rec.UpdatedAt = baseTime.Add(-30 * 24 * time.Hour)
	return rec
}

// sparseRecord returns a record with almost no fields.
func sparseRecord(id string) types.BusinessRecord {
	return types.BusinessRecord{
		ID:        id,
		UpdatedAt: baseTime.Add(-time.Hour),
		Fields:    map[string]interface{}{"state": "ID"},
	}
}

func findingsByCategory(analysis *types.AgentAnalysis, cat types.Category) []types.Finding {
	var out []types.Finding
	for _, f := range analysis.Findings {
		if f.Category == cat {
			out = append(out, f)
		}
	}
	return out
}

func hasSuggestionTitled(analysis *types.AgentAnalysis, title string) bool {
	for _, s := range analysis.Suggestions {
		if s.Title == title {
			return true
		}
	}
	return false
}
