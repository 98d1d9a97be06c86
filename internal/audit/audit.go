// Package audit archives the engine's append-only audit trail to
// SQLite. The engine itself is in-memory; callers that want the trail
// to outlive the process write it through here after cycles.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/opscouncil/opscouncil/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS execution_history (
	improvement_id TEXT NOT NULL,
	executed_at    TIMESTAMP NOT NULL,
	trigger_type   TEXT NOT NULL,
	success        BOOLEAN NOT NULL,
	result         TEXT NOT NULL,
	PRIMARY KEY (improvement_id, executed_at)
);

CREATE TABLE IF NOT EXISTS feedback_loops (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	payload    TEXT NOT NULL
);
`

// Archive is a SQLite-backed store for execution history and feedback
// loops. Writes are idempotent, so re-archiving the engine's full trail
// after every cycle is safe.
type Archive struct {
	db *sql.DB
}

// New opens (or creates) the archive database at path.
func New(path string) (*Archive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging archive database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initializing archive schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close releases the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// ArchiveHistory writes execution history entries. Entries already
// archived are skipped.
func (a *Archive) ArchiveHistory(ctx context.Context, entries []types.ExecutionHistoryEntry) error {
	for _, entry := range entries {
		result, err := json.Marshal(entry.Result)
		if err != nil {
			return fmt.Errorf("serializing result for %s: %w", entry.ImprovementID, err)
		}
		_, err = a.db.ExecContext(ctx, `
			INSERT INTO execution_history (improvement_id, executed_at, trigger_type, success, result)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (improvement_id, executed_at) DO NOTHING
		`, entry.ImprovementID, entry.Timestamp, string(entry.Trigger), entry.Result.Success, string(result))
		if err != nil {
			return fmt.Errorf("archiving history entry for %s: %w", entry.ImprovementID, err)
		}
	}
	return nil
}

// ListHistory returns all archived execution history entries, oldest
// first.
func (a *Archive) ListHistory(ctx context.Context) ([]types.ExecutionHistoryEntry, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT improvement_id, executed_at, trigger_type, result
		FROM execution_history
		ORDER BY executed_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying execution history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []types.ExecutionHistoryEntry
	for rows.Next() {
		var entry types.ExecutionHistoryEntry
		var trigger, result string
		if err := rows.Scan(&entry.ImprovementID, &entry.Timestamp, &trigger, &result); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entry.Trigger = types.ExecutionTrigger(trigger)
		if err := json.Unmarshal([]byte(result), &entry.Result); err != nil {
			return nil, fmt.Errorf("parsing result for %s: %w", entry.ImprovementID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return entries, nil
}

// ArchiveFeedback writes feedback loop entries. Entries already
// archived are skipped.
func (a *Archive) ArchiveFeedback(ctx context.Context, loops []types.FeedbackLoop) error {
	for _, loop := range loops {
		payload, err := json.Marshal(loop)
		if err != nil {
			return fmt.Errorf("serializing feedback loop %s: %w", loop.ID, err)
		}
		_, err = a.db.ExecContext(ctx, `
			INSERT INTO feedback_loops (id, type, created_at, payload)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING
		`, loop.ID, string(loop.Type), loop.Timestamp, string(payload))
		if err != nil {
			return fmt.Errorf("archiving feedback loop %s: %w", loop.ID, err)
		}
	}
	return nil
}

// ListFeedback returns all archived feedback loops, oldest first.
func (a *Archive) ListFeedback(ctx context.Context) ([]types.FeedbackLoop, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT payload FROM feedback_loops ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying feedback loops: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var loops []types.FeedbackLoop
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning feedback loop: %w", err)
		}
		var loop types.FeedbackLoop
		if err := json.Unmarshal([]byte(payload), &loop); err != nil {
			return nil, fmt.Errorf("parsing feedback loop: %w", err)
		}
		loops = append(loops, loop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feedback rows: %w", err)
	}
	return loops, nil
}
