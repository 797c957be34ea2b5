// Package history provides the build-history catalog (history.db), a
// SQLite database recording every migration build and registered snapshot.
package history

// CreateBuildsTableSQL creates the builds table. One row per pipeline
// run, recording the plan shape and the fingerprints it was computed from.
const CreateBuildsTableSQL = `
CREATE TABLE IF NOT EXISTS builds (
    build_id TEXT PRIMARY KEY,
    plan_id TEXT NOT NULL,
    plan_name TEXT NOT NULL,
    state TEXT NOT NULL,
    current_fingerprint TEXT NOT NULL,
    target_fingerprint TEXT NOT NULL,
    step_count INTEGER NOT NULL,
    safe_count INTEGER NOT NULL,
    warning_count INTEGER NOT NULL,
    destructive_count INTEGER NOT NULL,
    estimated_seconds INTEGER NOT NULL,
    created_at INTEGER NOT NULL
)`

// CreateBuildsIndexesSQL creates indexes for build lookups.
var CreateBuildsIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_builds_created ON builds(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_builds_plan ON builds(plan_id)`,
}

// CreateSnapshotsTableSQL creates the snapshots table, mapping an
// environment/name pair to a stored envelope.
const CreateSnapshotsTableSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
    environment TEXT NOT NULL,
    name TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    captured_at INTEGER NOT NULL,
    PRIMARY KEY (environment, name)
)`

// CreateSnapshotsIndexesSQL creates indexes for snapshot lookups.
var CreateSnapshotsIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_snapshots_captured ON snapshots(environment, captured_at)`,
}

// AllSchemaSQL returns every schema statement in creation order.
func AllSchemaSQL() []string {
	stmts := []string{
		CreateBuildsTableSQL,
		CreateSnapshotsTableSQL,
	}
	stmts = append(stmts, CreateBuildsIndexesSQL...)
	stmts = append(stmts, CreateSnapshotsIndexesSQL...)
	return stmts
}
