package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	dlerrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/pkg/types"
)

// Catalog records migration builds and snapshot registrations.
type Catalog interface {
	// RegisterBuild records one pipeline run and returns its build ID.
	RegisterBuild(ctx context.Context, rec *BuildRecord) (string, error)

	// GetBuild retrieves a single build by ID.
	GetBuild(ctx context.Context, buildID string) (*BuildRecord, error)

	// ListBuilds returns the most recent builds, newest first.
	ListBuilds(ctx context.Context, limit int) ([]*BuildRecord, error)

	// RegisterSnapshot records a stored snapshot for an environment.
	// Re-registering the same environment/name pair overwrites.
	RegisterSnapshot(ctx context.Context, rec *SnapshotRecord) error

	// LatestSnapshot returns the most recently captured snapshot for
	// an environment.
	LatestSnapshot(ctx context.Context, environment string) (*SnapshotRecord, error)

	// ListSnapshots returns all snapshots for an environment, newest
	// first.
	ListSnapshots(ctx context.Context, environment string) ([]*SnapshotRecord, error)

	// Close closes the catalog database connection.
	Close() error
}

// BuildRecord is one migration build in the catalog.
type BuildRecord struct {
	BuildID            string
	PlanID             string
	PlanName           string
	State              string
	CurrentFingerprint uint64
	TargetFingerprint  uint64
	StepCount          int
	Summary            types.RiskSummary
	EstimatedSeconds   int
	CreatedAt          time.Time
}

// SnapshotRecord is one registered snapshot in the catalog.
type SnapshotRecord struct {
	Environment string
	Name        string
	Fingerprint uint64
	SizeBytes   int
	CapturedAt  time.Time
}

// SQLiteCatalog implements Catalog using SQLite with a single write
// connection in WAL mode.
type SQLiteCatalog struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex // serializes writers
}

// NewCatalog opens (and if needed initializes) the history database.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range AllSchemaSQL() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: failed to initialize schema: %w", err)
		}
	}

	return &SQLiteCatalog{db: db, dbPath: dbPath}, nil
}

// RegisterBuild records one pipeline run. An empty BuildID is assigned a
// fresh UUID; CreatedAt defaults to now.
func (c *SQLiteCatalog) RegisterBuild(ctx context.Context, rec *BuildRecord) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec.BuildID == "" {
		rec.BuildID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO builds (
			build_id, plan_id, plan_name, state,
			current_fingerprint, target_fingerprint,
			step_count, safe_count, warning_count, destructive_count,
			estimated_seconds, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BuildID, rec.PlanID, rec.PlanName, rec.State,
		formatFingerprint(rec.CurrentFingerprint), formatFingerprint(rec.TargetFingerprint),
		rec.StepCount, rec.Summary.Safe, rec.Summary.Warning, rec.Summary.Destructive,
		rec.EstimatedSeconds, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", dlerrors.NewHistoryError(dlerrors.CodeRegisterFail,
			"failed to register build", err)
	}
	return rec.BuildID, nil
}

// GetBuild retrieves a single build by ID.
func (c *SQLiteCatalog) GetBuild(ctx context.Context, buildID string) (*BuildRecord, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT build_id, plan_id, plan_name, state,
		       current_fingerprint, target_fingerprint,
		       step_count, safe_count, warning_count, destructive_count,
		       estimated_seconds, created_at
		FROM builds WHERE build_id = ?`, buildID)

	rec, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, dlerrors.NewHistoryError(dlerrors.CodeBuildNotFound,
			fmt.Sprintf("build %s does not exist", buildID), nil)
	}
	return rec, err
}

// ListBuilds returns the most recent builds, newest first.
func (c *SQLiteCatalog) ListBuilds(ctx context.Context, limit int) ([]*BuildRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT build_id, plan_id, plan_name, state,
		       current_fingerprint, target_fingerprint,
		       step_count, safe_count, warning_count, destructive_count,
		       estimated_seconds, created_at
		FROM builds ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: failed to list builds: %w", err)
	}
	defer rows.Close()

	var recs []*BuildRecord
	for rows.Next() {
		rec, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RegisterSnapshot records a stored snapshot for an environment.
func (c *SQLiteCatalog) RegisterSnapshot(ctx context.Context, rec *SnapshotRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec.CapturedAt.IsZero() {
		rec.CapturedAt = time.Now()
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO snapshots (environment, name, fingerprint, size_bytes, captured_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (environment, name) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			size_bytes = excluded.size_bytes,
			captured_at = excluded.captured_at`,
		rec.Environment, rec.Name, formatFingerprint(rec.Fingerprint),
		rec.SizeBytes, rec.CapturedAt.UnixNano(),
	)
	if err != nil {
		return dlerrors.NewHistoryError(dlerrors.CodeRegisterFail,
			"failed to register snapshot", err)
	}
	return nil
}

// LatestSnapshot returns the most recently captured snapshot.
func (c *SQLiteCatalog) LatestSnapshot(ctx context.Context, environment string) (*SnapshotRecord, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT environment, name, fingerprint, size_bytes, captured_at
		FROM snapshots WHERE environment = ?
		ORDER BY captured_at DESC LIMIT 1`, environment)

	rec, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, dlerrors.NewHistoryError(dlerrors.CodeObjectNotFound,
			fmt.Sprintf("no snapshots registered for environment %s", environment), nil)
	}
	return rec, err
}

// ListSnapshots returns all snapshots for an environment, newest first.
func (c *SQLiteCatalog) ListSnapshots(ctx context.Context, environment string) ([]*SnapshotRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT environment, name, fingerprint, size_bytes, captured_at
		FROM snapshots WHERE environment = ?
		ORDER BY captured_at DESC`, environment)
	if err != nil {
		return nil, fmt.Errorf("history: failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var recs []*SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close closes the catalog database connection.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(s scanner) (*BuildRecord, error) {
	var (
		rec          BuildRecord
		curFP, tgtFP string
		createdAt    int64
	)
	err := s.Scan(
		&rec.BuildID, &rec.PlanID, &rec.PlanName, &rec.State,
		&curFP, &tgtFP,
		&rec.StepCount, &rec.Summary.Safe, &rec.Summary.Warning, &rec.Summary.Destructive,
		&rec.EstimatedSeconds, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	rec.CurrentFingerprint = parseFingerprint(curFP)
	rec.TargetFingerprint = parseFingerprint(tgtFP)
	rec.CreatedAt = time.Unix(0, createdAt)
	return &rec, nil
}

func scanSnapshot(s scanner) (*SnapshotRecord, error) {
	var (
		rec        SnapshotRecord
		fp         string
		capturedAt int64
	)
	err := s.Scan(&rec.Environment, &rec.Name, &fp, &rec.SizeBytes, &capturedAt)
	if err != nil {
		return nil, err
	}
	rec.Fingerprint = parseFingerprint(fp)
	rec.CapturedAt = time.Unix(0, capturedAt)
	return &rec, nil
}

// Fingerprints are stored as hex text: SQLite integers are signed 64-bit
// and would mangle high-bit hashes.
func formatFingerprint(fp uint64) string {
	return strconv.FormatUint(fp, 16)
}

func parseFingerprint(s string) uint64 {
	fp, _ := strconv.ParseUint(s, 16, 64)
	return fp
}
