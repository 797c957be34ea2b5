package history

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	dlerrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/pkg/types"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewCatalog(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRegisterAndGetBuild(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	rec := &BuildRecord{
		PlanID:             "plan-1",
		PlanName:           "release-7",
		State:              "VALIDATED",
		CurrentFingerprint: math.MaxUint64, // exercises unsigned round-trip
		TargetFingerprint:  42,
		StepCount:          5,
		Summary:            types.RiskSummary{Safe: 3, Warning: 1, Destructive: 1},
		EstimatedSeconds:   44,
	}
	id, err := c.RegisterBuild(ctx, rec)
	assert.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := c.GetBuild(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, "plan-1", got.PlanID)
	assert.Equal(t, "release-7", got.PlanName)
	assert.Equal(t, "VALIDATED", got.State)
	assert.Equal(t, uint64(math.MaxUint64), got.CurrentFingerprint)
	assert.Equal(t, uint64(42), got.TargetFingerprint)
	assert.Equal(t, 5, got.StepCount)
	assert.Equal(t, rec.Summary, got.Summary)
	assert.Equal(t, 44, got.EstimatedSeconds)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetBuildMissing(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	_, err := c.GetBuild(ctx, "no-such-build")
	assert.Error(t, err)
	var de *dlerrors.DriftlineError
	if assert.ErrorAs(t, err, &de) {
		assert.Equal(t, dlerrors.CodeBuildNotFound, de.Code)
	}
}

func TestListBuildsNewestFirst(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		_, err := c.RegisterBuild(ctx, &BuildRecord{
			PlanName:  []string{"first", "second", "third"}[i],
			State:     "VALIDATED",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		assert.NoError(t, err)
	}

	builds, err := c.ListBuilds(ctx, 10)
	assert.NoError(t, err)
	if assert.Len(t, builds, 3) {
		assert.Equal(t, "third", builds[0].PlanName)
		assert.Equal(t, "first", builds[2].PlanName)
	}

	limited, err := c.ListBuilds(ctx, 2)
	assert.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRegisterSnapshotUpserts(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	rec := &SnapshotRecord{
		Environment: "staging",
		Name:        "v1",
		Fingerprint: 111,
		SizeBytes:   2048,
		CapturedAt:  time.Now(),
	}
	assert.NoError(t, c.RegisterSnapshot(ctx, rec))

	rec.Fingerprint = 222
	assert.NoError(t, c.RegisterSnapshot(ctx, rec))

	snaps, err := c.ListSnapshots(ctx, "staging")
	assert.NoError(t, err)
	if assert.Len(t, snaps, 1) {
		assert.Equal(t, uint64(222), snaps[0].Fingerprint)
	}
}

func TestLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"v1", "v2"} {
		err := c.RegisterSnapshot(ctx, &SnapshotRecord{
			Environment: "staging",
			Name:        name,
			CapturedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		assert.NoError(t, err)
	}
	err := c.RegisterSnapshot(ctx, &SnapshotRecord{
		Environment: "production",
		Name:        "v9",
		CapturedAt:  time.Now(),
	})
	assert.NoError(t, err)

	latest, err := c.LatestSnapshot(ctx, "staging")
	assert.NoError(t, err)
	assert.Equal(t, "v2", latest.Name)
}

func TestLatestSnapshotMissingEnvironment(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	_, err := c.LatestSnapshot(ctx, "nowhere")
	assert.Error(t, err)
}
