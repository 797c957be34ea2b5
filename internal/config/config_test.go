package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "./data/driftline", cfg.DataDir)
	assert.Equal(t, "default", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ReadTimeout)
	assert.True(t, cfg.Plan.EnableRollback)
	assert.False(t, cfg.Plan.ParallelExecution)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.NoError(t, cfg.Validate())
}

func TestResolveDerivesStoragePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/driftline"
	cfg.Resolve()
	assert.Equal(t, filepath.Join("/var/lib/driftline", "storage"), cfg.Storage.Path)
	assert.Equal(t, filepath.Join("/var/lib/driftline", "history.db"), cfg.HistoryPath())
}

func TestResolveKeepsExplicitStoragePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Path = "/mnt/blobs"
	cfg.Resolve()
	assert.Equal(t, "/mnt/blobs", cfg.Storage.Path)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driftline.yaml")
	content := `
data_dir: /srv/driftline
environment: staging
http:
  addr: ":9000"
plan:
  enable_rollback: false
storage:
  type: s3
  s3:
    bucket: schemas
    region: eu-west-1
`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "/srv/driftline", cfg.DataDir)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.False(t, cfg.Plan.EnableRollback)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "schemas", cfg.Storage.S3.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Storage.S3.Region)
}

func TestLoadFromJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driftline.json")
	content := `{"environment": "production", "http": {"addr": ":7070"}}`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	// Untouched fields keep defaults.
	assert.Equal(t, "local", cfg.Storage.Type)
}

func TestLoadFromFileRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driftline.toml")
	assert.NoError(t, os.WriteFile(path, []byte("x = 1"), 0644))
	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("DRIFTLINE_DATA_DIR", "/env/data")
	t.Setenv("DRIFTLINE_ENVIRONMENT", "qa")
	t.Setenv("DRIFTLINE_HTTP_ADDR", ":6060")
	t.Setenv("DRIFTLINE_HTTP_READ_TIMEOUT", "45s")
	t.Setenv("DRIFTLINE_PLAN_ENABLE_ROLLBACK", "false")
	t.Setenv("DRIFTLINE_PLAN_PARALLEL", "1")
	t.Setenv("DRIFTLINE_STORAGE_TYPE", "s3")
	t.Setenv("DRIFTLINE_S3_BUCKET", "envbucket")
	t.Setenv("DRIFTLINE_S3_PATH_STYLE", "true")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	assert.Equal(t, "/env/data", cfg.DataDir)
	assert.Equal(t, "qa", cfg.Environment)
	assert.Equal(t, ":6060", cfg.HTTP.Addr)
	assert.Equal(t, 45*time.Second, cfg.HTTP.ReadTimeout)
	assert.False(t, cfg.Plan.EnableRollback)
	assert.True(t, cfg.Plan.ParallelExecution)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "envbucket", cfg.Storage.S3.Bucket)
	assert.True(t, cfg.Storage.S3.UsePathStyle)
}

func TestValidateRejectsBadStorageType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "ftp"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresS3Bucket(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "s3"
	assert.Error(t, cfg.Validate())

	cfg.Storage.S3.Bucket = "schemas"
	assert.NoError(t, cfg.Validate())
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Resolve()

	assert.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, cfg.Storage.Path)
}
