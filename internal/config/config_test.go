package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadWithNoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "memfs", cfg.Backend.Kind)
	assert.Equal(t, 2049, cfg.Server.Port)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: DEBUG
  format: json
  output: stdout
server:
  host: 127.0.0.1
  port: 3049
backend:
  kind: osfs
  root: /srv/export
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3049, cfg.Server.Port)
	assert.Equal(t, "osfs", cfg.Backend.Kind)
	assert.Equal(t, "/srv/export", cfg.Backend.Root)
}

func TestLoadParsesDurationStrings(t *testing.T) {
	path := writeConfigFile(t, `
server:
  read_timeout: 10s
  shutdown_timeout: 1m
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, time.Minute, cfg.Server.ShutdownTimeout)
}

func TestLoadRejectsOsfsWithoutRoot(t *testing.T) {
	path := writeConfigFile(t, `
backend:
  kind: osfs
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidBackendKind(t *testing.T) {
	path := writeConfigFile(t, `
backend:
  kind: zfs
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memfs", cfg.Backend.Kind)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("NFSD_BACKEND_KIND", "osfs")
	t.Setenv("NFSD_BACKEND_ROOT", "/tmp/export")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "osfs", cfg.Backend.Kind)
	assert.Equal(t, "/tmp/export", cfg.Backend.Root)
}

func TestApplyDefaultsLeavesSetFieldsAlone(t *testing.T) {
	cfg := Config{Backend: BackendConfig{Kind: "osfs", Root: "/x"}}
	ApplyDefaults(&cfg)
	assert.Equal(t, "osfs", cfg.Backend.Kind)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, Validate(cfg))
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "VERBOSE"
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 70000
	assert.Error(t, Validate(cfg))
}

func TestWatchReadOnlyNoopOnEmptyPath(t *testing.T) {
	assert.NoError(t, WatchReadOnly("", func(bool) {}))
}

func TestWatchReadOnlyErrorsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	err := WatchReadOnly(filepath.Join(dir, "missing.yaml"), func(bool) {})
	assert.Error(t, err)
}

func TestWatchReadOnlyFiresOnFileEdit(t *testing.T) {
	path := writeConfigFile(t, "backend:\n  read_only: false\n")

	changes := make(chan bool, 1)
	require.NoError(t, WatchReadOnly(path, func(readOnly bool) {
		changes <- readOnly
	}))

	require.NoError(t, os.WriteFile(path, []byte("backend:\n  read_only: true\n"), 0o644))

	select {
	case got := <-changes:
		assert.True(t, got)
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was never invoked after config file edit")
	}
}
