// Package testutil provides isolated test environments for config-dependent
// tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mxpack/mxpack/internal/config"
)

// TestEnv is an isolated test environment with its own config directory.
type TestEnv struct {
	t         *testing.T
	ConfigDir string
}

// NewTestEnv creates an isolated environment. Environment variables override
// all paths so parallel tests across packages never collide; cleanup happens
// via t.Cleanup.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	configDir := filepath.Join(t.TempDir(), "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create test config dir: %v", err)
	}

	t.Setenv("MXPACK_CONFIG_DIR", configDir)
	t.Setenv("MXPACK_LOG_FILE", filepath.Join(configDir, "mxpack.log"))
	t.Setenv("MXPACK_DEDUP_CACHE_FILE", filepath.Join(configDir, "uploads.json"))
	t.Setenv("MXPACK_INDEX_DIR", filepath.Join(configDir, "packs"))

	config.Reset()
	if err := config.Init(); err != nil {
		t.Fatalf("failed to initialize test config: %v", err)
	}

	t.Cleanup(config.Reset)

	return &TestEnv{t: t, ConfigDir: configDir}
}

// WriteFile creates a file with the given content inside dir.
func (e *TestEnv) WriteFile(dir, name string, content []byte) string {
	e.t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		e.t.Fatalf("failed to create test file %s: %v", path, err)
	}
	return path
}
