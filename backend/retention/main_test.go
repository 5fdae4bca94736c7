package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/travel-guide/backend/internal/config"
	"github.com/DeafMist/travel-guide/backend/internal/logger"
)

func TestRunOnceRemovesStaleExports(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	stale := filepath.Join(dir, "Old_Route.gpx")
	fresh := filepath.Join(dir, "New_Route.gpx")
	require.NoError(t, os.WriteFile(stale, []byte("<gpx/>"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("<gpx/>"), 0o644))
	require.NoError(t, os.Chtimes(stale, now.Add(-48*time.Hour), now.Add(-48*time.Hour)))
	require.NoError(t, os.Chtimes(fresh, now.Add(-time.Hour), now.Add(-time.Hour)))

	cfg := &config.Retention{MaxAge: 24 * time.Hour}
	cfg.GPXDir = dir

	log := logger.Discard()
	require.Equal(t, 1, runOnce(log, cfg, now))

	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)
}

func TestRunOnceMissingDirectory(t *testing.T) {
	cfg := &config.Retention{MaxAge: time.Hour}
	cfg.GPXDir = filepath.Join(t.TempDir(), "absent")

	log := logger.Discard()
	require.Equal(t, 0, runOnce(log, cfg, time.Now()))
}
