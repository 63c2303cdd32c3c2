package plugindir

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlugin(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0o755))
}

func TestScanner_DiscoversPluginFiles(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "python.d.plugin")
	writePlugin(t, dir, "go.d.plugin")
	writePlugin(t, dir, "README.md")

	sc := NewScanner([]string{dir})
	descriptors, err := sc.Scan()
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	names := map[string]bool{}
	for _, d := range descriptors {
		names[d.Name] = true
	}
	assert.True(t, names["python.d"])
	assert.True(t, names["go.d"])
}

func TestScanner_FirstDirectoryWinsOnNameCollision(t *testing.T) {
	primary := t.TempDir()
	secondary := t.TempDir()
	writePlugin(t, primary, "python.d.plugin")
	writePlugin(t, secondary, "python.d.plugin")

	sc := NewScanner([]string{primary, secondary})
	descriptors, err := sc.Scan()
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, primary, descriptors[0].Dir)
}

func TestScanner_MissingDirectoryIsSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "go.d.plugin")

	sc := NewScanner([]string{filepath.Join(dir, "does-not-exist"), dir})
	descriptors, err := sc.Scan()
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "go.d", descriptors[0].Name)
}

func TestScanner_WatchEmitsNewlyDroppedPlugin(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "existing.plugin")

	sc := NewScanner([]string{dir})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := sc.Watch(ctx)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	writePlugin(t, dir, "newcomer.plugin")

	select {
	case d, ok := <-events:
		require.True(t, ok)
		assert.Equal(t, "newcomer", d.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}
