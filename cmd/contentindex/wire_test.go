package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contentindex/internal/adapters/driving/cli"
)

func TestClosers_ReverseOrderAndJoin(t *testing.T) {
	var order []int
	boom := errors.New("boom")

	var c closers
	c.add(func() error { order = append(order, 1); return nil })
	c.add(func() error { order = append(order, 2); return boom })
	c.add(func() error { order = append(order, 3); return nil })

	err := c.close()

	assert.Equal(t, []int{3, 2, 1}, order)
	assert.ErrorIs(t, err, boom)
}

func TestResolveDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	got, err := resolveDataDir(dir)

	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.DirExists(t, dir)
}

func TestResolveDataDir_FromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONTENTINDEX_DATA_DIR", dir)

	got, err := resolveDataDir("")

	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestBootstrap_BuildsServices(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONTENTINDEX_ACQUISITION_RENDER_FALLBACK", "false")

	svc, err := bootstrap(context.Background(), cli.Options{DataDir: dir})
	require.NoError(t, err)

	assert.NotNil(t, svc.Indexing)
	assert.NotNil(t, svc.Search)
	assert.NotNil(t, svc.Settings)
	assert.NotNil(t, svc.Worker)
	assert.NotNil(t, svc.Scheduler)
	assert.True(t, svc.Indexing.Enabled())

	require.NoError(t, svc.Settings.SetIndexingEnabled(false))
	assert.False(t, svc.Indexing.Enabled(), "settings change reaches the kill switch")

	assert.FileExists(t, filepath.Join(dir, "config.toml"))
	assert.NoError(t, svc.Close())
}
