package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymdesk/internal/adapters/storage"
	catalogStore "gymdesk/internal/adapters/storage/catalog"
	"gymdesk/internal/config"
	"gymdesk/internal/domain/event"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := rootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "seed", "process-outbox", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestSetupLogging(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "", "WARN", "error"} {
		assert.NoError(t, setupLogging(lvl), lvl)
	}
	assert.Error(t, setupLogging("verbose"))
}

func TestOpenDB_Migrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gymdesk.db")
	db, err := openDB(config.DatabaseConfig{Path: path, MaxOpenConns: 2})
	require.NoError(t, err)
	defer db.Close()

	v, err := storage.SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, storage.LatestSchemaVersion(), v)

	packages, err := catalogStore.NewSQLiteStore(db).ListPackages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, packages)
}

func TestBuildNotifier_WithoutNATS(t *testing.T) {
	n, closeFn, err := buildNotifier(config.NATSConfig{})
	require.NoError(t, err)
	defer closeFn()

	_, isBus := n.(*event.Bus)
	assert.True(t, isBus)
}
