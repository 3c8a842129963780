package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"overlay-router/internal/routing"
	"overlay-router/internal/store"
	"overlay-router/internal/store/storetest"
)

func openTemp(t *testing.T) store.Backend {
	t.Helper()
	s, err := Open(context.Background(), &Config{DatabasePath: filepath.Join(t.TempDir(), "overlay.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, openTemp)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "overlay.db")

	first, err := Open(ctx, &Config{DatabasePath: path})
	require.NoError(t, err)
	e := routing.NewEntry("C1", "C2", "M1", "C1", 1)
	require.NoError(t, first.Insert(ctx, e))
	require.NoError(t, first.Close())

	second, err := Open(ctx, &Config{DatabasePath: path})
	require.NoError(t, err)
	defer second.Close()

	entries, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []routing.Entry{e}, entries)
	assert.Equal(t, Kind, second.Name())
}

func TestSQLiteStore_RejectsZeroCost(t *testing.T) {
	s := openTemp(t)
	err := s.Insert(context.Background(), routing.Entry{ID: "x", SourceCommunity: "C1", DestinationCommunity: "C2", GatewayMemberID: "M", GatewayCommunity: "C1"})
	assert.Error(t, err)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), &Config{})
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	assert.True(t, store.DefaultRegistry.IsRegistered(Kind))

	backend, err := store.Open(context.Background(), store.Config{Kind: Kind, DatabasePath: filepath.Join(t.TempDir(), "r.db")})
	require.NoError(t, err)
	defer backend.Close()
	assert.Equal(t, Kind, backend.Name())
}
