// Package storetest is the behaviour every routing store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"overlay-router/internal/routing"
	"overlay-router/internal/store"
	"overlay-router/internal/testutil"
)

// Run exercises a fresh backend returned by open
func Run(t *testing.T, open func(t *testing.T) store.Backend) {
	ctx := context.Background()

	t.Run("empty load", func(t *testing.T) {
		s := open(t)
		entries, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.NoError(t, s.Health(ctx))
	})

	t.Run("insert and load in bucket order", func(t *testing.T) {
		s := open(t)
		b := routing.NewEntry("C1", "C3", "M2", "C1", 2)
		a := routing.NewEntry("C1", "C2", "M1", "C1", 1)
		c := routing.NewEntry("C2", "C3", "M5", "C2", 1)
		for _, e := range []routing.Entry{b, a, c} {
			require.NoError(t, s.Insert(ctx, e))
		}

		entries, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []routing.Entry{a, b, c}, entries)
	})

	t.Run("insert with same id overwrites", func(t *testing.T) {
		s := open(t)
		e := routing.NewEntry("C1", "C2", "M1", "C1", 3)
		require.NoError(t, s.Insert(ctx, e))
		e.Cost = 2
		require.NoError(t, s.Insert(ctx, e))

		entries, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 2, entries[0].Cost)
	})

	t.Run("update keeping id", func(t *testing.T) {
		s := open(t)
		old := routing.NewEntry("C1", "C2", "M1", "C1", 5)
		require.NoError(t, s.Insert(ctx, old))

		updated := old
		updated.Cost = 2
		require.NoError(t, s.Update(ctx, old, updated))

		entries, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []routing.Entry{updated}, entries)
	})

	t.Run("update with new id replaces the row", func(t *testing.T) {
		s := open(t)
		old := routing.NewEntry("C1", "C2", "M1", "C1", 5)
		require.NoError(t, s.Insert(ctx, old))

		updated := routing.NewEntry("C1", "C2", "M1", "C1", 2)
		require.NoError(t, s.Update(ctx, old, updated))

		entries, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []routing.Entry{updated}, entries)
	})

	t.Run("update of a missing row inserts", func(t *testing.T) {
		s := open(t)
		e := routing.NewEntry("C1", "C2", "M1", "C1", 2)
		require.NoError(t, s.Update(ctx, e, e))

		entries, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("delete all", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx, routing.NewEntry("C1", "C2", "M1", "C1", 1)))
		require.NoError(t, s.Insert(ctx, routing.NewEntry("C1", "C3", "M1", "C1", 2)))
		require.NoError(t, s.DeleteAll(ctx))

		entries, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("manager round trip", func(t *testing.T) {
		s := open(t)
		dir := testutil.NewTopologyBuilder("L").
			WithCommunities("C1").
			WithGateway("M1", "C1", "C2").
			Directory(t)

		writer := routing.NewManager(dir, routing.WithStore(s))
		_, err := writer.Recalculate(ctx)
		require.NoError(t, err)
		learned := testutil.NewEntryBuilder("C1", "C9", "M7")
		writer.AddEntry(ctx, learned.WithCost(3).Build())
		writer.AddEntry(ctx, learned.WithCost(2).Build())

		reader := routing.NewManager(dir, routing.WithStore(s))
		loaded, err := reader.LoadFromStore(ctx)
		require.NoError(t, err)
		assert.Equal(t, writer.Table().Len(), loaded)
		assert.ElementsMatch(t, writer.ExportTable(), reader.ExportTable())

		hop, ok := reader.LookupNextHop("C9")
		require.True(t, ok)
		assert.Equal(t, 2, hop.Cost)
	})
}
