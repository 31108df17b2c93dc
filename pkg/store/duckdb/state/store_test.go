package state

import (
	"context"
	"testing"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/costpulse/pkg/store/duckdb"
)

func setupStore(t *testing.T) Store {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)

	s, err := NewStore(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})
	return s
}

func TestStateStore(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	t.Run("unknown source has no mark", func(t *testing.T) {
		mark, err := s.Get(ctx, "billing")
		require.NoError(t, err)
		assert.Nil(t, mark)
	})

	t.Run("set then get round-trips", func(t *testing.T) {
		at := time.Date(2025, 8, 30, 6, 0, 0, 0, time.UTC)
		require.NoError(t, s.Set(ctx, "billing", at))

		mark, err := s.Get(ctx, "billing")
		require.NoError(t, err)
		require.NotNil(t, mark)
		assert.True(t, mark.Equal(at))
	})

	t.Run("later set advances the mark", func(t *testing.T) {
		later := time.Date(2025, 8, 31, 6, 0, 0, 0, time.UTC)
		require.NoError(t, s.Set(ctx, "billing", later))

		mark, err := s.Get(ctx, "billing")
		require.NoError(t, err)
		require.NotNil(t, mark)
		assert.True(t, mark.Equal(later))
	})

	t.Run("sources tracked independently", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "clusters", time.Date(2025, 8, 31, 7, 0, 0, 0, time.UTC)))

		billing, err := s.Get(ctx, "billing")
		require.NoError(t, err)
		require.NotNil(t, billing)
		assert.Equal(t, 6, billing.Hour())
	})
}
