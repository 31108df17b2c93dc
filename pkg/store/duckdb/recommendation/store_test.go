package recommendation

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/costpulse/pkg/models/store"
	"github.com/de-tools/costpulse/pkg/store/duckdb"
)

type fixture struct {
	db    *sql.DB
	store Store
}

func setupFixture(t *testing.T) *fixture {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)

	s, err := NewStore(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return &fixture{db: db, store: s}
}

func rec(id, resourceID, recType, status string, createdAt time.Time) store.Recommendation {
	return store.Recommendation{
		ID:               id,
		Type:             recType,
		Severity:         "medium",
		Title:            "Idle cluster: etl-nightly",
		Description:      "Cluster sat idle for 3 hours.",
		WorkspaceID:      "ws-1",
		ResourceID:       resourceID,
		CurrentCost:      20,
		EstimatedSavings: 6.5,
		Status:           status,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func TestRecommendationStore(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	created := time.Date(2025, 8, 15, 10, 0, 0, 0, time.UTC)

	t.Run("create and list", func(t *testing.T) {
		require.NoError(t, f.store.Create(ctx, rec("rec-1", "c1", "idle_cluster", "open", created)))

		recs, err := f.store.List(ctx, "", "", 0)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "rec-1", recs[0].ID)
		assert.Equal(t, "idle_cluster", recs[0].Type)
		assert.Equal(t, 6.5, recs[0].EstimatedSavings)
	})

	t.Run("open pair detected", func(t *testing.T) {
		open, err := f.store.HasOpen(ctx, "c1", "idle_cluster")
		require.NoError(t, err)
		assert.True(t, open)

		open, err = f.store.HasOpen(ctx, "c1", "right_sizing")
		require.NoError(t, err)
		assert.False(t, open)

		open, err = f.store.HasOpen(ctx, "c2", "idle_cluster")
		require.NoError(t, err)
		assert.False(t, open)
	})

	t.Run("status update closes the pair", func(t *testing.T) {
		updated := created.Add(time.Hour)
		require.NoError(t, f.store.UpdateStatus(ctx, "rec-1", "dismissed", updated))

		open, err := f.store.HasOpen(ctx, "c1", "idle_cluster")
		require.NoError(t, err)
		assert.False(t, open)

		recs, err := f.store.List(ctx, "dismissed", "", 0)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "dismissed", recs[0].Status)
	})

	t.Run("updating a missing id reports not found", func(t *testing.T) {
		err := f.store.UpdateStatus(ctx, "rec-404", "dismissed", created)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list filters and limit", func(t *testing.T) {
		require.NoError(t, f.store.Create(ctx, rec("rec-2", "c2", "right_sizing", "open", created.Add(time.Minute))))
		require.NoError(t, f.store.Create(ctx, rec("rec-3", "c3", "idle_cluster", "open", created.Add(2*time.Minute))))

		recs, err := f.store.List(ctx, "open", "", 0)
		require.NoError(t, err)
		assert.Len(t, recs, 2)

		recs, err = f.store.List(ctx, "open", "idle_cluster", 0)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "rec-3", recs[0].ID)

		recs, err = f.store.List(ctx, "", "", 2)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		// Newest first.
		assert.Equal(t, "rec-3", recs[0].ID)
		assert.Equal(t, "rec-2", recs[1].ID)
	})
}
