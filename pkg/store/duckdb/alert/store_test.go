package alert

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

func TestAlertStore_Alerts(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	alert := store.Alert{
		ID:              "alert-1",
		Name:            "Monthly budget",
		Kind:            "budget_threshold",
		WorkspaceID:     "ws-1",
		Threshold:       1000,
		Channels:        []byte(`["email","slack"]`),
		CooldownMinutes: 60,
		Active:          true,
	}

	t.Run("upsert and list active", func(t *testing.T) {
		require.NoError(t, f.store.Upsert(ctx, alert))

		alerts, err := f.store.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, "alert-1", alerts[0].ID)
		assert.Equal(t, 1000.0, alerts[0].Threshold)
		assert.JSONEq(t, `["email","slack"]`, string(alerts[0].Channels))
	})

	t.Run("upsert replaces in place", func(t *testing.T) {
		alert.Threshold = 1500
		require.NoError(t, f.store.Upsert(ctx, alert))

		alerts, err := f.store.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, 1500.0, alerts[0].Threshold)
	})

	t.Run("inactive alerts filtered out", func(t *testing.T) {
		paused := alert
		paused.ID = "alert-2"
		paused.Active = false
		require.NoError(t, f.store.Upsert(ctx, paused))

		alerts, err := f.store.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, "alert-1", alerts[0].ID)
	})
}

func TestAlertStore_Firings(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	triggered := time.Date(2025, 8, 15, 14, 0, 0, 0, time.UTC)

	firing := func(id string, at time.Time) store.AlertFiring {
		return store.AlertFiring{
			ID:           id,
			AlertID:      "alert-1",
			TriggeredAt:  at,
			CurrentValue: 1200,
			Threshold:    1000,
			Message:      "Monthly spend $1200.00 exceeds threshold $1000.00",
			Delivered:    []byte(`{}`),
		}
	}

	t.Run("append and read history newest first", func(t *testing.T) {
		require.NoError(t, f.store.AppendFiring(ctx, firing("f1", triggered)))
		require.NoError(t, f.store.AppendFiring(ctx, firing("f2", triggered.Add(time.Hour))))

		firings, err := f.store.ListFirings(ctx, "alert-1", 0)
		require.NoError(t, err)
		require.Len(t, firings, 2)
		assert.Equal(t, "f2", firings[0].ID)
		assert.Equal(t, "f1", firings[1].ID)
	})

	t.Run("limit caps the history", func(t *testing.T) {
		firings, err := f.store.ListFirings(ctx, "alert-1", 1)
		require.NoError(t, err)
		require.Len(t, firings, 1)
		assert.Equal(t, "f2", firings[0].ID)
	})

	t.Run("delivery outcome written back", func(t *testing.T) {
		require.NoError(t, f.store.UpdateDelivery(ctx, "f1", []byte(`{"email":true,"slack":false}`)))

		firings, err := f.store.ListFirings(ctx, "alert-1", 0)
		require.NoError(t, err)
		require.Len(t, firings, 2)
		assert.JSONEq(t, `{"email":true,"slack":false}`, string(firings[1].Delivered))
	})

	t.Run("unknown alert has empty history", func(t *testing.T) {
		firings, err := f.store.ListFirings(ctx, "alert-404", 0)
		require.NoError(t, err)
		assert.Empty(t, firings)
	})
}
