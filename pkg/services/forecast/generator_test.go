package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/models/store"
)

type mockUsageStore struct {
	mock.Mock
}

func (m *mockUsageStore) Add(ctx context.Context, records []store.CostRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *mockUsageStore) GetRecords(ctx context.Context, start, end time.Time) ([]store.CostRecord, error) {
	args := m.Called(ctx, start, end)
	return args.Get(0).([]store.CostRecord), args.Error(1)
}

func (m *mockUsageStore) GetDailyTotals(ctx context.Context, start, end time.Time) ([]store.DailyCost, error) {
	args := m.Called(ctx, start, end)
	return args.Get(0).([]store.DailyCost), args.Error(1)
}

func (m *mockUsageStore) GetDailyByWorkspace(ctx context.Context, start, end time.Time) ([]store.DailyCost, error) {
	args := m.Called(ctx, start, end)
	return args.Get(0).([]store.DailyCost), args.Error(1)
}

func (m *mockUsageStore) GetDailyBySKU(ctx context.Context, start, end time.Time) ([]store.DailyCost, error) {
	args := m.Called(ctx, start, end)
	return args.Get(0).([]store.DailyCost), args.Error(1)
}

func (m *mockUsageStore) SumCosts(ctx context.Context, start, end time.Time, workspaceID string) (float64, error) {
	args := m.Called(ctx, start, end, workspaceID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockUsageStore) DistinctClusterTags(ctx context.Context, workspaceID string) ([]store.ResourceTags, error) {
	args := m.Called(ctx, workspaceID)
	return args.Get(0).([]store.ResourceTags), args.Error(1)
}

func (m *mockUsageStore) ListRecordTags(ctx context.Context, workspaceID string) ([][]byte, error) {
	args := m.Called(ctx, workspaceID)
	return args.Get(0).([][]byte), args.Error(1)
}

type mockForecastStore struct {
	mock.Mock
}

func (m *mockForecastStore) ReplaceScope(ctx context.Context, scope string, points []store.ForecastPoint) error {
	args := m.Called(ctx, scope, points)
	return args.Error(0)
}

func (m *mockForecastStore) ListScope(ctx context.Context, scope string) ([]store.ForecastPoint, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).([]store.ForecastPoint), args.Error(1)
}

func history(days int, cost func(i int) float64) []store.DailyCost {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]store.DailyCost, 0, days)
	for i := 0; i < days; i++ {
		rows = append(rows, store.DailyCost{Date: base.AddDate(0, 0, i), Cost: cost(i)})
	}
	return rows
}

func setupGenerator(totals []store.DailyCost) (*generator, *mockForecastStore) {
	usageStore := &mockUsageStore{}
	usageStore.On("GetDailyTotals", mock.Anything, mock.Anything, mock.Anything).Return(totals, nil)

	forecastStore := &mockForecastStore{}
	forecastStore.On("ReplaceScope", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	g := &generator{
		usage:     usageStore,
		forecasts: forecastStore,
		now:       func() time.Time { return time.Date(2025, 8, 31, 12, 0, 0, 0, time.UTC) },
	}
	return g, forecastStore
}

func TestGenerator_GenerateForecast(t *testing.T) {
	ctx := context.Background()

	t.Run("seasonal model with full history", func(t *testing.T) {
		totals := history(60, func(i int) float64 { return 100 + float64(i) + float64(i%7)*5 })
		g, forecastStore := setupGenerator(totals)

		points, err := g.GenerateForecast(ctx, "", 30)
		require.NoError(t, err)
		require.Len(t, points, 30)

		lastDate := totals[len(totals)-1].Date
		for i, p := range points {
			assert.Equal(t, domain.ForecastModelSeasonal, p.Model)
			assert.Equal(t, lastDate.AddDate(0, 0, i+1), p.Date)
			assert.GreaterOrEqual(t, p.PredictedCost, p.LowerBound)
			assert.GreaterOrEqual(t, p.UpperBound, p.PredictedCost)
			assert.GreaterOrEqual(t, p.LowerBound, 0.0)
		}

		forecastStore.AssertCalled(t, "ReplaceScope", ctx, "overall", mock.Anything)
	})

	t.Run("bounds widen with distance", func(t *testing.T) {
		// Noisy series so residuals are nonzero and the margin is visible.
		totals := history(45, func(i int) float64 { return 100 + float64((i*37)%11) })
		g, _ := setupGenerator(totals)

		points, err := g.GenerateForecast(ctx, "", 30)
		require.NoError(t, err)
		require.Len(t, points, 30)

		prev := points[0].UpperBound - points[0].LowerBound
		assert.Greater(t, prev, 0.0)
		for _, p := range points[1:] {
			width := p.UpperBound - p.LowerBound
			assert.Greater(t, width, prev)
			prev = width
		}
	})

	t.Run("linear fallback below seasonal minimum", func(t *testing.T) {
		totals := history(10, func(i int) float64 { return 50 + 2*float64(i) })
		g, _ := setupGenerator(totals)

		points, err := g.GenerateForecast(ctx, "", 7)
		require.NoError(t, err)
		require.Len(t, points, 7)

		for _, p := range points {
			assert.Equal(t, domain.ForecastModelLinear, p.Model)
		}
		// Clean linear input projects the same trend forward.
		assert.InDelta(t, 50+2*10, points[0].PredictedCost, 0.01)
		assert.InDelta(t, 50+2*16, points[6].PredictedCost, 0.01)
	})

	t.Run("two points give an exact fit with collapsed band", func(t *testing.T) {
		totals := history(2, func(i int) float64 { return 100 + 10*float64(i) })
		g, _ := setupGenerator(totals)

		points, err := g.GenerateForecast(ctx, "", 7)
		require.NoError(t, err)
		require.Len(t, points, 7)

		assert.InDelta(t, 120.0, points[0].PredictedCost, 0.01)
		assert.InDelta(t, points[0].PredictedCost, points[0].LowerBound, 0.01)
		assert.InDelta(t, points[0].PredictedCost, points[0].UpperBound, 0.01)
	})

	t.Run("declining trend clamps at zero", func(t *testing.T) {
		totals := history(10, func(i int) float64 { return 45 - 5*float64(i) })
		g, _ := setupGenerator(totals)

		points, err := g.GenerateForecast(ctx, "", 14)
		require.NoError(t, err)

		last := points[len(points)-1]
		assert.Equal(t, 0.0, last.PredictedCost)
		assert.Equal(t, 0.0, last.LowerBound)
	})

	t.Run("insufficient history", func(t *testing.T) {
		totals := history(1, func(i int) float64 { return 100 })
		g, _ := setupGenerator(totals)

		_, err := g.GenerateForecast(ctx, "", 7)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("horizon outside allowed range", func(t *testing.T) {
		totals := history(60, func(i int) float64 { return 100 })
		g, _ := setupGenerator(totals)

		_, err := g.GenerateForecast(ctx, "", 5)
		require.Error(t, err)
		_, err = g.GenerateForecast(ctx, "", 120)
		require.Error(t, err)
	})

	t.Run("workspace scope filters its own history", func(t *testing.T) {
		base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		rows := make([]store.DailyCost, 0, 20)
		for i := 0; i < 10; i++ {
			rows = append(rows, store.DailyCost{Date: base.AddDate(0, 0, i), Scope: "ws-1", Cost: 100})
			rows = append(rows, store.DailyCost{Date: base.AddDate(0, 0, i), Scope: "ws-2", Cost: 999})
		}

		usageStore := &mockUsageStore{}
		usageStore.On("GetDailyByWorkspace", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)
		forecastStore := &mockForecastStore{}
		forecastStore.On("ReplaceScope", mock.Anything, "ws-1", mock.Anything).Return(nil)

		g := &generator{
			usage:     usageStore,
			forecasts: forecastStore,
			now:       func() time.Time { return time.Date(2025, 8, 31, 12, 0, 0, 0, time.UTC) },
		}

		points, err := g.GenerateForecast(ctx, "ws-1", 7)
		require.NoError(t, err)
		require.Len(t, points, 7)
		assert.InDelta(t, 100.0, points[0].PredictedCost, 0.01)
		forecastStore.AssertCalled(t, "ReplaceScope", ctx, "ws-1", mock.Anything)
	})
}

func TestGenerator_GetForecast(t *testing.T) {
	ctx := context.Background()

	usageStore := &mockUsageStore{}
	forecastStore := &mockForecastStore{}
	forecastStore.On("ListScope", ctx, "overall").Return([]store.ForecastPoint{
		{
			Scope:         "overall",
			Date:          time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			PredictedCost: 110,
			LowerBound:    90,
			UpperBound:    130,
			Model:         "seasonal",
		},
	}, nil)

	g := &generator{usage: usageStore, forecasts: forecastStore, now: time.Now}

	points, err := g.GetForecast(ctx, "")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, domain.ForecastModelSeasonal, points[0].Model)
	assert.Equal(t, 110.0, points[0].PredictedCost)
}
