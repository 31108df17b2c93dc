package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/models/store"
	"github.com/de-tools/costpulse/pkg/services/alerting/notify"
	"github.com/de-tools/costpulse/pkg/store/cooldown"
)

type mockAlertStore struct {
	mock.Mock
}

func (m *mockAlertStore) ListActive(ctx context.Context) ([]store.Alert, error) {
	args := m.Called(ctx)
	return args.Get(0).([]store.Alert), args.Error(1)
}

func (m *mockAlertStore) Upsert(ctx context.Context, a store.Alert) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *mockAlertStore) AppendFiring(ctx context.Context, f store.AlertFiring) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *mockAlertStore) UpdateDelivery(ctx context.Context, firingID string, delivered []byte) error {
	args := m.Called(ctx, firingID, delivered)
	return args.Error(0)
}

func (m *mockAlertStore) ListFirings(ctx context.Context, alertID string, limit int) ([]store.AlertFiring, error) {
	args := m.Called(ctx, alertID, limit)
	return args.Get(0).([]store.AlertFiring), args.Error(1)
}

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

// stubNotifier records deliveries and can be made to fail.
type stubNotifier struct {
	err   error
	calls int
}

func (n *stubNotifier) Notify(_ context.Context, _ domain.AlertFiring) error {
	n.calls++
	return n.err
}

var checkTime = time.Date(2025, 8, 15, 14, 0, 0, 0, time.UTC)

type evaluatorFixture struct {
	alerts   *mockAlertStore
	usage    *mockUsageStore
	notifier *stubNotifier
	eval     *evaluator
}

func setupEvaluator(alertRows []store.Alert) *evaluatorFixture {
	f := &evaluatorFixture{
		alerts:   &mockAlertStore{},
		usage:    &mockUsageStore{},
		notifier: &stubNotifier{},
	}
	f.alerts.On("ListActive", mock.Anything).Return(alertRows, nil)
	f.eval = &evaluator{
		alerts:    f.alerts,
		usage:     f.usage,
		cooldowns: cooldown.NewMemoryStore(),
		notifiers: map[domain.NotificationChannel]notify.Notifier{
			domain.ChannelEmail: f.notifier,
		},
		now: func() time.Time { return checkTime },
	}
	return f
}

func budgetAlert(threshold float64) store.Alert {
	return store.Alert{
		ID:              "alert-1",
		Name:            "Monthly budget",
		Kind:            "budget_threshold",
		Threshold:       threshold,
		Channels:        []byte(`["email"]`),
		CooldownMinutes: 60,
		Active:          true,
	}
}

func TestEvaluator_CheckAlerts(t *testing.T) {
	ctx := context.Background()
	monthStart := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	todayStart := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	yesterdayStart := todayStart.AddDate(0, 0, -1)

	t.Run("budget threshold fires and delivers", func(t *testing.T) {
		f := setupEvaluator([]store.Alert{budgetAlert(1000)})
		f.usage.On("SumCosts", ctx, monthStart, checkTime, "").Return(1200.0, nil)
		f.alerts.On("AppendFiring", ctx, mock.Anything).Return(nil)
		f.alerts.On("UpdateDelivery", ctx, mock.Anything, mock.Anything).Return(nil)

		fired, err := f.eval.CheckAlerts(ctx)
		require.NoError(t, err)
		require.Len(t, fired, 1)

		firing := fired[0]
		assert.Equal(t, "alert-1", firing.AlertID)
		assert.Equal(t, domain.AlertBudgetThreshold, firing.Kind)
		assert.Equal(t, 1200.0, firing.CurrentValue)
		assert.Equal(t, 1000.0, firing.Threshold)
		assert.Contains(t, firing.Message, "$1200.00")
		assert.True(t, firing.Delivered[domain.ChannelEmail])
		assert.Equal(t, 1, f.notifier.calls)

		f.alerts.AssertCalled(t, "AppendFiring", ctx, mock.Anything)
		f.alerts.AssertCalled(t, "UpdateDelivery", ctx, firing.ID, mock.Anything)
	})

	t.Run("below threshold stays quiet", func(t *testing.T) {
		f := setupEvaluator([]store.Alert{budgetAlert(1000)})
		f.usage.On("SumCosts", ctx, monthStart, checkTime, "").Return(400.0, nil)

		fired, err := f.eval.CheckAlerts(ctx)
		require.NoError(t, err)
		assert.Empty(t, fired)
		f.alerts.AssertNotCalled(t, "AppendFiring", mock.Anything, mock.Anything)
	})

	t.Run("cooldown suppresses repeat firings inside the window", func(t *testing.T) {
		f := setupEvaluator([]store.Alert{budgetAlert(1000)})
		f.usage.On("SumCosts", mock.Anything, mock.Anything, mock.Anything, "").Return(1200.0, nil)
		f.alerts.On("AppendFiring", mock.Anything, mock.Anything).Return(nil)
		f.alerts.On("UpdateDelivery", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		fired, err := f.eval.CheckAlerts(ctx)
		require.NoError(t, err)
		assert.Len(t, fired, 1)

		// Still breached 30 minutes later: inside the 60-minute cooldown.
		f.eval.now = func() time.Time { return checkTime.Add(30 * time.Minute) }
		fired, err = f.eval.CheckAlerts(ctx)
		require.NoError(t, err)
		assert.Empty(t, fired)

		// Past the window it fires again.
		f.eval.now = func() time.Time { return checkTime.Add(61 * time.Minute) }
		fired, err = f.eval.CheckAlerts(ctx)
		require.NoError(t, err)
		assert.Len(t, fired, 1)
	})

	t.Run("cost spike compares against yesterday", func(t *testing.T) {
		f := setupEvaluator([]store.Alert{{
			ID:        "alert-2",
			Name:      "Spend spike",
			Kind:      "cost_spike",
			Threshold: 50,
			Channels:  []byte(`["email"]`),
			Active:    true,
		}})
		f.usage.On("SumCosts", ctx, todayStart, checkTime, "").Return(300.0, nil)
		f.usage.On("SumCosts", ctx, yesterdayStart, todayStart, "").Return(100.0, nil)
		f.alerts.On("AppendFiring", ctx, mock.Anything).Return(nil)
		f.alerts.On("UpdateDelivery", ctx, mock.Anything, mock.Anything).Return(nil)

		fired, err := f.eval.CheckAlerts(ctx)
		require.NoError(t, err)
		require.Len(t, fired, 1)
		assert.Equal(t, 300.0, fired[0].CurrentValue)
		assert.Contains(t, fired[0].Message, "+200.0%")
	})

	t.Run("cost spike without a baseline never fires", func(t *testing.T) {
		f := setupEvaluator([]store.Alert{{
			ID:        "alert-2",
			Kind:      "cost_spike",
			Threshold: 50,
			Channels:  []byte(`["email"]`),
			Active:    true,
		}})
		f.usage.On("SumCosts", ctx, todayStart, checkTime, "").Return(300.0, nil)
		f.usage.On("SumCosts", ctx, yesterdayStart, todayStart, "").Return(0.0, nil)

		fired, err := f.eval.CheckAlerts(ctx)
		require.NoError(t, err)
		assert.Empty(t, fired)
	})

	t.Run("daily budget fires on today's spend", func(t *testing.T) {
		f := setupEvaluator([]store.Alert{{
			ID:        "alert-3",
			Kind:      "daily_budget",
			Threshold: 250,
			Channels:  []byte(`["email"]`),
			Active:    true,
		}})
		f.usage.On("SumCosts", ctx, todayStart, checkTime, "").Return(260.0, nil)
		f.alerts.On("AppendFiring", ctx, mock.Anything).Return(nil)
		f.alerts.On("UpdateDelivery", ctx, mock.Anything, mock.Anything).Return(nil)

		fired, err := f.eval.CheckAlerts(ctx)
		require.NoError(t, err)
		require.Len(t, fired, 1)
		assert.Equal(t, domain.AlertDailyBudget, fired[0].Kind)
	})

	t.Run("dispatch failure recorded, firing stands", func(t *testing.T) {
		f := setupEvaluator([]store.Alert{budgetAlert(1000)})
		f.notifier.err = errors.New("smtp unreachable")
		f.usage.On("SumCosts", ctx, monthStart, checkTime, "").Return(1200.0, nil)
		f.alerts.On("AppendFiring", ctx, mock.Anything).Return(nil)
		f.alerts.On("UpdateDelivery", ctx, mock.Anything, mock.Anything).Return(nil)

		fired, err := f.eval.CheckAlerts(ctx)
		require.NoError(t, err)
		require.Len(t, fired, 1)
		assert.False(t, fired[0].Delivered[domain.ChannelEmail])
		f.alerts.AssertCalled(t, "UpdateDelivery", ctx, fired[0].ID, mock.Anything)
	})

	t.Run("failed firing record releases the cooldown window", func(t *testing.T) {
		f := setupEvaluator([]store.Alert{budgetAlert(1000)})
		f.usage.On("SumCosts", mock.Anything, mock.Anything, mock.Anything, "").Return(1200.0, nil)
		f.alerts.On("AppendFiring", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()
		f.alerts.On("AppendFiring", mock.Anything, mock.Anything).Return(nil)
		f.alerts.On("UpdateDelivery", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		_, err := f.eval.CheckAlerts(ctx)
		require.Error(t, err)

		// An immediate retry fires: the failed attempt must not consume
		// the window.
		fired, err := f.eval.CheckAlerts(ctx)
		require.NoError(t, err)
		assert.Len(t, fired, 1)
	})

	t.Run("unconfigured channel marked undelivered", func(t *testing.T) {
		alert := budgetAlert(1000)
		alert.Channels = []byte(`["email","slack"]`)

		f := setupEvaluator([]store.Alert{alert})
		f.usage.On("SumCosts", ctx, monthStart, checkTime, "").Return(1200.0, nil)
		f.alerts.On("AppendFiring", ctx, mock.Anything).Return(nil)
		f.alerts.On("UpdateDelivery", ctx, mock.Anything, mock.Anything).Return(nil)

		fired, err := f.eval.CheckAlerts(ctx)
		require.NoError(t, err)
		require.Len(t, fired, 1)
		assert.True(t, fired[0].Delivered[domain.ChannelEmail])
		assert.False(t, fired[0].Delivered[domain.ChannelSlack])
	})

	t.Run("unknown kind skipped, other alerts still evaluated", func(t *testing.T) {
		f := setupEvaluator([]store.Alert{
			{ID: "alert-x", Kind: "spend_velocity", Threshold: 1, Channels: []byte(`[]`), Active: true},
			budgetAlert(1000),
		})
		f.usage.On("SumCosts", ctx, monthStart, checkTime, "").Return(1200.0, nil)
		f.alerts.On("AppendFiring", ctx, mock.Anything).Return(nil)
		f.alerts.On("UpdateDelivery", ctx, mock.Anything, mock.Anything).Return(nil)

		fired, err := f.eval.CheckAlerts(ctx)
		require.NoError(t, err)
		require.Len(t, fired, 1)
		assert.Equal(t, "alert-1", fired[0].AlertID)
	})
}

func TestEvaluator_GetHistory(t *testing.T) {
	ctx := context.Background()

	f := setupEvaluator(nil)
	f.alerts.On("ListFirings", ctx, "alert-1", 10).Return([]store.AlertFiring{
		{
			ID:           "firing-1",
			AlertID:      "alert-1",
			TriggeredAt:  checkTime,
			CurrentValue: 1200,
			Threshold:    1000,
			Message:      "Monthly spend $1200.00 exceeds threshold $1000.00",
			Delivered:    []byte(`{"email":true}`),
		},
	}, nil)

	firings, err := f.eval.GetHistory(ctx, "alert-1", 10)
	require.NoError(t, err)
	require.Len(t, firings, 1)
	assert.Equal(t, 1200.0, firings[0].CurrentValue)
	assert.True(t, firings[0].Delivered[domain.ChannelEmail])
}
