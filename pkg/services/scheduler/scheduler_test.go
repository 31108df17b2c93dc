package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/costpulse/pkg/metrics"
	"github.com/de-tools/costpulse/pkg/models/domain"
)

// Shared across tests: promauto metrics register globally once per binary.
var testMetrics = metrics.New()

type passRecorder struct {
	mu       sync.Mutex
	order    []string
	alertErr error
}

func (r *passRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

func (r *passRecorder) passes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func (r *passRecorder) CheckAlerts(_ context.Context) ([]domain.AlertFiring, error) {
	r.record("alerts")
	if r.alertErr != nil {
		return nil, r.alertErr
	}
	return []domain.AlertFiring{{ID: "f1"}}, nil
}

func (r *passRecorder) GetHistory(_ context.Context, _ string, _ int) ([]domain.AlertFiring, error) {
	return nil, nil
}

func (r *passRecorder) ScanRecommendations(_ context.Context) ([]domain.Recommendation, error) {
	r.record("recommendations")
	return nil, nil
}

func (r *passRecorder) ListRecommendations(_ context.Context, _, _ string, _ int) ([]domain.Recommendation, error) {
	return nil, nil
}

func (r *passRecorder) UpdateStatus(_ context.Context, _ string, _ domain.RecommendationStatus) error {
	return nil
}

func (r *passRecorder) DetectAnomalies(_ context.Context, _ int, _ float64) ([]domain.Anomaly, error) {
	r.record("anomalies")
	return nil, nil
}

func newTestScheduler(rec *passRecorder, interval time.Duration) *Scheduler {
	return New(Config{
		Interval:        interval,
		Alerts:          rec,
		Recommendations: rec,
		Anomalies:       rec,
		Metrics:         testMetrics,
	})
}

func TestScheduler_RunCycle(t *testing.T) {
	t.Run("analysis passes run in order, collectors skipped when absent", func(t *testing.T) {
		rec := &passRecorder{}

		s := newTestScheduler(rec, time.Hour)
		s.runCycle(context.Background())

		assert.Equal(t, []string{"alerts", "recommendations", "anomalies"}, rec.passes())
	})

	t.Run("a failing pass does not stop the cycle", func(t *testing.T) {
		rec := &passRecorder{alertErr: errors.New("db gone")}

		s := newTestScheduler(rec, time.Hour)
		s.runCycle(context.Background())

		assert.Equal(t, []string{"alerts", "recommendations", "anomalies"}, rec.passes())
	})
}

func TestScheduler_Run(t *testing.T) {
	t.Run("first cycle fires immediately, cancellation stops the loop", func(t *testing.T) {
		rec := &passRecorder{}

		ctx, cancel := context.WithCancel(context.Background())
		s := newTestScheduler(rec, time.Hour)

		done := make(chan error, 1)
		go func() {
			done <- s.Run(ctx)
		}()

		require.Eventually(t, func() bool {
			return len(rec.passes()) >= 3
		}, time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("scheduler did not stop after cancellation")
		}
	})

	t.Run("default interval applied", func(t *testing.T) {
		s := New(Config{Metrics: testMetrics})
		assert.Equal(t, time.Hour, s.interval)
	})
}
