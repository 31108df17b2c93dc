package recommendation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/models/store"
	"github.com/de-tools/costpulse/pkg/services/pricing"
)

type mockClusterStore struct {
	mock.Mock
}

func (m *mockClusterStore) UpsertSnapshots(ctx context.Context, snapshots []store.ClusterSnapshot) error {
	args := m.Called(ctx, snapshots)
	return args.Error(0)
}

func (m *mockClusterStore) ListSnapshots(ctx context.Context) ([]store.ClusterSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).([]store.ClusterSnapshot), args.Error(1)
}

type mockRecommendationStore struct {
	mock.Mock
}

func (m *mockRecommendationStore) Create(ctx context.Context, r store.Recommendation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *mockRecommendationStore) HasOpen(ctx context.Context, resourceID, recType string) (bool, error) {
	args := m.Called(ctx, resourceID, recType)
	return args.Bool(0), args.Error(1)
}

func (m *mockRecommendationStore) UpdateStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	args := m.Called(ctx, id, status, updatedAt)
	return args.Error(0)
}

func (m *mockRecommendationStore) List(ctx context.Context, status, recType string, limit int) ([]store.Recommendation, error) {
	args := m.Called(ctx, status, recType, limit)
	return args.Get(0).([]store.Recommendation), args.Error(1)
}

var scanTime = time.Date(2025, 8, 31, 12, 0, 0, 0, time.UTC)

func setupScanner(snapshots []store.ClusterSnapshot) (*scanner, *mockRecommendationStore) {
	clusters := &mockClusterStore{}
	clusters.On("ListSnapshots", mock.Anything).Return(snapshots, nil)

	recs := &mockRecommendationStore{}
	s := &scanner{
		clusters:        clusters,
		recommendations: recs,
		calculator:      pricing.NewCalculator(nil),
		now:             func() time.Time { return scanTime },
	}
	return s, recs
}

// healthySnapshot is a running cluster that trips none of the checks.
func healthySnapshot(clusterID string) store.ClusterSnapshot {
	lastActive := scanTime.Add(-5 * time.Minute)
	return store.ClusterSnapshot{
		ClusterID:              clusterID,
		ClusterName:            "etl-" + clusterID,
		WorkspaceID:            "ws-1",
		State:                  "RUNNING",
		NodeType:               "m5.xlarge",
		NumWorkers:             2,
		AutoTerminationMinutes: 30,
		AvgCPUUtilization:      65,
		AvgMemoryUtilization:   70,
		TotalCostUSD:           200,
		LastActiveAt:           &lastActive,
		CollectedAt:            scanTime,
	}
}

func TestScanner_ScanRecommendations(t *testing.T) {
	ctx := context.Background()

	t.Run("idle cluster flagged with accrued waste", func(t *testing.T) {
		snapshot := healthySnapshot("c1")
		lastActive := scanTime.Add(-3 * time.Hour)
		snapshot.LastActiveAt = &lastActive
		snapshot.IdleHours = 3

		s, recs := setupScanner([]store.ClusterSnapshot{snapshot})
		recs.On("HasOpen", ctx, "c1", string(domain.RecommendationIdle)).Return(false, nil)
		recs.On("Create", ctx, mock.Anything).Return(nil)

		created, err := s.ScanRecommendations(ctx)
		require.NoError(t, err)
		require.Len(t, created, 1)

		rec := created[0]
		assert.Equal(t, domain.RecommendationIdle, rec.Type)
		assert.Equal(t, domain.SeverityHigh, rec.Severity)
		assert.Equal(t, "c1", rec.ResourceID)
		assert.Equal(t, domain.RecommendationOpen, rec.Status)

		// 3 nodes, no Photon: 3*0.55 DBU + 3*0.192 VM = 2.226/hr over 3h.
		assert.InDelta(t, 6.678, rec.EstimatedSavings, 0.001)
	})

	t.Run("short idle stays below threshold", func(t *testing.T) {
		snapshot := healthySnapshot("c1")
		lastActive := scanTime.Add(-20 * time.Minute)
		snapshot.LastActiveAt = &lastActive

		s, _ := setupScanner([]store.ClusterSnapshot{snapshot})
		created, err := s.ScanRecommendations(ctx)
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("under-utilized cluster gets right-sizing", func(t *testing.T) {
		snapshot := healthySnapshot("c1")
		snapshot.AvgCPUUtilization = 12
		snapshot.AvgMemoryUtilization = 55

		s, recs := setupScanner([]store.ClusterSnapshot{snapshot})
		recs.On("HasOpen", ctx, "c1", string(domain.RecommendationRightSizing)).Return(false, nil)
		recs.On("Create", ctx, mock.Anything).Return(nil)

		created, err := s.ScanRecommendations(ctx)
		require.NoError(t, err)
		require.Len(t, created, 1)

		rec := created[0]
		assert.Equal(t, domain.RecommendationRightSizing, rec.Type)
		assert.InDelta(t, 60.0, rec.EstimatedSavings, 0.001)
	})

	t.Run("missing utilization telemetry never flags right-sizing", func(t *testing.T) {
		snapshot := healthySnapshot("c1")
		snapshot.AvgCPUUtilization = 0
		snapshot.AvgMemoryUtilization = 0

		s, _ := setupScanner([]store.ClusterSnapshot{snapshot})
		created, err := s.ScanRecommendations(ctx)
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("no auto-termination flagged", func(t *testing.T) {
		snapshot := healthySnapshot("c1")
		snapshot.AutoTerminationMinutes = 0

		s, recs := setupScanner([]store.ClusterSnapshot{snapshot})
		recs.On("HasOpen", ctx, "c1", string(domain.RecommendationAutoTermination)).Return(false, nil)
		recs.On("Create", ctx, mock.Anything).Return(nil)

		created, err := s.ScanRecommendations(ctx)
		require.NoError(t, err)
		require.Len(t, created, 1)

		rec := created[0]
		assert.Equal(t, domain.RecommendationAutoTermination, rec.Type)
		assert.Equal(t, domain.SeverityHigh, rec.Severity)
		// Hourly burn of 2.226 over a typical 8-hour idle day.
		assert.InDelta(t, 17.808, rec.EstimatedSavings, 0.001)
	})

	t.Run("one cluster can trigger every check", func(t *testing.T) {
		snapshot := healthySnapshot("c1")
		lastActive := scanTime.Add(-90 * time.Minute)
		snapshot.LastActiveAt = &lastActive
		snapshot.IdleHours = 1.5
		snapshot.AvgCPUUtilization = 5
		snapshot.AutoTerminationMinutes = 0

		s, recs := setupScanner([]store.ClusterSnapshot{snapshot})
		recs.On("HasOpen", ctx, "c1", mock.Anything).Return(false, nil)
		recs.On("Create", ctx, mock.Anything).Return(nil)

		created, err := s.ScanRecommendations(ctx)
		require.NoError(t, err)
		require.Len(t, created, 3)

		types := make([]domain.RecommendationType, 0, 3)
		for _, rec := range created {
			types = append(types, rec.Type)
		}
		assert.ElementsMatch(t, []domain.RecommendationType{
			domain.RecommendationIdle,
			domain.RecommendationRightSizing,
			domain.RecommendationAutoTermination,
		}, types)
	})

	t.Run("open recommendation suppresses duplicates", func(t *testing.T) {
		snapshot := healthySnapshot("c1")
		snapshot.AutoTerminationMinutes = 0

		s, recs := setupScanner([]store.ClusterSnapshot{snapshot})
		recs.On("HasOpen", ctx, "c1", string(domain.RecommendationAutoTermination)).Return(true, nil)

		created, err := s.ScanRecommendations(ctx)
		require.NoError(t, err)
		assert.Empty(t, created)
		recs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("terminated cluster ignored", func(t *testing.T) {
		snapshot := healthySnapshot("c1")
		snapshot.State = "TERMINATED"
		snapshot.AutoTerminationMinutes = 0
		snapshot.AvgCPUUtilization = 5

		s, _ := setupScanner([]store.ClusterSnapshot{snapshot})
		created, err := s.ScanRecommendations(ctx)
		require.NoError(t, err)
		assert.Empty(t, created)
	})
}

func TestScanner_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("valid status persisted", func(t *testing.T) {
		s, recs := setupScanner(nil)
		recs.On("UpdateStatus", ctx, "rec-1", "dismissed", scanTime).Return(nil)

		err := s.UpdateStatus(ctx, "rec-1", domain.RecommendationDismissed)
		require.NoError(t, err)
		recs.AssertExpectations(t)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		s, recs := setupScanner(nil)

		err := s.UpdateStatus(ctx, "rec-1", "rejected")
		require.Error(t, err)
		recs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
