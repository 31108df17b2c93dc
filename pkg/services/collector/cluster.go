package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/service/compute"
	"github.com/rs/zerolog"

	"github.com/de-tools/costpulse/pkg/adapters"
	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/models/store"
	clusterstore "github.com/de-tools/costpulse/pkg/store/duckdb/cluster"
	statestore "github.com/de-tools/costpulse/pkg/store/duckdb/state"
)

const clusterSource = "clusters"

// ClusterCollector snapshots workspace clusters through the SDK. Idle time
// is derived from the cluster's last restart, the closest activity signal
// the clusters API exposes.
type ClusterCollector struct {
	client      *databricks.WorkspaceClient
	workspaceID string
	clusters    clusterstore.Store
	state       statestore.Store
	now         func() time.Time
}

func NewClusterCollector(client *databricks.WorkspaceClient, workspaceID string, clusters clusterstore.Store, stateStore statestore.Store) (*ClusterCollector, error) {
	if client == nil {
		return nil, fmt.Errorf("databricks client is nil")
	}
	return &ClusterCollector{
		client:      client,
		workspaceID: workspaceID,
		clusters:    clusters,
		state:       stateStore,
		now:         time.Now,
	}, nil
}

func (c *ClusterCollector) Collect(ctx context.Context) (int, error) {
	logger := zerolog.Ctx(ctx)

	details, err := c.client.Clusters.ListAll(ctx, compute.ListClustersRequest{})
	if err != nil {
		return 0, fmt.Errorf("list clusters: %w", err)
	}

	collectedAt := c.now()
	rows := make([]store.ClusterSnapshot, 0, len(details))
	for _, d := range details {
		rows = append(rows, adapters.MapDomainClusterSnapshotToStore(c.toSnapshot(d, collectedAt)))
	}

	if err := c.clusters.UpsertSnapshots(ctx, rows); err != nil {
		return 0, fmt.Errorf("store cluster snapshots: %w", err)
	}
	if err := c.state.Set(ctx, clusterSource, collectedAt); err != nil {
		return 0, fmt.Errorf("advance cluster high-water mark: %w", err)
	}

	logger.Info().Int("clusters", len(rows)).Msg("cluster collection complete")
	return len(rows), nil
}

func (c *ClusterCollector) toSnapshot(d compute.ClusterDetails, collectedAt time.Time) domain.ClusterSnapshot {
	snapshot := domain.ClusterSnapshot{
		ClusterID:              d.ClusterId,
		ClusterName:            d.ClusterName,
		WorkspaceID:            c.workspaceID,
		CreatorEmail:           d.CreatorUserName,
		State:                  string(d.State),
		NodeType:               d.NodeTypeId,
		NumWorkers:             int(d.NumWorkers),
		PhotonEnabled:          strings.EqualFold(string(d.RuntimeEngine), "PHOTON"),
		AutoTerminationMinutes: int(d.AutoterminationMinutes),
		Tags:                   d.CustomTags,
		CollectedAt:            collectedAt,
	}

	if d.LastRestartedTime > 0 {
		lastActive := time.UnixMilli(d.LastRestartedTime)
		snapshot.LastActiveAt = &lastActive
		if snapshot.Running() {
			snapshot.IdleHours = collectedAt.Sub(lastActive).Hours()
		}
	}
	return snapshot
}
