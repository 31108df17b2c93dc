package domain

import "time"

// ClusterSnapshot is a point-in-time view of a cluster's state and
// utilization, produced by the cluster collector. The recommendation
// scanner treats it as read-only input.
type ClusterSnapshot struct {
	ClusterID              string
	ClusterName            string
	WorkspaceID            string
	CreatorEmail           string
	State                  string
	NodeType               string
	NumWorkers             int
	PhotonEnabled          bool
	AutoTerminationMinutes int
	AvgCPUUtilization      float64
	AvgMemoryUtilization   float64
	TotalCostUSD           float64
	IdleHours              float64
	LastActiveAt           *time.Time
	Tags                   map[string]string
	CollectedAt            time.Time
}

func (c ClusterSnapshot) Running() bool {
	return c.State == "RUNNING"
}
