package domain

import "time"

type AlertKind string

const (
	AlertBudgetThreshold AlertKind = "budget_threshold"
	AlertCostSpike       AlertKind = "cost_spike"
	AlertDailyBudget     AlertKind = "daily_budget"
)

type NotificationChannel string

const (
	ChannelSlack NotificationChannel = "slack"
	ChannelEmail NotificationChannel = "email"
)

// Alert is a threshold definition owned by configuration. For
// budget_threshold and daily_budget the threshold is an absolute USD
// amount; for cost_spike it is a day-over-day percentage increase.
type Alert struct {
	ID          string
	Name        string
	Kind        AlertKind
	WorkspaceID string
	Threshold   float64
	Channels    []NotificationChannel
	Cooldown    time.Duration
	Active      bool
}

// AlertFiring captures one evaluation that fired. History is append-only;
// a breach persisting inside the cooldown window produces no new entry.
type AlertFiring struct {
	ID           string
	AlertID      string
	AlertName    string
	Kind         AlertKind
	TriggeredAt  time.Time
	CurrentValue float64
	Threshold    float64
	Message      string
	// Delivered records per-channel dispatch outcome. A false value means
	// delivery failed; the firing itself stands regardless.
	Delivered map[NotificationChannel]bool
}
