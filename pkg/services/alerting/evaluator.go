package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/de-tools/costpulse/pkg/adapters"
	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/services/alerting/notify"
	"github.com/de-tools/costpulse/pkg/store/cooldown"
	alertstore "github.com/de-tools/costpulse/pkg/store/duckdb/alert"
	"github.com/de-tools/costpulse/pkg/store/duckdb/usage"
)

// Evaluator checks active alert definitions against current spend. A firing
// is recorded before dispatch; delivery failures are written back onto the
// firing and logged, never rolled back. The cooldown store is the single
// gate between condition and firing, so concurrent evaluations of one alert
// produce at most one entry per window.
type Evaluator interface {
	CheckAlerts(ctx context.Context) ([]domain.AlertFiring, error)
	GetHistory(ctx context.Context, alertID string, limit int) ([]domain.AlertFiring, error)
}

type evaluator struct {
	alerts    alertstore.Store
	usage     usage.Store
	cooldowns cooldown.Store
	notifiers map[domain.NotificationChannel]notify.Notifier
	now       func() time.Time
}

func NewEvaluator(
	alerts alertstore.Store,
	usageStore usage.Store,
	cooldowns cooldown.Store,
	notifiers map[domain.NotificationChannel]notify.Notifier,
) Evaluator {
	return &evaluator{
		alerts:    alerts,
		usage:     usageStore,
		cooldowns: cooldowns,
		notifiers: notifiers,
		now:       time.Now,
	}
}

func (e *evaluator) CheckAlerts(ctx context.Context) ([]domain.AlertFiring, error) {
	logger := zerolog.Ctx(ctx)

	rows, err := e.alerts.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active alerts: %w", err)
	}

	fired := make([]domain.AlertFiring, 0)
	for _, row := range rows {
		alert := adapters.MapStoreAlertToDomain(row)

		breached, value, message, err := e.evaluate(ctx, alert)
		if err != nil {
			logger.Error().Err(err).Str("alert_id", alert.ID).Msg("alert evaluation failed")
			continue
		}
		if !breached {
			continue
		}

		ok, err := e.cooldowns.TryAcquire(ctx, alert.ID, alert.Cooldown, e.now())
		if err != nil {
			return nil, fmt.Errorf("cooldown check for alert %s: %w", alert.ID, err)
		}
		if !ok {
			logger.Debug().Str("alert_id", alert.ID).Msg("alert suppressed by cooldown")
			continue
		}

		firing := domain.AlertFiring{
			ID:           uuid.NewString(),
			AlertID:      alert.ID,
			AlertName:    alert.Name,
			Kind:         alert.Kind,
			TriggeredAt:  e.now(),
			CurrentValue: value,
			Threshold:    alert.Threshold,
			Message:      message,
			Delivered:    make(map[domain.NotificationChannel]bool),
		}
		if err := e.alerts.AppendFiring(ctx, adapters.MapDomainFiringToStore(firing)); err != nil {
			// Give the window back so a retry of the pass can fire again.
			if relErr := e.cooldowns.Release(ctx, alert.ID); relErr != nil {
				logger.Error().Err(relErr).Str("alert_id", alert.ID).Msg("cooldown release failed")
			}
			return nil, fmt.Errorf("record firing for alert %s: %w", alert.ID, err)
		}

		e.dispatch(ctx, alert, &firing)
		fired = append(fired, firing)
	}

	logger.Info().
		Int("alerts_checked", len(rows)).
		Int("alerts_fired", len(fired)).
		Msg("alert evaluation complete")
	return fired, nil
}

// evaluate computes the alert kind's current value and compares it against
// the threshold. Unknown kinds are a configuration error, reported but
// never fatal to the pass.
func (e *evaluator) evaluate(ctx context.Context, alert domain.Alert) (bool, float64, string, error) {
	switch alert.Kind {
	case domain.AlertBudgetThreshold:
		return e.checkBudgetThreshold(ctx, alert)
	case domain.AlertCostSpike:
		return e.checkCostSpike(ctx, alert)
	case domain.AlertDailyBudget:
		return e.checkDailyBudget(ctx, alert)
	default:
		return false, 0, "", fmt.Errorf("unknown alert kind %q", alert.Kind)
	}
}

func (e *evaluator) checkBudgetThreshold(ctx context.Context, alert domain.Alert) (bool, float64, string, error) {
	now := e.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	spend, err := e.usage.SumCosts(ctx, monthStart, now, alert.WorkspaceID)
	if err != nil {
		return false, 0, "", fmt.Errorf("sum month-to-date spend: %w", err)
	}

	if spend >= alert.Threshold {
		msg := fmt.Sprintf("Monthly spend $%.2f exceeds threshold $%.2f", spend, alert.Threshold)
		return true, spend, msg, nil
	}
	return false, spend, "", nil
}

func (e *evaluator) checkCostSpike(ctx context.Context, alert domain.Alert) (bool, float64, string, error) {
	now := e.now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)

	todayCost, err := e.usage.SumCosts(ctx, todayStart, now, alert.WorkspaceID)
	if err != nil {
		return false, 0, "", fmt.Errorf("sum today's spend: %w", err)
	}
	yesterdayCost, err := e.usage.SumCosts(ctx, yesterdayStart, todayStart, alert.WorkspaceID)
	if err != nil {
		return false, 0, "", fmt.Errorf("sum yesterday's spend: %w", err)
	}

	// No baseline means no spike, not an error.
	if yesterdayCost <= 0 {
		return false, todayCost, "", nil
	}

	pctChange := (todayCost - yesterdayCost) / yesterdayCost * 100
	if pctChange >= alert.Threshold {
		msg := fmt.Sprintf("Cost spike detected: $%.2f today vs $%.2f yesterday (%+.1f%%)",
			todayCost, yesterdayCost, pctChange)
		return true, todayCost, msg, nil
	}
	return false, todayCost, "", nil
}

func (e *evaluator) checkDailyBudget(ctx context.Context, alert domain.Alert) (bool, float64, string, error) {
	now := e.now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	spend, err := e.usage.SumCosts(ctx, todayStart, now, alert.WorkspaceID)
	if err != nil {
		return false, 0, "", fmt.Errorf("sum today's spend: %w", err)
	}

	if spend >= alert.Threshold {
		msg := fmt.Sprintf("Daily spend $%.2f exceeds threshold $%.2f", spend, alert.Threshold)
		return true, spend, msg, nil
	}
	return false, spend, "", nil
}

// dispatch delivers the firing on every configured channel and writes the
// per-channel outcome back onto the stored firing.
func (e *evaluator) dispatch(ctx context.Context, alert domain.Alert, firing *domain.AlertFiring) {
	logger := zerolog.Ctx(ctx)

	for _, channel := range alert.Channels {
		notifier, ok := e.notifiers[channel]
		if !ok {
			logger.Warn().
				Str("alert_id", alert.ID).
				Str("channel", string(channel)).
				Msg("no notifier configured for channel")
			firing.Delivered[channel] = false
			continue
		}

		err := notifier.Notify(ctx, *firing)
		firing.Delivered[channel] = err == nil
		if err != nil {
			logger.Error().Err(err).
				Str("alert_id", alert.ID).
				Str("channel", string(channel)).
				Msg("notification dispatch failed")
		}
	}

	delivered, err := json.Marshal(firing.Delivered)
	if err != nil {
		logger.Error().Err(err).Str("firing_id", firing.ID).Msg("marshal delivery outcome failed")
		return
	}
	if err := e.alerts.UpdateDelivery(ctx, firing.ID, delivered); err != nil {
		logger.Error().Err(err).Str("firing_id", firing.ID).Msg("record delivery outcome failed")
	}
}

func (e *evaluator) GetHistory(ctx context.Context, alertID string, limit int) ([]domain.AlertFiring, error) {
	rows, err := e.alerts.ListFirings(ctx, alertID, limit)
	if err != nil {
		return nil, fmt.Errorf("load alert history: %w", err)
	}
	firings := make([]domain.AlertFiring, 0, len(rows))
	for _, r := range rows {
		firings = append(firings, adapters.MapStoreFiringToDomain(r))
	}
	return firings, nil
}
