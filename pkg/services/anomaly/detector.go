package anomaly

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/models/store"
	"github.com/de-tools/costpulse/pkg/store/duckdb/usage"
)

const (
	// DefaultSensitivity is the base |z| threshold for flagging a day.
	DefaultSensitivity = 2.0
	// DefaultLookbackDays bounds how much history a scan reads.
	DefaultLookbackDays = 30

	rollingWindow = 7
)

// Detector flags days whose cost deviates from the trailing week. Each
// slice (overall, per workspace, per SKU) is scanned independently, so one
// day can surface several differently-scoped anomalies.
type Detector interface {
	DetectAnomalies(ctx context.Context, lookbackDays int, sensitivity float64) ([]domain.Anomaly, error)
}

type detector struct {
	usage usage.Store
	now   func() time.Time
}

func NewDetector(usageStore usage.Store) Detector {
	return &detector{usage: usageStore, now: time.Now}
}

func (d *detector) DetectAnomalies(ctx context.Context, lookbackDays int, sensitivity float64) ([]domain.Anomaly, error) {
	logger := zerolog.Ctx(ctx)

	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}

	end := d.now()
	start := end.AddDate(0, 0, -lookbackDays)

	anomalies := make([]domain.Anomaly, 0)

	totals, err := d.usage.GetDailyTotals(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load daily totals: %w", err)
	}
	anomalies = append(anomalies, scanSeries(domain.DimensionOverall, "", toSeries(totals), sensitivity)...)

	byWorkspace, err := d.usage.GetDailyByWorkspace(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load workspace series: %w", err)
	}
	for scope, series := range groupByScope(byWorkspace) {
		anomalies = append(anomalies, scanSeries(domain.DimensionWorkspace, scope, series, sensitivity)...)
	}

	bySKU, err := d.usage.GetDailyBySKU(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load sku series: %w", err)
	}
	for scope, series := range groupByScope(bySKU) {
		anomalies = append(anomalies, scanSeries(domain.DimensionSKU, scope, series, sensitivity)...)
	}

	logger.Info().Int("anomalies_found", len(anomalies)).Msg("anomaly detection complete")
	return anomalies, nil
}

func toSeries(rows []store.DailyCost) []domain.DailyCost {
	series := make([]domain.DailyCost, 0, len(rows))
	for _, r := range rows {
		series = append(series, domain.DailyCost{Date: r.Date, Cost: r.Cost})
	}
	return series
}

func groupByScope(rows []store.DailyCost) map[string][]domain.DailyCost {
	grouped := make(map[string][]domain.DailyCost)
	for _, r := range rows {
		grouped[r.Scope] = append(grouped[r.Scope], domain.DailyCost{Date: r.Date, Cost: r.Cost})
	}
	return grouped
}

// scanSeries applies the rolling z-score test to an ordered daily series.
// Days without a full 7-day trailing window are never flagged; a window
// with zero variance yields an undefined z and is suppressed.
func scanSeries(dimension domain.AnomalyDimension, scope string, series []domain.DailyCost, sensitivity float64) []domain.Anomaly {
	if len(series) <= rollingWindow {
		return nil
	}

	anomalies := make([]domain.Anomaly, 0)
	for i := rollingWindow; i < len(series); i++ {
		window := series[i-rollingWindow : i]
		mean, stddev := meanStddev(window)
		if stddev == 0 {
			continue
		}

		value := series[i].Cost
		z := (value - mean) / stddev
		if math.Abs(z) <= sensitivity {
			continue
		}

		pctChange := 0.0
		if mean > 0 {
			pctChange = (value - mean) / mean * 100
		}

		anomalies = append(anomalies, domain.Anomaly{
			Dimension: dimension,
			Scope:     scope,
			Date:      series[i].Date,
			Value:     value,
			Expected:  mean,
			ZScore:    z,
			PctChange: pctChange,
			Severity:  severityForZ(z),
		})
	}
	return anomalies
}

// severityForZ bands the score from highest to lowest, first match wins.
func severityForZ(z float64) domain.Severity {
	abs := math.Abs(z)
	switch {
	case abs > 3.0:
		return domain.SeverityCritical
	case abs > 2.5:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

func meanStddev(window []domain.DailyCost) (float64, float64) {
	sum := 0.0
	for _, d := range window {
		sum += d.Cost
	}
	mean := sum / float64(len(window))

	variance := 0.0
	for _, d := range window {
		diff := d.Cost - mean
		variance += diff * diff
	}
	variance /= float64(len(window))
	return mean, math.Sqrt(variance)
}
