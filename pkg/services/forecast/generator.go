package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/costpulse/pkg/adapters"
	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/models/store"
	forecaststore "github.com/de-tools/costpulse/pkg/store/duckdb/forecast"
	"github.com/de-tools/costpulse/pkg/store/duckdb/usage"
)

const (
	// seasonalMinDays is the minimum history for the seasonal model.
	seasonalMinDays = 30
	// lookbackDays bounds how much history feeds a forecast.
	lookbackDays = 90
	// confidenceZ is the z value for a two-sided ~95% interval.
	confidenceZ = 1.96

	overallScope = "overall"
)

// ErrInsufficientData is returned when the history has fewer than two points.
var ErrInsufficientData = errors.New("insufficient history for forecasting")

// Generator produces daily cost forecasts. The seasonal model is preferred
// when at least 30 days of history exist; otherwise a linear trend over
// whatever history is available. Regenerating a scope replaces its prior
// forecast in full.
type Generator interface {
	GenerateForecast(ctx context.Context, workspaceID string, horizonDays int) ([]domain.ForecastPoint, error)
	GetForecast(ctx context.Context, workspaceID string) ([]domain.ForecastPoint, error)
}

type generator struct {
	usage     usage.Store
	forecasts forecaststore.Store
	now       func() time.Time
}

func NewGenerator(usageStore usage.Store, forecastStore forecaststore.Store) Generator {
	return &generator{
		usage:     usageStore,
		forecasts: forecastStore,
		now:       time.Now,
	}
}

func (g *generator) GenerateForecast(ctx context.Context, workspaceID string, horizonDays int) ([]domain.ForecastPoint, error) {
	logger := zerolog.Ctx(ctx)

	if horizonDays < domain.MinForecastHorizonDays || horizonDays > domain.MaxForecastHorizonDays {
		return nil, fmt.Errorf("horizon %d days outside allowed range [%d, %d]",
			horizonDays, domain.MinForecastHorizonDays, domain.MaxForecastHorizonDays)
	}

	history, err := g.loadHistory(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if len(history) < 2 {
		return nil, fmt.Errorf("%w: %d data points", ErrInsufficientData, len(history))
	}

	var points []domain.ForecastPoint
	if len(history) >= seasonalMinDays {
		points = seasonalForecast(history, horizonDays)
	} else {
		logger.Debug().
			Int("data_points", len(history)).
			Msg("history below seasonal minimum, using linear trend")
		points = linearForecast(history, horizonDays)
	}

	scope := scopeKey(workspaceID)
	generatedAt := g.now()
	rows := make([]store.ForecastPoint, 0, len(points))
	for _, p := range points {
		rows = append(rows, adapters.MapDomainForecastPointToStore(scope, p, generatedAt))
	}
	if err := g.forecasts.ReplaceScope(ctx, scope, rows); err != nil {
		return nil, fmt.Errorf("persist forecast for scope %s: %w", scope, err)
	}

	logger.Info().
		Str("scope", scope).
		Int("horizon_days", horizonDays).
		Str("model", string(points[0].Model)).
		Msg("forecast generated")
	return points, nil
}

func (g *generator) GetForecast(ctx context.Context, workspaceID string) ([]domain.ForecastPoint, error) {
	rows, err := g.forecasts.ListScope(ctx, scopeKey(workspaceID))
	if err != nil {
		return nil, fmt.Errorf("load forecast: %w", err)
	}
	points := make([]domain.ForecastPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, adapters.MapStoreForecastPointToDomain(r))
	}
	return points, nil
}

func (g *generator) loadHistory(ctx context.Context, workspaceID string) ([]domain.DailyCost, error) {
	end := g.now()
	start := end.AddDate(0, 0, -lookbackDays)

	if workspaceID == "" {
		rows, err := g.usage.GetDailyTotals(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("load cost history: %w", err)
		}
		history := make([]domain.DailyCost, 0, len(rows))
		for _, r := range rows {
			history = append(history, domain.DailyCost{Date: r.Date, Cost: r.Cost})
		}
		return history, nil
	}

	rows, err := g.usage.GetDailyByWorkspace(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load workspace cost history: %w", err)
	}
	history := make([]domain.DailyCost, 0)
	for _, r := range rows {
		if r.Scope == workspaceID {
			history = append(history, domain.DailyCost{Date: r.Date, Cost: r.Cost})
		}
	}
	return history, nil
}

func scopeKey(workspaceID string) string {
	if workspaceID == "" {
		return overallScope
	}
	return workspaceID
}

// seasonalForecast fits a linear trend and adjusts each projected day by its
// day-of-week factor learned from history. Bounds come from the residual
// standard deviation and widen with forecast distance.
func seasonalForecast(history []domain.DailyCost, horizonDays int) []domain.ForecastPoint {
	values := costs(history)
	slope, intercept := linearFit(values)

	factors := weekdayFactors(history)

	// Residuals against the full trend+seasonal fit.
	fitted := make([]float64, len(values))
	for i, d := range history {
		fitted[i] = (slope*float64(i) + intercept) * factors[d.Date.Weekday()]
	}
	residualStd := residualStddev(values, fitted)

	lastDate := history[len(history)-1].Date
	n := len(values)

	points := make([]domain.ForecastPoint, 0, horizonDays)
	for i := 1; i <= horizonDays; i++ {
		date := lastDate.AddDate(0, 0, i)
		base := slope*float64(n-1+i) + intercept
		predicted := math.Max(0, base*factors[date.Weekday()])
		margin := confidenceZ * residualStd * widening(i, n)

		points = append(points, domain.ForecastPoint{
			Date:          date,
			PredictedCost: predicted,
			LowerBound:    math.Max(0, predicted-margin),
			UpperBound:    predicted + margin,
			Model:         domain.ForecastModelSeasonal,
		})
	}
	return points
}

// linearForecast extrapolates a straight trend line. With exactly two points
// the fit is exact, residuals are zero, and the band collapses onto the
// estimate.
func linearForecast(history []domain.DailyCost, horizonDays int) []domain.ForecastPoint {
	values := costs(history)
	slope, intercept := linearFit(values)

	fitted := make([]float64, len(values))
	for i := range values {
		fitted[i] = slope*float64(i) + intercept
	}
	residualStd := residualStddev(values, fitted)

	lastDate := history[len(history)-1].Date
	n := len(values)

	points := make([]domain.ForecastPoint, 0, horizonDays)
	for i := 1; i <= horizonDays; i++ {
		predicted := math.Max(0, slope*float64(n-1+i)+intercept)
		margin := confidenceZ * residualStd * widening(i, n)

		points = append(points, domain.ForecastPoint{
			Date:          lastDate.AddDate(0, 0, i),
			PredictedCost: predicted,
			LowerBound:    math.Max(0, predicted-margin),
			UpperBound:    predicted + margin,
			Model:         domain.ForecastModelLinear,
		})
	}
	return points
}

func costs(history []domain.DailyCost) []float64 {
	values := make([]float64, len(history))
	for i, d := range history {
		values[i] = d.Cost
	}
	return values
}

// weekdayFactors returns the multiplicative day-of-week adjustment. Weekdays
// with fewer than two observations, or a zero overall mean, fall back to 1.
func weekdayFactors(history []domain.DailyCost) map[time.Weekday]float64 {
	sums := make(map[time.Weekday]float64)
	counts := make(map[time.Weekday]int)
	total := 0.0
	for _, d := range history {
		sums[d.Date.Weekday()] += d.Cost
		counts[d.Date.Weekday()]++
		total += d.Cost
	}
	overallMean := total / float64(len(history))

	factors := make(map[time.Weekday]float64, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		factors[wd] = 1.0
		if overallMean > 0 && counts[wd] >= 2 {
			factors[wd] = (sums[wd] / float64(counts[wd])) / overallMean
		}
	}
	return factors
}

// linearFit returns slope and intercept of a least-squares line over the
// series indexed 0..n-1.
func linearFit(values []float64) (float64, float64) {
	n := float64(len(values))
	sumX, sumY, sumXY, sumX2 := 0.0, 0.0, 0.0, 0.0
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	return slope, intercept
}

func residualStddev(values, fitted []float64) float64 {
	variance := 0.0
	for i := range values {
		diff := values[i] - fitted[i]
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// widening scales the confidence margin with forecast distance relative to
// the history length. Strictly increasing in step, so bounds never narrow
// further out.
func widening(step, historyLen int) float64 {
	return math.Sqrt(1 + float64(step)/float64(historyLen))
}
