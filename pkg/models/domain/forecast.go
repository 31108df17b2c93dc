package domain

import "time"

type ForecastModel string

const (
	ForecastModelSeasonal ForecastModel = "seasonal"
	ForecastModelLinear   ForecastModel = "linear"
)

const (
	MinForecastHorizonDays = 7
	MaxForecastHorizonDays = 90
)

// ForecastPoint is one projected day. Bounds are a two-sided ~95% interval;
// with a degenerate history (identical points, zero residual) the band
// collapses to the estimate itself.
type ForecastPoint struct {
	Date          time.Time
	PredictedCost float64
	LowerBound    float64
	UpperBound    float64
	Model         ForecastModel
}
