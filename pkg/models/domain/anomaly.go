package domain

import "time"

type AnomalyDimension string

const (
	DimensionOverall   AnomalyDimension = "overall"
	DimensionWorkspace AnomalyDimension = "workspace"
	DimensionSKU       AnomalyDimension = "sku"
)

// Anomaly is a day flagged by the detector. Scope carries the workspace id
// or SKU name for sliced dimensions and is empty for the overall series.
type Anomaly struct {
	Dimension AnomalyDimension
	Scope     string
	Date      time.Time
	Value     float64
	Expected  float64
	ZScore    float64
	PctChange float64
	Severity  Severity
}
