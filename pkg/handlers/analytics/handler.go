package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/de-tools/costpulse/pkg/adapters"
	"github.com/de-tools/costpulse/pkg/models/api"
	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/services/alerting"
	"github.com/de-tools/costpulse/pkg/services/allocation"
	"github.com/de-tools/costpulse/pkg/services/anomaly"
	"github.com/de-tools/costpulse/pkg/services/forecast"
	"github.com/de-tools/costpulse/pkg/services/recommendation"
	"github.com/de-tools/costpulse/pkg/services/tagcompliance"
)

const (
	defaultLookbackDays = 30
	defaultHorizonDays  = 30
	defaultListLimit    = 50
	dateLayout          = "2006-01-02"
)

type Handler struct {
	allocations     allocation.Engine
	anomalies       anomaly.Detector
	forecasts       forecast.Generator
	recommendations recommendation.Scanner
	alerts          alerting.Evaluator
	compliance      tagcompliance.Checker
}

func NewHandler(
	allocations allocation.Engine,
	anomalies anomaly.Detector,
	forecasts forecast.Generator,
	recommendations recommendation.Scanner,
	alerts alerting.Evaluator,
	compliance tagcompliance.Checker,
) *Handler {
	return &Handler{
		allocations:     allocations,
		anomalies:       anomalies,
		forecasts:       forecasts,
		recommendations: recommendations,
		alerts:          alerts,
		compliance:      compliance,
	}
}

// RunAllocation allocates a period's cost records across teams. The period
// defaults to the current calendar month.
func (h *Handler) RunAllocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	period, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.allocations.AllocateCosts(ctx, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "allocation failed")
		zerolog.Ctx(ctx).Error().Err(err).Msg("allocation failed")
		return
	}

	writeJSON(ctx, w, adapters.MapDomainAllocationResultToApi(result))
}

// GetTeamCosts returns a team's allocations for a period.
func (h *Handler) GetTeamCosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamID := chi.URLParam(r, "team")

	period, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	allocations, err := h.allocations.GetTeamCosts(ctx, teamID, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load team costs")
		zerolog.Ctx(ctx).Error().Err(err).Str("team", teamID).Msg("failed to load team costs")
		return
	}

	response := make([]api.Allocation, 0, len(allocations))
	for _, a := range allocations {
		response = append(response, adapters.MapDomainAllocationToApi(a))
	}
	writeJSON(ctx, w, response)
}

// DetectAnomalies scans recent daily series for cost anomalies.
func (h *Handler) DetectAnomalies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lookback := intQuery(r, "lookback_days", defaultLookbackDays)
	sensitivity := floatQuery(r, "sensitivity", anomaly.DefaultSensitivity)

	anomalies, err := h.anomalies.DetectAnomalies(ctx, lookback, sensitivity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "anomaly detection failed")
		zerolog.Ctx(ctx).Error().Err(err).Msg("anomaly detection failed")
		return
	}

	response := make([]api.Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		response = append(response, adapters.MapDomainAnomalyToApi(a))
	}
	writeJSON(ctx, w, response)
}

// GenerateForecast produces a fresh forecast for the requested scope.
func (h *Handler) GenerateForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID := r.URL.Query().Get("workspace_id")
	horizon := intQuery(r, "horizon_days", defaultHorizonDays)

	points, err := h.forecasts.GenerateForecast(ctx, workspaceID, horizon)
	if err != nil {
		if errors.Is(err, forecast.ErrInsufficientData) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "forecast generation failed")
		zerolog.Ctx(ctx).Error().Err(err).Msg("forecast generation failed")
		return
	}

	response := make([]api.ForecastPoint, 0, len(points))
	for _, p := range points {
		response = append(response, adapters.MapDomainForecastPointToApi(p))
	}
	writeJSON(ctx, w, response)
}

// ScanRecommendations runs the savings scan over the latest cluster
// snapshots and returns the newly created recommendations.
func (h *Handler) ScanRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	created, err := h.recommendations.ScanRecommendations(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "recommendation scan failed")
		zerolog.Ctx(ctx).Error().Err(err).Msg("recommendation scan failed")
		return
	}

	response := make([]api.Recommendation, 0, len(created))
	for _, rec := range created {
		response = append(response, adapters.MapDomainRecommendationToApi(rec))
	}
	writeJSON(ctx, w, response)
}

// ListRecommendations returns stored recommendations, newest first.
func (h *Handler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := r.URL.Query().Get("status")
	recType := r.URL.Query().Get("type")
	limit := intQuery(r, "limit", defaultListLimit)

	recs, err := h.recommendations.ListRecommendations(ctx, status, recType, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list recommendations")
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to list recommendations")
		return
	}

	response := make([]api.Recommendation, 0, len(recs))
	for _, rec := range recs {
		response = append(response, adapters.MapDomainRecommendationToApi(rec))
	}
	writeJSON(ctx, w, response)
}

// UpdateRecommendationStatus transitions a recommendation's status.
func (h *Handler) UpdateRecommendationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var update api.RecommendationStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.recommendations.UpdateStatus(ctx, id, domain.RecommendationStatus(update.Status))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckAlerts evaluates all active alerts and returns the firings.
func (h *Handler) CheckAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fired, err := h.alerts.CheckAlerts(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "alert evaluation failed")
		zerolog.Ctx(ctx).Error().Err(err).Msg("alert evaluation failed")
		return
	}

	response := make([]api.AlertFiring, 0, len(fired))
	for _, f := range fired {
		response = append(response, adapters.MapDomainFiringToApi(f))
	}
	writeJSON(ctx, w, response)
}

// GetAlertHistory returns the firing history of one alert, newest first.
func (h *Handler) GetAlertHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertID := chi.URLParam(r, "alert")
	limit := intQuery(r, "limit", defaultListLimit)

	firings, err := h.alerts.GetHistory(ctx, alertID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load alert history")
		zerolog.Ctx(ctx).Error().Err(err).Str("alert", alertID).Msg("failed to load alert history")
		return
	}

	response := make([]api.AlertFiring, 0, len(firings))
	for _, f := range firings {
		response = append(response, adapters.MapDomainFiringToApi(f))
	}
	writeJSON(ctx, w, response)
}

// CheckTagCompliance reports tag compliance across clusters and billed
// usage. Required tags default to the standard governance set and can be
// overridden with a comma-separated required_tags parameter.
func (h *Handler) CheckTagCompliance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID := r.URL.Query().Get("workspace_id")
	var required []string
	if raw := r.URL.Query().Get("required_tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				required = append(required, tag)
			}
		}
	}

	report, err := h.compliance.CheckCompliance(ctx, required, workspaceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "tag compliance check failed")
		zerolog.Ctx(ctx).Error().Err(err).Msg("tag compliance check failed")
		return
	}

	writeJSON(ctx, w, adapters.MapDomainComplianceReportToApi(report))
}

// periodFromQuery parses start/end dates, defaulting to the current month.
func periodFromQuery(r *http.Request) (domain.Period, error) {
	now := time.Now()
	period := domain.Period{
		Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
		End:   now,
	}

	if raw := r.URL.Query().Get("start"); raw != "" {
		start, err := time.Parse(dateLayout, raw)
		if err != nil {
			return domain.Period{}, errors.New("invalid start date, expected YYYY-MM-DD")
		}
		period.Start = start
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		end, err := time.Parse(dateLayout, raw)
		if err != nil {
			return domain.Period{}, errors.New("invalid end date, expected YYYY-MM-DD")
		}
		period.End = end
	}
	if !period.End.After(period.Start) {
		return domain.Period{}, errors.New("end date must be after start date")
	}
	return period, nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func floatQuery(r *http.Request, key string, fallback float64) float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func writeJSON(ctx context.Context, w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.Error{Message: message})
}
