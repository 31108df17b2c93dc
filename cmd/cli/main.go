package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/de-tools/costpulse/pkg/adapters"
	"github.com/de-tools/costpulse/pkg/models/api"
	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/services/alerting"
	"github.com/de-tools/costpulse/pkg/services/alerting/notify"
	"github.com/de-tools/costpulse/pkg/services/allocation"
	"github.com/de-tools/costpulse/pkg/services/anomaly"
	"github.com/de-tools/costpulse/pkg/services/forecast"
	"github.com/de-tools/costpulse/pkg/services/pricing"
	"github.com/de-tools/costpulse/pkg/services/recommendation"
	"github.com/de-tools/costpulse/pkg/services/tagcompliance"
	"github.com/de-tools/costpulse/pkg/store/cooldown"
	"github.com/de-tools/costpulse/pkg/store/duckdb"
	duckdbalert "github.com/de-tools/costpulse/pkg/store/duckdb/alert"
	duckdballocation "github.com/de-tools/costpulse/pkg/store/duckdb/allocation"
	duckdbcluster "github.com/de-tools/costpulse/pkg/store/duckdb/cluster"
	duckdbforecast "github.com/de-tools/costpulse/pkg/store/duckdb/forecast"
	duckdbrecommendation "github.com/de-tools/costpulse/pkg/store/duckdb/recommendation"
	duckdbrule "github.com/de-tools/costpulse/pkg/store/duckdb/rule"
	duckdbteam "github.com/de-tools/costpulse/pkg/store/duckdb/team"
	duckdbusage "github.com/de-tools/costpulse/pkg/store/duckdb/usage"
)

var (
	dbPath       string
	lookbackDays int
	sensitivity  float64
	horizonDays  int
	workspaceID  string
	requiredTags []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "costpulse",
		Short: "Run CostPulse analytic passes from the command line",
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "costpulse.db", "Path to the DuckDB database file")

	allocateCmd := &cobra.Command{
		Use:   "allocate",
		Short: "Allocate the current month's costs across teams",
		RunE:  runAllocate,
	}

	anomaliesCmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Detect cost anomalies in recent history",
		RunE:  runAnomalies,
	}
	anomaliesCmd.Flags().IntVar(&lookbackDays, "lookback", anomaly.DefaultLookbackDays, "Days of history to scan")
	anomaliesCmd.Flags().Float64Var(&sensitivity, "sensitivity", anomaly.DefaultSensitivity, "Z-score threshold")

	forecastCmd := &cobra.Command{
		Use:   "forecast",
		Short: "Generate a cost forecast",
		RunE:  runForecast,
	}
	forecastCmd.Flags().IntVar(&horizonDays, "horizon", 30, "Forecast horizon in days")
	forecastCmd.Flags().StringVar(&workspaceID, "workspace", "", "Optional workspace scope")

	recommendationsCmd := &cobra.Command{
		Use:   "recommendations",
		Short: "Scan cluster snapshots for savings recommendations",
		RunE:  runRecommendations,
	}

	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Evaluate active alerts against current spend",
		RunE:  runAlerts,
	}

	complianceCmd := &cobra.Command{
		Use:   "compliance",
		Short: "Check tag compliance across clusters and billed usage",
		RunE:  runCompliance,
	}
	complianceCmd.Flags().StringVar(&workspaceID, "workspace", "", "Optional workspace scope")
	complianceCmd.Flags().StringSliceVar(&requiredTags, "tags", nil, "Required tag keys (default team,environment,project,cost_center)")

	rootCmd.AddCommand(allocateCmd, anomaliesCmd, forecastCmd, recommendationsCmd, alertsCmd, complianceCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type stores struct {
	usage           duckdbusage.Store
	teams           duckdbteam.Store
	rules           duckdbrule.Store
	allocations     duckdballocation.Store
	clusters        duckdbcluster.Store
	recommendations duckdbrecommendation.Store
	forecasts       duckdbforecast.Store
	alerts          duckdbalert.Store
}

func setup(cmd *cobra.Command) (context.Context, *stores, error) {
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "loaded .env file")
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	db, err := duckdb.NewDB(duckdb.Settings{DbPath: dbPath})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &stores{}
	if s.usage, err = duckdbusage.NewStore(db); err != nil {
		return nil, nil, err
	}
	if s.teams, err = duckdbteam.NewStore(db); err != nil {
		return nil, nil, err
	}
	if s.rules, err = duckdbrule.NewStore(db); err != nil {
		return nil, nil, err
	}
	if s.allocations, err = duckdballocation.NewStore(db); err != nil {
		return nil, nil, err
	}
	if s.clusters, err = duckdbcluster.NewStore(db); err != nil {
		return nil, nil, err
	}
	if s.recommendations, err = duckdbrecommendation.NewStore(db); err != nil {
		return nil, nil, err
	}
	if s.forecasts, err = duckdbforecast.NewStore(db); err != nil {
		return nil, nil, err
	}
	if s.alerts, err = duckdbalert.NewStore(db); err != nil {
		return nil, nil, err
	}
	return ctx, s, nil
}

func printJSON(payload interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func runAllocate(cmd *cobra.Command, _ []string) error {
	ctx, s, err := setup(cmd)
	if err != nil {
		return err
	}

	engine := allocation.NewEngine(s.usage, s.rules, s.teams, s.allocations)

	now := time.Now()
	period := domain.Period{
		Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
		End:   now,
	}
	result, err := engine.AllocateCosts(ctx, period)
	if err != nil {
		return err
	}
	return printJSON(adapters.MapDomainAllocationResultToApi(result))
}

func runAnomalies(cmd *cobra.Command, _ []string) error {
	ctx, s, err := setup(cmd)
	if err != nil {
		return err
	}

	detector := anomaly.NewDetector(s.usage)
	anomalies, err := detector.DetectAnomalies(ctx, lookbackDays, sensitivity)
	if err != nil {
		return err
	}

	response := make([]api.Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		response = append(response, adapters.MapDomainAnomalyToApi(a))
	}
	return printJSON(response)
}

func runForecast(cmd *cobra.Command, _ []string) error {
	ctx, s, err := setup(cmd)
	if err != nil {
		return err
	}

	generator := forecast.NewGenerator(s.usage, s.forecasts)
	points, err := generator.GenerateForecast(ctx, workspaceID, horizonDays)
	if err != nil {
		return err
	}

	response := make([]api.ForecastPoint, 0, len(points))
	for _, p := range points {
		response = append(response, adapters.MapDomainForecastPointToApi(p))
	}
	return printJSON(response)
}

func runRecommendations(cmd *cobra.Command, _ []string) error {
	ctx, s, err := setup(cmd)
	if err != nil {
		return err
	}

	scanner := recommendation.NewScanner(s.clusters, s.recommendations, pricing.NewCalculator(nil))
	created, err := scanner.ScanRecommendations(ctx)
	if err != nil {
		return err
	}

	response := make([]api.Recommendation, 0, len(created))
	for _, rec := range created {
		response = append(response, adapters.MapDomainRecommendationToApi(rec))
	}
	return printJSON(response)
}

func runCompliance(cmd *cobra.Command, _ []string) error {
	ctx, s, err := setup(cmd)
	if err != nil {
		return err
	}

	checker := tagcompliance.NewChecker(s.clusters, s.usage)
	report, err := checker.CheckCompliance(ctx, requiredTags, workspaceID)
	if err != nil {
		return err
	}
	return printJSON(adapters.MapDomainComplianceReportToApi(report))
}

func runAlerts(cmd *cobra.Command, _ []string) error {
	ctx, s, err := setup(cmd)
	if err != nil {
		return err
	}

	notifiers := map[domain.NotificationChannel]notify.Notifier{
		domain.ChannelEmail: notify.NewLogNotifier(domain.ChannelEmail),
		domain.ChannelSlack: notify.NewLogNotifier(domain.ChannelSlack),
	}
	if webhook := os.Getenv("SLACK_WEBHOOK_URL"); webhook != "" {
		notifiers[domain.ChannelSlack] = notify.NewSlackNotifier(webhook)
	}

	evaluator := alerting.NewEvaluator(s.alerts, s.usage, cooldown.NewMemoryStore(), notifiers)
	fired, err := evaluator.CheckAlerts(ctx)
	if err != nil {
		return err
	}

	response := make([]api.AlertFiring, 0, len(fired))
	for _, f := range fired {
		response = append(response, adapters.MapDomainFiringToApi(f))
	}
	return printJSON(response)
}
