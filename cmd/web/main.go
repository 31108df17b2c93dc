package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/user"
	"time"

	dbsql "database/sql"

	"github.com/databricks/databricks-sdk-go"
	_ "github.com/databricks/databricks-sql-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/de-tools/costpulse/pkg/metrics"
	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/server"
	"github.com/de-tools/costpulse/pkg/services/alerting"
	"github.com/de-tools/costpulse/pkg/services/alerting/notify"
	"github.com/de-tools/costpulse/pkg/services/allocation"
	"github.com/de-tools/costpulse/pkg/services/anomaly"
	"github.com/de-tools/costpulse/pkg/services/collector"
	"github.com/de-tools/costpulse/pkg/services/config"
	"github.com/de-tools/costpulse/pkg/services/forecast"
	"github.com/de-tools/costpulse/pkg/services/pricing"
	"github.com/de-tools/costpulse/pkg/services/recommendation"
	"github.com/de-tools/costpulse/pkg/services/scheduler"
	"github.com/de-tools/costpulse/pkg/services/tagcompliance"
	"github.com/de-tools/costpulse/pkg/store/cooldown"
	"github.com/de-tools/costpulse/pkg/store/duckdb"
	duckdbalert "github.com/de-tools/costpulse/pkg/store/duckdb/alert"
	duckdballocation "github.com/de-tools/costpulse/pkg/store/duckdb/allocation"
	duckdbcluster "github.com/de-tools/costpulse/pkg/store/duckdb/cluster"
	duckdbforecast "github.com/de-tools/costpulse/pkg/store/duckdb/forecast"
	duckdbrecommendation "github.com/de-tools/costpulse/pkg/store/duckdb/recommendation"
	duckdbrule "github.com/de-tools/costpulse/pkg/store/duckdb/rule"
	duckdbstate "github.com/de-tools/costpulse/pkg/store/duckdb/state"
	duckdbteam "github.com/de-tools/costpulse/pkg/store/duckdb/team"
	duckdbusage "github.com/de-tools/costpulse/pkg/store/duckdb/usage"
)

var (
	cfgPath        string
	databricksPath string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the CostPulse server and scheduler",
		RunE:  runServer,
	}

	usr, _ := user.Current()
	defaultDatabricksPath := fmt.Sprintf("%s/.databrickscfg", usr.HomeDir)

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to an optional YAML settings file")
	rootCmd.Flags().StringVar(&databricksPath, "databrickscfg", defaultDatabricksPath,
		"Path to the .databrickscfg file (default is $HOME/.databrickscfg)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	settings, err := config.LoadSettings(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	db, err := duckdb.NewDB(duckdb.Settings{
		DbPath: settings.DatabasePath,
	})
	if err != nil {
		return fmt.Errorf("failed to create DuckDB instance: %w", err)
	}

	usageStore, err := duckdbusage.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create usage store: %w", err)
	}
	teamStore, err := duckdbteam.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create team store: %w", err)
	}
	ruleStore, err := duckdbrule.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create rule store: %w", err)
	}
	allocationStore, err := duckdballocation.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create allocation store: %w", err)
	}
	clusterStore, err := duckdbcluster.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create cluster store: %w", err)
	}
	recommendationStore, err := duckdbrecommendation.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create recommendation store: %w", err)
	}
	forecastStore, err := duckdbforecast.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create forecast store: %w", err)
	}
	alertStore, err := duckdbalert.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create alert store: %w", err)
	}
	stateStore, err := duckdbstate.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create state store: %w", err)
	}

	var cooldowns cooldown.Store
	if settings.RedisAddr != "" {
		redisStore, err := cooldown.NewRedisStore(settings.RedisAddr, settings.RedisPassword, settings.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		cooldowns = redisStore
		logger.Info().Str("addr", settings.RedisAddr).Msg("using redis cooldown store")
	} else {
		cooldowns = cooldown.NewMemoryStore()
	}

	calculator := pricing.NewCalculator(nil)

	notifiers := map[domain.NotificationChannel]notify.Notifier{
		domain.ChannelEmail: notify.NewLogNotifier(domain.ChannelEmail),
	}
	if settings.SlackWebhookURL != "" {
		notifiers[domain.ChannelSlack] = notify.NewSlackNotifier(settings.SlackWebhookURL)
	}

	allocationEngine := allocation.NewEngine(usageStore, ruleStore, teamStore, allocationStore)
	anomalyDetector := anomaly.NewDetector(usageStore)
	forecastGenerator := forecast.NewGenerator(usageStore, forecastStore)
	recommendationScanner := recommendation.NewScanner(clusterStore, recommendationStore, calculator)
	alertEvaluator := alerting.NewEvaluator(alertStore, usageStore, cooldowns, notifiers)
	complianceChecker := tagcompliance.NewChecker(clusterStore, usageStore)

	engineMetrics := metrics.New()

	var billingCollector *collector.BillingCollector
	var clusterCollector *collector.ClusterCollector

	registry, err := config.NewRegistry(databricksPath)
	if err != nil {
		logger.Warn().Err(err).Msg("no databricks config found, collectors disabled")
	} else {
		billingCollector, clusterCollector, err = buildCollectors(
			registry, settings, usageStore, clusterStore, stateStore, calculator)
		if err != nil {
			logger.Warn().Err(err).Msg("collector setup failed, collectors disabled")
		}
	}

	sched := scheduler.New(scheduler.Config{
		Interval:        settings.ScheduleInterval,
		Billing:         billingCollector,
		Clusters:        clusterCollector,
		Alerts:          alertEvaluator,
		Recommendations: recommendationScanner,
		Anomalies:       anomalyDetector,
		Metrics:         engineMetrics,
	})
	go func() {
		if err := sched.Run(ctx); err != nil {
			logger.Info().Err(err).Msg("scheduler exited")
		}
	}()

	api := server.NewWebAPI(logger, server.Config{
		Addr:            settings.ListenAddr,
		ShutdownTimeout: 10 * time.Second,
		Dependencies: server.Dependencies{
			Allocations:     allocationEngine,
			Anomalies:       anomalyDetector,
			Forecasts:       forecastGenerator,
			Recommendations: recommendationScanner,
			Alerts:          alertEvaluator,
			Compliance:      complianceChecker,
		},
	})
	return api.Start()
}

func buildCollectors(
	registry config.Registry,
	settings *config.Settings,
	usageStore duckdbusage.Store,
	clusterStore duckdbcluster.Store,
	stateStore duckdbstate.Store,
	calculator *pricing.Calculator,
) (*collector.BillingCollector, *collector.ClusterCollector, error) {
	ctx := context.Background()

	sdkConfig, err := registry.GetConfig(ctx, settings.DatabricksProfile)
	if err != nil {
		return nil, nil, fmt.Errorf("load profile %s: %w", settings.DatabricksProfile, err)
	}

	httpPath := settings.WarehouseHTTPPath
	if httpPath == "" {
		httpPath, err = registry.GetWarehousePath(ctx, settings.DatabricksProfile)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve warehouse path: %w", err)
		}
	}

	dsn := fmt.Sprintf("token:%s@%s%s", sdkConfig.Token, sdkConfig.Host, httpPath)
	params := url.Values{}
	params.Set("catalog", "system")
	params.Set("schema", "billing")
	dsn = dsn + "?" + params.Encode()

	warehouseDB, err := dbsql.Open("databricks", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to warehouse: %w", err)
	}

	billing, err := collector.NewBillingCollector(warehouseDB, usageStore, stateStore, calculator)
	if err != nil {
		return nil, nil, err
	}

	client, err := databricks.NewWorkspaceClient(&databricks.Config{
		Host:  sdkConfig.Host,
		Token: sdkConfig.Token,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create workspace client: %w", err)
	}

	clusters, err := collector.NewClusterCollector(client, settings.WorkspaceID, clusterStore, stateStore)
	if err != nil {
		return nil, nil, err
	}
	return billing, clusters, nil
}
