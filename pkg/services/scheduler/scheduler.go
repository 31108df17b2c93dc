package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/costpulse/pkg/metrics"
	"github.com/de-tools/costpulse/pkg/services/alerting"
	"github.com/de-tools/costpulse/pkg/services/anomaly"
	"github.com/de-tools/costpulse/pkg/services/collector"
	"github.com/de-tools/costpulse/pkg/services/recommendation"
)

// Scheduler drives the periodic collection and analysis cycles. A cycle
// runs the collectors first, then alerts, recommendations, and anomaly
// detection against the fresh data. A failing pass is logged and counted;
// the rest of the cycle and the next tick proceed regardless.
type Scheduler struct {
	interval time.Duration

	billing  *collector.BillingCollector
	clusters *collector.ClusterCollector

	alerts          alerting.Evaluator
	recommendations recommendation.Scanner
	anomalies       anomaly.Detector

	metrics *metrics.Metrics
	now     func() time.Time
}

type Config struct {
	Interval time.Duration

	// Collectors are optional; a nil collector is skipped, which lets the
	// analysis cycle run against already-landed data.
	Billing  *collector.BillingCollector
	Clusters *collector.ClusterCollector

	Alerts          alerting.Evaluator
	Recommendations recommendation.Scanner
	Anomalies       anomaly.Detector

	Metrics *metrics.Metrics
}

func New(cfg Config) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		interval:        interval,
		billing:         cfg.Billing,
		clusters:        cfg.Clusters,
		alerts:          cfg.Alerts,
		recommendations: cfg.Recommendations,
		anomalies:       cfg.Anomalies,
		metrics:         cfg.Metrics,
		now:             time.Now,
	}
}

// Run blocks until ctx is cancelled. The first cycle starts immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Dur("interval", s.interval).Msg("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	s.runCollectionCycle(ctx)
	s.runAnalysisCycle(ctx)
}

func (s *Scheduler) runCollectionCycle(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("collection cycle started")

	if s.billing != nil {
		s.runPass(ctx, "collect_billing", func(ctx context.Context) error {
			count, err := s.billing.Collect(ctx)
			if err != nil {
				return err
			}
			s.metrics.AddCollected("billing", count)
			return nil
		})
	}

	if s.clusters != nil {
		s.runPass(ctx, "collect_clusters", func(ctx context.Context) error {
			count, err := s.clusters.Collect(ctx)
			if err != nil {
				return err
			}
			s.metrics.AddCollected("clusters", count)
			return nil
		})
	}
}

func (s *Scheduler) runAnalysisCycle(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("analysis cycle started")

	s.runPass(ctx, "check_alerts", func(ctx context.Context) error {
		fired, err := s.alerts.CheckAlerts(ctx)
		if err != nil {
			return err
		}
		s.metrics.AlertsFiredTotal.Add(float64(len(fired)))
		return nil
	})

	s.runPass(ctx, "scan_recommendations", func(ctx context.Context) error {
		_, err := s.recommendations.ScanRecommendations(ctx)
		return err
	})

	s.runPass(ctx, "detect_anomalies", func(ctx context.Context) error {
		found, err := s.anomalies.DetectAnomalies(ctx, anomaly.DefaultLookbackDays, anomaly.DefaultSensitivity)
		if err != nil {
			return err
		}
		s.metrics.AnomaliesFound.Add(float64(len(found)))
		return nil
	})
}

func (s *Scheduler) runPass(ctx context.Context, name string, fn func(context.Context) error) {
	logger := zerolog.Ctx(ctx)

	started := s.now()
	err := fn(ctx)
	elapsed := s.now().Sub(started)

	s.metrics.ObservePass(name, elapsed.Seconds())
	if err != nil {
		s.metrics.RecordPassError(name)
		logger.Error().Err(err).Str("pass", name).Dur("elapsed", elapsed).Msg("pass failed")
		return
	}
	s.metrics.RecordPassSuccess(name, float64(s.now().Unix()))
	logger.Info().Str("pass", name).Dur("elapsed", elapsed).Msg("pass complete")
}
