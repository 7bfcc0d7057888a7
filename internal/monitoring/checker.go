package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/reputexa/reputexa/internal/config"
	"github.com/reputexa/reputexa/internal/metrics"
)

// Checker refreshes the dashboard gauges and evaluates alerts on an
// interval.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
}

// NewChecker creates a background checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{collector: collector, alerter: alerter, interval: interval}
}

// Run checks once immediately and then on every tick until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting dashboard checker", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.Check(ctx)
		select {
		case <-ctx.Done():
			log.Info("dashboard checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check performs a single collect, publish and alert cycle.
func (c *Checker) Check(ctx context.Context) *Snapshot {
	if ctx.Err() != nil {
		return nil
	}
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		zap.L().Error("monitoring: failed to collect snapshot", zap.Error(err))
		return nil
	}
	Publish(snap)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return snap
	}
	sent := c.alerter.SendAlerts(ctx, alerts)
	zap.L().Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return snap
}

// Publish copies snap onto the dashboard gauges.
func Publish(snap *Snapshot) {
	metrics.SetDashboard("total_reviews", float64(snap.TotalReviews))
	metrics.SetDashboard("avg_rating", snap.AverageRating)
	metrics.SetDashboard("security_alerts", float64(snap.SecurityAlerts))
	metrics.SetDashboard("time_saved_minutes", float64(snap.TimeSavedMinutes))
	metrics.SetDashboard("prospects_to_contact", float64(snap.ProspectsToContact))
}
