package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reputexa/reputexa/internal/metrics"
	"github.com/reputexa/reputexa/internal/monitoring"
	"github.com/reputexa/reputexa/internal/resilience"
	"github.com/reputexa/reputexa/internal/sniper"
	"github.com/reputexa/reputexa/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, dashboard checker and scheduled sweeps",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deps := apiDeps{
			Store:       st,
			Collector:   monitoring.NewCollector(st, cfg.Monitoring.MinutesPerReview),
			Registry:    metrics.NewRegistry(),
			Breakers:    sniper.NewBreakers(cfg.Sniper.BreakerThreshold),
			CORSOrigins: cfg.Server.CORSOrigins,
		}
		if p, err := newReviewPipeline(cfg, st); err != nil {
			zap.L().Warn("review endpoints disabled", zap.Error(err))
			deps.ReviewsErr = err
		} else {
			deps.Reviews = p
		}

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(deps.Collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		if sched := startScheduler(ctx, st, deps.Breakers); sched != nil {
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				sched.Stop(stopCtx)
			}()
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// startScheduler launches the configured sweeps. It returns nil when no
// schedule is set or the sniper cannot be built.
func startScheduler(ctx context.Context, st store.Store, breakers *resilience.Breakers) *sniper.Scheduler {
	if cfg.Sniper.Schedule == "" {
		return nil
	}
	s, err := newSniper(cfg, st, breakers)
	if err != nil {
		zap.L().Warn("scheduled sweeps disabled", zap.Error(err))
		return nil
	}
	targets := sniperTargets(cfg)
	if len(targets) == 0 {
		targets = []sniper.Params{sniper.FromArgs(nil)}
	}
	sched, err := sniper.NewScheduler(ctx, s, cfg.Sniper.Schedule, targets)
	if err != nil {
		zap.L().Warn("scheduled sweeps disabled", zap.Error(err))
		return nil
	}
	sched.Start()
	zap.L().Info("scheduled sweeps enabled",
		zap.String("schedule", cfg.Sniper.Schedule),
		zap.Int("targets", len(targets)),
	)
	return sched
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
