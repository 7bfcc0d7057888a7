package sniper

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Runner executes one sweep. *Sniper implements it.
type Runner interface {
	Run(ctx context.Context, params Params) (*RunResult, error)
}

// Scheduler runs the configured targets on a cron schedule. A tick that
// fires while the previous sweep is still running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	job     cron.Job
	runner  Runner
	targets []Params
	skipped atomic.Int64
}

// NewScheduler validates schedule and registers the sweep job.
func NewScheduler(ctx context.Context, runner Runner, schedule string, targets []Params) (*Scheduler, error) {
	if len(targets) == 0 {
		return nil, eris.New("sniper: scheduler needs at least one target")
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger{})),
		runner:  runner,
		targets: targets,
	}
	s.job = cron.NewChain(cron.SkipIfStillRunning(skipLogger{s: s})).
		Then(cron.FuncJob(func() { s.Tick(ctx) }))
	if _, err := s.cron.AddJob(schedule, s.job); err != nil {
		return nil, eris.Wrapf(err, "sniper: parse schedule %q", schedule)
	}
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	zap.L().Info("sniper: scheduler started", zap.Int("targets", len(s.targets)))
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	zap.L().Info("sniper: scheduler stopped", zap.Int64("skipped_ticks", s.Skipped()))
}

// Tick runs every target once, in order. Overlap is guarded by the
// scheduled job, not by Tick itself.
func (s *Scheduler) Tick(ctx context.Context) {
	for _, target := range s.targets {
		if ctx.Err() != nil {
			return
		}
		res, err := s.runner.Run(ctx, target)
		if err != nil {
			zap.L().Error("sniper: scheduled sweep failed",
				zap.String("city", target.City),
				zap.String("category", target.Category),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("sniper: scheduled sweep done",
			zap.String("query", res.Query),
			zap.Int("saved", res.Saved()),
			zap.Int("failed", res.Failed),
		)
	}
}

// Skipped is the number of ticks dropped because of overlap.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	zap.L().Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	zap.L().Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

// skipLogger counts the ticks SkipIfStillRunning drops; cron reports each
// one as an Info "skip".
type skipLogger struct {
	s *Scheduler
}

func (l skipLogger) Info(msg string, keysAndValues ...any) {
	if msg == "skip" {
		l.s.skipped.Add(1)
		zap.L().Warn("sniper: previous sweep still running, tick skipped")
		return
	}
	cronLogger{}.Info(msg, keysAndValues...)
}

func (l skipLogger) Error(err error, msg string, keysAndValues ...any) {
	cronLogger{}.Error(err, msg, keysAndValues...)
}
