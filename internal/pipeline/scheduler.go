package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"QuoteHarvest/internal/notifier"
)

// Scheduler runs the pipeline on a cron expression.
type Scheduler struct {
	Cron     *cron.Cron
	Pipeline *Pipeline
	Notifier notifier.Notifier
	Ctx      context.Context
	logger   *zap.Logger
	running  sync.Mutex
}

// errBusy is returned when a run is requested while another is in progress.
var errBusy = errors.New("a pipeline run is already in progress")

// NewScheduler creates a scheduler whose expressions carry a seconds field.
// A run that is still going when the next one fires causes that tick to be
// skipped. A nil notifier disables run reports.
func NewScheduler(ctx context.Context, p *Pipeline, n notifier.Notifier, logger *zap.Logger) *Scheduler {
	if n == nil {
		n = notifier.NoopNotifier{}
	}
	cl := cronLogger{logger.Named("cron").Sugar()}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Pipeline: p,
		Notifier: n,
		Ctx:      ctx,
		logger:   logger,
	}
}

// Register adds the pipeline run under the cron expression expr.
func (s *Scheduler) Register(expr string) error {
	if _, err := s.Cron.AddFunc(expr, s.run); err != nil {
		return fmt.Errorf("register pipeline task %q: %w", expr, err)
	}
	s.logger.Info("pipeline task registered", zap.String("cron", expr))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the scheduler and waits for a running pipeline to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow executes the pipeline immediately (for manual trigger / run_on_start).
func (s *Scheduler) RunNow() {
	s.run()
}

// runExclusive runs the pipeline unless a run from any trigger is already
// in progress.
func (s *Scheduler) runExclusive(ctx context.Context) (*Report, error) {
	if !s.running.TryLock() {
		return nil, errBusy
	}
	defer s.running.Unlock()
	return s.Pipeline.RunOnce(ctx)
}

func (s *Scheduler) run() {
	rep, err := s.runExclusive(s.Ctx)
	if errors.Is(err, errBusy) {
		s.logger.Warn("skipping run", zap.Error(err))
		return
	}
	if err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
	if rep == nil {
		return
	}
	text := FormatReport(rep)
	s.logger.Info("scheduled run report\n" + text)
	if err := s.Notifier.Notify(s.Ctx, text); err != nil {
		s.logger.Error("send run report failed", zap.Error(err))
	}
}

// HandleCommand processes an operator command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch command {
	case "/run":
		rep, err := s.runExclusive(ctx)
		if rep == nil {
			return "Run not started: " + err.Error()
		}
		return FormatReport(rep)
	case "/metrics":
		m, err := s.Pipeline.Trainer.LoadMetrics()
		if err != nil {
			return "No trained model yet: " + err.Error()
		}
		return fmt.Sprintf("RMSE: %.4f | MAE: %.4f | R2: %.4f", m.RMSE, m.MAE, m.R2)
	default:
		return "Available commands:\n/run - run the pipeline now\n/metrics - show model metrics"
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
