package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"QuoteHarvest/internal/collector"
	"QuoteHarvest/internal/enricher"
	"QuoteHarvest/internal/logging"
	"QuoteHarvest/internal/model"
	"QuoteHarvest/internal/trainer"
)

// Stage outcomes recorded in a Report.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// StageReport is the outcome of one stage.
type StageReport struct {
	Name   string
	Status string
	Err    error
}

// Report summarises one pipeline run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Stages     []StageReport
	Collect    *collector.Result
	Enrich     *enricher.Result
	Metrics    *trainer.Metrics
}

func (r *Report) add(name, status string, err error) {
	r.Stages = append(r.Stages, StageReport{Name: name, Status: status, Err: err})
}

// Pipeline runs collect, enrich and train in order.
type Pipeline struct {
	Collector *collector.Collector
	Enricher  *enricher.Enricher
	Trainer   *trainer.Trainer
	logger    *zap.Logger
	now       func() time.Time
}

// NewPipeline creates a new Pipeline.
func NewPipeline(col *collector.Collector, enr *enricher.Enricher, tr *trainer.Trainer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		Collector: col,
		Enricher:  enr,
		Trainer:   tr,
		logger:    logger,
		now:       time.Now,
	}
}

// collectorRecoverable reports whether enrichment may proceed on the
// previously merged file after a collection failure.
func collectorRecoverable(err error) bool {
	return errors.Is(err, model.ErrNetwork) ||
		errors.Is(err, model.ErrParse) ||
		errors.Is(err, model.ErrDataQuality)
}

// RunOnce executes one full run. A failed fetch, parse or clean does not stop
// the run: enrichment and training proceed on the existing merged file. Any
// other failure ends the run and is returned.
func (p *Pipeline) RunOnce(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: uuid.New().String(), StartedAt: p.now()}
	log := logging.Component(p.logger, "Pipeline", "run_once").With(zap.String("run_id", rep.RunID))
	defer func() { rep.FinishedAt = p.now() }()

	log.Info("pipeline started")

	colRes, err := p.Collector.Run(ctx)
	rep.Collect = colRes
	switch {
	case err == nil:
		rep.add("collect", StatusOK, nil)
	case collectorRecoverable(err):
		rep.add("collect", StatusFailed, err)
		log.Warn("collection failed, continuing with existing data", zap.String("kind", model.KindOf(err)), zap.Error(err))
	default:
		rep.add("collect", StatusFailed, err)
		rep.add("enrich", StatusSkipped, nil)
		rep.add("train", StatusSkipped, nil)
		log.Error("collection failed, aborting", zap.String("kind", model.KindOf(err)), zap.Error(err))
		return rep, fmt.Errorf("collect: %w", err)
	}

	if err := ctx.Err(); err != nil {
		rep.add("enrich", StatusSkipped, err)
		rep.add("train", StatusSkipped, nil)
		log.Warn("run canceled after collection", zap.String("kind", model.KindOf(err)))
		return rep, fmt.Errorf("enrich: %w", err)
	}

	enrRes, err := p.Enricher.Enrich(ctx)
	rep.Enrich = enrRes
	if err != nil {
		rep.add("enrich", StatusFailed, err)
		rep.add("train", StatusSkipped, nil)
		log.Error("enrichment failed, aborting", zap.String("kind", model.KindOf(err)), zap.Error(err))
		return rep, fmt.Errorf("enrich: %w", err)
	}
	rep.add("enrich", StatusOK, nil)

	metrics, err := p.Trainer.Train(ctx)
	rep.Metrics = metrics
	if err != nil {
		rep.add("train", StatusFailed, err)
		log.Error("training failed", zap.String("kind", model.KindOf(err)), zap.Error(err))
		return rep, fmt.Errorf("train: %w", err)
	}
	rep.add("train", StatusOK, nil)

	log.Info("pipeline finished", zap.Duration("elapsed", p.now().Sub(rep.StartedAt)))
	return rep, nil
}
