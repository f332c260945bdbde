package main

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"QuoteHarvest/internal/collector"
	"QuoteHarvest/internal/config"
	"QuoteHarvest/internal/enricher"
	"QuoteHarvest/internal/logging"
	"QuoteHarvest/internal/notifier"
	"QuoteHarvest/internal/pipeline"
	"QuoteHarvest/internal/recorder"
	"QuoteHarvest/internal/trainer"
)

// app holds the process-wide config and logger shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	logFile string
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	cfg.Storage.TablePolicy = strings.ToLower(cfg.Storage.TablePolicy)

	logger, logFile, err := logging.New(logging.Options{
		Dir:     cfg.Logging.Dir,
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: cfg.Logging.Console,
	}, time.Now())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.Info("QuoteHarvest starting", zap.String("config", cfgPath), zap.String("log_file", logFile))
	return &app{cfg: cfg, logger: logger, logFile: logFile}, nil
}

func (a *app) newFetcher() collector.Fetcher {
	if a.cfg.Source.HTMLFile != "" {
		return collector.NewFileFetcher(a.cfg.Source.HTMLFile)
	}
	return collector.NewHTTPFetcher(a.cfg.Source.URL, a.cfg.Source.UserAgent, a.cfg.Source.Proxy, a.cfg.Source.Timeout)
}

// openRecorder opens the table store for one save. With the table store off
// a noop recorder stands in.
func (a *app) openRecorder() (recorder.Recorder, error) {
	if a.cfg.Storage.TablePolicy == config.PolicyOff {
		return recorder.NewNoopRecorder(), nil
	}
	return recorder.NewSQLiteRecorder(a.cfg.Storage.SQLitePath, a.cfg.Storage.TablePolicy, a.logger)
}

func (a *app) newTrainer() *trainer.Trainer {
	return trainer.NewTrainer(a.cfg.Storage.EnrichedCSV, a.cfg.Model.Path, a.cfg.Model.MetricsPath, a.logger)
}

func (a *app) newPipeline() *pipeline.Pipeline {
	f := a.newFetcher()
	a.logger.Info("data source", zap.String("fetcher", f.Name()))
	return pipeline.NewPipeline(
		collector.NewCollector(f, a.openRecorder, a.cfg.Storage.MergedCSV, a.logger),
		enricher.NewEnricher(a.cfg.Storage.MergedCSV, a.cfg.Storage.EnrichedCSV, a.logger),
		a.newTrainer(),
		a.logger,
	)
}

// newTelegram returns the Telegram notifier, or nil when none is configured.
func (a *app) newTelegram() *notifier.TelegramNotifier {
	if a.cfg.Telegram.BotToken == "" {
		return nil
	}
	return notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Source.Proxy, a.logger)
}

func (a *app) close() {
	_ = a.logger.Sync()
}
