package collector

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"QuoteHarvest/internal/dataset"
	"QuoteHarvest/internal/logging"
	"QuoteHarvest/internal/model"
	"QuoteHarvest/internal/recorder"
)

// RecorderFactory opens the table store for the duration of one save.
type RecorderFactory func() (recorder.Recorder, error)

// Result summarises one collection run.
type Result struct {
	Scraped   int
	Dropped   int
	Cleaned   int
	Table     recorder.SaveResult
	TableRows int
	FileRows  int
}

// Collector orchestrates fetching, parsing, cleaning and persisting quotes.
type Collector struct {
	Fetcher      Fetcher
	OpenRecorder RecorderFactory
	MergedPath   string
	logger       *zap.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, openRecorder RecorderFactory, mergedPath string, logger *zap.Logger) *Collector {
	return &Collector{
		Fetcher:      fetcher,
		OpenRecorder: openRecorder,
		MergedPath:   mergedPath,
		logger:       logger,
	}
}

// Run fetches the page and persists any new rows to both sinks. A failure at
// any step is logged and returned as a typed error; nothing downstream of the
// failing step is written.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	log := logging.Component(c.logger, "Collector", "run")
	res := &Result{}

	html, err := c.fetch(ctx)
	if err != nil {
		log.Error("fetch failed", zap.Error(err))
		return res, err
	}

	raw, err := c.parse(html)
	if err != nil {
		log.Warn("no data parsed from HTML", zap.Error(err))
		return res, err
	}
	res.Scraped = len(raw)

	bars, dropped, err := c.clean(raw)
	res.Dropped = dropped
	if err != nil {
		log.Warn("data cleaning resulted in an empty dataset", zap.Error(err))
		return res, err
	}
	res.Cleaned = len(bars)

	if err := c.save(ctx, bars, res); err != nil {
		return res, err
	}

	log.Info("collection finished",
		zap.Int("scraped", res.Scraped),
		zap.Int("dropped", res.Dropped),
		zap.Int("inserted", res.Table.Inserted),
		zap.Int("file_rows", res.FileRows))
	return res, nil
}

func (c *Collector) fetch(ctx context.Context) (string, error) {
	log := logging.Component(c.logger, "Collector", "fetch")
	log.Info("fetching data", zap.String("source", c.Fetcher.Name()))

	html, err := c.Fetcher.Fetch(ctx)
	if err != nil {
		log.Error("failed to fetch data", zap.Error(err))
		return "", err
	}
	return html, nil
}

func (c *Collector) parse(html string) ([]model.RawQuote, error) {
	log := logging.Component(c.logger, "Collector", "parse")
	log.Info("parsing HTML content", zap.Int("bytes", len(html)))

	raw, err := ParseTable(html)
	if err != nil {
		log.Error("exception while parsing data", zap.Error(err))
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: table has no data rows", model.ErrParse)
	}
	return raw, nil
}

func (c *Collector) clean(raw []model.RawQuote) ([]model.Bar, int, error) {
	log := logging.Component(c.logger, "Collector", "clean")
	log.Info("cleaning data", zap.Int("rows", len(raw)))

	bars, dropped := Clean(raw)
	log.Info("dropped incomplete rows", zap.Int("dropped", dropped))
	if len(bars) == 0 {
		return nil, dropped, fmt.Errorf("%w: all %d rows dropped during cleaning", model.ErrDataQuality, len(raw))
	}
	// One bar per date; a page that repeats a date keeps its last row.
	return dataset.MergeLastWins(nil, bars), dropped, nil
}

// save writes to the table store and the flat file independently; a failure
// in one does not prevent the other.
func (c *Collector) save(ctx context.Context, bars []model.Bar, res *Result) error {
	var errs []error
	if err := c.saveToTable(ctx, bars, res); err != nil {
		errs = append(errs, err)
	}
	if err := c.saveToFile(bars, res); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", model.ErrStorage, errors.Join(errs...))
	}
	return nil
}

func (c *Collector) saveToTable(ctx context.Context, bars []model.Bar, res *Result) error {
	log := logging.Component(c.logger, "Collector", "save_to_db")
	log.Info("saving data to SQLite database")

	rec, err := c.OpenRecorder()
	if err != nil {
		log.Error("failed to open database", zap.Error(err))
		return fmt.Errorf("open table store: %w", err)
	}
	defer rec.Close()

	saved, err := rec.Save(ctx, bars)
	if err != nil {
		log.Error("failed to save data to database", zap.Error(err))
		return fmt.Errorf("save to table store: %w", err)
	}
	res.Table = saved

	if saved.Inserted+saved.Updated == 0 {
		log.Info("no new data to insert into the database", zap.Int("skipped", saved.Skipped))
	} else {
		log.Info("stored records in the database",
			zap.Int("inserted", saved.Inserted),
			zap.Int("updated", saved.Updated),
			zap.Int("skipped", saved.Skipped))
	}

	stored, err := rec.Bars(ctx)
	if err != nil {
		log.Error("failed to read back stored records", zap.Error(err))
		return fmt.Errorf("read table store: %w", err)
	}
	res.TableRows = len(stored)
	if len(stored) > 0 {
		log.Info("table store contents",
			zap.Int("rows", len(stored)),
			zap.String("first", stored[0].DateKey()),
			zap.String("last", stored[len(stored)-1].DateKey()))
	}
	return nil
}

func (c *Collector) saveToFile(bars []model.Bar, res *Result) error {
	log := logging.Component(c.logger, "Collector", "save_to_csv")

	var existing []model.Bar
	if _, err := os.Stat(c.MergedPath); err == nil {
		prior, skipped, err := dataset.ReadBars(c.MergedPath)
		if err != nil {
			log.Error("failed to read existing CSV", zap.String("path", c.MergedPath), zap.Error(err))
			return fmt.Errorf("read %s: %w", c.MergedPath, err)
		}
		if skipped > 0 {
			log.Warn("ignored unreadable rows in existing CSV", zap.Int("skipped", skipped))
		}
		existing = prior
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", c.MergedPath, err)
	}

	merged := dataset.MergeLastWins(existing, bars)
	if existing != nil {
		log.Info("merged with existing CSV", zap.Int("unique_records", len(merged)))
	} else {
		log.Info("creating new CSV with fresh data")
	}

	if err := dataset.WriteBars(c.MergedPath, merged); err != nil {
		log.Error("failed to save CSV", zap.String("path", c.MergedPath), zap.Error(err))
		return fmt.Errorf("write %s: %w", c.MergedPath, err)
	}
	res.FileRows = len(merged)
	log.Info("merged CSV saved", zap.String("path", c.MergedPath))
	return nil
}
