package enricher

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"QuoteHarvest/internal/calculator"
	"QuoteHarvest/internal/dataset"
	"QuoteHarvest/internal/logging"
	"QuoteHarvest/internal/model"
)

// Window is the trailing window for the moving average, rolling std and momentum.
const Window = 7

var requiredColumns = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// Result summarises one enrichment run.
type Result struct {
	InputRows  int
	OutputRows int
}

// Enricher derives indicators from the merged flat file.
type Enricher struct {
	InputPath  string
	OutputPath string
	logger     *zap.Logger
}

func NewEnricher(inputPath, outputPath string, logger *zap.Logger) *Enricher {
	return &Enricher{InputPath: inputPath, OutputPath: outputPath, logger: logger}
}

// row is a parsed input line; NaN marks a missing value.
type row struct {
	date    time.Time
	hasDate bool
	vals    [5]float64 // open, high, low, close, volume
}

func (r row) close() float64 { return r.vals[3] }

// Enrich reads the merged dataset and rewrites the enriched dataset wholesale.
// On failure the previous enriched file is left untouched.
func (e *Enricher) Enrich(ctx context.Context) (*Result, error) {
	log := logging.Component(e.logger, "DataEnricher", "enrich")
	log.Info("loading raw data", zap.String("path", e.InputPath))

	fr, err := dataset.ReadFrame(e.InputPath)
	if err != nil {
		log.Error("failed to load merged dataset", zap.Error(err))
		return nil, fmt.Errorf("%w: read %s: %w", model.ErrStorage, e.InputPath, err)
	}
	if missing := fr.Missing(requiredColumns...); len(missing) > 0 {
		err := fmt.Errorf("%w: %s is missing columns %s", model.ErrConfiguration, e.InputPath, strings.Join(missing, ", "))
		log.Error("cannot enrich dataset", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("enrich %s: %w", e.InputPath, err)
	}

	log.Info("transforming data types and cleaning values", zap.Int("rows", len(fr.Records)))
	rows := parseRows(fr)
	rows = sortAndDrop(rows)

	log.Info("computing financial indicators", zap.Int("rows", len(rows)))
	enriched := compute(rows)

	if err := dataset.WriteEnriched(e.OutputPath, enriched); err != nil {
		log.Error("failed to write enriched dataset", zap.String("path", e.OutputPath), zap.Error(err))
		return nil, fmt.Errorf("%w: write %s: %w", model.ErrStorage, e.OutputPath, err)
	}

	res := &Result{InputRows: len(fr.Records), OutputRows: len(enriched)}
	log.Info("enrichment completed",
		zap.String("path", e.OutputPath),
		zap.Int("input_rows", res.InputRows),
		zap.Int("output_rows", res.OutputRows))
	return res, nil
}

func parseRows(fr *dataset.Frame) []row {
	cols := make([]int, len(requiredColumns))
	for i, c := range requiredColumns {
		cols[i] = fr.Col(c)
	}

	rows := make([]row, len(fr.Records))
	for i, rec := range fr.Records {
		r := row{}
		r.date, r.hasDate = dataset.ParseDate(rec[cols[0]])
		for j := 1; j <= 4; j++ {
			r.vals[j-1] = parseNumber(rec[cols[j]])
		}
		r.vals[4] = parseVolume(rec[cols[5]])
		rows[i] = r
	}
	return rows
}

// parseNumber is dataset.ParseNumber with NaN marking a missing value.
func parseNumber(s string) float64 {
	v, ok := dataset.ParseNumber(s)
	if !ok {
		return math.NaN()
	}
	return v
}

// parseVolume is parseNumber truncated to a whole share count.
func parseVolume(s string) float64 {
	v := parseNumber(s)
	if math.IsNaN(v) {
		return v
	}
	return math.Trunc(v)
}

// sortAndDrop orders rows by date (missing dates last) and drops rows
// without a date or close.
func sortAndDrop(rows []row) []row {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].hasDate != rows[j].hasDate {
			return rows[i].hasDate
		}
		return rows[i].date.Before(rows[j].date)
	})
	out := rows[:0]
	for _, r := range rows {
		if !r.hasDate || math.IsNaN(r.close()) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// compute derives the indicators over a date-sorted series and drops every
// row that ends up with an undefined value. Rounding happens before the
// cumulative return so it compounds the rounded daily figures.
func compute(rows []row) []model.EnrichedBar {
	closes := make([]float64, len(rows))
	for i, r := range rows {
		closes[i] = r.close()
	}

	daily := calculator.PctChange(closes)
	for i := range daily {
		daily[i] *= 100
	}
	calculator.RoundAll(daily)
	ma := calculator.RoundAll(calculator.RollingMean(closes, Window, 1))
	std := calculator.RoundAll(calculator.RollingStd(closes, Window, 1))
	cum := calculator.RoundAll(calculator.CumulativeReturn(daily))
	mom := calculator.RoundAll(calculator.Momentum(closes, Window))

	out := make([]model.EnrichedBar, 0, len(rows))
	for i, r := range rows {
		derived := []float64{daily[i], ma[i], std[i], cum[i], mom[i]}
		if anyNaN(r.vals[:]) || anyNaN(derived) {
			continue
		}
		out = append(out, model.EnrichedBar{
			Bar: model.Bar{
				Date:   r.date,
				Open:   r.vals[0],
				High:   r.vals[1],
				Low:    r.vals[2],
				Close:  r.vals[3],
				Volume: r.vals[4],
			},
			DailyReturn:      daily[i],
			MA7Close:         ma[i],
			STD7Close:        std[i],
			CumulativeReturn: cum[i],
			Momentum7:        mom[i],
		})
	}
	return out
}

func anyNaN(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
