package trainer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"QuoteHarvest/internal/dataset"
	"QuoteHarvest/internal/logging"
	"QuoteHarvest/internal/model"
)

// Features are the same-day predictors, in coefficient order.
var Features = []string{"Open", "High", "Low", "Volume"}

const targetColumn = "Close"

// Trainer fits the next-day close model and serves predictions from it.
type Trainer struct {
	DataPath    string
	ModelPath   string
	MetricsPath string
	logger      *zap.Logger
	now         func() time.Time
}

func NewTrainer(dataPath, modelPath, metricsPath string, logger *zap.Logger) *Trainer {
	return &Trainer{
		DataPath:    dataPath,
		ModelPath:   modelPath,
		MetricsPath: metricsPath,
		logger:      logger,
		now:         time.Now,
	}
}

type sample struct {
	date    time.Time
	x       []float64
	close   float64
	hasDate bool
}

// Train fits the model on the enriched dataset and persists the model and its
// in-sample metrics. Nothing is written when the dataset is unusable.
func (t *Trainer) Train(ctx context.Context) (*Metrics, error) {
	log := logging.Component(t.logger, "ModelTrainer", "train")
	log.Info("loading data", zap.String("path", t.DataPath))

	fr, err := dataset.ReadFrame(t.DataPath)
	if err != nil {
		log.Error("failed to load enriched dataset", zap.Error(err))
		return nil, fmt.Errorf("%w: read %s: %w", model.ErrStorage, t.DataPath, err)
	}
	required := append([]string{"Date", targetColumn}, Features...)
	if missing := fr.Missing(required...); len(missing) > 0 {
		err := fmt.Errorf("%w: missing columns needed to train the model: %s", model.ErrConfiguration, strings.Join(missing, ", "))
		log.Error("error training model", zap.Error(err))
		return nil, err
	}

	x, y := buildSupervised(loadSamples(fr))
	if len(y) < len(Features)+1 {
		err := fmt.Errorf("%w: %d usable rows, need at least %d", model.ErrDataQuality, len(y), len(Features)+1)
		log.Error("error training model", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("train %s: %w", t.DataPath, err)
	}

	intercept, coef, err := FitOLS(x, y)
	if err != nil {
		log.Error("error training model", zap.Error(err))
		return nil, fmt.Errorf("%w: fit: %w", model.ErrDataQuality, err)
	}
	m := &Model{
		Features:     append([]string(nil), Features...),
		Intercept:    intercept,
		Coefficients: coef,
		Rows:         len(y),
		TrainedAt:    t.now().UTC(),
	}
	if err := SaveModel(t.ModelPath, m); err != nil {
		log.Error("failed to save model", zap.String("path", t.ModelPath), zap.Error(err))
		return nil, fmt.Errorf("%w: save model: %w", model.ErrStorage, err)
	}
	log.Info("model trained and saved", zap.String("path", t.ModelPath), zap.Int("rows", m.Rows))

	pred := make([]float64, len(x))
	for i := range x {
		pred[i] = m.Predict(x[i])
	}
	metrics := Evaluate(y, pred)
	log.Info("model evaluated",
		zap.Float64("rmse", metrics.RMSE),
		zap.Float64("mae", metrics.MAE),
		zap.Float64("r2", metrics.R2))

	if err := SaveMetrics(t.MetricsPath, metrics); err != nil {
		log.Error("failed to save metrics", zap.String("path", t.MetricsPath), zap.Error(err))
		return nil, fmt.Errorf("%w: save metrics: %w", model.ErrStorage, err)
	}
	log.Info("metrics saved", zap.String("path", t.MetricsPath))
	return &metrics, nil
}

// loadSamples parses the frame and sorts it by date. Unparseable numbers
// become NaN so the row is dropped once the target is built.
func loadSamples(fr *dataset.Frame) []sample {
	dateCol, closeCol := fr.Col("Date"), fr.Col(targetColumn)
	featCols := make([]int, len(Features))
	for i, f := range Features {
		featCols[i] = fr.Col(f)
	}

	samples := make([]sample, len(fr.Records))
	for i, rec := range fr.Records {
		s := sample{x: make([]float64, len(Features))}
		s.date, s.hasDate = dataset.ParseDate(rec[dateCol])
		s.close = parseFloat(rec[closeCol])
		for j, c := range featCols {
			s.x[j] = parseFloat(rec[c])
		}
		samples[i] = s
	}
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].hasDate != samples[j].hasDate {
			return samples[i].hasDate
		}
		return samples[i].date.Before(samples[j].date)
	})
	return samples
}

// buildSupervised pairs each row's features with the next row's close and
// drops the last row plus any row with a missing value.
func buildSupervised(samples []sample) (x [][]float64, y []float64) {
	for i := 0; i+1 < len(samples); i++ {
		s := samples[i]
		target := samples[i+1].close
		if !s.hasDate || math.IsNaN(s.close) || math.IsNaN(target) || anyNaN(s.x) {
			continue
		}
		x = append(x, s.x)
		y = append(y, target)
	}
	return x, y
}

// Predict loads the persisted model and returns one prediction per row.
// Every row must carry all of Features.
func (t *Trainer) Predict(rows []map[string]float64) ([]float64, error) {
	log := logging.Component(t.logger, "ModelTrainer", "predict")

	for i, r := range rows {
		var missing []string
		for _, f := range Features {
			if _, ok := r[f]; !ok {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			err := fmt.Errorf("%w: row %d is missing columns needed to predict: %s", model.ErrConfiguration, i, strings.Join(missing, ", "))
			log.Error("error making predictions", zap.Error(err))
			return nil, err
		}
	}

	log.Info("loading model", zap.String("path", t.ModelPath))
	m, err := LoadModel(t.ModelPath)
	if err != nil {
		log.Error("error making predictions", zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", model.ErrModelLoad, t.ModelPath, err)
	}

	out := make([]float64, len(rows))
	x := make([]float64, len(m.Features))
	for i, r := range rows {
		for j, f := range m.Features {
			x[j] = r[f]
		}
		out[i] = m.Predict(x)
	}
	log.Info("predictions generated", zap.Int("rows", len(out)))
	return out, nil
}

// LoadMetrics returns the metrics persisted by the last successful Train.
func (t *Trainer) LoadMetrics() (*Metrics, error) {
	m, err := LoadMetrics(t.MetricsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStorage, err)
	}
	return m, nil
}

func parseFloat(s string) float64 {
	v, ok := dataset.ParseNumber(s)
	if !ok {
		return math.NaN()
	}
	return v
}

func anyNaN(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
