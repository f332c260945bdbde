package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"QuoteHarvest/internal/model"
)

// writeEnriched writes n rows of varied, non-collinear market data.
func writeEnriched(t *testing.T, path string, n int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,Open,High,Low,Close,Volume,Daily_Return\n")
	start := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		fi := float64(i)
		open := 100 + fi + 3*math.Sin(fi)
		high := open + 2 + math.Cos(fi*1.3)
		low := open - 2 - math.Sin(fi*0.7)
		cls := (high+low)/2 + 0.5*math.Cos(fi*2.1)
		vol := 1_000_000 + 25_000*math.Sin(fi*0.4) + float64(i%5)*1000
		fmt.Fprintf(&b, "%s,%.4f,%.4f,%.4f,%.4f,%.0f,0.1\n",
			start.AddDate(0, 0, i).Format(model.DateLayout), open, high, low, cls, vol)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
}

type paths struct {
	data, model, metrics string
}

func newPaths(t *testing.T) paths {
	dir := t.TempDir()
	return paths{
		data:    filepath.Join(dir, "enriched_data.csv"),
		model:   filepath.Join(dir, "models", "model.json"),
		metrics: filepath.Join(dir, "models", "metrics.csv"),
	}
}

func (p paths) trainer() *Trainer {
	return NewTrainer(p.data, p.model, p.metrics, zap.NewNop())
}

func TestTrain_PersistsModelAndMetrics(t *testing.T) {
	p := newPaths(t)
	writeEnriched(t, p.data, 40)

	tr := p.trainer()
	metrics, err := tr.Train(context.Background())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if math.IsNaN(metrics.RMSE) || math.IsInf(metrics.RMSE, 0) || metrics.RMSE < 0 {
		t.Errorf("RMSE = %v, want finite and non-negative", metrics.RMSE)
	}
	if metrics.MAE < 0 || metrics.MAE > metrics.RMSE+1e-12 {
		t.Errorf("MAE = %v, want 0 <= MAE <= RMSE (%v)", metrics.MAE, metrics.RMSE)
	}
	if metrics.R2 > 1 {
		t.Errorf("R2 = %v, want <= 1", metrics.R2)
	}

	m, err := LoadModel(p.model)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	// The last row has no next-day close.
	if m.Rows != 39 {
		t.Errorf("model rows = %d, want 39", m.Rows)
	}
	if strings.Join(m.Features, ",") != "Open,High,Low,Volume" {
		t.Errorf("features = %v", m.Features)
	}

	saved, err := tr.LoadMetrics()
	if err != nil {
		t.Fatalf("LoadMetrics: %v", err)
	}
	if *saved != *metrics {
		t.Errorf("saved metrics = %+v, want %+v", *saved, *metrics)
	}

	preds, err := tr.Predict([]map[string]float64{{"Open": 100, "High": 105, "Low": 99, "Volume": 1_000_000}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(preds) != 1 || math.IsNaN(preds[0]) {
		t.Errorf("predictions = %v, want one finite value", preds)
	}
}

func TestTrain_MissingColumnWritesNothing(t *testing.T) {
	p := newPaths(t)
	if err := os.WriteFile(p.data, []byte("Date,Open,High,Low,Close\n2025-01-02,1,2,0.5,1.5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := p.trainer().Train(context.Background())
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "Volume") {
		t.Errorf("error should name the missing column: %v", err)
	}
	for _, path := range []string{p.model, p.metrics} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s should not exist", path)
		}
	}
}

func TestTrain_TooFewRows(t *testing.T) {
	p := newPaths(t)
	writeEnriched(t, p.data, 4)

	_, err := p.trainer().Train(context.Background())
	if !errors.Is(err, model.ErrDataQuality) {
		t.Fatalf("expected ErrDataQuality, got %v", err)
	}
	if _, err := os.Stat(p.model); !os.IsNotExist(err) {
		t.Error("model should not be written")
	}
}

func TestTrain_NonFiniteCellsAreMissing(t *testing.T) {
	p := newPaths(t)
	writeEnriched(t, p.data, 40)
	data, err := os.ReadFile(p.data)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(data), "\n")
	for i, bad := range map[int]string{5: "NaN", 12: "+Inf"} {
		fields := strings.Split(lines[i], ",")
		fields[1] = bad
		lines[i] = strings.Join(fields, ",")
	}
	if err := os.WriteFile(p.data, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := p.trainer().Train(context.Background()); err != nil {
		t.Fatalf("Train: %v", err)
	}
	m, err := LoadModel(p.model)
	if err != nil {
		t.Fatal(err)
	}
	if m.Rows != 37 {
		t.Errorf("model rows = %d, want 37 with two non-finite rows dropped", m.Rows)
	}
}

func TestTrain_Canceled(t *testing.T) {
	p := newPaths(t)
	writeEnriched(t, p.data, 40)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.trainer().Train(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if kind := model.KindOf(err); kind != "canceled" {
		t.Errorf("kind = %q, want canceled", kind)
	}
	if _, err := os.Stat(p.model); !os.IsNotExist(err) {
		t.Error("model should not be written")
	}
}

func TestTrain_MissingInput(t *testing.T) {
	p := newPaths(t)
	if _, err := p.trainer().Train(context.Background()); !errors.Is(err, model.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestPredict_Errors(t *testing.T) {
	p := newPaths(t)
	tr := p.trainer()

	_, err := tr.Predict([]map[string]float64{{"Open": 1, "High": 2, "Low": 0.5}})
	if !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("missing Volume: expected ErrConfiguration, got %v", err)
	}

	_, err = tr.Predict([]map[string]float64{{"Open": 1, "High": 2, "Low": 0.5, "Volume": 10}})
	if !errors.Is(err, model.ErrModelLoad) {
		t.Errorf("no model: expected ErrModelLoad, got %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.model), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.model, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = tr.Predict([]map[string]float64{{"Open": 1, "High": 2, "Low": 0.5, "Volume": 10}})
	if !errors.Is(err, model.ErrModelLoad) {
		t.Errorf("corrupt model: expected ErrModelLoad, got %v", err)
	}
}

func TestFitOLS_RecoversExactCoefficients(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 12; i++ {
		fi := float64(i)
		row := []float64{fi, fi * fi / 10, math.Sin(fi)}
		x = append(x, row)
		y = append(y, 2+1.5*row[0]-0.5*row[1]+3*row[2])
	}

	b0, coef, err := FitOLS(x, y)
	if err != nil {
		t.Fatalf("FitOLS: %v", err)
	}
	want := []float64{1.5, -0.5, 3}
	if math.Abs(b0-2) > 1e-8 {
		t.Errorf("intercept = %v, want 2", b0)
	}
	for i := range want {
		if math.Abs(coef[i]-want[i]) > 1e-8 {
			t.Errorf("coef[%d] = %v, want %v", i, coef[i], want[i])
		}
	}
}

func TestFitOLS_TooFewObservations(t *testing.T) {
	if _, _, err := FitOLS([][]float64{{1, 2}, {3, 4}}, []float64{1, 2}); err == nil {
		t.Error("expected error for 2 observations and 3 coefficients")
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name          string
		actual, pred  []float64
		rmse, mae, r2 float64
	}{
		{"perfect", []float64{1, 2, 3}, []float64{1, 2, 3}, 0, 0, 1},
		{"constant target, perfect", []float64{5, 5, 5}, []float64{5, 5, 5}, 0, 0, 1},
		{"constant target, off", []float64{5, 5}, []float64{4, 6}, 1, 1, 0},
		{"mean predictor", []float64{1, 3}, []float64{2, 2}, 1, 1, 0},
	}
	for _, tt := range tests {
		got := Evaluate(tt.actual, tt.pred)
		if math.Abs(got.RMSE-tt.rmse) > 1e-12 || math.Abs(got.MAE-tt.mae) > 1e-12 || math.Abs(got.R2-tt.r2) > 1e-12 {
			t.Errorf("%s: got %+v, want RMSE=%v MAE=%v R2=%v", tt.name, got, tt.rmse, tt.mae, tt.r2)
		}
	}
}

func TestModelRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m", "model.json")
	m := &Model{Features: []string{"a", "b"}, Intercept: 1, Coefficients: []float64{2, 3}, Rows: 7}
	if err := SaveModel(path, m); err != nil {
		t.Fatal(err)
	}
	got, err := LoadModel(path)
	if err != nil {
		t.Fatal(err)
	}
	if p := got.Predict([]float64{1, 1}); p != 6 {
		t.Errorf("Predict = %v, want 6", p)
	}
}
