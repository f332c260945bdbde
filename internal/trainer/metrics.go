package trainer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

var metricsHeader = []string{"RMSE", "MAE", "R2"}

// Metrics are in-sample accuracy measures of a fitted model.
type Metrics struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// Evaluate compares predictions against actual values.
func Evaluate(actual, predicted []float64) Metrics {
	var sse, sae float64
	for i := range actual {
		d := actual[i] - predicted[i]
		sse += d * d
		sae += math.Abs(d)
	}
	n := float64(len(actual))
	m := Metrics{
		RMSE: math.Sqrt(sse / n),
		MAE:  sae / n,
	}

	// A constant target has no variance to explain: a perfect fit scores 1,
	// anything else 0.
	if stat.Variance(actual, nil) == 0 {
		if sse == 0 {
			m.R2 = 1
		}
		return m
	}
	m.R2 = stat.RSquaredFrom(predicted, actual, nil)
	return m
}

// SaveMetrics writes a single-row metrics CSV.
func SaveMetrics(filePath string, m Metrics) error {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(metricsHeader)
	w.Write([]string{f(m.RMSE), f(m.MAE), f(m.R2)})
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return writeFileAtomic(filePath, buf.Bytes())
}

// LoadMetrics reads the metrics CSV written by SaveMetrics.
func LoadMetrics(filePath string) (*Metrics, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	recs, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) != 2 || len(recs[1]) != len(metricsHeader) {
		return nil, fmt.Errorf("%s: expected header and one row", filePath)
	}
	vals := make([]float64, len(metricsHeader))
	for i, s := range recs[1] {
		if vals[i], err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", filePath, metricsHeader[i], err)
		}
	}
	return &Metrics{RMSE: vals[0], MAE: vals[1], R2: vals[2]}, nil
}
