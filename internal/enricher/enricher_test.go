package enricher

import (
	"bytes"
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

	"QuoteHarvest/internal/dataset"
	"QuoteHarvest/internal/model"
)

// writeMerged writes a merged file with one row per close, starting on start.
// Rows are written newest first to exercise the sort.
func writeMerged(t *testing.T, path string, start time.Time, closes []float64, volume func(i int) string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,Open,High,Low,Close,Volume\n")
	for i := len(closes) - 1; i >= 0; i-- {
		c := closes[i]
		vol := "1000000"
		if volume != nil {
			vol = volume(i)
		}
		fmt.Fprintf(&b, "%s,%g,%g,%g,%g,%s\n", start.AddDate(0, 0, i).Format(model.DateLayout), c-1, c+1, c-2, c, vol)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
}

func increasing(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closes
}

func readEnriched(t *testing.T, path string) *dataset.Frame {
	t.Helper()
	fr, err := dataset.ReadFrame(path)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	return fr
}

func field(t *testing.T, fr *dataset.Frame, rec []string, col string) float64 {
	t.Helper()
	var v float64
	if _, err := fmt.Sscanf(rec[fr.Col(col)], "%g", &v); err != nil {
		t.Fatalf("column %s: %v", col, err)
	}
	return v
}

func TestEnrich_TenIncreasingDays(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "historical.csv"), filepath.Join(dir, "enriched.csv")
	start := time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)
	writeMerged(t, in, start, increasing(10), nil)

	res, err := NewEnricher(in, out, zap.NewNop()).Enrich(context.Background())
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	// Momentum_7 needs seven rows of history: only rows 8..10 survive.
	if res.InputRows != 10 || res.OutputRows != 3 {
		t.Fatalf("result = %+v, want 10 in / 3 out", res)
	}

	fr := readEnriched(t, out)
	if strings.Join(fr.Header, ",") != strings.Join(dataset.EnrichedHeader, ",") {
		t.Errorf("header = %v", fr.Header)
	}
	if fr.Records[0][0] != start.AddDate(0, 0, 7).Format(model.DateLayout) {
		t.Errorf("first output date = %s, want the eighth day", fr.Records[0][0])
	}

	prevCum := math.Inf(-1)
	for _, rec := range fr.Records {
		if dr := field(t, fr, rec, "Daily_Return"); dr <= 0 {
			t.Errorf("Daily_Return = %v, want > 0", dr)
		}
		cum := field(t, fr, rec, "Cumulative_Return")
		if cum <= prevCum {
			t.Errorf("Cumulative_Return not increasing: %v after %v", cum, prevCum)
		}
		prevCum = cum
	}

	first := fr.Records[0]
	checks := map[string]float64{
		"Daily_Return": 0.9434, // 107/106 - 1
		"MA_7_Close":   104,    // mean of 101..107
		"STD_7_Close":  2.1602, // sqrt(28/6)
		"Momentum_7":   0.07,   // 107/100 - 1
	}
	for col, want := range checks {
		if got := field(t, fr, first, col); math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", col, got, want)
		}
	}
}

func TestEnrich_ShortSeriesDropsEverything(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "historical.csv"), filepath.Join(dir, "enriched.csv")
	writeMerged(t, in, time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC), increasing(7), nil)

	res, err := NewEnricher(in, out, zap.NewNop()).Enrich(context.Background())
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if res.OutputRows != 0 {
		t.Errorf("output rows = %d, want 0 (Momentum_7 undefined for first 7 rows)", res.OutputRows)
	}
	if fr := readEnriched(t, out); len(fr.Records) != 0 {
		t.Errorf("enriched file has %d records", len(fr.Records))
	}
}

func TestEnrich_Deterministic(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "historical.csv")
	closes := []float64{100, 98.5, 101.25, 103, 99.75, 104.5, 106, 105.25, 107.5, 110, 108.75, 111}
	writeMerged(t, in, time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC), closes, nil)

	outA, outB := filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")
	if _, err := NewEnricher(in, outA, zap.NewNop()).Enrich(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := NewEnricher(in, outB, zap.NewNop()).Enrich(context.Background()); err != nil {
		t.Fatal(err)
	}
	a, _ := os.ReadFile(outA)
	b, _ := os.ReadFile(outB)
	if !bytes.Equal(a, b) {
		t.Error("enrichment is not deterministic")
	}
}

func TestEnrich_MissingValuesDropRowsAfterComputation(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "historical.csv"), filepath.Join(dir, "enriched.csv")
	volume := func(i int) string {
		if i == 9 {
			return "-"
		}
		return "\"1,000,000\""
	}
	writeMerged(t, in, time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), increasing(12), volume)

	res, err := NewEnricher(in, out, zap.NewNop()).Enrich(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Rows 7..11 have full history; row 9 lacks volume.
	if res.OutputRows != 4 {
		t.Errorf("output rows = %d, want 4", res.OutputRows)
	}
	fr := readEnriched(t, out)
	if got := fr.Records[0][fr.Col("Volume")]; got != "1000000" {
		t.Errorf("volume = %q, want 1000000", got)
	}
	// Row 10 still sees row 9's close in its window.
	if got := field(t, fr, fr.Records[2], "Momentum_7"); math.Abs(got-(110.0/103-1)) > 1e-4 {
		t.Errorf("Momentum_7 on row 10 = %v", got)
	}
}

func TestEnrich_MissingColumnKeepsPriorOutput(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "historical.csv"), filepath.Join(dir, "enriched.csv")
	if err := os.WriteFile(in, []byte("Date,Open,High,Low,Close\n2025-01-02,1,2,0.5,1.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(out, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewEnricher(in, out, zap.NewNop()).Enrich(context.Background())
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if data, _ := os.ReadFile(out); string(data) != "stale" {
		t.Error("prior enriched file was modified")
	}
}

func TestEnrich_MissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := NewEnricher(filepath.Join(dir, "absent.csv"), filepath.Join(dir, "out.csv"), zap.NewNop()).Enrich(context.Background())
	if !errors.Is(err, model.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestEnrich_Canceled(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "historical.csv"), filepath.Join(dir, "enriched_data.csv")
	writeMerged(t, in, time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC), increasing(10), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEnricher(in, out, zap.NewNop()).Enrich(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if kind := model.KindOf(err); kind != "canceled" {
		t.Errorf("kind = %q, want canceled", kind)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("enriched file should not be written")
	}
}

func TestParseRows_RejectsNonFinite(t *testing.T) {
	for _, s := range []string{"NaN", "Inf", "+Inf"} {
		if v := parseNumber(s); !math.IsNaN(v) {
			t.Errorf("parseNumber(%q) = %v, want missing", s, v)
		}
	}
	if v := parseVolume("1,234,567.9"); v != 1234567 {
		t.Errorf("parseVolume = %v, want 1234567", v)
	}
}

func TestSortAndDrop(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2025, time.June, day, 0, 0, 0, 0, time.UTC) }
	rows := []row{
		{date: d(3), hasDate: true, vals: [5]float64{1, 1, 1, 3, 1}},
		{hasDate: false, vals: [5]float64{1, 1, 1, 9, 1}},
		{date: d(1), hasDate: true, vals: [5]float64{1, 1, 1, 1, 1}},
		{date: d(2), hasDate: true, vals: [5]float64{1, 1, 1, math.NaN(), 1}},
	}
	got := sortAndDrop(rows)
	if len(got) != 2 || !got[0].date.Equal(d(1)) || !got[1].date.Equal(d(3)) {
		t.Errorf("sortAndDrop = %+v", got)
	}
}
