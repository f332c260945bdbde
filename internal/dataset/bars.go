package dataset

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"QuoteHarvest/internal/model"
)

// BarHeader is the column layout of the merged flat file.
var BarHeader = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// EnrichedHeader is the column layout of the enriched flat file.
var EnrichedHeader = []string{
	"Date", "Open", "High", "Low", "Close", "Volume",
	"Daily_Return", "MA_7_Close", "STD_7_Close", "Cumulative_Return", "Momentum_7",
}

// dateLayouts are accepted when reading dates back from flat files.
var dateLayouts = []string{
	model.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"Jan 2, 2006",
}

// ParseDate parses a flat-file date, trying every accepted layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ReadBars loads a merged flat file. Rows whose fields do not parse are skipped
// and counted.
func ReadBars(path string) (bars []model.Bar, skipped int, err error) {
	fr, err := ReadFrame(path)
	if err != nil {
		return nil, 0, err
	}
	cols := make([]int, len(BarHeader))
	for i, name := range BarHeader {
		cols[i] = fr.Col(name)
	}

	for _, rec := range fr.Records {
		b, ok := barFromRecord(rec, cols)
		if !ok {
			skipped++
			continue
		}
		bars = append(bars, b)
	}
	return bars, skipped, nil
}

func barFromRecord(rec []string, cols []int) (model.Bar, bool) {
	var b model.Bar
	if cols[0] < 0 {
		return b, false
	}
	d, ok := ParseDate(rec[cols[0]])
	if !ok {
		return b, false
	}
	b.Date = d

	vals := make([]float64, 5)
	for i := 1; i < len(cols); i++ {
		if cols[i] < 0 {
			return b, false
		}
		v, ok := ParseNumber(rec[cols[i]])
		if !ok {
			return b, false
		}
		vals[i-1] = v
	}
	b.Open, b.High, b.Low, b.Close, b.Volume = vals[0], vals[1], vals[2], vals[3], vals[4]
	return b, true
}

// WriteBars writes bars to path in BarHeader layout.
func WriteBars(path string, bars []model.Bar) error {
	rows := make([][]string, len(bars))
	for i, b := range bars {
		rows[i] = barRecord(b)
	}
	return writeAtomic(path, BarHeader, rows)
}

// WriteEnriched writes enriched bars to path in EnrichedHeader layout.
func WriteEnriched(path string, bars []model.EnrichedBar) error {
	rows := make([][]string, len(bars))
	for i, b := range bars {
		rows[i] = append(barRecord(b.Bar),
			formatFloat(b.DailyReturn),
			formatFloat(b.MA7Close),
			formatFloat(b.STD7Close),
			formatFloat(b.CumulativeReturn),
			formatFloat(b.Momentum7),
		)
	}
	return writeAtomic(path, EnrichedHeader, rows)
}

func barRecord(b model.Bar) []string {
	return []string{
		b.DateKey(),
		formatFloat(b.Open),
		formatFloat(b.High),
		formatFloat(b.Low),
		formatFloat(b.Close),
		strconv.FormatFloat(b.Volume, 'f', 0, 64),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// MergeLastWins concatenates existing and fresh and keeps one bar per date.
// On a collision the bar appearing later wins, so fresh overrides existing.
// The result is sorted ascending by date.
func MergeLastWins(existing, fresh []model.Bar) []model.Bar {
	byDate := make(map[string]model.Bar, len(existing)+len(fresh))
	for _, b := range existing {
		byDate[b.DateKey()] = b
	}
	for _, b := range fresh {
		byDate[b.DateKey()] = b
	}

	merged := make([]model.Bar, 0, len(byDate))
	for _, b := range byDate {
		merged = append(merged, b)
	}
	SortBars(merged)
	return merged
}

// SortBars sorts bars ascending by date.
func SortBars(bars []model.Bar) {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}
