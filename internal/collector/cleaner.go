package collector

import (
	"strings"
	"time"

	"QuoteHarvest/internal/dataset"
	"QuoteHarvest/internal/model"
)

// ScrapeDateLayout is the date format used by the history page ("May 9, 2025").
const ScrapeDateLayout = "Jan 2, 2006"

// Clean converts scraped text into bars. A row with any field that cannot be
// parsed is dropped; dropped reports how many.
func Clean(raw []model.RawQuote) (bars []model.Bar, dropped int) {
	bars = make([]model.Bar, 0, len(raw))
	for _, q := range raw {
		b, ok := cleanRow(q)
		if !ok {
			dropped++
			continue
		}
		bars = append(bars, b)
	}
	return bars, dropped
}

func cleanRow(q model.RawQuote) (model.Bar, bool) {
	var b model.Bar

	d, err := time.Parse(ScrapeDateLayout, strings.TrimSpace(q.Date))
	if err != nil {
		return b, false
	}
	b.Date = d

	prices := []struct {
		text string
		dst  *float64
	}{
		{q.Open, &b.Open},
		{q.High, &b.High},
		{q.Low, &b.Low},
		{q.Close, &b.Close},
	}
	for _, p := range prices {
		v, ok := parsePrice(p.text)
		if !ok {
			return b, false
		}
		*p.dst = v
	}

	v, ok := parseVolume(q.Volume)
	if !ok {
		return b, false
	}
	b.Volume = v
	return b, true
}

// parsePrice strips currency symbols before the shared number rules apply.
func parsePrice(s string) (float64, bool) {
	return dataset.ParseNumber(strings.ReplaceAll(s, "$", ""))
}

// parseVolume treats "-" as missing and strips thousands separators.
func parseVolume(s string) (float64, bool) {
	return dataset.ParseNumber(s)
}
