package model

import "time"

// DateLayout is the on-disk representation of a trading day.
const DateLayout = "2006-01-02"

// RawQuote is one table row as scraped, before any cleaning.
type RawQuote struct {
	Date   string
	Open   string
	High   string
	Low    string
	Close  string
	Volume string
}

// Bar represents a single cleaned daily session. Date is the unique key.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// DateKey returns the calendar-day key used for deduplication.
func (b Bar) DateKey() string {
	return b.Date.Format(DateLayout)
}

// EnrichedBar is a Bar plus derived indicators.
type EnrichedBar struct {
	Bar
	DailyReturn      float64 // percent
	MA7Close         float64
	STD7Close        float64
	CumulativeReturn float64
	Momentum7        float64
}
