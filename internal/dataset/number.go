package dataset

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseNumber parses a numeric cell. Thousands separators are stripped; blank
// cells, "-" and anything that is not a finite decimal (NaN, Inf) are missing.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
