package collector

import (
	"errors"
	"testing"

	"QuoteHarvest/internal/model"
)

const samplePage = `<html><body>
<table>
  <thead><tr><th>Date</th><th>Open</th><th>High</th><th>Low</th><th>Close</th><th>Adj Close</th><th>Volume</th></tr></thead>
  <tbody>
    <tr><td>May 9, 2025</td><td>117.35</td><td>118.23</td><td>115.21</td><td>116.65</td><td>116.65</td><td>132,972,200</td></tr>
    <tr><td>Mar 12, 2025</td><td colspan="6">0.01 Dividend</td></tr>
    <tr><td>May 8, 2025</td><td>$1,118.25</td><td>118.68</td><td>115.85</td><td>117.37</td><td>117.37</td></tr>
    <tr><td> May 7, 2025 </td><td>113.05</td><td>117.68</td><td>112.28</td><td>117.06</td><td>117.06</td><td>-</td></tr>
  </tbody>
</table>
<table><tr><td>ignored</td></tr></table>
</body></html>`

func TestParseTable(t *testing.T) {
	quotes, err := ParseTable(samplePage)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(quotes) != 3 {
		t.Fatalf("expected 3 rows (dividend row skipped), got %d", len(quotes))
	}

	want := model.RawQuote{Date: "May 9, 2025", Open: "117.35", High: "118.23", Low: "115.21", Close: "116.65", Volume: "132,972,200"}
	if quotes[0] != want {
		t.Errorf("row 0 = %+v, want %+v", quotes[0], want)
	}
	if quotes[1].Volume != "N/A" {
		t.Errorf("row without volume cell: Volume = %q, want N/A", quotes[1].Volume)
	}
	if quotes[2].Date != "May 7, 2025" || quotes[2].Volume != "-" {
		t.Errorf("row 2 not trimmed: %+v", quotes[2])
	}
}

func TestParseTable_NoTable(t *testing.T) {
	_, err := ParseTable("<html><body><p>Rate limited</p></body></html>")
	if !errors.Is(err, model.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParseTable_HeaderOnly(t *testing.T) {
	quotes, err := ParseTable("<table><tr><th>Date</th></tr></table>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 0 {
		t.Errorf("expected no rows, got %d", len(quotes))
	}
}
