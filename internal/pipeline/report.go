package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// FormatReport renders a run report for the terminal.
func FormatReport(r *Report) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("QuoteHarvest run %s | %s (%s)\n\n",
		shortID(r.RunID), r.StartedAt.Format("2006-01-02 15:04:05"), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)))

	for _, s := range r.Stages {
		line := fmt.Sprintf("  %-8s %s", s.Name, s.Status)
		if s.Err != nil {
			line += ": " + s.Err.Error()
		}
		b.WriteString(line + "\n")
	}

	if c := r.Collect; c != nil && c.Scraped > 0 {
		b.WriteString(fmt.Sprintf("\nScraped: %d | Dropped: %d | Cleaned: %d\n", c.Scraped, c.Dropped, c.Cleaned))
		b.WriteString(fmt.Sprintf("Table: +%d new, %d updated, %d skipped (%d rows) | CSV rows: %d\n",
			c.Table.Inserted, c.Table.Updated, c.Table.Skipped, c.TableRows, c.FileRows))
	}
	if e := r.Enrich; e != nil {
		b.WriteString(fmt.Sprintf("Enriched: %d -> %d rows\n", e.InputRows, e.OutputRows))
	}
	if m := r.Metrics; m != nil {
		b.WriteString(fmt.Sprintf("RMSE: %.4f | MAE: %.4f | R2: %.4f\n", m.RMSE, m.MAE, m.R2))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
