package recorder

import (
	"context"

	"QuoteHarvest/internal/model"
)

// SaveResult summarises one write to the table store.
type SaveResult struct {
	Inserted int // genuinely new dates
	Updated  int // existing dates overwritten (replace policy only)
	Skipped  int // existing dates left untouched (skip policy only)
}

// Recorder persists cleaned bars keyed by date.
type Recorder interface {
	Save(ctx context.Context, bars []model.Bar) (SaveResult, error)
	Bars(ctx context.Context) ([]model.Bar, error)
	Close() error
}
