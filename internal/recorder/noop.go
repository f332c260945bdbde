package recorder

import (
	"context"

	"QuoteHarvest/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) Save(_ context.Context, bars []model.Bar) (SaveResult, error) {
	return SaveResult{Skipped: len(bars)}, nil
}
func (n *NoopRecorder) Bars(_ context.Context) ([]model.Bar, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                { return nil }
