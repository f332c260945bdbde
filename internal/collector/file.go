package collector

import (
	"context"
	"fmt"
	"os"

	"QuoteHarvest/internal/model"
)

// FileFetcher reads a saved copy of the history page from disk.
type FileFetcher struct {
	Path string
}

func NewFileFetcher(path string) *FileFetcher { return &FileFetcher{Path: path} }

func (f *FileFetcher) Name() string { return "file" }

func (f *FileFetcher) Fetch(_ context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", model.ErrNetwork, f.Path, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", model.ErrNetwork, f.Path)
	}
	return string(data), nil
}

// StaticFetcher returns fixed markup, for development and testing.
type StaticFetcher struct {
	HTML string
	Err  error
}

func (s *StaticFetcher) Name() string { return "static" }

func (s *StaticFetcher) Fetch(_ context.Context) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.HTML, nil
}
