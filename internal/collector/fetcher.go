package collector

import "context"

// Fetcher retrieves the raw markup of the historical quotes page.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
	Name() string
}
