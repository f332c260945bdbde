package model

import (
	"context"
	"errors"
)

// Error kinds shared by every pipeline stage. Stages wrap the underlying
// cause with one of these so callers can branch with errors.Is.
var (
	ErrNetwork       = errors.New("network error")
	ErrParse         = errors.New("parse error")
	ErrDataQuality   = errors.New("data quality error")
	ErrStorage       = errors.New("storage error")
	ErrConfiguration = errors.New("configuration error")
	ErrModelLoad     = errors.New("model load error")
)

var kinds = []error{
	ErrNetwork,
	ErrParse,
	ErrDataQuality,
	ErrStorage,
	ErrConfiguration,
	ErrModelLoad,
}

// KindOf returns the name of the first error kind err wraps, or "unknown".
// Context cancellation carries no kind of its own and reports "canceled".
func KindOf(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "unknown"
}
