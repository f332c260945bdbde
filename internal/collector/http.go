package collector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"QuoteHarvest/internal/model"
)

// HTTPFetcher downloads the history page with a single GET.
type HTTPFetcher struct {
	URL    string
	client *resty.Client
}

// NewHTTPFetcher creates a fetcher that sends a browser-like User-Agent and
// optionally routes through a proxy.
func NewHTTPFetcher(url, userAgent, proxyURL string, timeout time.Duration) *HTTPFetcher {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml")
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &HTTPFetcher{URL: url, client: client}
}

func (f *HTTPFetcher) Name() string { return "http" }

// Fetch returns the page body. Transport failures and non-200 responses are
// reported as model.ErrNetwork.
func (f *HTTPFetcher) Fetch(ctx context.Context) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(f.URL)
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %w", model.ErrNetwork, f.URL, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: get %s: status %d", model.ErrNetwork, f.URL, resp.StatusCode())
	}
	body := resp.String()
	if body == "" {
		return "", fmt.Errorf("%w: get %s: empty body", model.ErrNetwork, f.URL)
	}
	return body, nil
}
