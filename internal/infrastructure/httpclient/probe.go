package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"CacheScanner/internal/domain"
	"CacheScanner/internal/ports"
)

const userAgent = "CacheScanner/1.0"

// ProbeClient issues HEAD requests and extracts cache-status metadata from
// the response headers.
type ProbeClient struct {
	client    *http.Client
	extractor StatusExtractor
}

var _ ports.Prober = (*ProbeClient)(nil)

// NewProbeClient wires an HTTP client; timeout defaults to 15s when client
// is nil.
func NewProbeClient(client *http.Client, extractor StatusExtractor) *ProbeClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &ProbeClient{client: client, extractor: extractor}
}

// Probe performs the lightweight status check. Transport failures surface as
// errors; any received response, whatever its status code, yields a result.
func (p *ProbeClient) Probe(ctx context.Context, rawURL string) (domain.ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return domain.ProbeResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.ProbeResult{}, fmt.Errorf("probe request: %w", err)
	}
	defer resp.Body.Close()

	res := domain.ProbeResult{
		StatusCode:  resp.StatusCode,
		CacheStatus: p.extractor.Extract(resp.Header),
		ContentType: resp.Header.Get("Content-Type"),
	}
	res.AgeSeconds, res.AgeKnown = parseAge(resp.Header.Get("Age"))

	return res, nil
}

// parseAge reads the Age header as non-negative integer seconds.
func parseAge(value string) (int, bool) {
	if value == "" {
		return 0, false
	}
	age, err := strconv.Atoi(value)
	if err != nil || age < 0 {
		return 0, false
	}
	return age, true
}
