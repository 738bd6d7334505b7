package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"CacheScanner/internal/domain"
	"CacheScanner/internal/ports"
)

// bodyHeadLimit is how much of the payload is kept in memory for content
// validation; the remainder only flows to the sink.
const bodyHeadLimit = 64 * 1024

// FetchClient retrieves a URL in full to warm the edge cache, streaming the
// body to a payload sink while sampling its head for validation.
type FetchClient struct {
	client    *http.Client
	extractor StatusExtractor
	sink      ports.PayloadSink
}

var _ ports.Fetcher = (*FetchClient)(nil)

// NewFetchClient wires an HTTP client; timeout defaults to 60s when client
// is nil.
func NewFetchClient(client *http.Client, extractor StatusExtractor, sink ports.PayloadSink) *FetchClient {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &FetchClient{client: client, extractor: extractor, sink: sink}
}

// Fetch downloads the resource. The sink is always closed, also on error
// paths, so a failed warm leaves no open file handle behind.
func (f *FetchClient) Fetch(ctx context.Context, rawURL string) (domain.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("fetch request: %w", err)
	}
	defer resp.Body.Close()

	res := domain.FetchResult{
		StatusCode:  resp.StatusCode,
		CacheStatus: f.extractor.Extract(resp.Header),
		ContentType: resp.Header.Get("Content-Type"),
	}

	w, err := f.sink.Open(payloadName(rawURL))
	if err != nil {
		return res, fmt.Errorf("open sink: %w", err)
	}

	head := &headSampler{limit: bodyHeadLimit}
	written, err := io.Copy(io.MultiWriter(w, head), resp.Body)
	res.Written = written
	res.BodyHead = head.buf
	if closeErr := w.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return res, fmt.Errorf("stream body: %w", err)
	}

	return res, nil
}

// payloadName derives a file name from the URL path, falling back to a fixed
// name for bare hosts.
func payloadName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "payload"
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "payload"
	}
	return name
}

// headSampler keeps the first limit bytes written through it and discards
// the rest. Write never fails so it cannot break the sink copy.
type headSampler struct {
	limit int
	buf   []byte
}

func (h *headSampler) Write(p []byte) (int, error) {
	if remaining := h.limit - len(h.buf); remaining > 0 {
		if len(p) <= remaining {
			h.buf = append(h.buf, p...)
		} else {
			h.buf = append(h.buf, p[:remaining]...)
		}
	}
	return len(p), nil
}
