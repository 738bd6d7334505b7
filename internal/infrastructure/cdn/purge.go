package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"CacheScanner/internal/ports"
)

// Client talks to the Cloudflare control API to invalidate cached files.
type Client struct {
	endpoint string
	zoneID   string
	apiToken string
	http     *http.Client
}

var _ ports.Purger = (*Client)(nil)

// NewClient builds a purge client for one zone. The endpoint is the API base
// (e.g. https://api.cloudflare.com/client/v4).
func NewClient(endpoint, zoneID, apiToken string) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		zoneID:   zoneID,
		apiToken: apiToken,
		http:     &http.Client{Timeout: 20 * time.Second},
	}
}

type purgeRequest struct {
	Files []string `json:"files"`
}

type purgeResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// PurgeBatch issues one purge_cache call for the given URLs. The control API
// bounds the number of files per call; chunking above that bound is the
// coordinator's job.
func (c *Client) PurgeBatch(ctx context.Context, urls []string) error {
	if c.zoneID == "" || c.apiToken == "" {
		return fmt.Errorf("purge client misconfigured")
	}

	body, err := json.Marshal(purgeRequest{Files: urls})
	if err != nil {
		return fmt.Errorf("marshal purge payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/zones/%s/purge_cache", c.endpoint, c.zoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("purge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("purge API error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed purgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode purge response: %w", err)
	}
	if !parsed.Success {
		if len(parsed.Errors) > 0 {
			return fmt.Errorf("purge rejected: %s (code %d)", parsed.Errors[0].Message, parsed.Errors[0].Code)
		}
		return fmt.Errorf("purge rejected")
	}

	return nil
}
