package cdn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPurgeBatchSendsFilesWithAuth(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotFiles []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			Files []string `json:"files"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotFiles = req.Files

		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	c := NewClient(server.URL, "zone123", "token-abc")
	urls := []string{"https://cdn.example.org/a.mp3", "https://cdn.example.org/b.mp3"}
	if err := c.PurgeBatch(context.Background(), urls); err != nil {
		t.Fatalf("PurgeBatch error: %v", err)
	}

	if gotPath != "/zones/zone123/purge_cache" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer token-abc" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if len(gotFiles) != 2 {
		t.Fatalf("expected 2 files, got %d", len(gotFiles))
	}
}

func TestPurgeBatchRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"errors":  []map[string]any{{"code": 1107, "message": "unauthorized to purge"}},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, "zone123", "token-abc")
	err := c.PurgeBatch(context.Background(), []string{"https://cdn.example.org/a.mp3"})
	if err == nil {
		t.Fatal("expected rejection error")
	}
}

func TestPurgeBatchHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(server.URL, "zone123", "token-abc")
	if err := c.PurgeBatch(context.Background(), []string{"https://cdn.example.org/a.mp3"}); err == nil {
		t.Fatal("expected error for HTTP 429")
	}
}

func TestPurgeBatchMisconfigured(t *testing.T) {
	t.Parallel()

	c := NewClient("https://api.example.org", "", "")
	if err := c.PurgeBatch(context.Background(), []string{"https://cdn.example.org/a.mp3"}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}
