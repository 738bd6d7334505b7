package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"CacheScanner/internal/domain"
)

func TestProbeExtractsCacheMetadata(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("CF-Cache-Status", "HIT")
		w.Header().Set("Age", "345")
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewProbeClient(server.Client(), CloudflareExtractor{})
	res, err := p.Probe(context.Background(), server.URL+"/track.mp3")
	if err != nil {
		t.Fatalf("Probe error: %v", err)
	}

	if res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", res.StatusCode)
	}
	if res.CacheStatus != domain.CacheHit {
		t.Fatalf("expected HIT, got %s", res.CacheStatus)
	}
	if !res.AgeKnown || res.AgeSeconds != 345 {
		t.Fatalf("expected age 345, got %d known=%v", res.AgeSeconds, res.AgeKnown)
	}
	if res.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected content type: %s", res.ContentType)
	}
}

func TestProbeMissingHeaderIsUnknown(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewProbeClient(server.Client(), CloudflareExtractor{})
	res, err := p.Probe(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Probe error: %v", err)
	}
	if res.CacheStatus != domain.CacheUnknown {
		t.Fatalf("absent header should read UNKNOWN, got %s", res.CacheStatus)
	}
	if res.AgeKnown {
		t.Fatal("absent Age header must not be known")
	}
}

func TestProbeTransportErrorSurfaces(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	p := NewProbeClient(nil, CloudflareExtractor{})
	if _, err := p.Probe(context.Background(), server.URL); err == nil {
		t.Fatal("expected transport error from closed server")
	}
}

func TestParseAge(t *testing.T) {
	t.Parallel()

	if age, ok := parseAge("0"); !ok || age != 0 {
		t.Fatalf("zero age should parse, got %d ok=%v", age, ok)
	}
	if _, ok := parseAge("-5"); ok {
		t.Fatal("negative age must not parse")
	}
	if _, ok := parseAge("soon"); ok {
		t.Fatal("non-numeric age must not parse")
	}
}
