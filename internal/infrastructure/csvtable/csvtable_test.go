package csvtable

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const sample = "title,url,cover\nSong A,https://cdn/a.mp3,https://cdn/a.jpg\nSong B,https://cdn/b.mp3,\n"

func TestLoadLocalFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	table, err := NewSource(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if len(table.Header) != 3 || table.Header[1] != "url" {
		t.Fatalf("unexpected header: %v", table.Header)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if idx, ok := table.ColumnIndex("cover"); !ok || table.Cell(0, idx) != "https://cdn/a.jpg" {
		t.Fatalf("unexpected cover cell")
	}
}

func TestLoadRemoteCSV(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sample))
	}))
	defer server.Close()

	table, err := NewSource(server.URL+"/table.csv", server.Client()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
}

func TestLoadRemoteCSVFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	if _, err := NewSource(server.URL, server.Client()).Load(context.Background()); err == nil {
		t.Fatal("expected error for remote 404")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	t.Parallel()

	inPath := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(inPath, []byte(sample), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	table, err := NewSource(inPath, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	col := table.AddColumn("url_cache_status")
	if err := table.Set(0, col, "HIT"); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "output.csv")
	if err := NewWriter(outPath).Write(table); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	reloaded, err := NewSource(outPath, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	idx, ok := reloaded.ColumnIndex("url_cache_status")
	if !ok {
		t.Fatal("widened column missing after round trip")
	}
	if reloaded.Cell(0, idx) != "HIT" {
		t.Fatalf("unexpected widened cell: %q", reloaded.Cell(0, idx))
	}
	if reloaded.Cell(1, idx) != "" {
		t.Fatalf("row without outcome should stay blank, got %q", reloaded.Cell(1, idx))
	}
}
