package csvtable

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"CacheScanner/internal/domain"
	"CacheScanner/internal/ports"
)

// Source loads a CSV table from a local path or an http(s) URL.
type Source struct {
	location string
	client   *http.Client
}

var _ ports.TableSource = (*Source)(nil)

// NewSource wires the input location; client defaults to a 30s-timeout client.
func NewSource(location string, client *http.Client) *Source {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Source{location: location, client: client}
}

// Load fetches and parses the table. The first record is the header; every
// table needs one.
func (s *Source) Load(ctx context.Context) (*domain.Table, error) {
	r, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", s.location, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv %s is empty", s.location)
	}

	return &domain.Table{Header: records[0], Rows: records[1:]}, nil
}

func (s *Source) open(ctx context.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(s.location, "http://") || strings.HasPrefix(s.location, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch csv %s: %w", s.location, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch csv %s: %s", s.location, resp.Status)
		}
		return resp.Body, nil
	}

	f, err := os.Open(s.location)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	return f, nil
}

// Writer emits a table to a local CSV file.
type Writer struct {
	path string
}

var _ ports.TableWriter = (*Writer)(nil)

// NewWriter remembers the output path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Write serializes the table, padding short rows to the header width.
func (w *Writer) Write(table *domain.Table) error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(table.Header); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	width := len(table.Header)
	for _, row := range table.Rows {
		padded := row
		if len(row) < width {
			padded = make([]string, width)
			copy(padded, row)
		}
		if err := cw.Write(padded); err != nil {
			f.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush output: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
