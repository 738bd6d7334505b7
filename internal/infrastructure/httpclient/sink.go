package httpclient

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"CacheScanner/internal/ports"
)

// DiscardSink drops fetched payloads after the transfer completed. Used when
// the fetch only exists to warm the edge.
type DiscardSink struct{}

var _ ports.PayloadSink = DiscardSink{}

// Open returns a writer that discards everything.
func (DiscardSink) Open(string) (io.WriteCloser, error) {
	return nopWriteCloser{}, nil
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }

// DirSink persists fetched payloads under a directory, one file per URL
// basename.
type DirSink struct {
	dir string
}

var _ ports.PayloadSink = (*DirSink)(nil)

// NewDirSink remembers the target directory; it is created on first open.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

// Open creates the payload file, creating the directory as needed.
func (s *DirSink) Open(name string) (io.WriteCloser, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	f, err := os.Create(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("create payload file: %w", err)
	}
	return f, nil
}
