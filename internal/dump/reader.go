// Package dump opens MRT dump files for decoding, handling the
// compression formats route collectors publish (gzip, zstd, bzip2) and
// overlapping disk I/O with parsing via a background read-ahead goroutine.
package dump

import (
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Reader is a decoded view of a dump file. Reads return decompressed MRT
// stream bytes regardless of the on-disk format.
type Reader struct {
	io.Reader
	closers []io.Closer
}

// Open opens path and wraps it in the decompressor selected by the file
// extension. Unrecognized extensions are read as raw MRT.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dump: %w", err)
	}

	ra := newReadAhead(f, defaultChunkSize, defaultQueueDepth)

	r := &Reader{closers: []io.Closer{ra}}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		gz, err := gzip.NewReader(ra)
		if err != nil {
			ra.Close()
			return nil, fmt.Errorf("dump: opening gzip stream %s: %w", path, err)
		}
		r.Reader = gz
		r.closers = append([]io.Closer{gz}, r.closers...)
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(ra)
		if err != nil {
			ra.Close()
			return nil, fmt.Errorf("dump: opening zstd stream %s: %w", path, err)
		}
		zrc := zr.IOReadCloser()
		r.Reader = zrc
		r.closers = append([]io.Closer{zrc}, r.closers...)
	case ".bz2":
		r.Reader = bzip2.NewReader(ra)
	default:
		r.Reader = ra
	}
	return r, nil
}

// Close releases the decompressor and the underlying file.
func (r *Reader) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
