package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/mrt-ingester/internal/metrics"
)

// Scanner polls the spool directory and feeds new dump files through the
// pipeline. Completed files are moved to the archive directory when one is
// configured, otherwise they are left in place and skipped on later scans
// via the dump_files table.
type Scanner struct {
	pipeline   *Pipeline
	writer     *Writer
	collector  string
	spoolDir   string
	archiveDir string
	interval   time.Duration
	logger     *zap.Logger
}

func NewScanner(pipeline *Pipeline, writer *Writer, collector, spoolDir, archiveDir string, scanIntervalSeconds int, logger *zap.Logger) *Scanner {
	return &Scanner{
		pipeline:   pipeline,
		writer:     writer,
		collector:  collector,
		spoolDir:   spoolDir,
		archiveDir: archiveDir,
		interval:   time.Duration(scanIntervalSeconds) * time.Second,
		logger:     logger,
	}
}

// Run scans immediately and then on every interval tick until the context
// is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	s.scanOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

func (s *Scanner) scanOnce(ctx context.Context) {
	entries, err := os.ReadDir(s.spoolDir)
	if err != nil {
		s.logger.Error("reading spool directory", zap.String("dir", s.spoolDir), zap.Error(err))
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	// Collector dumps embed timestamps in filenames; lexical order is
	// chronological order.
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		s.processOne(ctx, name)
	}
}

func (s *Scanner) processOne(ctx context.Context, name string) {
	seen, err := s.writer.FileSeen(ctx, s.collector, name)
	if err != nil {
		s.logger.Error("checking dump file state", zap.String("file", name), zap.Error(err))
		return
	}
	if seen {
		return
	}

	path := filepath.Join(s.spoolDir, name)
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Error("stating dump file", zap.String("file", name), zap.Error(err))
		return
	}

	if err := s.writer.StartFile(ctx, s.collector, name, info.Size()); err != nil {
		s.logger.Error("registering dump file", zap.String("file", name), zap.Error(err))
		return
	}

	s.logger.Info("ingesting dump file",
		zap.String("file", name),
		zap.Int64("size_bytes", info.Size()),
	)

	stats, err := s.pipeline.ProcessFile(ctx, path)
	if err != nil {
		metrics.FilesTotal.WithLabelValues("error").Inc()
		s.logger.Error("ingesting dump file failed",
			zap.String("file", name),
			zap.Int64("records", stats.Records),
			zap.Error(err),
		)
		return
	}

	if err := s.writer.FinishFile(ctx, s.collector, name, stats.Records, stats.Rows, stats.DecodeErrors); err != nil {
		s.logger.Error("finishing dump file", zap.String("file", name), zap.Error(err))
		return
	}

	metrics.FilesTotal.WithLabelValues("ok").Inc()
	s.logger.Info("dump file ingested",
		zap.String("file", name),
		zap.Int64("records", stats.Records),
		zap.Int64("rows", stats.Rows),
		zap.Int64("decode_errors", stats.DecodeErrors),
	)

	if s.archiveDir != "" {
		dst := filepath.Join(s.archiveDir, name)
		if err := os.Rename(path, dst); err != nil {
			s.logger.Warn("archiving dump file", zap.String("file", name), zap.Error(err))
		}
	}
}
