package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/route-beacon/mrt-ingester/internal/metrics"
)

type Writer struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewWriter(pool *pgxpool.Pool, logger *zap.Logger) *Writer {
	return &Writer{pool: pool, logger: logger}
}

// FlushBatch writes a batch of RIB rows within a transaction. Re-ingesting
// the same file is idempotent: duplicate rows hit ON CONFLICT DO NOTHING.
func (w *Writer) FlushBatch(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO rib_entries (collector, seen_at, afi, prefix, path_id,
				peer_as, peer_ip, originated_at, attributes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT DO NOTHING`,
			r.Collector, r.SeenAt, r.AFI, r.Prefix, r.PathID,
			r.PeerAS, r.PeerIP.String(), r.OriginatedTime, r.Attributes,
		)
	}

	br := tx.SendBatch(ctx, batch)
	var inserted int64
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return fmt.Errorf("batch insert: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	metrics.DBWriteDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())
	metrics.DBRowsAffectedTotal.WithLabelValues("rib_entries", "insert").Add(float64(inserted))
	metrics.BatchSize.Observe(float64(len(rows)))

	return nil
}

// UpsertPeer records a peer identity from a PEER_INDEX_TABLE.
func (w *Writer) UpsertPeer(ctx context.Context, collector string, bgpID uint32, peerIP string, peerAS uint32) error {
	_, err := w.pool.Exec(ctx, `
		INSERT INTO peers (collector, bgp_id, peer_ip, peer_as, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (collector, peer_ip, peer_as)
		DO UPDATE SET bgp_id = EXCLUDED.bgp_id, last_seen = now()`,
		collector, bgpID, peerIP, peerAS,
	)
	return err
}

// FileSeen reports whether a dump file was already ingested to completion.
func (w *Writer) FileSeen(ctx context.Context, collector, filename string) (bool, error) {
	var done bool
	err := w.pool.QueryRow(ctx, `
		SELECT completed_at IS NOT NULL FROM dump_files
		WHERE collector = $1 AND filename = $2`,
		collector, filename,
	).Scan(&done)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying dump_files: %w", err)
	}
	return done, nil
}

// StartFile registers a dump file as in progress.
func (w *Writer) StartFile(ctx context.Context, collector, filename string, sizeBytes int64) error {
	_, err := w.pool.Exec(ctx, `
		INSERT INTO dump_files (collector, filename, size_bytes, started_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collector, filename)
		DO UPDATE SET size_bytes = EXCLUDED.size_bytes, started_at = now(), completed_at = NULL`,
		collector, filename, sizeBytes,
	)
	return err
}

// FinishFile marks a dump file complete with its record and row counts.
func (w *Writer) FinishFile(ctx context.Context, collector, filename string, records, rows, decodeErrors int64) error {
	_, err := w.pool.Exec(ctx, `
		UPDATE dump_files
		SET completed_at = now(), record_count = $3, row_count = $4, error_count = $5
		WHERE collector = $1 AND filename = $2`,
		collector, filename, records, rows, decodeErrors,
	)
	return err
}
