package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/mrt-ingester/internal/config"
	"github.com/route-beacon/mrt-ingester/internal/dump"
	"github.com/route-beacon/mrt-ingester/internal/metrics"
	"github.com/route-beacon/mrt-ingester/internal/mrt"
)

// Publisher receives one JSON event per ingested row.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte)
}

type Pipeline struct {
	writer        *Writer
	publisher     Publisher
	collector     string
	batchSize     int
	flushInterval time.Duration
	chanBuffer    int
	strict        bool
	logger        *zap.Logger
}

// NewPipeline builds a file pipeline. publisher may be nil to disable
// event publishing.
func NewPipeline(writer *Writer, publisher Publisher, cfg config.IngestConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		writer:        writer,
		publisher:     publisher,
		collector:     cfg.Collector,
		batchSize:     cfg.BatchSize,
		flushInterval: time.Duration(cfg.FlushIntervalMs) * time.Millisecond,
		chanBuffer:    cfg.ChannelBufferSize,
		strict:        cfg.StrictDecode,
		logger:        logger,
	}
}

// FileStats summarizes one processed dump file.
type FileStats struct {
	Records      int64
	Rows         int64
	DecodeErrors int64
}

// ProcessFile decodes one dump file and loads its RIB rows. Decoding and
// flushing overlap through a bounded row channel; batches are written when
// they reach the configured size or when the flush interval elapses.
//
// Decode errors on individual records are skipped unless strict mode is
// set. Truncation and stream read failures always abort the file: the
// reader makes no progress past them, so skipping would loop forever.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (FileStats, error) {
	start := time.Now()

	r, err := dump.Open(path)
	if err != nil {
		return FileStats{}, err
	}
	defer r.Close()

	rowCh := make(chan Row, p.chanBuffer)
	flushDone := make(chan error, 1)
	go func() {
		flushDone <- p.flushLoop(ctx, rowCh)
	}()

	var (
		stats FileStats
		pt    *PeerTable
	)

	decodeErr := func() error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			h, rec, err := mrt.Read(r)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				stats.DecodeErrors++
				metrics.DecodeErrorsTotal.WithLabelValues(decodeErrorReason(err)).Inc()
				if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, mrt.ErrStream) {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}
				if p.strict {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}
				p.logger.Warn("skipping undecodable record",
					zap.String("file", path),
					zap.Error(err),
				)
				continue
			}

			stats.Records++
			metrics.RecordsTotal.WithLabelValues(typeName(h.Type)).Inc()
			metrics.LastRecordTimestamp.WithLabelValues(p.collector).Set(float64(h.Timestamp))

			if pit, ok := rec.(mrt.PeerIndexTable); ok {
				p.registerPeers(ctx, pit)
			}

			rows, err := Convert(p.collector, h, rec, &pt)
			if err != nil {
				stats.DecodeErrors++
				metrics.DecodeErrorsTotal.WithLabelValues("convert").Inc()
				if p.strict {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}
				p.logger.Warn("skipping unconvertible record",
					zap.String("file", path),
					zap.Error(err),
				)
				continue
			}

			for _, row := range rows {
				select {
				case rowCh <- row:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			stats.Rows += int64(len(rows))
		}
	}()

	close(rowCh)
	flushErr := <-flushDone

	if decodeErr != nil {
		return stats, decodeErr
	}
	if flushErr != nil {
		return stats, flushErr
	}

	metrics.FileDuration.Observe(time.Since(start).Seconds())
	return stats, nil
}

// flushLoop drains the row channel into batches. After a flush failure it
// keeps draining so the decoder never blocks, and reports the first error
// once the channel closes.
func (p *Pipeline) flushLoop(ctx context.Context, rows <-chan Row) error {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]Row, 0, p.batchSize)
	var firstErr error

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if firstErr == nil {
			firstErr = p.flush(ctx, batch)
		}
		batch = batch[:0]
	}

	for {
		select {
		case row, ok := <-rows:
			if !ok {
				flush()
				return firstErr
			}
			batch = append(batch, row)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (p *Pipeline) flush(ctx context.Context, batch []Row) error {
	if err := p.writer.FlushBatch(ctx, batch); err != nil {
		return fmt.Errorf("ingest: flushing %d rows: %w", len(batch), err)
	}
	if p.publisher == nil {
		return nil
	}
	for i := range batch {
		event, err := json.Marshal(&batch[i])
		if err != nil {
			continue
		}
		p.publisher.Publish(ctx, []byte(batch[i].Prefix), event)
	}
	return nil
}

func (p *Pipeline) registerPeers(ctx context.Context, pit mrt.PeerIndexTable) {
	for _, peer := range pit.Peers {
		if err := p.writer.UpsertPeer(ctx, p.collector, peer.BGPID, peer.IPAddress.String(), peer.PeerAS); err != nil {
			p.logger.Warn("upserting peer",
				zap.String("peer_ip", peer.IPAddress.String()),
				zap.Uint32("peer_as", peer.PeerAS),
				zap.Error(err),
			)
		}
	}
}

func decodeErrorReason(err error) string {
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "truncated"
	case errors.Is(err, mrt.ErrStream):
		return "stream"
	case errors.Is(err, mrt.ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, mrt.ErrInvalidSubType):
		return "invalid_subtype"
	case errors.Is(err, mrt.ErrInvalidAFI):
		return "invalid_afi"
	default:
		return "other"
	}
}

func typeName(t uint16) string {
	switch t {
	case mrt.TypeNull:
		return "null"
	case mrt.TypeStart:
		return "start"
	case mrt.TypeDie:
		return "die"
	case mrt.TypeIAmDead:
		return "i_am_dead"
	case mrt.TypePeerDown:
		return "peer_down"
	case mrt.TypeBGP:
		return "bgp"
	case mrt.TypeRIP:
		return "rip"
	case mrt.TypeIDRP:
		return "idrp"
	case mrt.TypeRIPNG:
		return "ripng"
	case mrt.TypeBGP4Plus, mrt.TypeBGP4Plus01:
		return "bgp4plus"
	case mrt.TypeOSPFv2:
		return "ospfv2"
	case mrt.TypeTableDump:
		return "table_dump"
	case mrt.TypeTableDumpV2:
		return "table_dump_v2"
	case mrt.TypeBGP4MP, mrt.TypeBGP4MPET:
		return "bgp4mp"
	case mrt.TypeISIS, mrt.TypeISISET:
		return "isis"
	case mrt.TypeOSPFv3, mrt.TypeOSPFv3ET:
		return "ospfv3"
	default:
		return "unknown"
	}
}
