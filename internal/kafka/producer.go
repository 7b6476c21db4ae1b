// Package kafka publishes ingested RIB rows as JSON events for downstream
// consumers.
package kafka

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/route-beacon/mrt-ingester/internal/config"
	"github.com/route-beacon/mrt-ingester/internal/metrics"
)

type Producer struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
}

func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.MaxBufferedRecords(cfg.MaxBufferedRecs),
		kgo.ProducerBatchCompression(kgo.ZstdCompression(), kgo.SnappyCompression(), kgo.NoCompression()),
	}

	tlsCfg, err := cfg.BuildTLSConfig()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	if mech := cfg.BuildSASLMechanism(); mech != nil {
		opts = append(opts, kgo.SASL(mech))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	return &Producer{client: client, topic: cfg.Topic, logger: logger}, nil
}

// Publish enqueues one event keyed for per-prefix partition ordering. The
// send is asynchronous; failures are logged and counted, not retried here.
func (p *Producer) Publish(ctx context.Context, key, value []byte) {
	rec := &kgo.Record{Topic: p.topic, Key: key, Value: value}
	p.client.Produce(ctx, rec, func(r *kgo.Record, err error) {
		if err != nil {
			metrics.KafkaPublishedTotal.WithLabelValues("error").Inc()
			p.logger.Warn("publish failed",
				zap.String("topic", r.Topic),
				zap.Error(err),
			)
			return
		}
		metrics.KafkaPublishedTotal.WithLabelValues("ok").Inc()
	})
}

// Ready reports broker reachability for the readiness probe.
func (p *Producer) Ready(ctx context.Context) bool {
	return p.client.Ping(ctx) == nil
}

// Close flushes buffered records and releases the client.
func (p *Producer) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("flushing producer on close", zap.Error(err))
	}
	p.client.Close()
}
