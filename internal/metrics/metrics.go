package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtingester_records_total",
			Help: "MRT records decoded, by record type.",
		},
		[]string{"type"},
	)

	DecodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtingester_decode_errors_total",
			Help: "Record decode failures by reason.",
		},
		[]string{"reason"},
	)

	FilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtingester_files_total",
			Help: "Dump files processed, by outcome.",
		},
		[]string{"outcome"},
	)

	FileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mrtingester_file_duration_seconds",
			Help:    "Wall time spent decoding and loading one dump file.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	DBWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrtingester_db_write_duration_seconds",
			Help:    "DB write latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"op"},
	)

	DBRowsAffectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtingester_db_rows_affected_total",
			Help: "DB rows written or deleted.",
		},
		[]string{"table", "op"},
	)

	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mrtingester_batch_size",
			Help:    "Batch sizes flushed to DB.",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2000, 5000},
		},
	)

	KafkaPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtingester_kafka_published_total",
			Help: "Route events published to Kafka, by outcome.",
		},
		[]string{"outcome"},
	)

	LastRecordTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mrtingester_last_record_timestamp_seconds",
			Help: "MRT timestamp of the most recently decoded record.",
		},
		[]string{"collector"},
	)

	RowsPurgedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtingester_rows_purged_total",
			Help: "RIB rows purged by retention maintenance.",
		},
		[]string{"table"},
	)
)

func Register() {
	prometheus.MustRegister(
		RecordsTotal,
		DecodeErrorsTotal,
		FilesTotal,
		FileDuration,
		DBWriteDuration,
		DBRowsAffectedTotal,
		BatchSize,
		KafkaPublishedTotal,
		LastRecordTimestamp,
		RowsPurgedTotal,
	)
}
