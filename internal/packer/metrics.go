package packer

import (
	"github.com/prometheus/client_golang/prometheus"

	"rollupd/internal/metrics"
)

const subsystem = "packer"

var (
	cycles = metrics.NewCounter(
		"cycles_total",
		subsystem,
		"Packing cycles by outcome",
		[]string{"outcome"},
	)
	idleCycles   = cycles.WithLabelValues("idle")
	packedCycles = cycles.WithLabelValues("confirmed")
	failedCycles = cycles.WithLabelValues("failed")

	cycleDuration = metrics.NewHistogramWithBuckets(
		"cycle_duration_seconds",
		subsystem,
		"Time from pack to confirmation",
		[]string{},
		prometheus.ExponentialBuckets(0.5, 2, 10),
	).WithLabelValues()

	syncBatchID = metrics.NewGauge(
		"sync_batch_id",
		subsystem,
		"Batch id of the sync point",
		[]string{},
	).WithLabelValues()
	syncBlockNumber = metrics.NewGauge(
		"sync_block_number",
		subsystem,
		"Settlement block of the sync point",
		[]string{},
	).WithLabelValues()
)
