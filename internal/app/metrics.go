package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"rollupd/internal/metrics"
)

const subsystem = "engine"

var (
	batchesConfirmed = metrics.NewCounter(
		"batches_confirmed_total",
		subsystem,
		"Batches confirmed on the settlement layer",
		[]string{},
	).WithLabelValues()
	submitFailures = metrics.NewCounter(
		"submit_failures_total",
		subsystem,
		"Batches the settlement layer refused",
		[]string{},
	).WithLabelValues()
	confirmFailures = metrics.NewCounter(
		"confirm_failures_total",
		subsystem,
		"Submitted batches that never confirmed and were reverted",
		[]string{},
	).WithLabelValues()
	batchSize = metrics.NewHistogramWithBuckets(
		"batch_size",
		subsystem,
		"Accepted transfers per batch",
		[]string{},
		prometheus.ExponentialBuckets(1, 2, 10),
	).WithLabelValues()
)
