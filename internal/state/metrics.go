package state

import "rollupd/internal/metrics"

const subsystem = "state"

var (
	droppedTransfers = metrics.NewCounter(
		"dropped_transfers_total",
		subsystem,
		"Transfers rejected by the batch commit, by reason",
		[]string{"reason"},
	)
	acceptedTransfers = metrics.NewCounter(
		"accepted_transfers_total",
		subsystem,
		"Transfers accepted by the batch commit",
		[]string{},
	).WithLabelValues()
)
