package rpc

import "rollupd/internal/metrics"

const subsystem = "rpc"

var (
	requests = metrics.NewCounter(
		"requests_total",
		subsystem,
		"HTTP requests by status code and method",
		[]string{"code", "method"},
	)
	txRejected = metrics.NewCounter(
		"tx_rejected_total",
		subsystem,
		"Transfers rejected at admission, by reason",
		[]string{"reason"},
	)
	txAdmitted = metrics.NewCounter(
		"tx_admitted_total",
		subsystem,
		"Transfers queued into the pool",
		[]string{},
	).WithLabelValues()
)
