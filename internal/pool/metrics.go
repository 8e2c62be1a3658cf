package pool

import "rollupd/internal/metrics"

var poolSize = metrics.NewGauge(
	"size",
	"pool",
	"Transfers waiting to be packed",
	[]string{},
).WithLabelValues()
