package filedb

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	labelTable  = "table"
	labelMode   = "mode"
	labelResult = "result"
)

// Metrics are the store collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	LockWait      *prometheus.HistogramVec
	LockTimeouts  *prometheus.CounterVec
	MalformedRows *prometheus.CounterVec
	Writes        *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LockWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filedb_lock_wait_seconds",
				Help:    "Time spent waiting for a table lock",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5},
			},
			[]string{labelTable, labelMode},
		),
		LockTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filedb_lock_timeouts_total",
				Help: "Table lock acquisitions that hit the timeout",
			},
			[]string{labelTable},
		),
		MalformedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filedb_malformed_rows_total",
				Help: "Rows skipped on read because they could not be parsed",
			},
			[]string{labelTable},
		),
		Writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filedb_writes_total",
				Help: "Table rewrites by result",
			},
			[]string{labelTable, labelResult},
		),
	}

	reg.MustRegister(m.LockWait, m.LockTimeouts, m.MalformedRows, m.Writes)
	return m
}

func (m *Metrics) observeLockWait(table string, mode LockMode, d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.WithLabelValues(table, mode.String()).Observe(d.Seconds())
}

func (m *Metrics) lockTimeout(table string) {
	if m == nil {
		return
	}
	m.LockTimeouts.WithLabelValues(table).Inc()
}

func (m *Metrics) malformedRow(table string) {
	if m == nil {
		return
	}
	m.MalformedRows.WithLabelValues(table).Inc()
}

func (m *Metrics) write(table string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Writes.WithLabelValues(table, result).Inc()
}
