package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is a point-in-time snapshot of connection pool counters.
type PoolStats struct {
	Acquired        int32
	Idle            int32
	Total           int32
	Max             int32
	AcquireCount    int64
	AcquireSeconds  float64
	EmptyAcquires   int64
	CanceledAcquire int64
}

// SnapshotPool reads the current statistics of a pgx pool.
func SnapshotPool(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		Acquired:        s.AcquiredConns(),
		Idle:            s.IdleConns(),
		Total:           s.TotalConns(),
		Max:             s.MaxConns(),
		AcquireCount:    s.AcquireCount(),
		AcquireSeconds:  s.AcquireDuration().Seconds(),
		EmptyAcquires:   s.EmptyAcquireCount(),
		CanceledAcquire: s.CanceledAcquireCount(),
	}
}

type poolMetric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(PoolStats) float64
}

// PoolStatsCollector exports pool statistics on every scrape.
type PoolStatsCollector struct {
	snapshot func() PoolStats
	service  string
	metrics  []poolMetric
}

// NewPoolStatsCollector builds a collector that calls snapshot on each scrape.
func NewPoolStatsCollector(snapshot func() PoolStats, service string) *PoolStatsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("db_pool_"+name, help, []string{"service"}, nil)
	}
	gauge, counter := prometheus.GaugeValue, prometheus.CounterValue

	return &PoolStatsCollector{
		snapshot: snapshot,
		service:  service,
		metrics: []poolMetric{
			{desc("acquired_connections", "Connections currently checked out"), gauge,
				func(s PoolStats) float64 { return float64(s.Acquired) }},
			{desc("idle_connections", "Connections currently idle"), gauge,
				func(s PoolStats) float64 { return float64(s.Idle) }},
			{desc("total_connections", "Connections currently open"), gauge,
				func(s PoolStats) float64 { return float64(s.Total) }},
			{desc("max_connections", "Configured pool size"), gauge,
				func(s PoolStats) float64 { return float64(s.Max) }},
			{desc("acquire_count_total", "Successful connection acquires"), counter,
				func(s PoolStats) float64 { return float64(s.AcquireCount) }},
			{desc("acquire_duration_seconds_total", "Time spent waiting on acquires"), counter,
				func(s PoolStats) float64 { return s.AcquireSeconds }},
			{desc("empty_acquire_count_total", "Acquires that waited for a free connection"), counter,
				func(s PoolStats) float64 { return float64(s.EmptyAcquires) }},
			{desc("canceled_acquire_count_total", "Acquires abandoned by context cancellation"), counter,
				func(s PoolStats) float64 { return float64(s.CanceledAcquire) }},
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s), c.service)
	}
}

// RegisterPoolMetrics registers pool statistics for service with the default
// registry.
func RegisterPoolMetrics(pool *pgxpool.Pool, service string) {
	prometheus.MustRegister(NewPoolStatsCollector(func() PoolStats { return SnapshotPool(pool) }, service))
}
