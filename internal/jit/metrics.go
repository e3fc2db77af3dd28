package jit

import (
	"github.com/prometheus/client_golang/prometheus"
)

type collector struct {
	c       *Compiled
	hits    *prometheus.Desc
	misses  *prometheus.Desc
	entries *prometheus.Desc
}

// Collector returns a prometheus collector exposing the cache counters
// of this wrapper, labeled with the given function name. Register it on
// whatever registry the host process scrapes.
func (c *Compiled) Collector(name string) prometheus.Collector {
	labels := prometheus.Labels{"function": name}
	return &collector{
		c: c,
		hits: prometheus.NewDesc("weft_jit_cache_hits_total",
			"Number of calls served from the compilation cache.", nil, labels),
		misses: prometheus.NewDesc("weft_jit_cache_misses_total",
			"Number of calls that triggered a fresh compilation.", nil, labels),
		entries: prometheus.NewDesc("weft_jit_cache_entries",
			"Number of live compiled specializations.", nil, labels),
	}
}

func (col *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- col.hits
	ch <- col.misses
	ch <- col.entries
}

func (col *collector) Collect(ch chan<- prometheus.Metric) {
	stats := col.c.Stats()
	ch <- prometheus.MustNewConstMetric(col.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(col.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(col.entries, prometheus.GaugeValue, float64(stats.Entries))
}
