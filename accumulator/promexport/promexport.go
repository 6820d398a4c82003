// Package promexport exposes accumulator.Windowed snapshots as Prometheus
// collectors, for callers that want the external accumulator interface
// scraped alongside the dispatch core's internal metricz counters rather
// than polled out-of-band.
package promexport

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pipelinekit/pipelinekit/accumulator"
)

// Collector adapts a named accumulator.Accumulator (typically a
// *accumulator.Windowed) into a prometheus.Collector, reading a fresh
// Snapshot on every scrape rather than caching between them.
type Collector struct {
	name string
	help string
	acc  accumulator.Accumulator

	count prometheus.Desc
	sum   prometheus.Desc
	min   prometheus.Desc
	max   prometheus.Desc
	mean  prometheus.Desc
	rate  prometheus.Desc
}

// NewCollector creates a Collector named name (used as the metric prefix)
// describing acc.
func NewCollector(name, help string, acc accumulator.Accumulator) *Collector {
	return &Collector{
		name: name, help: help, acc: acc,
		count: *prometheus.NewDesc(name+"_count", help+" (sample count)", nil, nil),
		sum:   *prometheus.NewDesc(name+"_sum", help+" (sum)", nil, nil),
		min:   *prometheus.NewDesc(name+"_min", help+" (min)", nil, nil),
		max:   *prometheus.NewDesc(name+"_max", help+" (max)", nil, nil),
		mean:  *prometheus.NewDesc(name+"_mean", help+" (mean)", nil, nil),
		rate:  *prometheus.NewDesc(name+"_rate", help+" (rate per second)", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- &c.count
	ch <- &c.sum
	ch <- &c.min
	ch <- &c.max
	ch <- &c.mean
	ch <- &c.rate
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.acc.Snapshot()
	ch <- prometheus.MustNewConstMetric(&c.count, prometheus.GaugeValue, float64(snap.Count))
	ch <- prometheus.MustNewConstMetric(&c.sum, prometheus.GaugeValue, snap.Sum)
	ch <- prometheus.MustNewConstMetric(&c.min, prometheus.GaugeValue, snap.Min)
	ch <- prometheus.MustNewConstMetric(&c.max, prometheus.GaugeValue, snap.Max)
	ch <- prometheus.MustNewConstMetric(&c.mean, prometheus.GaugeValue, snap.Mean)
	ch <- prometheus.MustNewConstMetric(&c.rate, prometheus.GaugeValue, snap.Rate)

	if len(snap.Percentiles) > 0 {
		desc := prometheus.NewDesc(c.name+"_percentile", c.help+" (percentile)",
			[]string{"quantile"}, nil)
		for quantile, value := range snap.Percentiles {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value,
				strconv.FormatFloat(quantile, 'f', -1, 64))
		}
	}
}
