// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes a pool.Pool's state as Prometheus metrics.
// It is adapted from the teacher's metrics_adapter.go, which wraps a
// *prometheus.Registry directly rather than going through the
// go-metrics-compatible registry/gauge abstraction the rest of the
// teacher's metrics package builds on (see DESIGN.md for why that
// heavier layer was not carried over).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skyquery/querymem/pool"
)

// Collector implements prometheus.Collector for a *pool.Pool. Callers
// register it with any prometheus.Registerer; nothing in this package
// touches the global default registry.
type Collector struct {
	p *pool.Pool

	reservedBytes         *prometheus.Desc
	reservedRevocableBytes *prometheus.Desc
	freeBytes             *prometheus.Desc
	waiters               *prometheus.Desc
	queryReservedBytes    *prometheus.Desc
	taggedBytes           *prometheus.Desc
}

// NewCollector wraps p. The returned Collector is stateless apart from
// holding a reference to p; it reads a fresh Snapshot on every Collect.
func NewCollector(p *pool.Pool) *Collector {
	return &Collector{
		p: p,
		reservedBytes: prometheus.NewDesc(
			"querymem_reserved_bytes", "Total non-revocable bytes currently reserved.", nil, nil),
		reservedRevocableBytes: prometheus.NewDesc(
			"querymem_reserved_revocable_bytes", "Total revocable bytes currently reserved.", nil, nil),
		freeBytes: prometheus.NewDesc(
			"querymem_free_bytes", "capacity_bytes - reserved_bytes - reserved_revocable_bytes.", nil, nil),
		waiters: prometheus.NewDesc(
			"querymem_waiters", "Number of reservations currently parked on the waiter queue.", nil, nil),
		queryReservedBytes: prometheus.NewDesc(
			"querymem_query_reserved_bytes", "Non-revocable bytes reserved per query.", []string{"query"}, nil),
		taggedBytes: prometheus.NewDesc(
			"querymem_tagged_bytes", "Bytes reserved per query and allocation tag.", []string{"query", "tag"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.reservedBytes
	ch <- c.reservedRevocableBytes
	ch <- c.freeBytes
	ch <- c.waiters
	ch <- c.queryReservedBytes
	ch <- c.taggedBytes
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.p.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.reservedBytes, prometheus.GaugeValue, float64(snap.ReservedBytes))
	ch <- prometheus.MustNewConstMetric(c.reservedRevocableBytes, prometheus.GaugeValue, float64(snap.ReservedRevocableBytes))
	ch <- prometheus.MustNewConstMetric(c.freeBytes, prometheus.GaugeValue, float64(snap.FreeBytes))
	ch <- prometheus.MustNewConstMetric(c.waiters, prometheus.GaugeValue, float64(snap.Waiters))

	for query, bytes := range snap.QueryReservations {
		ch <- prometheus.MustNewConstMetric(c.queryReservedBytes, prometheus.GaugeValue, float64(bytes), string(query))
	}
	for query, tags := range snap.TaggedAllocations {
		for tag, bytes := range tags {
			ch <- prometheus.MustNewConstMetric(c.taggedBytes, prometheus.GaugeValue, float64(bytes), string(query), string(tag))
		}
	}
}
