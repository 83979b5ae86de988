package metrics

import "sync/atomic"

// Collector aggregates propagation counters. It is safe for concurrent use
// and cheap enough to update from inside a cascade; the Prometheus exporter
// reads it on scrape.
type Collector struct {
	cascades      atomic.Uint64
	hops          atomic.Uint64
	targetWrites  atomic.Uint64
	targetFails   atomic.Uint64
	notifications atomic.Uint64
}

// Snapshot is a point-in-time copy of the propagation counters.
type Snapshot struct {
	// Cascades is the number of propagation cascades started
	Cascades uint64

	// Hops is the number of re-enumeration rounds across all cascades
	Hops uint64

	// TargetWrites is the number of successful per-target creates/updates
	TargetWrites uint64

	// TargetFailures is the number of isolated per-target write failures
	TargetFailures uint64

	// Notifications is the number of events published to the bus
	Notifications uint64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// CascadeStarted records the start of one propagation cascade.
func (c *Collector) CascadeStarted() {
	if c == nil {
		return
	}
	c.cascades.Add(1)
}

// HopProcessed records one re-enumeration round within a cascade.
func (c *Collector) HopProcessed() {
	if c == nil {
		return
	}
	c.hops.Add(1)
}

// TargetWritten records a successful create or update against one target.
func (c *Collector) TargetWritten() {
	if c == nil {
		return
	}
	c.targetWrites.Add(1)
}

// TargetFailed records an isolated per-target write failure.
func (c *Collector) TargetFailed() {
	if c == nil {
		return
	}
	c.targetFails.Add(1)
}

// NotificationPublished records one event handed to the notification bus.
func (c *Collector) NotificationPublished() {
	if c == nil {
		return
	}
	c.notifications.Add(1)
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		Cascades:       c.cascades.Load(),
		Hops:           c.hops.Load(),
		TargetWrites:   c.targetWrites.Load(),
		TargetFailures: c.targetFails.Load(),
		Notifications:  c.notifications.Load(),
	}
}
