// Package metrics keeps the counters a back-end reports through its
// Stats method. Every counter is updated with a single atomic operation
// so tracking can happen on the producer path.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Collector handles metrics collection for one back-end.
type Collector struct {
	// Record counts by level index
	enqueued [types.LevelCount]atomic.Uint64
	binary   atomic.Uint64
	dropped  atomic.Uint64

	// Writer activity
	written      atomic.Uint64
	bytesWritten atomic.Uint64
	batches      atomic.Uint64
	maxBatch     atomic.Uint64

	// Error metrics
	errorCount     atomic.Uint64
	errorsBySource sync.Map // map[string]*atomic.Uint64

	// Performance metrics
	writeCount     atomic.Uint64
	totalWriteTime atomic.Int64 // nanoseconds
	maxWriteTime   atomic.Int64 // nanoseconds
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Metrics is a point-in-time snapshot of a Collector.
type Metrics struct {
	// Records accepted, keyed by level name
	Enqueued map[string]uint64 `json:"enqueued"`
	Binary   uint64            `json:"binary"`
	Dropped  uint64            `json:"dropped"`

	Written      uint64 `json:"written"`
	BytesWritten uint64 `json:"bytes_written"`
	Batches      uint64 `json:"batches"`
	MaxBatch     uint64 `json:"max_batch"`

	ErrorCount     uint64            `json:"error_count"`
	ErrorsBySource map[string]uint64 `json:"errors_by_source"`

	AverageWriteTime time.Duration `json:"average_write_time"`
	MaxWriteTime     time.Duration `json:"max_write_time"`
}

// Pending returns the number of accepted records not yet written or dropped.
func (m Metrics) Pending() uint64 {
	var total uint64 = m.Binary
	for _, n := range m.Enqueued {
		total += n
	}
	done := m.Written + m.Dropped
	if done > total {
		return 0
	}
	return total - done
}

// Snapshot returns the current metrics.
func (c *Collector) Snapshot() Metrics {
	m := Metrics{
		Enqueued:       make(map[string]uint64),
		Binary:         c.binary.Load(),
		Dropped:        c.dropped.Load(),
		Written:        c.written.Load(),
		BytesWritten:   c.bytesWritten.Load(),
		Batches:        c.batches.Load(),
		MaxBatch:       c.maxBatch.Load(),
		ErrorCount:     c.errorCount.Load(),
		ErrorsBySource: make(map[string]uint64),
		MaxWriteTime:   time.Duration(c.maxWriteTime.Load()),
	}

	for i := range c.enqueued {
		if n := c.enqueued[i].Load(); n > 0 {
			m.Enqueued[types.LevelAt(i).String()] = n
		}
	}

	c.errorsBySource.Range(func(key, value any) bool {
		if n := value.(*atomic.Uint64).Load(); n > 0 {
			m.ErrorsBySource[key.(string)] = n
		}
		return true
	})

	if writes := c.writeCount.Load(); writes > 0 {
		m.AverageWriteTime = time.Duration(c.totalWriteTime.Load()) / time.Duration(writes)
	}
	return m
}

// Reset zeroes every counter.
func (c *Collector) Reset() {
	for i := range c.enqueued {
		c.enqueued[i].Store(0)
	}
	c.binary.Store(0)
	c.dropped.Store(0)
	c.written.Store(0)
	c.bytesWritten.Store(0)
	c.batches.Store(0)
	c.maxBatch.Store(0)
	c.errorCount.Store(0)
	c.writeCount.Store(0)
	c.totalWriteTime.Store(0)
	c.maxWriteTime.Store(0)

	c.errorsBySource.Range(func(_, value any) bool {
		value.(*atomic.Uint64).Store(0)
		return true
	})
}

// TrackEnqueued counts a record accepted at level.
func (c *Collector) TrackEnqueued(level types.Level) {
	if level.Valid() {
		c.enqueued[level.Index()].Add(1)
	}
}

// TrackBinary counts an accepted raw record.
func (c *Collector) TrackBinary() {
	c.binary.Add(1)
}

// TrackDropped counts a record that was accepted but never written.
func (c *Collector) TrackDropped() {
	c.dropped.Add(1)
}

// TrackBatch records the size of one drained batch.
func (c *Collector) TrackBatch(size int) {
	c.batches.Add(1)
	storeMax(&c.maxBatch, uint64(size))
}

// TrackWrite records one record written to the output.
func (c *Collector) TrackWrite(bytes int, duration time.Duration) {
	c.written.Add(1)
	c.bytesWritten.Add(uint64(bytes))
	c.writeCount.Add(1)
	c.totalWriteTime.Add(int64(duration))

	for {
		old := c.maxWriteTime.Load()
		if int64(duration) <= old || c.maxWriteTime.CompareAndSwap(old, int64(duration)) {
			return
		}
	}
}

// TrackError increments the error counter and tracks by source.
func (c *Collector) TrackError(source string) {
	c.errorCount.Add(1)

	val, _ := c.errorsBySource.LoadOrStore(source, &atomic.Uint64{})
	val.(*atomic.Uint64).Add(1)
}

// ErrorCount returns the total error count.
func (c *Collector) ErrorCount() uint64 {
	return c.errorCount.Load()
}

// ErrorCountBySource returns the error count for a specific source.
func (c *Collector) ErrorCountBySource(source string) uint64 {
	if val, ok := c.errorsBySource.Load(source); ok {
		return val.(*atomic.Uint64).Load()
	}
	return 0
}

func storeMax(v *atomic.Uint64, n uint64) {
	for {
		old := v.Load()
		if n <= old || v.CompareAndSwap(old, n) {
			return
		}
	}
}
