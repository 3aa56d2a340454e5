// Package coordinator provides the orchestration layer of ipcount.
// This file implements periodic progress reporting for a running count.
package coordinator

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Progress is a point-in-time snapshot of a running count.
type Progress struct {
	Bytes      int64         // Bytes scanned so far
	Total      int64         // Input size in bytes
	RangesDone int           // Ranges fully processed
	Ranges     int           // Ranges planned
	Records    uint64        // Records seen in finished ranges
	Malformed  uint64        // Malformed records in finished ranges
	Elapsed    time.Duration // Time since the run started
}

// Percent returns the scanned share of the input in [0, 100].
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 100
	}
	return float64(p.Bytes) * 100 / float64(p.Total)
}

// tracker accumulates run counters from concurrent workers.
type tracker struct {
	start      time.Time
	total      int64
	ranges     int
	bytes      int64
	rangesDone int64
	records    uint64
	malformed  uint64
}

func newTracker(total int64, ranges int) *tracker {
	return &tracker{start: time.Now(), total: total, ranges: ranges}
}

func (t *tracker) addBytes(n int64) {
	atomic.AddInt64(&t.bytes, n)
}

func (t *tracker) finishRange(records, malformed uint64) {
	atomic.AddUint64(&t.records, records)
	atomic.AddUint64(&t.malformed, malformed)
	atomic.AddInt64(&t.rangesDone, 1)
}

func (t *tracker) snapshot() Progress {
	return Progress{
		Bytes:      atomic.LoadInt64(&t.bytes),
		Total:      t.total,
		RangesDone: int(atomic.LoadInt64(&t.rangesDone)),
		Ranges:     t.ranges,
		Records:    atomic.LoadUint64(&t.records),
		Malformed:  atomic.LoadUint64(&t.malformed),
		Elapsed:    time.Since(t.start),
	}
}

// ProgressMonitor periodically samples a running count and hands each
// snapshot to a reporter.
// Thread-safe: All methods are safe for concurrent access.
type ProgressMonitor struct {
	report   func(Progress)     // Receives each snapshot
	ctx      context.Context    // Context for cancellation
	cancel   context.CancelFunc // Cancel function for shutdown
	interval time.Duration      // Time between snapshots
	wg       sync.WaitGroup     // Wait group for graceful shutdown
	mu       sync.Mutex         // Protects report
}

// NewProgressMonitor creates a monitor that reports every interval.
// Until SetReporter is called, snapshots are written to the standard logger.
//
// Example:
//
//	monitor := NewProgressMonitor(time.Second)
//	monitor.Start(ctx, tracker.snapshot)
//	defer monitor.Stop()
func NewProgressMonitor(interval time.Duration) *ProgressMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &ProgressMonitor{
		interval: interval,
		report:   logProgress,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetReporter replaces the function receiving snapshots.
func (m *ProgressMonitor) SetReporter(report func(Progress)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.report = report
}

// Start samples provider every interval in a background goroutine until ctx
// or the monitor is cancelled, then reports one final snapshot.
func (m *ProgressMonitor) Start(ctx context.Context, provider func() Progress) {
	if ctx == nil {
		ctx = m.ctx
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.emit(provider())
			case <-ctx.Done():
				m.emit(provider())
				return
			case <-m.ctx.Done():
				m.emit(provider())
				return
			}
		}
	}()
}

// Stop cancels the monitor and waits for its goroutine to exit.
func (m *ProgressMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *ProgressMonitor) emit(p Progress) {
	m.mu.Lock()
	report := m.report
	m.mu.Unlock()
	if report != nil {
		report(p)
	}
}

func logProgress(p Progress) {
	log.Printf("progress: %.1f%% (%d/%d bytes, %d/%d ranges, %d records, %d malformed) in %v",
		p.Percent(), p.Bytes, p.Total, p.RangesDone, p.Ranges, p.Records, p.Malformed,
		p.Elapsed.Truncate(time.Millisecond))
}
