package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, float64(50), Progress{Bytes: 5, Total: 10}.Percent())
	assert.Equal(t, float64(100), Progress{}.Percent())
}

func TestTracker(t *testing.T) {
	tr := newTracker(100, 4)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.addBytes(25)
			tr.finishRange(10, 1)
		}()
	}
	wg.Wait()

	p := tr.snapshot()
	assert.Equal(t, int64(100), p.Bytes)
	assert.Equal(t, int64(100), p.Total)
	assert.Equal(t, 4, p.RangesDone)
	assert.Equal(t, 4, p.Ranges)
	assert.Equal(t, uint64(40), p.Records)
	assert.Equal(t, uint64(4), p.Malformed)
}

// TestProgressMonitor verifies periodic and final reports
func TestProgressMonitor(t *testing.T) {
	monitor := NewProgressMonitor(20 * time.Millisecond)

	var mu sync.Mutex
	var reports []Progress
	monitor.SetReporter(func(p Progress) {
		mu.Lock()
		reports = append(reports, p)
		mu.Unlock()
	})

	tr := newTracker(10, 1)
	monitor.Start(context.Background(), tr.snapshot)
	time.Sleep(70 * time.Millisecond)
	tr.addBytes(10)
	monitor.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(reports), 2, "expected periodic reports plus a final one")
	assert.Equal(t, int64(10), reports[len(reports)-1].Bytes, "final report must reflect the last state")
}

func TestProgressMonitorContextCancel(t *testing.T) {
	monitor := NewProgressMonitor(time.Hour)

	done := make(chan struct{})
	monitor.SetReporter(func(Progress) { close(done) })

	ctx, cancel := context.WithCancel(context.Background())
	monitor.Start(ctx, func() Progress { return Progress{} })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected a final report after cancellation")
	}
	monitor.Stop()
}
