//go:build !windows

package shard

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShard(t *testing.T, id, count int) *Shard {
	t.Helper()
	s, err := NewShard(id, count)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Release()) })
	return s
}

// TestNewShard tests shard creation
func TestNewShard(t *testing.T) {
	tests := []struct {
		name     string
		id       int
		count    int
		wantLow  uint32
		wantSpan uint64
	}{
		{name: "single shard owns everything", id: 0, count: 1, wantLow: 0, wantSpan: 1 << 32},
		{name: "second of two", id: 1, count: 2, wantLow: 0x80000000, wantSpan: 1 << 31},
		{name: "last of eight", id: 7, count: 8, wantLow: 0xE0000000, wantSpan: 1 << 29},
		{name: "max shards", id: MaxShards - 1, count: MaxShards, wantLow: 0xFFFF0000, wantSpan: 1 << 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newShard(t, tt.id, tt.count)

			assert.Equal(t, tt.id, s.ID)
			assert.Equal(t, tt.wantLow, s.Low)
			assert.Equal(t, tt.wantSpan, s.Span)
			assert.Equal(t, ShardStateOpen, s.State)
			assert.NotNil(t, s.Store)
			assert.NotNil(t, s.Stats)
		})
	}
}

func TestNewShardInvalid(t *testing.T) {
	tests := []struct {
		name  string
		id    int
		count int
	}{
		{name: "zero count", id: 0, count: 0},
		{name: "not power of two", id: 0, count: 3},
		{name: "too many shards", id: 0, count: MaxShards * 2},
		{name: "negative id", id: -1, count: 4},
		{name: "id out of range", id: 4, count: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewShard(tt.id, tt.count)
			assert.Error(t, err)
			assert.Nil(t, s)
		})
	}
}

// TestPartition checks that every probed address is owned by exactly one
// shard and that IndexFor agrees with Owns
func TestPartition(t *testing.T) {
	probes := []uint32{0, 1, 0x1FFFFFFF, 0x20000000, 0x7FFFFFFF, 0x80000000, 0xDEADBEEF, 0xFFFFFFFE, 0xFFFFFFFF}

	for _, count := range []int{1, 2, 4, 8, 64, 1024} {
		var next uint64
		for id := 0; id < count; id++ {
			low, span := Bounds(id, count)
			assert.Equal(t, next, uint64(low), "count %d shard %d is not contiguous", count, id)
			next = uint64(low) + span
		}
		assert.Equal(t, uint64(1<<32), next, "count %d does not cover the space", count)

		for _, addr := range probes {
			owners := 0
			for id := 0; id < count; id++ {
				low, span := Bounds(id, count)
				s := &Shard{ID: id, Low: low, Span: span}
				if s.Owns(addr) {
					owners++
					assert.Equal(t, id, IndexFor(addr, count), "count %d addr %#x", count, addr)
				}
			}
			assert.Equal(t, 1, owners, "count %d addr %#x", count, addr)
		}
	}
}

func TestValidCount(t *testing.T) {
	assert.True(t, ValidCount(1))
	assert.True(t, ValidCount(16))
	assert.True(t, ValidCount(MaxShards))
	assert.False(t, ValidCount(0))
	assert.False(t, ValidCount(-2))
	assert.False(t, ValidCount(12))
	assert.False(t, ValidCount(MaxShards<<1))
}

// TestMarkPresent tests direct marking without an owner goroutine
func TestMarkPresent(t *testing.T) {
	s := newShard(t, 1, 4) // [0x40000000, 0x80000000)

	t.Run("owned address", func(t *testing.T) {
		require.NoError(t, s.MarkPresent(0x40000000))
		require.NoError(t, s.MarkPresent(0x7FFFFFFF))
		assert.True(t, s.Contains(0x40000000))
		assert.True(t, s.Contains(0x7FFFFFFF))
		assert.False(t, s.Contains(0x40000001))
	})

	t.Run("idempotent", func(t *testing.T) {
		before := s.Cardinality()
		require.NoError(t, s.MarkPresent(0x40000000))
		assert.Equal(t, before, s.Cardinality())
	})

	t.Run("foreign address", func(t *testing.T) {
		err := s.MarkPresent(0x80000000)
		assert.ErrorIs(t, err, ErrNotOwner)
		assert.False(t, s.Contains(0x80000000))
	})

	assert.Equal(t, uint64(2), s.Cardinality())
	stats := s.GetStats()
	assert.Equal(t, uint64(3), stats.Ops.Marks)
	assert.Equal(t, uint64(2), stats.Ops.Unique)
}

// TestShardInbox feeds batches from several goroutines through the owner
func TestShardInbox(t *testing.T) {
	s := newShard(t, 0, 2) // [0, 0x80000000)

	var released sync.Map
	s.Start(4, func(b []uint32) { released.Store(&b[0], true) })
	assert.Equal(t, ShardStateRunning, s.Info().State)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				// every goroutine submits the same 100 addresses
				batch := make([]uint32, 0, 10)
				for j := 0; j < 10; j++ {
					batch = append(batch, uint32(i*10+j)*4096)
				}
				s.Submit(batch)
			}
		}()
	}
	wg.Wait()
	s.Close()

	assert.Equal(t, ShardStateClosed, s.Info().State)
	assert.Equal(t, uint64(100), s.Cardinality())

	info := s.Info()
	assert.Equal(t, uint64(400), info.Marks)
	assert.Equal(t, uint64(100), info.Unique)
	assert.Equal(t, uint64(40), info.Batches)

	count := 0
	released.Range(func(any, any) bool { count++; return true })
	assert.Equal(t, 40, count)
}

func TestShardLifecycle(t *testing.T) {
	s, err := NewShard(3, 4)
	require.NoError(t, err)

	// Close before Start is a no-op
	s.Close()
	assert.Equal(t, ShardStateOpen, s.State)

	s.Start(1, nil)
	s.Start(1, nil) // second start ignored
	s.Submit([]uint32{0xC0000001})
	s.Close()
	s.Close()
	assert.Equal(t, uint64(1), s.Cardinality())

	info := s.Info()
	assert.Equal(t, uint32(0xC0000000), info.Low)
	assert.Equal(t, uint32(0xFFFFFFFF), info.High)
	assert.Equal(t, 1<<27, info.Bytes)

	require.NoError(t, s.Release())
	require.NoError(t, s.Release())
	assert.Equal(t, ShardStateReleased, s.Info().State)
	assert.Zero(t, s.Cardinality())
	assert.Zero(t, s.Info().Bytes)
}
