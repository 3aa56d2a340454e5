package shard

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/dreamware/ipcount/internal/storage"
)

// MaxShards bounds the shard count so every shard spans at least 2^16
// addresses.
const MaxShards = 1 << 16

// DefaultInboxSize is the number of batches a shard buffers before Submit
// blocks.
const DefaultInboxSize = 64

var (
	// ErrInvalidCount is returned for a shard count that is not a power of two
	// in [1, MaxShards]
	ErrInvalidCount = errors.New("shard count must be a power of two")

	// ErrNotOwner is returned when an address outside the shard's range is marked
	ErrNotOwner = errors.New("address not owned by shard")
)

// ShardState represents the current state of a shard
type ShardState string

const (
	// ShardStateOpen means the bitmap is allocated but no owner is running
	ShardStateOpen ShardState = "open"
	// ShardStateRunning means the owner goroutine is draining the inbox
	ShardStateRunning ShardState = "running"
	// ShardStateClosed means the inbox is drained and the bitmap is final
	ShardStateClosed ShardState = "closed"
	// ShardStateReleased means the bitmap memory has been freed
	ShardStateReleased ShardState = "released"
)

// Shard owns one slice of the address space and its presence bitmap
type Shard struct {
	ID    int           // Shard index, also the value of the routing bits
	Low   uint32        // First owned address
	Span  uint64        // Number of owned addresses
	Store storage.Store // Presence set over offsets [0, Span)
	State ShardState    // Current shard state
	Stats *ShardStats   // Operation statistics

	inbox chan []uint32
	done  chan struct{}
	mu    sync.RWMutex // Protects state changes
}

// ShardStats tracks operational statistics for a shard
type ShardStats struct {
	Ops OperationStats
}

// OperationStats tracks operation counts
type OperationStats struct {
	Marks   uint64 // Addresses marked, duplicates included
	Unique  uint64 // Marks that set a new bit
	Batches uint64 // Batches received through the inbox
}

// ShardInfo contains metadata about a shard
type ShardInfo struct {
	ID      int        `json:"id"`
	Low     uint32     `json:"low"`
	High    uint32     `json:"high"` // Last owned address, inclusive
	State   ShardState `json:"state"`
	Marks   uint64     `json:"marks"`
	Unique  uint64     `json:"unique"`
	Batches uint64     `json:"batches"`
	Bytes   int        `json:"bytes"`
}

// ValidCount reports whether count is a usable shard count
func ValidCount(count int) bool {
	return count > 0 && count <= MaxShards && count&(count-1) == 0
}

// IndexFor returns the shard owning addr among count shards
// count must satisfy ValidCount
func IndexFor(addr uint32, count int) int {
	if count == 1 {
		return 0
	}
	return int(addr >> (32 - bits.TrailingZeros(uint(count))))
}

// Bounds returns the first address and the size of shard id's range
func Bounds(id, count int) (low uint32, span uint64) {
	span = (1 << 32) / uint64(count)
	return uint32(uint64(id) * span), span
}

// NewShard allocates shard id of count, with a bitmap sized for its range
func NewShard(id, count int) (*Shard, error) {
	if !ValidCount(count) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	if id < 0 || id >= count {
		return nil, fmt.Errorf("invalid shard ID %d, must be in range [0, %d)", id, count)
	}

	low, span := Bounds(id, count)
	store, err := storage.NewBitmapStore(span)
	if err != nil {
		return nil, fmt.Errorf("shard %d: %w", id, err)
	}

	return &Shard{
		ID:    id,
		Low:   low,
		Span:  span,
		Store: store,
		State: ShardStateOpen,
		Stats: &ShardStats{},
	}, nil
}

// Owns reports whether addr falls inside the shard's range
func (s *Shard) Owns(addr uint32) bool {
	return addr >= s.Low && uint64(addr-s.Low) < s.Span
}

// MarkPresent sets the bit for addr
// It must only be called by the shard's single writer: either the owner
// goroutine or, when no owner is running, the caller itself
func (s *Shard) MarkPresent(addr uint32) error {
	if !s.Owns(addr) {
		return fmt.Errorf("shard %d, address %#08x: %w", s.ID, addr, ErrNotOwner)
	}
	s.mark(addr)
	return nil
}

func (s *Shard) mark(addr uint32) {
	atomic.AddUint64(&s.Stats.Ops.Marks, 1)
	if s.Store.Add(addr - s.Low) {
		atomic.AddUint64(&s.Stats.Ops.Unique, 1)
	}
}

// Start launches the owner goroutine with an inbox of inboxSize batches
// Each drained batch is passed to release, which may recycle it
func (s *Shard) Start(inboxSize int, release func([]uint32)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != ShardStateOpen {
		return
	}

	s.inbox = make(chan []uint32, inboxSize)
	s.done = make(chan struct{})
	s.State = ShardStateRunning
	go s.run(release)
}

func (s *Shard) run(release func([]uint32)) {
	defer close(s.done)
	for batch := range s.inbox {
		atomic.AddUint64(&s.Stats.Ops.Batches, 1)
		for _, addr := range batch {
			s.mark(addr)
		}
		if release != nil {
			release(batch)
		}
	}
}

// Submit hands a batch of owned addresses to the owner goroutine
// The caller must not touch batch afterwards
func (s *Shard) Submit(batch []uint32) {
	s.inbox <- batch
}

// Close stops accepting batches and waits until the owner has drained the
// inbox. It is a no-op unless the shard is running
func (s *Shard) Close() {
	s.mu.Lock()
	if s.State != ShardStateRunning {
		s.mu.Unlock()
		return
	}
	close(s.inbox)
	s.State = ShardStateClosed
	s.mu.Unlock()

	<-s.done
}

// Cardinality returns the number of distinct addresses marked
// Only meaningful once Close has returned or when no owner was started
func (s *Shard) Cardinality() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.State == ShardStateReleased {
		return 0
	}
	return s.Store.Cardinality()
}

// Contains reports whether addr has been marked
// Same ordering rules as Cardinality
func (s *Shard) Contains(addr uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.Owns(addr) || s.State == ShardStateReleased {
		return false
	}
	return s.Store.Contains(addr - s.Low)
}

// GetStats returns current shard statistics
func (s *Shard) GetStats() ShardStats {
	return ShardStats{
		Ops: OperationStats{
			Marks:   atomic.LoadUint64(&s.Stats.Ops.Marks),
			Unique:  atomic.LoadUint64(&s.Stats.Ops.Unique),
			Batches: atomic.LoadUint64(&s.Stats.Ops.Batches),
		},
	}
}

// Info returns metadata about the shard
// Safe to call while the owner is running
func (s *Shard) Info() ShardInfo {
	s.mu.RLock()
	state := s.State
	s.mu.RUnlock()

	stats := s.GetStats()
	info := ShardInfo{
		ID:      s.ID,
		Low:     s.Low,
		High:    uint32(uint64(s.Low) + s.Span - 1),
		State:   state,
		Marks:   stats.Ops.Marks,
		Unique:  stats.Ops.Unique,
		Batches: stats.Ops.Batches,
	}
	if state != ShardStateReleased {
		info.Bytes = int((s.Span + 7) / 8)
	}
	return info
}

// Release closes the shard if needed and frees its bitmap
func (s *Shard) Release() error {
	s.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State == ShardStateReleased {
		return nil
	}
	s.State = ShardStateReleased
	return s.Store.Close()
}
