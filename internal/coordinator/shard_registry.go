// Package coordinator implements the orchestration layer of ipcount.
// See doc.go for complete package documentation.
package coordinator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dreamware/ipcount/internal/shard"
)

// DefaultBatchSize is the number of addresses a router buffers per shard
// before handing them to the shard's owner.
const DefaultBatchSize = 4096

// ShardRegistry owns the shards of one run, serving as the authoritative
// source for address placement and the only place where shard cardinalities
// are combined.
//
// The registry implements a fixed range partition where:
//   - The top log2(N) bits of an address select its shard
//   - Each shard has one owner goroutine writing its bitmap
//   - Workers reach owners only through Routers
//
// Architecture:
//
//	┌─────────────────────────────────────┐
//	│         ShardRegistry               │
//	├─────────────────────────────────────┤
//	│  shards: []*shard.Shard (N, pow2)   │
//	│  pool: recycled address batches     │
//	│  mu: guards the running flag        │
//	├─────────────────────────────────────┤
//	│  Addr → top bits → Shard → inbox    │
//	│  0xC0A80001 → 0b110 → 6 → owner 6   │
//	└─────────────────────────────────────┘
//
// Concurrency Model:
//   - GetShardForAddress and NumShards are lock-free pure computations
//   - Start/Stop/Close are serialized by mu
//   - Routers are per-worker and never shared
//   - Cardinality is only read after Stop, once owners have drained
//
// Memory Usage:
//   - 512 MiB of bitmap in total, independent of N
//   - Plus up to N × InboxSize × BatchSize × 4 bytes of in-flight batches
type ShardRegistry struct {
	// shards holds every shard, indexed by shard ID.
	// Fixed at registry creation.
	shards []*shard.Shard

	// pool recycles address batches between routers and shard owners.
	pool sync.Pool

	// batchSize is the capacity of each routed batch.
	batchSize int

	// mu protects running.
	mu sync.Mutex

	// running is true between Start and Stop.
	running bool
}

// NewShardRegistry allocates numShards shards covering the whole IPv4 space.
//
// The number of shards determines:
//   - How many owner goroutines write bitmaps in parallel
//   - The bitmap size per shard (512 MiB / numShards)
//   - How many routing bits are used (log2(numShards))
//
// Parameters:
//   - numShards: Number of shards, a power of two in [1, shard.MaxShards]
//   - batchSize: Addresses per routed batch (<= 0 selects DefaultBatchSize)
//
// Returns:
//   - Initialized ShardRegistry with every bitmap allocated
//   - Error wrapping storage.ErrResourceExhausted if a bitmap cannot be
//     allocated; shards allocated so far are released
//
// Example:
//
//	registry, err := NewShardRegistry(8, 0)
//	if err != nil {
//	    return err
//	}
//	defer registry.Close()
func NewShardRegistry(numShards, batchSize int) (*ShardRegistry, error) {
	if !shard.ValidCount(numShards) {
		return nil, fmt.Errorf("%w: %d", shard.ErrInvalidCount, numShards)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	r := &ShardRegistry{
		shards:    make([]*shard.Shard, 0, numShards),
		batchSize: batchSize,
	}
	r.pool.New = func() any {
		return make([]uint32, 0, batchSize)
	}

	for id := 0; id < numShards; id++ {
		s, err := shard.NewShard(id, numShards)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("allocate shards: %w", err), r.Close())
		}
		r.shards = append(r.shards, s)
	}
	return r, nil
}

// GetShardForAddress determines which shard owns addr.
//
// The mapping process:
// 1. Take the top log2(N) bits of the packed address
// 2. Use them directly as the shard ID
//
// Parameters:
//   - addr: Packed IPv4 address
//
// Returns:
//   - Shard ID in range [0, NumShards())
//
// Thread Safety:
// This method is thread-safe and lock-free.
func (r *ShardRegistry) GetShardForAddress(addr uint32) int {
	return shard.IndexFor(addr, len(r.shards))
}

// GetShard returns shard id, or nil if id is out of range.
func (r *ShardRegistry) GetShard(id int) *shard.Shard {
	if id < 0 || id >= len(r.shards) {
		return nil
	}
	return r.shards[id]
}

// NumShards returns the total number of shards.
func (r *ShardRegistry) NumShards() int {
	return len(r.shards)
}

// Start launches one owner goroutine per shard.
//
// Parameters:
//   - inboxSize: Batches each shard buffers before Submit blocks
//     (<= 0 selects shard.DefaultInboxSize)
//
// Thread Safety:
// Safe to call concurrently with itself; only the first call starts owners.
func (r *ShardRegistry) Start(inboxSize int) {
	if inboxSize <= 0 {
		inboxSize = shard.DefaultInboxSize
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	for _, s := range r.shards {
		s.Start(inboxSize, r.recycle)
	}
	r.running = true
}

// Stop closes every shard inbox and waits until all owners have drained.
// No Router may Flush or Route after Stop is called.
func (r *ShardRegistry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shards {
		s.Close()
	}
	r.running = false
}

// NewRouter returns a Router for a single worker.
func (r *ShardRegistry) NewRouter() *Router {
	return &Router{
		registry: r,
		batches:  make([][]uint32, len(r.shards)),
	}
}

// Cardinality returns the number of distinct addresses across all shards.
// Shards are disjoint, so this is a plain sum. Call it after Stop.
func (r *ShardRegistry) Cardinality() uint64 {
	var total uint64
	for _, s := range r.shards {
		total += s.Cardinality()
	}
	return total
}

// Infos returns metadata for every shard, ordered by shard ID.
func (r *ShardRegistry) Infos() []shard.ShardInfo {
	infos := make([]shard.ShardInfo, 0, len(r.shards))
	for _, s := range r.shards {
		infos = append(infos, s.Info())
	}
	return infos
}

// Close stops owners if needed and frees every bitmap.
func (r *ShardRegistry) Close() error {
	r.Stop()

	var errs []error
	for _, s := range r.shards {
		if err := s.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release shard %d: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (r *ShardRegistry) batch() []uint32 {
	return r.pool.Get().([]uint32)[:0]
}

func (r *ShardRegistry) recycle(b []uint32) {
	r.pool.Put(b[:0])
}

// Router buffers one worker's addresses per shard and submits full batches
// to the owning shard. A Router is not safe for concurrent use.
type Router struct {
	registry *ShardRegistry
	batches  [][]uint32
	routed   uint64
}

// Route appends addr to its shard's batch, submitting the batch when full.
func (rt *Router) Route(addr uint32) {
	id := rt.registry.GetShardForAddress(addr)
	b := rt.batches[id]
	if b == nil {
		b = rt.registry.batch()
	}
	b = append(b, addr)
	rt.routed++

	if len(b) >= rt.registry.batchSize {
		rt.registry.shards[id].Submit(b)
		b = nil
	}
	rt.batches[id] = b
}

// Flush submits every partially filled batch.
func (rt *Router) Flush() {
	for id, b := range rt.batches {
		if len(b) > 0 {
			rt.registry.shards[id].Submit(b)
		} else if b != nil {
			rt.registry.recycle(b)
		}
		rt.batches[id] = nil
	}
}

// Routed returns the number of addresses routed so far.
func (rt *Router) Routed() uint64 {
	return rt.routed
}
