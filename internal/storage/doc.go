// Package storage provides the presence sets that back each shard of the
// address space, behind a small Store interface so shards do not depend on a
// particular representation.
//
// # Overview
//
// A Store records which offsets in [0, Capacity) have been seen. Offsets are
// shard-local: a shard owning addresses [low, low+span) stores address a at
// offset a-low. The store itself knows nothing about IPv4.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│         Shard (owner goroutine)     │
//	└─────────────────────────────────────┘
//	                 │ Add(offset)
//	                 ▼
//	┌─────────────────────────────────────┐
//	│        Store interface              │
//	│  Add · Contains · Cardinality       │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│  BitmapStore                        │
//	│  []uint64 over anonymous mmap       │
//	│  1 bit per offset                   │
//	└─────────────────────────────────────┘
//
// # Memory Management
//
// A full IPv4 space needs 2^32 bits, 512 MiB. Shards split that space, so the
// bitmaps of all shards still sum to 512 MiB however many shards exist.
//
// BitmapStore allocates its words with an anonymous private mapping instead of
// make. The kernel hands out zero pages lazily, so a sparse input only commits
// the pages it touches, and a failed allocation comes back as
// ErrResourceExhausted instead of a runtime abort. Close releases the mapping;
// a closed store must not be used again.
//
// Bitmap layout:
//
//	offset o → word o>>6, bit o&63
//
//	word 0                      word 1
//	┌──────────────────────────┐┌──────────────────────────┐
//	│ bit 63 ........... bit 0 ││ bit 63 ........... bit 0 │
//	└──────────────────────────┘└──────────────────────────┘
//	  offsets 63 ........... 0    offsets 127 ......... 64
//
// # Concurrency and Thread Safety
//
// Unlike the rest of the system, a Store is NOT safe for concurrent mutation.
// Each store has exactly one writer: the goroutine that owns its shard. Reads
// (Cardinality, Stats) happen after the writer has stopped.
//
// # Error Handling
//
//   - ErrResourceExhausted: the bitmap could not be mapped (fatal at startup)
//   - ErrInvalidCapacity: a zero-capacity store was requested
package storage
