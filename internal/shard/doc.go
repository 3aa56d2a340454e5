// Package shard implements the unit of ownership for the IPv4 address space:
// a contiguous slice of [0, 2^32) together with the presence bitmap for the
// addresses inside it.
//
// # Overview
//
// Counting distinct addresses needs one bit per possible address. Instead of
// one global bitmap written by every worker, the space is cut into a power of
// two number of shards. Each shard's bitmap is written by exactly one
// goroutine, its owner, so no bit is ever touched by two writers.
//
// # Address Space Partitioning
//
// The top log2(N) bits of an address select its shard:
//
//	Total address space:
//	[0x00000000 ─────────────────── 0xFFFFFFFF]
//
//	N = 8, shard = addr >> 29:
//	Shard 0: [0x00000000 - 0x1FFFFFFF]
//	Shard 1: [0x20000000 - 0x3FFFFFFF]
//	Shard 2: [0x40000000 - 0x5FFFFFFF]
//	Shard 3: [0x60000000 - 0x7FFFFFFF]
//	Shard 4: [0x80000000 - 0x9FFFFFFF]
//	Shard 5: [0xA0000000 - 0xBFFFFFFF]
//	Shard 6: [0xC0000000 - 0xDFFFFFFF]
//	Shard 7: [0xE0000000 - 0xFFFFFFFF]
//
// Every address belongs to exactly one shard. The ranges never overlap and
// their union is the whole space, so the global distinct count is the plain
// sum of shard cardinalities; no merge step is needed.
//
// # Single-Writer Inbox
//
// Workers parse addresses from arbitrary file bytes, so the addresses they
// find are spread over all shards. They do not write bitmaps themselves.
// Instead they hand batches of addresses to the owning shard:
//
//	worker 0 ──┐ batch          ┌──────────────┐
//	worker 1 ──┼──────────────▶│ shard inbox  │──▶ owner goroutine ──▶ bitmap
//	worker 2 ──┘ (chan []uint32)└──────────────┘
//
// The channel is the only synchronization on the hot path. Setting a bit that
// is already set is a no-op, so batch order does not matter.
//
// # Lifecycle
//
//	NewShard ──▶ Start ──▶ Submit* ──▶ Close ──▶ Cardinality ──▶ Release
//	 (open)     (running)              (closed)                 (released)
//
// Submit must not be called after Close. Cardinality reads the bitmap and is
// only meaningful once Close has returned, when the owner has drained every
// batch. Release frees the bitmap.
//
// # Memory
//
// With N shards each bitmap covers 2^32/N addresses, 512 MiB/N bytes. The
// total stays at 512 MiB for any N, unlike per-worker full bitmaps which cost
// 512 MiB each.
package shard
