// Package coordinator implements the orchestration layer of ipcount: it plans
// the input into ranges, runs one worker per range on a bounded pool, routes
// parsed addresses to the shards that own them and combines the shard
// cardinalities into the final distinct count.
//
// # Overview
//
// The coordinator is the only component that sees the whole run. Workers see
// one range of file bytes; shards see one slice of the address space. The
// coordinator connects the two and owns the lifecycle of everything in
// between.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│         COORDINATOR (Run)            │
//	├─────────────────────────────────────┤
//	│                                     │
//	│  ┌──────────────────────────────┐  │
//	│  │   Chunk Planner               │  │
//	│  │   - record-aligned ranges     │  │
//	│  └──────────────────────────────┘  │
//	│                                     │
//	│  ┌──────────────────────────────┐  │
//	│  │   Worker Pool (errgroup)      │  │
//	│  │   - SetLimit(Workers)         │  │
//	│  │   - one worker per range      │  │
//	│  │   - first error cancels all   │  │
//	│  └──────────────────────────────┘  │
//	│                                     │
//	│  ┌──────────────────────────────┐  │
//	│  │   Shard Registry + Routers    │  │
//	│  │   - addr top bits → shard     │  │
//	│  │   - batched single-writer     │  │
//	│  │     inboxes                   │  │
//	│  └──────────────────────────────┘  │
//	│                                     │
//	│  ┌──────────────────────────────┐  │
//	│  │   Progress Monitor            │  │
//	│  │   - periodic snapshots        │  │
//	│  └──────────────────────────────┘  │
//	│                                     │
//	└─────────────────────────────────────┘
//
// # Data Flow
//
//	file ──Plan──▶ [r0][r1][r2]...            (byte ranges)
//	                 │   │   │
//	              worker worker worker         (errgroup, bounded)
//	                 │   │   │  parse + Router.Route
//	                 ▼   ▼   ▼
//	          ┌────────┬────────┬────────┐
//	          │shard 0 │shard 1 │shard N │   (one owner goroutine each)
//	          └────────┴────────┴────────┘
//	                 │   Stop: drain inboxes
//	                 ▼
//	         Σ cardinality ──▶ RunResult
//
// # Concurrency Model
//
// Workers never write bitmaps. Each keeps a private Router with one pending
// batch per shard and submits full batches to the owning shard's inbox. A
// shard's owner goroutine is the only writer of its bitmap, so the hot path
// needs no locks and no atomics beyond the channel hand-off.
//
// Ordering between workers does not matter: the result is the cardinality of
// a set, and marking an address twice is a no-op.
//
// The coordinator blocks twice: on errgroup.Wait for the workers, then on the
// shard owners draining their inboxes. Only after both does it read bitmaps.
//
// # Error Handling
//
//   - Malformed records: skipped by the worker, tallied in RunResult.Malformed
//   - Map failures: retried by the worker, then fatal (worker.ErrIO)
//   - Open/stat/plan failures: fatal (worker.ErrIO)
//   - Bitmap allocation: fatal at startup (storage.ErrResourceExhausted)
//   - Timeout/cancellation: fatal, surfaces the context error
//
// Fatal errors name the range ("range 3 [805306368,1073741830)") so the
// offset can be inspected.
//
// # Configuration
//
// See Config. Every field has a default; the only ones worth tuning are
// ChunkSize and Workers.
package coordinator
