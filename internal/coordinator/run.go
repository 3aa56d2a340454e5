package coordinator

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/ipcount/internal/chunk"
	"github.com/dreamware/ipcount/internal/report"
	"github.com/dreamware/ipcount/internal/worker"
)

// Run counts the distinct IPv4 addresses in the file at path.
//
// Run process:
//  1. Opens the file read-only and plans record-aligned ranges
//  2. Allocates the shards and starts their owners
//  3. Scans ranges on a pool of cfg.Workers goroutines, one worker per range
//  4. Waits for all workers, drains the shard inboxes
//  5. Sums shard cardinalities into the result
//
// Malformed records are skipped and tallied. Failing to open, plan or map
// the input aborts the run with an error wrapping worker.ErrIO; a bitmap
// allocation failure wraps storage.ErrResourceExhausted. When cfg.Timeout
// elapses the run stops with context.DeadlineExceeded.
func Run(ctx context.Context, path string, cfg Config) (report.RunResult, error) {
	start := time.Now()
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return report.RunResult{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return report.RunResult{}, fmt.Errorf("%w: open input: %w", worker.ErrIO, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return report.RunResult{}, fmt.Errorf("%w: stat input: %w", worker.ErrIO, err)
	}
	if !info.Mode().IsRegular() {
		return report.RunResult{}, fmt.Errorf("%w: %s is not a regular file", worker.ErrIO, path)
	}

	res, err := count(ctx, f, info.Size(), cfg)
	res.SetElapsed(time.Since(start))
	return res, err
}

func count(ctx context.Context, f *os.File, size int64, cfg Config) (report.RunResult, error) {
	res := report.RunResult{
		Bytes:   size,
		Workers: cfg.Workers,
		Shards:  cfg.Shards,
	}

	ranges, err := chunk.Plan(f, size, cfg.ChunkSize)
	if err != nil {
		return res, fmt.Errorf("%w: plan ranges: %w", worker.ErrIO, err)
	}
	res.Ranges = len(ranges)
	if len(ranges) == 0 {
		return res, nil
	}
	log.Printf("counting %d bytes in %d ranges with %d workers and %d shards",
		size, len(ranges), cfg.Workers, cfg.Shards)

	registry, err := NewShardRegistry(cfg.Shards, cfg.BatchSize)
	if err != nil {
		return res, err
	}
	defer registry.Close()
	registry.Start(cfg.InboxSize)

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	progress := newTracker(size, len(ranges))
	if cfg.ProgressInterval > 0 {
		monitor := NewProgressMonitor(cfg.ProgressInterval)
		if cfg.OnProgress != nil {
			monitor.SetReporter(cfg.OnProgress)
		}
		monitor.Start(ctx, progress.snapshot)
		defer monitor.Stop()
	}

	w := worker.New(f)
	w.Retries = cfg.Retries
	w.Backoff = cfg.RetryBackoff
	w.OnProgress = progress.addBytes
	if cfg.Verbose {
		w.LogMalformed = 3
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, r := range ranges {
		g.Go(func() error {
			stats, err := w.Process(gctx, r, registry.NewRouter())
			progress.finishRange(stats.Records, stats.Malformed)
			if err != nil {
				return fmt.Errorf("range %d %s: %w", i, r, err)
			}
			if cfg.Verbose {
				log.Printf("range %d %s done: %d records, %d malformed", i, r, stats.Records, stats.Malformed)
			}
			return nil
		})
	}
	err = g.Wait()

	// Owners must drain before any bitmap is read.
	registry.Stop()

	p := progress.snapshot()
	res.Records = p.Records
	res.Malformed = p.Malformed
	if err != nil {
		return res, err
	}

	res.UniqueCount = registry.Cardinality()
	if cfg.Verbose {
		res.ShardInfos = registry.Infos()
	}
	return res, nil
}
