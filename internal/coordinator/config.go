package coordinator

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/dreamware/ipcount/internal/chunk"
	"github.com/dreamware/ipcount/internal/shard"
	"github.com/dreamware/ipcount/internal/worker"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config controls a counting run. Zero fields take the defaults of
// DefaultConfig.
type Config struct {
	// ChunkSize is the target byte length of each planned range.
	ChunkSize int64

	// Workers bounds how many ranges are scanned at once.
	Workers int

	// Shards is the number of address-space shards, a power of two.
	// Zero derives it from Workers with ShardCountFor.
	Shards int

	// BatchSize is the number of addresses routed to a shard at a time.
	BatchSize int

	// InboxSize is the number of batches each shard buffers.
	InboxSize int

	// Retries is the number of attempts to map a range before failing.
	Retries int

	// RetryBackoff is the base delay between map attempts.
	RetryBackoff time.Duration

	// Timeout bounds the whole run. Zero means no limit.
	Timeout time.Duration

	// ProgressInterval enables periodic progress reports when positive.
	ProgressInterval time.Duration

	// OnProgress receives progress reports. Nil logs them.
	OnProgress func(Progress)

	// Verbose logs per-range summaries, a sample of malformed records and
	// fills RunResult.ShardInfos.
	Verbose bool
}

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() Config {
	workers := runtime.GOMAXPROCS(0)
	return Config{
		ChunkSize:    chunk.DefaultSize,
		Workers:      workers,
		Shards:       ShardCountFor(workers),
		BatchSize:    DefaultBatchSize,
		InboxSize:    shard.DefaultInboxSize,
		Retries:      worker.DefaultRetries,
		RetryBackoff: worker.DefaultBackoff,
	}
}

// ShardCountFor returns the largest power of two not above workers, so that
// each worker has at most one shard owner to compete with.
func ShardCountFor(workers int) int {
	n := 1
	for n*2 <= workers && n*2 <= shard.MaxShards {
		n *= 2
	}
	return n
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkSize == 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.Shards == 0 {
		c.Shards = ShardCountFor(c.Workers)
	}
	if c.BatchSize == 0 {
		c.BatchSize = d.BatchSize
	}
	if c.InboxSize == 0 {
		c.InboxSize = d.InboxSize
	}
	if c.Retries == 0 {
		c.Retries = d.Retries
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	return c
}

// Validate reports the first unusable field.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size %d", ErrInvalidConfig, c.ChunkSize)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Workers)
	case !shard.ValidCount(c.Shards):
		return fmt.Errorf("%w: shards %d is not a power of two in [1, %d]", ErrInvalidConfig, c.Shards, shard.MaxShards)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size %d", ErrInvalidConfig, c.BatchSize)
	case c.InboxSize <= 0:
		return fmt.Errorf("%w: inbox size %d", ErrInvalidConfig, c.InboxSize)
	case c.Retries <= 0:
		return fmt.Errorf("%w: retries %d", ErrInvalidConfig, c.Retries)
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout %v", ErrInvalidConfig, c.Timeout)
	}
	return nil
}
