// Package worker scans one planned byte range of the input, parses every
// record and routes the resulting addresses to their owning shards.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dreamware/ipcount/internal/chunk"
	"github.com/dreamware/ipcount/internal/ipv4"
)

// DefaultRetries is the number of attempts made to map a range.
const DefaultRetries = 3

// DefaultBackoff is the base delay between map attempts; attempt n waits n times it.
const DefaultBackoff = 50 * time.Millisecond

// checkEvery is roughly how many bytes are scanned between cancellation
// checks and progress callbacks.
const checkEvery = 1 << 20

// ErrIO marks input failures: the file or one of its ranges could not be
// opened, mapped or read.
var ErrIO = errors.New("i/o failure")

// IOError reports a range that could not be mapped after all attempts.
type IOError struct {
	Offset   int64
	Length   int64
	Attempts int
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("map %d bytes at offset %d failed after %d attempts: %v", e.Length, e.Offset, e.Attempts, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

// Sink receives parsed addresses. Route is called once per valid record and
// Flush once when the range is done. A Sink is used by a single worker.
type Sink interface {
	Route(addr uint32)
	Flush()
}

// Stats tallies what a worker saw in its range.
type Stats struct {
	Records   uint64 `json:"records"`   // Non-empty records, malformed included
	Malformed uint64 `json:"malformed"` // Records rejected by the parser
	Bytes     int64  `json:"bytes"`     // Bytes scanned
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Records += o.Records
	s.Malformed += o.Malformed
	s.Bytes += o.Bytes
}

// Worker maps ranges of one read-only file. A Worker holds no per-range state
// and may process several ranges concurrently.
type Worker struct {
	File    *os.File
	Retries int           // Map attempts per range
	Backoff time.Duration // Base delay between attempts

	// OnProgress, if set, is called with the number of bytes just scanned.
	OnProgress func(n int64)

	// LogMalformed is the number of malformed records logged per range.
	LogMalformed int

	mmap func(fd int, offset int64, length int) ([]byte, error)
}

// New creates a worker over f with default retry settings.
func New(f *os.File) *Worker {
	return &Worker{
		File:    f,
		Retries: DefaultRetries,
		Backoff: DefaultBackoff,
	}
}

// Process scans r and routes every valid address to sink. Malformed records
// are tallied and skipped. The returned error is either an *IOError or the
// context's error; the stats cover what was scanned before it.
func (w *Worker) Process(ctx context.Context, r chunk.ByteRange, sink Sink) (Stats, error) {
	var stats Stats
	defer sink.Flush()

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if r.Len() <= 0 {
		return stats, nil
	}

	data, unmap, err := w.mapRange(ctx, r)
	if err != nil {
		return stats, err
	}
	defer unmap()

	logged := 0
	for off := 0; off < len(data); {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := off + checkEvery
		if end >= len(data) {
			end = len(data)
		} else if i := bytes.IndexByte(data[end:], '\n'); i >= 0 {
			end += i + 1
		} else {
			end = len(data)
		}

		ScanRecords(data[off:end], func(at int, rec []byte) {
			stats.Records++
			addr, err := ipv4.Parse(rec)
			if err != nil {
				stats.Malformed++
				if logged < w.LogMalformed {
					logged++
					log.Printf("skipping malformed record at offset %d: %q", r.Start+int64(off+at), rec)
				}
				return
			}
			sink.Route(addr)
		})

		n := int64(end - off)
		stats.Bytes += n
		if w.OnProgress != nil {
			w.OnProgress(n)
		}
		off = end
	}
	return stats, nil
}

// mapRange maps r read-only, retrying failed attempts with linear backoff.
// Mappings must start on a page boundary, so the view returned is a suffix of
// a slightly larger mapping.
func (w *Worker) mapRange(ctx context.Context, r chunk.ByteRange) ([]byte, func(), error) {
	mmap := w.mmap
	if mmap == nil {
		mmap = mapReadOnly
	}
	attempts := w.Retries
	if attempts < 1 {
		attempts = 1
	}

	page := int64(unix.Getpagesize())
	base := r.Start &^ (page - 1)
	length := int(r.End - base)

	var err error
	for attempt := 1; ; attempt++ {
		var mem []byte
		mem, err = mmap(int(w.File.Fd()), base, length)
		if err == nil {
			_ = unix.Madvise(mem, unix.MADV_SEQUENTIAL)
			return mem[r.Start-base:], func() { _ = unix.Munmap(mem) }, nil
		}
		if attempt == attempts {
			return nil, nil, &IOError{Offset: r.Start, Length: r.Len(), Attempts: attempt, Err: err}
		}

		log.Printf("map %s attempt %d/%d failed: %v", r, attempt, attempts, err)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * w.Backoff):
		}
	}
}

func mapReadOnly(fd int, offset int64, length int) ([]byte, error) {
	return unix.Mmap(fd, offset, length, unix.PROT_READ, unix.MAP_SHARED)
}

// ScanRecords calls fn for every non-empty record in data with the record's
// offset inside data. A trailing '\r' is dropped and a final record without
// '\n' is still reported.
func ScanRecords(data []byte, fn func(at int, rec []byte)) {
	for at := 0; at < len(data); {
		end := bytes.IndexByte(data[at:], '\n')
		next := at + end + 1
		if end < 0 {
			end = len(data) - at
			next = len(data)
		}

		rec := data[at : at+end]
		if n := len(rec); n > 0 && rec[n-1] == '\r' {
			rec = rec[:n-1]
		}
		if len(rec) > 0 {
			fn(at, rec)
		}
		at = next
	}
}
