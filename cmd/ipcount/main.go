// Package main implements the ipcount command, which counts the distinct IPv4
// addresses in a file holding one dotted-decimal address per line.
//
// Configuration (flags override the environment):
//   - -chunk / IPCOUNT_CHUNK_SIZE: target range size, e.g. 256MiB (default)
//   - -workers / IPCOUNT_WORKERS: parallel workers (default: GOMAXPROCS)
//   - -shards: address-space shards, a power of two (default: derived)
//   - -timeout / IPCOUNT_TIMEOUT: limit for the whole run (default: none)
//   - -format / IPCOUNT_FORMAT: text or json (default: text)
//   - -progress: draw a progress bar on stderr
//   - -v: log per-range summaries and print per-shard statistics
//
// Example usage:
//
//	ipcount -workers 8 -chunk 128MiB ip_addresses
//	Unique IPs: 1000000000
//	Time: 41237ms
//
// Exit codes:
//   - 0: Count printed
//   - 1: Bad arguments, unreadable input or a failed run
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/dreamware/ipcount/internal/coordinator"
	"github.com/dreamware/ipcount/internal/report"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

// errUsage is returned for command lines that cannot be run.
var errUsage = errors.New("usage: ipcount [flags] FILE")

// options is the parsed command line.
type options struct {
	path     string
	format   string
	progress bool
	cfg      coordinator.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		logFatal("ipcount: %v", err)
	}
}

// run parses args, counts and writes the result to stdout. Progress and
// flag errors go to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if opts.progress {
		if info, err := os.Stat(opts.path); err == nil {
			bar = progressbar.NewOptions64(info.Size(),
				progressbar.OptionSetDescription("scanning"),
				progressbar.OptionSetWriter(stderr),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(30),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
			opts.cfg.ProgressInterval = 100 * time.Millisecond
			opts.cfg.OnProgress = func(p coordinator.Progress) {
				_ = bar.Set64(p.Bytes)
			}
		}
	}

	res, err := coordinator.Run(ctx, opts.path, opts.cfg)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}
	return report.Write(stdout, res, opts.format)
}

func parseOptions(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("ipcount", flag.ContinueOnError)
	fs.SetOutput(stderr)

	chunkSize := fs.String("chunk", getenv("IPCOUNT_CHUNK_SIZE", "256MiB"), "target byte size of each scanned range")
	workers := fs.String("workers", getenv("IPCOUNT_WORKERS", strconv.Itoa(runtime.GOMAXPROCS(0))), "number of parallel workers")
	shards := fs.Int("shards", 0, "number of address-space shards, a power of two (0 derives it from -workers)")
	timeout := fs.String("timeout", getenv("IPCOUNT_TIMEOUT", "0"), "abort the run after this long (0 disables)")
	format := fs.String("format", getenv("IPCOUNT_FORMAT", report.FormatText), "output format: text or json")
	progress := fs.Bool("progress", false, "draw a progress bar on stderr")
	verbose := fs.Bool("v", false, "log per-range summaries and print per-shard statistics")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() != 1 {
		return options{}, errUsage
	}

	opts := options{
		path:     fs.Arg(0),
		format:   *format,
		progress: *progress,
	}
	if opts.format != report.FormatText && opts.format != report.FormatJSON {
		return options{}, fmt.Errorf("unknown format %q", opts.format)
	}

	var err error
	if opts.cfg.ChunkSize, err = parseSize(*chunkSize); err != nil {
		return options{}, fmt.Errorf("chunk size: %w", err)
	}
	if opts.cfg.Workers, err = strconv.Atoi(*workers); err != nil || opts.cfg.Workers < 1 {
		return options{}, fmt.Errorf("workers: invalid value %q", *workers)
	}
	if opts.cfg.Timeout, err = time.ParseDuration(*timeout); err != nil {
		return options{}, fmt.Errorf("timeout: %w", err)
	}
	opts.cfg.Shards = *shards
	opts.cfg.Verbose = *verbose
	return opts, nil
}

var sizeUnits = []struct {
	suffix string
	mult   int64
}{
	{"KiB", 1 << 10}, {"MiB", 1 << 20}, {"GiB", 1 << 30},
	{"K", 1 << 10}, {"M", 1 << 20}, {"G", 1 << 30},
	{"B", 1},
}

// parseSize reads a positive byte count with an optional binary unit suffix.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	mult := int64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s, mult = strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), u.mult
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 || n > (1<<62)/mult {
		return 0, fmt.Errorf("size %d out of range", n)
	}
	return n * mult, nil
}

// getenv retrieves an environment variable with a fallback default value.
//
// Example:
//
//	format := getenv("IPCOUNT_FORMAT", "text")
//	// Returns $IPCOUNT_FORMAT if set, otherwise "text"
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
