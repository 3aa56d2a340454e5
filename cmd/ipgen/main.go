// Package main implements ipgen, a generator of IPv4 address files for
// exercising ipcount.
//
// The generator draws addresses from a pool of -unique random addresses so
// that the expected distinct count is known, and prints it on stderr.
//
// Example usage:
//
//	ipgen -n 10000000 -unique 2500000 -o ips.txt
//	ipgen -n 1000 -malformed 0.01 -no-final-newline > ips.txt
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"

	"github.com/dreamware/ipcount/internal/ipv4"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

// genOptions describes one generated file.
type genOptions struct {
	lines          int
	unique         int
	malformed      float64
	noFinalNewline bool
	seed           uint64
}

// genResult reports what was written.
type genResult struct {
	Lines     int
	Unique    int
	Malformed int
}

var malformedSamples = []string{
	"256.1.1.1",
	"1.2.3",
	"1..2.3",
	"a.b.c.d",
	"1.2.3.4.5",
	"10.0.0.1 ",
}

func main() {
	var (
		lines     = flag.Int("n", 1000, "number of lines to write")
		unique    = flag.Int("unique", 0, "size of the address pool (0 means -n)")
		malformed = flag.Float64("malformed", 0, "fraction of lines that are malformed")
		noFinal   = flag.Bool("no-final-newline", false, "omit the terminator after the last line")
		seed      = flag.Uint64("seed", 1, "random seed")
		out       = flag.String("o", "", "output file (default stdout)")
	)
	flag.Parse()

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			logFatal("ipgen: %v", err)
			return
		}
		defer f.Close()
		w = f
	}

	res, err := generate(w, genOptions{
		lines:          *lines,
		unique:         *unique,
		malformed:      *malformed,
		noFinalNewline: *noFinal,
		seed:           *seed,
	})
	if err != nil {
		logFatal("ipgen: %v", err)
		return
	}
	log.Printf("ipgen: wrote %d lines, %d unique, %d malformed", res.Lines, res.Unique, res.Malformed)
}

// generate writes opts.lines records to w. Unique counts only the distinct
// well-formed addresses actually written.
func generate(w io.Writer, opts genOptions) (genResult, error) {
	if opts.lines < 0 {
		return genResult{}, errors.New("negative line count")
	}
	if opts.malformed < 0 || opts.malformed > 1 {
		return genResult{}, fmt.Errorf("malformed fraction %v outside [0,1]", opts.malformed)
	}
	poolSize := opts.unique
	if poolSize <= 0 || poolSize > opts.lines {
		poolSize = opts.lines
	}

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	pool := make([]uint32, 0, poolSize)
	seen := make(map[uint32]struct{}, poolSize)
	for len(pool) < poolSize {
		addr := rng.Uint32()
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		pool = append(pool, addr)
	}

	written := make(map[uint32]struct{}, poolSize)
	bw := bufio.NewWriterSize(w, 1<<20)
	var res genResult
	line := make([]byte, 0, ipv4.MaxLen+1)
	for i := 0; i < opts.lines; i++ {
		line = line[:0]
		if opts.malformed > 0 && rng.Float64() < opts.malformed {
			line = append(line, malformedSamples[rng.IntN(len(malformedSamples))]...)
			res.Malformed++
		} else {
			// Walk the pool first so every address appears at least once
			// when there is room.
			var addr uint32
			if i < poolSize {
				addr = pool[i]
			} else {
				addr = pool[rng.IntN(poolSize)]
			}
			written[addr] = struct{}{}
			line = ipv4.AppendFormat(line, addr)
		}
		if i < opts.lines-1 || !opts.noFinalNewline {
			line = append(line, '\n')
		}
		if _, err := bw.Write(line); err != nil {
			return res, err
		}
		res.Lines++
	}
	res.Unique = len(written)
	return res, bw.Flush()
}
