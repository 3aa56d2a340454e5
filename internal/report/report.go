// Package report holds the result of a counting run and renders it for the
// invoking collaborator.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/ipcount/internal/shard"
)

// Output formats accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// RunResult is the outcome of one run. It is built once by the coordinator
// and not modified afterwards.
type RunResult struct {
	UniqueCount   uint64            `json:"unique_count"`
	ElapsedMillis uint64            `json:"elapsed_ms"`
	Elapsed       time.Duration     `json:"-"`
	Records       uint64            `json:"records"`
	Malformed     uint64            `json:"malformed"`
	Bytes         int64             `json:"bytes"`
	Ranges        int               `json:"ranges"`
	Workers       int               `json:"workers"`
	Shards        int               `json:"shards"`
	ShardInfos    []shard.ShardInfo `json:"shard_infos,omitempty"`
}

// SetElapsed records the run duration in both of its forms.
func (r *RunResult) SetElapsed(d time.Duration) {
	r.Elapsed = d
	r.ElapsedMillis = uint64(d.Milliseconds())
}

// Write renders res to w as FormatText or FormatJSON.
func Write(w io.Writer, res RunResult, format string) error {
	infos := slices.Clone(res.ShardInfos)
	slices.SortFunc(infos, func(a, b shard.ShardInfo) int { return a.ID - b.ID })
	res.ShardInfos = infos

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case FormatText, "":
		return writeText(w, res)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeText(w io.Writer, res RunResult) error {
	ew := &errWriter{w: w}
	ew.printf("Unique IPs: %d\n", res.UniqueCount)
	ew.printf("Time: %dms\n", res.ElapsedMillis)
	if res.Malformed > 0 {
		ew.printf("Malformed records: %d of %d\n", res.Malformed, res.Records)
	}
	for _, info := range res.ShardInfos {
		ew.printf("  shard %3d [0x%08x-0x%08x] unique=%d marks=%d batches=%d\n",
			info.ID, info.Low, info.High, info.Unique, info.Marks, info.Batches)
	}
	return ew.err
}

// errWriter keeps the first write error so a sequence of prints can be
// checked once.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
