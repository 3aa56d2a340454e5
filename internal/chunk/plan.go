package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultSize is the target range length used when none is configured.
const DefaultSize int64 = 256 << 20

// probeSize is how many bytes are read per step while searching for a
// terminator past a tentative boundary.
const probeSize = 4 << 10

// ErrInvalidChunkSize is returned for a non-positive target size.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// ByteRange is a half-open interval [Start, End) of file offsets.
type ByteRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len returns the number of bytes in the range.
func (r ByteRange) Len() int64 {
	return r.End - r.Start
}

func (r ByteRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Plan partitions [0, size) into ranges of roughly target bytes, each ending
// right after a '\n' or at end of file. r is only used to probe bytes around
// tentative boundaries. An empty file yields no ranges.
func Plan(r io.ReaderAt, size, target int64) ([]ByteRange, error) {
	if target <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if size <= 0 {
		return nil, nil
	}

	ranges := make([]ByteRange, 0, (size+target-1)/target)
	buf := make([]byte, probeSize)
	for start := int64(0); start < size; {
		end := start + target
		if end >= size {
			ranges = append(ranges, ByteRange{Start: start, End: size})
			break
		}

		end, err := alignEnd(r, buf, end, size)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, ByteRange{Start: start, End: end})
		start = end
	}
	return ranges, nil
}

// alignEnd returns the offset just past the first '\n' at or after end-1, or
// size when the rest of the file holds no terminator.
func alignEnd(r io.ReaderAt, buf []byte, end, size int64) (int64, error) {
	// Start one byte early: if the byte before end is already a terminator,
	// end is aligned as is.
	for off := end - 1; off < size; {
		n := int64(len(buf))
		if rest := size - off; rest < n {
			n = rest
		}
		read, err := r.ReadAt(buf[:n], off)
		if err != nil && !(errors.Is(err, io.EOF) && int64(read) == n) {
			return 0, fmt.Errorf("probe boundary at offset %d: %w", off, err)
		}
		if i := bytes.IndexByte(buf[:read], '\n'); i >= 0 {
			return off + int64(i) + 1, nil
		}
		off += int64(read)
	}
	return size, nil
}
