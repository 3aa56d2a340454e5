package storage

import (
	"errors"
	"fmt"
	"math/bits"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	// ErrResourceExhausted is returned when a store's memory cannot be allocated
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInvalidCapacity is returned for a zero-capacity store
	ErrInvalidCapacity = errors.New("store capacity must be positive")
)

// Store defines a presence set over offsets [0, Capacity)
// Implementations have a single writer; see the package documentation
type Store interface {
	// Add marks offset as present
	// Returns true if the offset was not present before
	Add(offset uint32) bool

	// Contains reports whether offset is present
	Contains(offset uint32) bool

	// Cardinality returns the number of present offsets
	Cardinality() uint64

	// Stats returns storage statistics
	Stats() StoreStats

	// Close releases the store's memory
	Close() error
}

// StoreStats contains statistics about the store
type StoreStats struct {
	Keys     uint64 // Number of present offsets
	Capacity uint64 // Number of addressable offsets
	Bytes    int    // Size of the backing memory in bytes
}

// BitmapStore implements Store with one bit per offset
type BitmapStore struct {
	mem      []byte   // Backing mapping, nil once closed
	words    []uint64 // mem viewed as 64-bit words
	capacity uint64
	keys     uint64 // Offsets newly set through Add
}

// NewBitmapStore creates a store able to hold offsets [0, capacity)
// The backing memory is rounded up to whole 64-bit words
func NewBitmapStore(capacity uint64) (*BitmapStore, error) {
	if capacity == 0 {
		return nil, ErrInvalidCapacity
	}
	n := (capacity + 63) / 64
	size := n * 8
	if size > uint64(^uint(0)>>1) {
		return nil, fmt.Errorf("%w: %d bytes exceeds address space", ErrResourceExhausted, size)
	}

	mem, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("%w: map %d bytes: %w", ErrResourceExhausted, size, err)
	}

	return &BitmapStore{
		mem:      mem,
		words:    unsafe.Slice((*uint64)(unsafe.Pointer(unsafe.SliceData(mem))), n),
		capacity: capacity,
	}, nil
}

// Add sets the bit for offset
// Setting a bit that is already set is a no-op
func (b *BitmapStore) Add(offset uint32) bool {
	w := &b.words[offset>>6]
	mask := uint64(1) << (offset & 63)
	if *w&mask != 0 {
		return false
	}
	*w |= mask
	b.keys++
	return true
}

// Contains reports whether the bit for offset is set
func (b *BitmapStore) Contains(offset uint32) bool {
	if uint64(offset) >= b.capacity {
		return false
	}
	return b.words[offset>>6]&(uint64(1)<<(offset&63)) != 0
}

// Cardinality returns the population count of the bitmap
func (b *BitmapStore) Cardinality() uint64 {
	var total uint64
	for _, w := range b.words {
		total += uint64(bits.OnesCount64(w))
	}
	return total
}

// Stats returns storage statistics
// Keys is maintained incrementally and does not rescan the bitmap
func (b *BitmapStore) Stats() StoreStats {
	return StoreStats{
		Keys:     b.keys,
		Capacity: b.capacity,
		Bytes:    len(b.mem),
	}
}

// Close unmaps the bitmap. It is safe to call more than once
func (b *BitmapStore) Close() error {
	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem, b.words = nil, nil
	return err
}
