// Package ipv4 converts dotted-decimal IPv4 text into its packed 32-bit form
// and back.
//
// # Packed Form
//
// An address a.b.c.d is packed big-endian into a single uint32:
//
//	a<<24 | b<<16 | c<<8 | d
//
//	"10.0.0.1"        → 0x0A000001
//	"255.255.255.255" → 0xFFFFFFFF
//
// The packed value is what the rest of the system stores, routes and counts.
// Its top bits select the owning shard, so the numeric layout matters.
//
// # Validation
//
// Parse is strict. A record is rejected with ErrMalformedRecord when it:
//   - has anything other than exactly four dot-separated groups
//   - has an empty group ("1..2.3")
//   - contains a byte that is not an ASCII digit or a dot
//   - has a group whose value exceeds 255 (detected while accumulating,
//     so long digit runs never wrap)
//
// Leading zeros inside a group ("010") are accepted and read as decimal.
//
// # Performance
//
// Parse works directly on the caller's byte slice and never allocates, which
// keeps it usable on memory-mapped input where every record is a sub-slice of
// the mapping.
package ipv4
