package ipv4

import (
	"errors"
	"strconv"
)

// ErrMalformedRecord is returned when a record is not a valid dotted-decimal
// IPv4 address.
var ErrMalformedRecord = errors.New("malformed record")

// MaxLen is the length of the longest valid record, "255.255.255.255".
const MaxLen = len("255.255.255.255")

// Parse converts one record (without its line terminator) into a packed
// address. It returns ErrMalformedRecord for anything but four groups of
// 1-3 digits each in the range 0-255.
func Parse(b []byte) (uint32, error) {
	if len(b) == 0 || len(b) > MaxLen {
		return 0, ErrMalformedRecord
	}

	var (
		addr   uint32
		octet  uint32
		digits int
		groups int
	)
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9':
			octet = octet*10 + uint32(c-'0')
			digits++
			if octet > 255 {
				return 0, ErrMalformedRecord
			}
		case c == '.':
			if digits == 0 || groups == 3 {
				return 0, ErrMalformedRecord
			}
			addr = addr<<8 | octet
			octet, digits = 0, 0
			groups++
		default:
			return 0, ErrMalformedRecord
		}
	}
	if digits == 0 || groups != 3 {
		return 0, ErrMalformedRecord
	}
	return addr<<8 | octet, nil
}

// AppendFormat appends the dotted-decimal form of addr to dst.
func AppendFormat(dst []byte, addr uint32) []byte {
	dst = strconv.AppendUint(dst, uint64(addr>>24), 10)
	dst = append(dst, '.')
	dst = strconv.AppendUint(dst, uint64(addr>>16&0xFF), 10)
	dst = append(dst, '.')
	dst = strconv.AppendUint(dst, uint64(addr>>8&0xFF), 10)
	dst = append(dst, '.')
	return strconv.AppendUint(dst, uint64(addr&0xFF), 10)
}

// Format returns the dotted-decimal form of addr.
func Format(addr uint32) string {
	return string(AppendFormat(make([]byte, 0, MaxLen), addr))
}
