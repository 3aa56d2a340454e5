// Package chunk splits an input file into record-aligned byte ranges so that
// each range can be scanned by an independent worker.
//
// # Alignment
//
// A naive split at fixed byte offsets cuts records in two:
//
//	bytes:   1.2.3.4\n10.20.30.40\n5.6.7.8\n   (28 bytes, target 10)
//	naive:   [0,10) [10,20) [20,28)
//	         "10" and ".20.30.40" become two garbage records
//
// Plan extends every tentative end forward to just past the next '\n', so a
// record always lands whole in exactly one range:
//
//	planned: [0,20) [20,28)
//
// The ranges tile [0, size) with no gaps or overlaps. Only the final range may
// end without a terminator, when the file itself lacks a trailing newline.
// A record longer than the target size is still kept whole; its range simply
// grows past the target.
package chunk
