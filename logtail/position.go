package logtail

import "fmt"

// LogPosition is a pair of segment version and byte offset within that
// segment. Positions are totally ordered lexicographically: segment version
// dominates byte offset. A position points at a byte that either begins an
// entry or is the segment's EOF.
type LogPosition struct {
	SegmentVersion uint64
	ByteOffset     uint64
}

// Compare returns -1, 0 or 1 if p is less than, equal to, or greater than
// other, ordering first by SegmentVersion then by ByteOffset.
func (p LogPosition) Compare(other LogPosition) int {
	switch {
	case p.SegmentVersion < other.SegmentVersion:
		return -1
	case p.SegmentVersion > other.SegmentVersion:
		return 1
	case p.ByteOffset < other.ByteOffset:
		return -1
	case p.ByteOffset > other.ByteOffset:
		return 1
	default:
		return 0
	}
}

// Less reports whether p sorts strictly before other.
func (p LogPosition) Less(other LogPosition) bool {
	return p.Compare(other) < 0
}

func (p LogPosition) String() string {
	return fmt.Sprintf("%d:%d", p.SegmentVersion, p.ByteOffset)
}

// zeroPosition is the position of the very first byte of the oldest possible
// segment. It is used as a sentinel "no checkpoint yet" lower bound.
var zeroPosition = LogPosition{}
