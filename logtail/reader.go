package logtail

import (
	"io"

	"github.com/pkg/errors"
)

// EntryReader walks one segment file's entries in order, starting at byte
// offset 0. It is single-pass and non-restartable: once a Next call returns
// DecodeCleanEnd or DecodeCorrupt, the reader is done and must not be reused.
type EntryReader struct {
	version uint64
	file    SegmentFile
	offset  uint64
	done    bool
}

// NewEntryReader wraps an already-open segment file for sequential decoding.
func NewEntryReader(version uint64, file SegmentFile) *EntryReader {
	return &EntryReader{version: version, file: file}
}

// ReadHeader reads the mandatory HeaderEntry at offset 0 and validates it
// against expectedFormatVersion. A segment that does not begin with a valid
// header, or whose header's SegmentVersion does not match the file it was
// read from, is reported via ErrMissingHeader rather than as a DecodeCorrupt
// result, since the scanner treats both cases as absent (§3) rather than as
// mid-segment corruption. A header that names a FormatVersion other than
// expectedFormatVersion is a distinct, fatal condition reported via
// ErrUnsupportedFormat: the scanner cannot safely decode entries in a format
// it doesn't understand, so it aborts instead of guessing.
func (r *EntryReader) ReadHeader(expectedFormatVersion uint8) (HeaderEntry, error) {
	result := DecodeEntry(r.file)
	switch result.Status {
	case DecodeOk:
		if result.Entry.Kind != KindHeader {
			return HeaderEntry{}, errors.Wrapf(ErrMissingHeader,
				"segment %d: first entry is %s, not Header", r.version, result.Entry.Kind)
		}
		header := result.Entry.Header
		if header.SegmentVersion != r.version {
			return HeaderEntry{}, errors.Wrapf(ErrMissingHeader,
				"segment %d: header declares segment version %d", r.version, header.SegmentVersion)
		}
		if header.FormatVersion != expectedFormatVersion {
			return HeaderEntry{}, errors.Wrapf(ErrUnsupportedFormat,
				"segment %d: format version %d, want %d", r.version, header.FormatVersion, expectedFormatVersion)
		}
		r.offset += result.BytesConsumed
		return header, nil
	case DecodeCleanEnd:
		return HeaderEntry{}, errors.Wrapf(ErrMissingHeader, "segment %d: empty segment", r.version)
	default:
		return HeaderEntry{}, errors.Wrapf(ErrMissingHeader, "segment %d: %v", r.version, result.Err)
	}
}

// Next decodes the following entry, advancing the reader's position. The
// returned LogPosition is the position the entry was read FROM (its start),
// not the position following it; callers wanting the post-entry offset add
// result.BytesConsumed themselves.
func (r *EntryReader) Next() (LogPosition, DecodeResult) {
	if r.done {
		return LogPosition{SegmentVersion: r.version, ByteOffset: r.offset},
			DecodeResult{Status: DecodeCleanEnd}
	}

	pos := LogPosition{SegmentVersion: r.version, ByteOffset: r.offset}
	result := DecodeEntry(r.file)
	if result.Status == DecodeOk {
		r.offset += result.BytesConsumed
	} else {
		r.done = true
	}
	return pos, result
}

// Close releases the underlying segment file.
func (r *EntryReader) Close() error {
	return r.file.Close()
}

var _ io.Closer = (*EntryReader)(nil)
