package logtail

import "github.com/pkg/errors"

// ErrUnsupportedFormat is returned when a segment's Header declares a format
// version the reader does not understand. It is fatal: the scan aborts
// without a verdict.
var ErrUnsupportedFormat = errors.New("logtail: unsupported log format version")

// ErrMissingHeader is returned when a segment file does not begin with a
// valid HeaderEntry. Per the data model, a segment lacking a valid Header is
// treated as absent rather than corrupt.
var ErrMissingHeader = errors.New("logtail: segment missing header entry")

// errUnknownEntryTag is wrapped into a Corrupt decode result, never returned
// directly to a caller.
var errUnknownEntryTag = errors.New("logtail: unknown entry tag")

// ErrNoSuchSegment is returned by LogFileSet.Open/Size for a version that is
// not present on disk.
var ErrNoSuchSegment = errors.New("logtail: no such segment")
