// Package logtailtest provides in-memory fixtures for exercising
// logtail.TailScanner without touching a real filesystem: a fake segment
// set plus a builder for writing well-formed (or deliberately truncated)
// segment byte streams.
package logtailtest

import (
	"bytes"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/liftbridge-io/walscan/logtail"
)

// FakeSegmentSet is an in-memory logtail.SegmentSource backed by a map from
// segment version to raw segment bytes, used in place of LogFileSet in
// tests.
type FakeSegmentSet struct {
	segments map[uint64][]byte
}

// NewFakeSegmentSet returns an empty set; use Put to add segments.
func NewFakeSegmentSet() *FakeSegmentSet {
	return &FakeSegmentSet{segments: make(map[uint64][]byte)}
}

// Put installs the given bytes as the segment at version, overwriting any
// existing content.
func (f *FakeSegmentSet) Put(version uint64, data []byte) {
	f.segments[version] = data
}

func (f *FakeSegmentSet) versions() []uint64 {
	versions := make([]uint64, 0, len(f.segments))
	for v := range f.segments {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions
}

// AnyFiles implements logtail.SegmentSource.
func (f *FakeSegmentSet) AnyFiles() (bool, error) {
	return len(f.segments) > 0, nil
}

// HighestVersion implements logtail.SegmentSource.
func (f *FakeSegmentSet) HighestVersion() (uint64, bool, error) {
	versions := f.versions()
	if len(versions) == 0 {
		return 0, false, nil
	}
	return versions[len(versions)-1], true, nil
}

// PreviousVersion implements logtail.SegmentSource.
func (f *FakeSegmentSet) PreviousVersion(version uint64) (uint64, bool, error) {
	best, ok := uint64(0), false
	for _, v := range f.versions() {
		if v < version && (!ok || v > best) {
			best, ok = v, true
		}
	}
	return best, ok, nil
}

// Open implements logtail.SegmentSource.
func (f *FakeSegmentSet) Open(version uint64) (logtail.SegmentFile, error) {
	data, ok := f.segments[version]
	if !ok {
		return nil, errors.Wrapf(logtail.ErrNoSuchSegment, "version %d", version)
	}
	return &fakeFile{r: bytes.NewReader(data)}, nil
}

// Size implements logtail.SegmentSource.
func (f *FakeSegmentSet) Size(version uint64) (uint64, error) {
	data, ok := f.segments[version]
	if !ok {
		return 0, errors.Wrapf(logtail.ErrNoSuchSegment, "version %d", version)
	}
	return uint64(len(data)), nil
}

type fakeFile struct {
	r *bytes.Reader
}

func (f *fakeFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *fakeFile) Close() error               { return nil }

var _ io.Closer = (*fakeFile)(nil)

// SegmentBuilder assembles a well-formed segment byte stream entry by
// entry, for use with FakeSegmentSet.Put.
type SegmentBuilder struct {
	buf bytes.Buffer
	err error
}

// NewSegment starts a builder by writing the mandatory HeaderEntry.
func NewSegment(version uint64, storeID logtail.StoreId, formatVersion uint8) *SegmentBuilder {
	b := &SegmentBuilder{}
	b.write(logtail.LogEntry{
		Kind: logtail.KindHeader,
		Header: logtail.HeaderEntry{
			SegmentVersion: version,
			StoreId:        storeID,
			FormatVersion:  formatVersion,
		},
	})
	return b
}

// Offset returns the byte offset the next written entry will start at,
// useful for building a CheckPoint that targets "here" in the same
// segment.
func (b *SegmentBuilder) Offset() uint64 {
	return uint64(b.buf.Len())
}

func (b *SegmentBuilder) write(e logtail.LogEntry) *SegmentBuilder {
	if b.err != nil {
		return b
	}
	_, err := logtail.EncodeEntry(&b.buf, e)
	b.err = err
	return b
}

// Start appends a StartEntry.
func (b *SegmentBuilder) Start(previousChecksum uint32, timeWritten, lastCommittedTx int64, additional []byte) *SegmentBuilder {
	return b.write(logtail.LogEntry{
		Kind: logtail.KindStart,
		Start: logtail.StartEntry{
			PreviousChecksum: previousChecksum,
			TimeWritten:      timeWritten,
			LastCommittedTx:  lastCommittedTx,
			Additional:       additional,
		},
	})
}

// Commit appends a CommitEntry.
func (b *SegmentBuilder) Commit(txID, timeCommitted int64, checksum uint32) *SegmentBuilder {
	return b.write(logtail.LogEntry{
		Kind: logtail.KindCommit,
		Commit: logtail.CommitEntry{
			TxId:          txID,
			TimeCommitted: timeCommitted,
			Checksum:      checksum,
		},
	})
}

// CheckPoint appends a CheckPointEntry targeting target.
func (b *SegmentBuilder) CheckPoint(target logtail.LogPosition) *SegmentBuilder {
	return b.write(logtail.LogEntry{
		Kind:       logtail.KindCheckPoint,
		CheckPoint: logtail.CheckPointEntry{Target: target},
	})
}

// TruncateTail drops n bytes from the end of the built stream so far,
// simulating a crash mid-write of the final entry.
func (b *SegmentBuilder) TruncateTail(n int) *SegmentBuilder {
	if b.err != nil {
		return b
	}
	keep := b.buf.Len() - n
	if keep < 0 {
		keep = 0
	}
	truncated := append([]byte(nil), b.buf.Bytes()[:keep]...)
	b.buf.Reset()
	b.buf.Write(truncated)
	return b
}

// Bytes returns the assembled segment content. It panics if any write
// failed, since that indicates a bug in the test fixture itself rather
// than in the code under test.
func (b *SegmentBuilder) Bytes() []byte {
	if b.err != nil {
		panic(errors.Wrap(b.err, "logtailtest: building segment"))
	}
	return append([]byte(nil), b.buf.Bytes()...)
}
