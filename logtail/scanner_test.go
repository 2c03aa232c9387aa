package logtail_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftbridge-io/walscan/logtail"
	"github.com/liftbridge-io/walscan/logtail/logtailtest"
)

var testStoreID = logtail.StoreId{0xaa, 0xbb}

const testFormatVersion uint8 = 1

func scan(t *testing.T, segments *logtailtest.FakeSegmentSet) logtail.TailInformation {
	t.Helper()
	scanner := logtail.NewTailScanner(segments, nil, nil, testFormatVersion)
	info, err := scanner.ScanTail(context.Background())
	require.NoError(t, err)
	return info
}

func TestScanTail_NoSegments(t *testing.T) {
	info := scan(t, logtailtest.NewFakeSegmentSet())

	assert.True(t, info.LogsMissing())
	assert.True(t, info.IsRecoveryRequired())
	_, hasCP := info.LastCheckPoint()
	assert.False(t, hasCP)
}

func TestScanTail_EmptySegment(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	segments.Put(43, logtailtest.NewSegment(43, testStoreID, 1).Bytes())

	info := scan(t, segments)

	_, hasCP := info.LastCheckPoint()
	assert.False(t, hasCP)
	assert.False(t, info.CommitsAfterLastCheckPoint())
	assert.Equal(t, logtail.NoTransactionID, info.FirstTxIdAfterLastCheckPoint())
	assert.Equal(t, uint64(43), info.OldestSegmentVersionFound())
}

func TestScanTail_StartAndCommitNoCheckpoint(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	b := logtailtest.NewSegment(43, testStoreID, 1)
	b.Start(0, 100, -1, nil).Commit(10, 101, 0)
	segments.Put(43, b.Bytes())

	info := scan(t, segments)

	assert.True(t, info.CommitsAfterLastCheckPoint())
	assert.Equal(t, int64(10), info.FirstTxIdAfterLastCheckPoint())
	assert.Equal(t, uint64(43), info.OldestSegmentVersionFound())
}

func TestScanTail_StartAndCommitInOlderSegmentNoCheckpoint(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	segments.Put(43, logtailtest.NewSegment(43, testStoreID, 1).Bytes())
	b42 := logtailtest.NewSegment(42, testStoreID, 1)
	b42.Start(0, 100, -1, nil).Commit(21, 101, 0)
	segments.Put(42, b42.Bytes())

	info := scan(t, segments)

	assert.True(t, info.CommitsAfterLastCheckPoint())
	assert.Equal(t, int64(21), info.FirstTxIdAfterLastCheckPoint())
	assert.Equal(t, uint64(42), info.OldestSegmentVersionFound())
}

func TestScanTail_SelfCheckpointAlone(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	b := logtailtest.NewSegment(43, testStoreID, 1)
	target := logtail.LogPosition{SegmentVersion: 43, ByteOffset: b.Offset()}
	b.CheckPoint(target)
	segments.Put(43, b.Bytes())

	info := scan(t, segments)

	pos, hasCP := info.LastCheckPoint()
	assert.True(t, hasCP)
	assert.Equal(t, target, pos)
	assert.False(t, info.CommitsAfterLastCheckPoint())
	assert.Equal(t, logtail.NoTransactionID, info.FirstTxIdAfterLastCheckPoint())
	assert.Equal(t, uint64(43), info.OldestSegmentVersionFound())
}

func TestScanTail_CommitBeforeSelfCheckpoint(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	b := logtailtest.NewSegment(43, testStoreID, 1)
	b.Start(0, 100, -1, nil).Commit(1, 101, 0)
	target := logtail.LogPosition{SegmentVersion: 43, ByteOffset: b.Offset()}
	b.CheckPoint(target)
	segments.Put(43, b.Bytes())

	info := scan(t, segments)

	pos, hasCP := info.LastCheckPoint()
	assert.True(t, hasCP)
	assert.Equal(t, target, pos)
	assert.False(t, info.CommitsAfterLastCheckPoint())
	assert.Equal(t, logtail.NoTransactionID, info.FirstTxIdAfterLastCheckPoint())
	assert.Equal(t, uint64(43), info.OldestSegmentVersionFound())
}

func TestScanTail_LatestOfTwoCheckpointsWins(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	b := logtailtest.NewSegment(43, testStoreID, 1)
	b.CheckPoint(logtail.LogPosition{SegmentVersion: 43, ByteOffset: 0})
	target := logtail.LogPosition{SegmentVersion: 43, ByteOffset: b.Offset()}
	b.CheckPoint(target)
	b.Start(0, 100, -1, nil).Commit(11, 101, 0)
	segments.Put(43, b.Bytes())

	info := scan(t, segments)

	pos, hasCP := info.LastCheckPoint()
	assert.True(t, hasCP)
	assert.Equal(t, target, pos)
	assert.True(t, info.CommitsAfterLastCheckPoint())
	assert.Equal(t, int64(11), info.FirstTxIdAfterLastCheckPoint())
	assert.Equal(t, uint64(43), info.OldestSegmentVersionFound())
}

func TestScanTail_CheckpointTargetsOlderSegment(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	b43 := logtailtest.NewSegment(43, testStoreID, 1)
	target := logtail.LogPosition{SegmentVersion: 42, ByteOffset: 0}
	b43.CheckPoint(target)
	segments.Put(43, b43.Bytes())

	b42 := logtailtest.NewSegment(42, testStoreID, 1)
	b42.Start(0, 100, -1, nil).Commit(11, 101, 0)
	segments.Put(42, b42.Bytes())

	info := scan(t, segments)

	pos, hasCP := info.LastCheckPoint()
	assert.True(t, hasCP)
	assert.Equal(t, target, pos)
	assert.True(t, info.CommitsAfterLastCheckPoint())
	assert.Equal(t, int64(11), info.FirstTxIdAfterLastCheckPoint())
	assert.Equal(t, uint64(42), info.OldestSegmentVersionFound())
}

func TestScanTail_TruncatedCommitAfterOlderCheckpoint(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	b43 := logtailtest.NewSegment(43, testStoreID, 1)
	b43.Start(0, 100, -1, nil).Commit(2, 101, 0)
	b43.TruncateTail(3)
	segments.Put(43, b43.Bytes())

	b42 := logtailtest.NewSegment(42, testStoreID, 1)
	target := logtail.LogPosition{SegmentVersion: 42, ByteOffset: b42.Offset()}
	b42.CheckPoint(target)
	segments.Put(42, b42.Bytes())

	info := scan(t, segments)

	pos, hasCP := info.LastCheckPoint()
	assert.True(t, hasCP)
	assert.Equal(t, target, pos)
	assert.True(t, info.CommitsAfterLastCheckPoint())
	assert.Equal(t, logtail.NoTransactionID, info.FirstTxIdAfterLastCheckPoint())
	assert.Equal(t, uint64(42), info.OldestSegmentVersionFound())
	assert.True(t, info.CorruptTailSeen())
}

func TestScanTail_TruncatedSecondCommitStillYieldsFirst(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	b43 := logtailtest.NewSegment(43, testStoreID, 1)
	b43.Start(0, 100, -1, nil).Commit(2, 101, 0)
	b43.Start(0, 102, 2, nil).Commit(3, 103, 0)
	b43.TruncateTail(3)
	segments.Put(43, b43.Bytes())

	b42 := logtailtest.NewSegment(42, testStoreID, 1)
	target := logtail.LogPosition{SegmentVersion: 42, ByteOffset: b42.Offset()}
	b42.CheckPoint(target)
	segments.Put(42, b42.Bytes())

	info := scan(t, segments)

	assert.True(t, info.CommitsAfterLastCheckPoint())
	assert.Equal(t, int64(2), info.FirstTxIdAfterLastCheckPoint())
	assert.Equal(t, uint64(42), info.OldestSegmentVersionFound())
	assert.True(t, info.CorruptTailSeen())
}

func TestScanTail_UnsupportedFormatVersionAborts(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	b := logtailtest.NewSegment(1, testStoreID, testFormatVersion+1)
	b.Start(0, 100, -1, nil).Commit(1, 101, 0)
	segments.Put(1, b.Bytes())

	scanner := logtail.NewTailScanner(segments, nil, nil, testFormatVersion)
	_, err := scanner.ScanTail(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, logtail.ErrUnsupportedFormat))
}

func TestScanTail_SegmentVersionMismatchTreatedAsAbsent(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	// A segment stored under version 43 whose Header claims to be version
	// 44: the mismatch makes the header untrustworthy, so the segment is
	// treated as absent rather than fatal, same as a missing header.
	b := logtailtest.NewSegment(44, testStoreID, testFormatVersion)
	b.Start(0, 100, -1, nil).Commit(1, 101, 0)
	segments.Put(43, b.Bytes())

	info := scan(t, segments)

	_, hasCP := info.LastCheckPoint()
	assert.False(t, hasCP)
	assert.False(t, info.CommitsAfterLastCheckPoint())
	assert.False(t, info.CorruptTailSeen())
}

func TestScanTail_IdempotentAcrossRepeatedCalls(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	b := logtailtest.NewSegment(1, testStoreID, 1)
	b.Start(0, 100, -1, nil).Commit(1, 101, 0)
	segments.Put(1, b.Bytes())

	scanner := logtail.NewTailScanner(segments, nil, nil, testFormatVersion)
	first, err := scanner.ScanTail(context.Background())
	require.NoError(t, err)
	second, err := scanner.ScanTail(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScanTail_MonitorSeesCorruption(t *testing.T) {
	segments := logtailtest.NewFakeSegmentSet()
	b := logtailtest.NewSegment(1, testStoreID, 1)
	b.Start(0, 100, -1, nil).Commit(1, 101, 0)
	b.TruncateTail(3)
	segments.Put(1, b.Bytes())

	monitor := &recordingMonitor{}
	scanner := logtail.NewTailScanner(segments, monitor, nil, testFormatVersion)
	_, err := scanner.ScanTail(context.Background())
	require.NoError(t, err)

	assert.True(t, monitor.corrupted)
	assert.True(t, monitor.completed)
	assert.NotZero(t, monitor.segmentsOpened)
}

type recordingMonitor struct {
	corrupted      bool
	completed      bool
	segmentsOpened int
}

func (m *recordingMonitor) OnSegmentOpened(version uint64, size uint64) {
	m.segmentsOpened++
}

func (m *recordingMonitor) OnCorruptedLogFile(version uint64, offset uint64, err error) {
	m.corrupted = true
}

func (m *recordingMonitor) OnScanComplete(info logtail.TailInformation) {
	m.completed = true
}
