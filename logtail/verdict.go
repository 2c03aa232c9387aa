package logtail

// NoTransactionID is the sentinel value for FirstTxIdAfterLastCheckPoint
// when no Commit entry was found after the last checkpoint, including the
// case of a Start entry whose Commit is missing (e.g. a truncated tail).
const NoTransactionID int64 = -1

// TailInformation is the immutable verdict a TailScanner produces: what it
// found scanning backward from the newest segment down to (and including)
// the segment holding the most recent checkpoint's target, or to the oldest
// segment if no checkpoint was found.
type TailInformation struct {
	lastCheckPoint               LogPosition
	hasCheckPoint                bool
	commitsAfterLastCheckPoint   bool
	firstTxIdAfterLastCheckPoint int64
	oldestSegmentVersionFound    uint64
	latestSegmentVersion         uint64
	hasAnySegment                bool
	logsMissing                  bool
	latestEntryFormatVersion     uint8
	storeId                      StoreId
	corruptTailSeen              bool
}

// LastCheckPoint returns the Target of the most recent CheckPoint entry
// found: the position recovery should redo from, not the position of the
// CheckPoint entry itself. It returns false if no checkpoint exists anywhere
// in the retained log.
func (t TailInformation) LastCheckPoint() (LogPosition, bool) {
	return t.lastCheckPoint, t.hasCheckPoint
}

// CommitsAfterLastCheckPoint reports whether any Start or Commit entry was
// found after LastCheckPoint (or anywhere, if there is no checkpoint).
func (t TailInformation) CommitsAfterLastCheckPoint() bool {
	return t.commitsAfterLastCheckPoint
}

// FirstTxIdAfterLastCheckPoint is the transaction id of the earliest Commit
// entry found after LastCheckPoint, or NoTransactionID if none exists.
func (t TailInformation) FirstTxIdAfterLastCheckPoint() int64 {
	return t.firstTxIdAfterLastCheckPoint
}

// OldestSegmentVersionFound is the lowest segment version the scan actually
// visited before stopping (at the segment holding the latest checkpoint's
// target, or at the oldest segment on disk if there was no checkpoint to
// stop at or its target segment is not on disk).
func (t TailInformation) OldestSegmentVersionFound() uint64 {
	return t.oldestSegmentVersionFound
}

// LatestSegmentVersion is the highest segment version present on disk at
// scan time.
func (t TailInformation) LatestSegmentVersion() uint64 {
	return t.latestSegmentVersion
}

// HasAnySegment reports whether any segment file existed at all.
func (t TailInformation) HasAnySegment() bool {
	return t.hasAnySegment
}

// LogsMissing reports whether no segment file exists at all, or whether the
// latest checkpoint's target segment is not on disk: the scan walked off the
// low end of the retained segment range before reaching it, meaning segments
// that once existed have since been pruned out from under the scan.
func (t TailInformation) LogsMissing() bool {
	return t.logsMissing
}

// LatestEntryFormatVersion is the FormatVersion declared by the newest
// segment's HeaderEntry.
func (t TailInformation) LatestEntryFormatVersion() uint8 {
	return t.latestEntryFormatVersion
}

// StoreId is the store identifier declared by the newest segment's
// HeaderEntry.
func (t TailInformation) StoreId() StoreId {
	return t.storeId
}

// IsRecoveryRequired is logsMissing OR commitsAfterLastCheckPoint OR
// corruptTailSeen OR lastCheckPoint.isNone().
func (t TailInformation) IsRecoveryRequired() bool {
	return t.logsMissing || t.commitsAfterLastCheckPoint || t.corruptTailSeen || !t.hasCheckPoint
}

// CorruptTailSeen reports whether the scan encountered a segment whose tail
// failed to decode cleanly.
func (t TailInformation) CorruptTailSeen() bool {
	return t.corruptTailSeen
}
