package logtail

import (
	"context"

	"github.com/pkg/errors"

	"github.com/liftbridge-io/walscan/internal/logger"
)

// SegmentSource is the subset of LogFileSet's behaviour TailScanner depends
// on, kept narrow so tests can substitute an in-memory fake (see
// logtail/logtailtest) instead of touching the real filesystem.
type SegmentSource interface {
	AnyFiles() (bool, error)
	HighestVersion() (uint64, bool, error)
	PreviousVersion(version uint64) (uint64, bool, error)
	Open(version uint64) (SegmentFile, error)
	Size(version uint64) (uint64, error)
}

// TailScanner orchestrates the reverse scan over a SegmentSource and
// produces a TailInformation verdict. It holds no mutable state between
// calls to ScanTail; all scan-local bookkeeping lives on the stack of that
// call.
type TailScanner struct {
	segments      SegmentSource
	monitor       guardedMonitor
	log           logger.Logger
	formatVersion uint8
}

// NewTailScanner builds a TailScanner over segments. A nil monitor is
// replaced with NopMonitor; a nil log is replaced with a silent logger, so
// neither dependency needs a nil check anywhere else in this package.
// formatVersion is the only FormatVersion the scanner will accept in a
// segment's Header; a mismatch aborts the scan with ErrUnsupportedFormat.
func NewTailScanner(segments SegmentSource, monitor Monitor, log logger.Logger, formatVersion uint8) *TailScanner {
	if log == nil {
		log = logger.New(0)
		log.Silent(true)
	}
	return &TailScanner{
		segments:      segments,
		monitor:       newGuardedMonitor(monitor),
		log:           log,
		formatVersion: formatVersion,
	}
}

// positionedEntry pairs a decoded entry with the position it was read from,
// used while a segment's contents are buffered for the second pass over
// the scanned range.
type positionedEntry struct {
	pos   LogPosition
	entry LogEntry
}

// segmentRecord is one segment's contribution to the scan: its entries in
// forward (chronological) order, and the last CheckPoint entry the segment
// contains, if any.
type segmentRecord struct {
	version    uint64
	entries    []positionedEntry
	checkpoint *CheckPointEntry
}

// ScanTail walks segments from the highest version down, locating the
// latest checkpoint and then determining what has happened since it. ctx is
// accepted but not read: it is not passed to Monitor hooks, and the scan
// itself is synchronous and is not cancelled mid-flight (§5 of the design:
// this operation has no suspension points).
func (s *TailScanner) ScanTail(ctx context.Context) (TailInformation, error) {
	anyFiles, err := s.segments.AnyFiles()
	if err != nil {
		return TailInformation{}, errors.Wrap(err, "check for segment files")
	}
	if !anyFiles {
		info := TailInformation{
			logsMissing:                  true,
			hasAnySegment:                false,
			firstTxIdAfterLastCheckPoint: NoTransactionID,
		}
		s.monitor.OnScanComplete(info)
		return info, nil
	}

	highest, ok, err := s.segments.HighestVersion()
	if err != nil {
		return TailInformation{}, errors.Wrap(err, "determine highest segment version")
	}
	if !ok {
		// AnyFiles said true but HighestVersion disagrees: a race against a
		// concurrent writer, which the scanner's lifecycle contract rules
		// out (§5). Treat as IoFailure-class, not a silent NoLogs.
		return TailInformation{}, errors.New("logtail: segment set reports files but no highest version")
	}

	var (
		records             []segmentRecord
		latestCheckPoint    CheckPointEntry
		hasCheckPoint       bool
		corruptTailSeen     bool
		latestFormatVersion uint8
		storeID             StoreId
		oldestVersion       = highest
		haveCapturedHeader  bool
		stopVersion         uint64
		haveStopVersion     bool
		reachedStop         bool
	)

	version := highest
	for {
		size, err := s.segments.Size(version)
		if err != nil {
			return TailInformation{}, errors.Wrapf(err, "stat segment %d", version)
		}
		file, err := s.segments.Open(version)
		if err != nil {
			return TailInformation{}, errors.Wrapf(err, "open segment %d", version)
		}
		s.monitor.OnSegmentOpened(version, size)

		reader := NewEntryReader(version, file)
		header, err := reader.ReadHeader(s.formatVersion)
		if err != nil {
			_ = file.Close()
			if errors.Is(err, ErrMissingHeader) {
				// A segment lacking a valid Header is treated as absent,
				// not as a fatal error or as tail corruption: skip it and
				// keep descending.
				s.log.Warnf("logtail: segment %d has no valid header, treating as absent: %v", version, err)
				prev, ok, perr := s.segments.PreviousVersion(version)
				if perr != nil {
					return TailInformation{}, errors.Wrapf(perr, "find segment preceding %d", version)
				}
				if !ok {
					break
				}
				version = prev
				continue
			}
			// Anything else, including ErrUnsupportedFormat, is fatal: an
			// unreadable-format store aborts the scan rather than producing
			// a verdict it can't trust.
			return TailInformation{}, errors.Wrapf(err, "read header of segment %d", version)
		}
		if !haveCapturedHeader {
			latestFormatVersion = header.FormatVersion
			storeID = header.StoreId
			haveCapturedHeader = true
		}

		record := segmentRecord{version: version}
		for {
			pos, result := reader.Next()
			if result.Status == DecodeCleanEnd {
				break
			}
			if result.Status == DecodeCorrupt {
				corruptTailSeen = true
				s.monitor.OnCorruptedLogFile(version, pos.ByteOffset, result.Err)
				s.log.Warnf("logtail: segment %d corrupt at offset %d: %v", version, pos.ByteOffset, result.Err)
				break
			}

			if result.Entry.Kind == KindCheckPoint {
				cp := result.Entry.CheckPoint
				record.checkpoint = &cp
			}
			record.entries = append(record.entries, positionedEntry{pos: pos, entry: result.Entry})
		}
		_ = reader.Close()

		records = append(records, record)
		oldestVersion = version

		if record.checkpoint != nil && !hasCheckPoint {
			hasCheckPoint = true
			latestCheckPoint = *record.checkpoint
			stopVersion, haveStopVersion = latestCheckPoint.Target.SegmentVersion, true
		}

		if haveStopVersion && version == stopVersion {
			reachedStop = true
			break
		}

		prev, ok, err := s.segments.PreviousVersion(version)
		if err != nil {
			return TailInformation{}, errors.Wrapf(err, "find segment preceding %d", version)
		}
		if !ok {
			break
		}
		version = prev
	}

	// A checkpoint whose target segment has since been pruned off the low
	// end of the retained range is a NoLogs-class condition: the scanner
	// cannot reconstruct durability state older than what's left on disk.
	logsMissing := haveStopVersion && !reachedStop

	threshold := zeroPosition
	if hasCheckPoint {
		threshold = latestCheckPoint.Target
	}

	var commitsAfter bool
	firstTxID := NoTransactionID
	haveEarliestCommit := false
	var earliestCommitPos LogPosition

	// records were appended highest-to-lowest; walk them in reverse to
	// process the scanned range in chronological order.
	for i := len(records) - 1; i >= 0; i-- {
		for _, pe := range records[i].entries {
			switch pe.entry.Kind {
			case KindStart:
				if !pe.pos.Less(threshold) {
					commitsAfter = true
				}
			case KindCommit:
				if threshold.Less(pe.pos) {
					commitsAfter = true
					if !haveEarliestCommit || pe.pos.Less(earliestCommitPos) {
						haveEarliestCommit = true
						earliestCommitPos = pe.pos
						firstTxID = pe.entry.Commit.TxId
					}
				}
			}
		}
	}

	info := TailInformation{
		lastCheckPoint:               latestCheckPoint.Target,
		hasCheckPoint:                hasCheckPoint,
		commitsAfterLastCheckPoint:   commitsAfter,
		firstTxIdAfterLastCheckPoint: firstTxID,
		oldestSegmentVersionFound:    oldestVersion,
		latestSegmentVersion:         highest,
		hasAnySegment:                true,
		logsMissing:                  logsMissing,
		latestEntryFormatVersion:     latestFormatVersion,
		storeId:                      storeID,
		corruptTailSeen:              corruptTailSeen,
	}
	s.monitor.OnScanComplete(info)
	return info, nil
}
