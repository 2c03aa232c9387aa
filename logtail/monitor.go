package logtail

// Monitor observes a TailScanner's progress. All hooks are called
// synchronously from within ScanTail; implementations that need to do
// nontrivial work should hand it off to a goroutine themselves.
//
// Monitor is always non-nil at the call site: NewTailScanner substitutes
// NopMonitor when the caller passes nil, so hook implementations never need
// a nil check of their own.
type Monitor interface {
	// OnSegmentOpened is called once per segment visited, highest version
	// first, before any entries in it are decoded.
	OnSegmentOpened(version uint64, size uint64)

	// OnCorruptedLogFile is called when a segment's tail entry decodes as
	// DecodeCorrupt, reporting the offset the corruption was found at.
	OnCorruptedLogFile(version uint64, offset uint64, err error)

	// OnScanComplete is called exactly once, after the verdict has been
	// computed, whether or not the scan found anything informative.
	OnScanComplete(info TailInformation)
}

// NopMonitor implements Monitor with no-op hooks.
type NopMonitor struct{}

func (NopMonitor) OnSegmentOpened(uint64, uint64)         {}
func (NopMonitor) OnCorruptedLogFile(uint64, uint64, error) {}
func (NopMonitor) OnScanComplete(TailInformation)         {}

// guardedMonitor wraps a Monitor so a panicking hook cannot unwind into the
// scanner. A hook panic is not itself an error the scan can act on; it is
// swallowed after the fact so the scan still produces a verdict.
type guardedMonitor struct {
	inner Monitor
}

func newGuardedMonitor(m Monitor) guardedMonitor {
	if m == nil {
		m = NopMonitor{}
	}
	return guardedMonitor{inner: m}
}

func (g guardedMonitor) OnSegmentOpened(version, size uint64) {
	defer func() { recover() }()
	g.inner.OnSegmentOpened(version, size)
}

func (g guardedMonitor) OnCorruptedLogFile(version, offset uint64, err error) {
	defer func() { recover() }()
	g.inner.OnCorruptedLogFile(version, offset, err)
}

func (g guardedMonitor) OnScanComplete(info TailInformation) {
	defer func() { recover() }()
	g.inner.OnScanComplete(info)
}
