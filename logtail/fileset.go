package logtail

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SegmentFile is the channel contract a host filesystem abstraction must
// provide: a sequentially readable byte source for one segment, openable by
// version and closeable once the scanner is done with it. Production code
// satisfies this with *os.File; tests satisfy it with an in-memory fake (see
// logtail/logtailtest).
type SegmentFile interface {
	io.Reader
	io.Closer
}

// LogFileSet exposes the set of segment files on disk as an ordered
// sequence by version. It is defined purely as "whatever exists on disk":
// missing files are not an error, I/O failures are propagated unchanged.
type LogFileSet struct {
	dir    string
	prefix string
}

// NewLogFileSet returns a LogFileSet over segment files named
// "<prefix>.<version>" inside dir.
func NewLogFileSet(dir, prefix string) *LogFileSet {
	return &LogFileSet{dir: dir, prefix: prefix}
}

// versions returns every segment version present on disk, ascending.
func (s *LogFileSet) versions() ([]uint64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read segment directory %s", s.dir)
	}

	prefixDot := s.prefix + "."
	versions := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefixDot) {
			continue
		}
		suffix := strings.TrimPrefix(name, prefixDot)
		version, err := strconv.ParseUint(suffix, 10, 64)
		if err != nil {
			// Not a canonical decimal version suffix; not a segment file.
			continue
		}
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// AnyFiles reports whether at least one segment file exists.
func (s *LogFileSet) AnyFiles() (bool, error) {
	versions, err := s.versions()
	if err != nil {
		return false, err
	}
	return len(versions) > 0, nil
}

// HighestVersion returns the greatest segment version present, and false if
// there are none.
func (s *LogFileSet) HighestVersion() (uint64, bool, error) {
	versions, err := s.versions()
	if err != nil {
		return 0, false, err
	}
	if len(versions) == 0 {
		return 0, false, nil
	}
	return versions[len(versions)-1], true, nil
}

// LowestVersion returns the smallest segment version present, and false if
// there are none.
func (s *LogFileSet) LowestVersion() (uint64, bool, error) {
	versions, err := s.versions()
	if err != nil {
		return 0, false, err
	}
	if len(versions) == 0 {
		return 0, false, nil
	}
	return versions[0], true, nil
}

// PreviousVersion returns the greatest existing segment version strictly
// less than version, used by TailScanner to step down the list of segments
// without assuming contiguous numbering.
func (s *LogFileSet) PreviousVersion(version uint64) (uint64, bool, error) {
	versions, err := s.versions()
	if err != nil {
		return 0, false, err
	}
	best, ok := uint64(0), false
	for _, v := range versions {
		if v < version && (!ok || v > best) {
			best, ok = v, true
		}
	}
	return best, ok, nil
}

func (s *LogFileSet) path(version uint64) string {
	return filepath.Join(s.dir, s.prefix+"."+strconv.FormatUint(version, 10))
}

// Open opens the segment for sequential reading from offset 0.
func (s *LogFileSet) Open(version uint64) (SegmentFile, error) {
	f, err := os.Open(s.path(version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNoSuchSegment, "version %d", version)
		}
		return nil, errors.Wrapf(err, "open segment %d", version)
	}
	return f, nil
}

// Size returns the byte size of the given segment.
func (s *LogFileSet) Size(version uint64) (uint64, error) {
	info, err := os.Stat(s.path(version))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.Wrapf(ErrNoSuchSegment, "version %d", version)
		}
		return 0, errors.Wrapf(err, "stat segment %d", version)
	}
	return uint64(info.Size()), nil
}
