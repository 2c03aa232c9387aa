package logtail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSegmentFile(t *testing.T, dir, prefix string, version uint64, data []byte) {
	t.Helper()
	path := filepath.Join(dir, prefix+"."+itoa(version))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

func TestLogFileSet_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	set := NewLogFileSet(dir, "wal")

	any, err := set.AnyFiles()
	require.NoError(t, err)
	assert.False(t, any)

	_, ok, err := set.HighestVersion()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogFileSet_MissingDirectory(t *testing.T) {
	set := NewLogFileSet(filepath.Join(t.TempDir(), "does-not-exist"), "wal")
	any, err := set.AnyFiles()
	require.NoError(t, err)
	assert.False(t, any)
}

func TestLogFileSet_OrdersNonContiguousVersions(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFile(t, dir, "wal", 5, []byte("a"))
	writeSegmentFile(t, dir, "wal", 42, []byte("b"))
	writeSegmentFile(t, dir, "wal", 7, []byte("c"))

	set := NewLogFileSet(dir, "wal")

	highest, ok, err := set.HighestVersion()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(42), highest)

	lowest, ok, err := set.LowestVersion()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(5), lowest)

	prev, ok, err := set.PreviousVersion(42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(7), prev)

	_, ok, err = set.PreviousVersion(5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogFileSet_IgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFile(t, dir, "wal", 1, []byte("a"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wal.abc"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.1"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "wal.2"), 0o755))

	set := NewLogFileSet(dir, "wal")
	highest, ok, err := set.HighestVersion()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), highest)
}

func TestLogFileSet_OpenAndSize(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFile(t, dir, "wal", 1, []byte("hello"))
	set := NewLogFileSet(dir, "wal")

	size, err := set.Size(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), size)

	f, err := set.Open(1)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 5)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestLogFileSet_OpenMissingSegment(t *testing.T) {
	dir := t.TempDir()
	set := NewLogFileSet(dir, "wal")
	_, err := set.Open(99)
	require.Error(t, err)
}
