package tail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestReadNewFromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	writeFile(t, path, "first\nsecond\n")

	r := NewReader(path, 0)

	lines, err := r.ReadNew()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, lines)
	assert.Equal(t, int64(13), r.Offset())
}

func TestOffsetMonotonicWithoutNewData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	writeFile(t, path, "line\n")

	r := NewReader(path, 0)

	_, err := r.ReadNew()
	require.NoError(t, err)
	offset := r.Offset()

	// Re-polling without new data yields zero lines and the same offset
	lines, err := r.ReadNew()
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, offset, r.Offset())
}

func TestPartialLineHeldBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	writeFile(t, path, "complete\npartial")

	r := NewReader(path, 0)

	lines, err := r.ReadNew()
	require.NoError(t, err)
	assert.Equal(t, []string{"complete"}, lines)
	assert.Equal(t, int64(9), r.Offset(), "offset stops before the unterminated line")

	// Completing the line releases it on the next poll
	appendFile(t, path, " now done\n")

	lines, err = r.ReadNew()
	require.NoError(t, err)
	assert.Equal(t, []string{"partial now done"}, lines)
}

func TestRotationResetsOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	writeFile(t, path, "old content that is quite long\n")

	r := NewReader(path, 0)
	_, err := r.ReadNew()
	require.NoError(t, err)

	// Rotation: the file is replaced with something shorter
	writeFile(t, path, "fresh\n")

	lines, err := r.ReadNew()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, lines)
	assert.Equal(t, int64(6), r.Offset())
}

func TestMissingFileIsTransient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.log")

	r := NewReader(path, 42)

	lines, err := r.ReadNew()
	assert.Error(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, int64(42), r.Offset(), "offset unchanged while the file is missing")

	// File appears later: rotation heuristic rewinds and reading resumes
	writeFile(t, path, "born\n")

	lines, err = r.ReadNew()
	require.NoError(t, err)
	assert.Equal(t, []string{"born"}, lines)
}

func TestSeekEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	writeFile(t, path, "backlog line one\nbacklog line two\n")

	r := NewReader(path, 0)
	require.NoError(t, r.SeekEnd())

	lines, err := r.ReadNew()
	require.NoError(t, err)
	assert.Empty(t, lines, "backlog is skipped")

	appendFile(t, path, "new line\n")

	lines, err = r.ReadNew()
	require.NoError(t, err)
	assert.Equal(t, []string{"new line"}, lines)
}

func TestSeekEndMissingFile(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "absent.log"), 99)
	require.NoError(t, r.SeekEnd())
	assert.Equal(t, int64(0), r.Offset())
}

func TestCarriageReturnStripped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	writeFile(t, path, "windows line\r\n")

	r := NewReader(path, 0)

	lines, err := r.ReadNew()
	require.NoError(t, err)
	assert.Equal(t, []string{"windows line"}, lines)
	assert.Equal(t, int64(14), r.Offset(), "offset includes the CRLF")
}
