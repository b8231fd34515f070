// Package tail implements offset-based incremental reading of an append-only
// log file. Only bytes past the stored offset are ever read; processed
// content is never re-scanned.
package tail

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Reader reads complete new lines from a log file, advancing a byte offset.
// It is not safe for concurrent use; each tracked server owns its own Reader.
type Reader struct {
	path   string
	offset int64
}

// NewReader creates a Reader starting at the given byte offset.
func NewReader(path string, offset int64) *Reader {
	return &Reader{path: path, offset: offset}
}

// Path returns the tracked file path.
func (r *Reader) Path() string {
	return r.path
}

// Offset returns the current byte offset.
func (r *Reader) Offset() int64 {
	return r.offset
}

// SeekEnd moves the offset to the current end of file, skipping any backlog.
// A missing file resets the offset to zero so a file created later is read
// from the start.
func (r *Reader) SeekEnd() error {
	info, err := os.Stat(r.path)
	if os.IsNotExist(err) {
		r.offset = 0
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", r.path, err)
	}

	r.offset = info.Size()
	return nil
}

// ReadNew returns all complete lines appended since the last read and
// advances the offset past them. An unterminated trailing line is held back
// until a later read completes it.
//
// If the file is now smaller than the offset it was rotated or truncated: the
// offset resets to zero and reading resumes from the start, accepting that a
// short prefix may be processed twice. A missing file returns an error and
// leaves the offset unchanged.
func (r *Reader) ReadNew() ([]string, error) {
	file, err := os.Open(r.path)
	if err != nil {
		// Missing file is transient: the caller skips this cycle and
		// retries; the offset stays put.
		return nil, fmt.Errorf("open %s: %w", r.path, err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", r.path, err)
	}

	// Rotation heuristic: shrunk file means new content from byte zero.
	if info.Size() < r.offset {
		r.offset = 0
	}

	if info.Size() == r.offset {
		return nil, nil
	}

	if _, err := file.Seek(r.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", r.path, err)
	}

	buf, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}

	var lines []string
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			break // partial trailing line, keep for next poll
		}

		line := buf[:idx]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(line) > 0 {
			lines = append(lines, string(line))
		}

		r.offset += int64(idx + 1)
		buf = buf[idx+1:]
	}

	return lines, nil
}
