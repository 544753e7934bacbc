// Package file implements the durable file-backed persistence layer.
//
// Two primitives cover every surface:
//
//   - atomic replace: full content to a sibling temp file, fsync, rename
//     over the destination. A reader never observes a partial file.
//   - durable append: write the row, flush, fsync, then return. A row that
//     has been reported written survives abrupt termination.
package file

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic replaces path with data using the write-temp, sync,
// rename pattern. The parent directory is created if missing.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open temp %s: %w", tmp, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s over %s: %w", tmp, path, err)
	}
	return nil
}

// AppendLine durably appends one line of text to path, adding a trailing
// newline if the line lacks one.
func AppendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open append %s: %w", path, err)
	}
	defer f.Close()

	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return nil
}

// AppendCSV durably appends one CSV row to path, writing header first when
// the file does not exist yet.
func AppendCSV(path string, row []string, header []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open append %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew && len(header) > 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header %s: %w", path, err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write row %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return nil
}
