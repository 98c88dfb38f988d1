// Package csvstore persists captured sample lines and loads them back as a
// numeric table for rendering.
package csvstore

import (
	"bufio"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/imu.capture/internal/fsutil"
)

// WriteLines overwrites path with each line followed by a newline, in input
// order. Missing parent directories are created. A failed write leaves
// whatever was written in place.
func WriteLines(fsys fsutil.FileSystem, path string, lines []string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir %s: %w", dir, err)
		}
	}

	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
