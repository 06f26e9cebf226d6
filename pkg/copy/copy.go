package copy

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	// ErrDestinationExists is returned when attempting to write to an existing file
	ErrDestinationExists = errors.New("destination file already exists")
)

// Options configures the write behavior.
type Options struct {
	// Overwrite allows overwriting existing files.
	// Default should be false for safety.
	Overwrite bool
}

// Write creates dst with the content produced by fn.
//
// It will:
// - Create destination directories if they don't exist
// - Never overwrite existing files (unless Overwrite is true)
// - Write to a temporary file next to dst and rename it into place, so
// readers never observe a partial file
func Write(dst string, mode fs.FileMode, opts Options, fn func(w io.Writer) error) (err error) {
	destDir := filepath.Dir(dst)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	if !opts.Overwrite {
		if _, err := os.Lstat(dst); err == nil {
			return ErrDestinationExists
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat destination: %w", err)
		}
	}

	tmp, err := os.CreateTemp(destDir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := fn(tmp); err != nil {
		return fmt.Errorf("write content: %w", err)
	}

	// Ensure data is written to disk
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpPath, mode.Perm()); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}

	if opts.Overwrite {
		if err := os.Rename(tmpPath, dst); err != nil {
			return fmt.Errorf("rename: %w", err)
		}
		return nil
	}
	return publishExclusive(tmpPath, dst)
}

// publishExclusive moves tmpPath to dst only if dst does not exist. A hard
// link fails atomically on an existing name; file systems without hard links
// fall back to a checked rename.
func publishExclusive(tmpPath, dst string) error {
	err := os.Link(tmpPath, dst)
	switch {
	case err == nil:
		if err := os.Remove(tmpPath); err != nil {
			return fmt.Errorf("remove temporary file: %w", err)
		}
		return nil
	case errors.Is(err, fs.ErrExist):
		return ErrDestinationExists
	}

	if _, err := os.Lstat(dst); err == nil {
		return ErrDestinationExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat destination: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// File copies a single file from src to dst, preserving content and permissions.
func File(src, dst string, opts Options) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()

	// Get source file info for permissions
	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	return Write(dst, srcInfo.Mode(), opts, func(w io.Writer) error {
		_, err := io.Copy(w, srcFile)
		return err
	})
}
