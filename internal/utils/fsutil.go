package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

var (
	// ErrDestinationExists is returned instead of overwriting a file
	ErrDestinationExists = errors.New("destination already exists")
	// ErrSourceMissing is returned when the file to move is gone
	ErrSourceMissing = errors.New("source file does not exist")
)

// MoveFile moves src to dst, creating dst's parent directories. It never
// overwrites: an existing dst yields ErrDestinationExists and leaves both
// files untouched, including a dst created while the move is under way.
// Moves across filesystems fall back to copy and remove.
func MoveFile(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", src, ErrSourceMissing)
		}
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%s: %w", dst, ErrDestinationExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	err := renameNoReplace(src, dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrExist):
		return fmt.Errorf("%s: %w", dst, ErrDestinationExists)
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%s: %w", src, ErrSourceMissing)
	case errors.Is(err, syscall.EXDEV), errors.Is(err, syscall.EPERM), errors.Is(err, syscall.ENOTSUP):
		// Other filesystem, or one without hard links
		return copyAndRemove(src, dst)
	default:
		return fmt.Errorf("failed to move %s: %w", src, err)
	}
}

// linkAndRemove moves src by hard-linking it to dst, which fails with
// EEXIST instead of replacing an existing dst
func linkAndRemove(src, dst string) error {
	if err := os.Link(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", dst, ErrDestinationExists)
		}
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	// Source is only removed once the copy is complete
	return os.Remove(src)
}

// FileState is one size and modification time read of a file
type FileState struct {
	Size    int64
	ModTime time.Time
}

// StateOf captures the size and modification time of info
func StateOf(info fs.FileInfo) FileState {
	return FileState{Size: info.Size(), ModTime: info.ModTime()}
}

// StableFiles waits once and returns the files whose size and modification
// time are unchanged since the first read. Files that disappeared are
// left out.
func StableFiles(ctx context.Context, first map[string]FileState, wait time.Duration) (map[string]fs.FileInfo, error) {
	if len(first) == 0 {
		return nil, nil
	}
	if err := Sleep(ctx, wait); err != nil {
		return nil, err
	}

	stable := make(map[string]fs.FileInfo, len(first))
	for path, before := range first {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		after := StateOf(info)
		if after.Size == before.Size && after.ModTime.Equal(before.ModTime) {
			stable[path] = info
		}
	}
	return stable, nil
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
