package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
)

// EnsureDir check if a given directory plus the following path exist, then create one if not
func EnsureDir(dir string, path ...string) *FileError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	fullDir := filepath.Join(targetPath...)
	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return &FileError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
			Path:      fullDir,
			Err:       err,
		}
	}
	return nil
}

// WriteFileAtomic replaces the file at path with data so that readers see
// either the previous content or the new content, never a partial write.
// The data is written to a temporary file in the same directory and renamed
// over the destination.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) *FileError {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return writeError(path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return writeError(path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return writeError(path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return writeError(path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return writeError(path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return writeError(path, err)
	}
	return nil
}

func writeError(path string, err error) *FileError {
	// disk full may clear up once space is reclaimed
	retryable := errors.Is(err, syscall.ENOSPC)
	return &FileError{
		Message:   err.Error(),
		Retryable: retryable,
		Cause:     ErrCauseWriteError,
		Path:      path,
		Err:       err,
	}
}
