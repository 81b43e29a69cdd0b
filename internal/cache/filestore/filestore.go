package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rohmanhakim/cached-fetcher/internal/cache"
	"github.com/rohmanhakim/cached-fetcher/pkg/fileutil"
	"github.com/rohmanhakim/cached-fetcher/pkg/hashutil"
	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
)

/*
Responsibilities
- Keep one file per id below a root directory
- Write records in the reference wire format
- Replace files atomically (temp file + rename)

Output Characteristics
- Stable paths: the same id always maps to the same file
- Overwrite-safe: readers never observe a half-written record
*/
type Store struct {
	root   string
	layout Layout
	now    func() time.Time
}

// New creates the root directory if needed and returns a store over it.
func New(root string, layout Layout) (*Store, error) {
	if root == "" {
		return nil, errors.New("filestore: empty root directory")
	}
	if layout != LayoutRaw && layout != LayoutHashed {
		return nil, fmt.Errorf("filestore: unknown layout %q", layout)
	}
	if err := fileutil.EnsureDir(root); err != nil {
		return nil, err
	}
	return &Store{
		root:   root,
		layout: layout,
		now:    time.Now,
	}, nil
}

// SetClock replaces the clock used to stamp writes.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Root() string {
	return s.root
}

// Path returns the file that holds id.
func (s *Store) Path(id string) (string, error) {
	switch s.layout {
	case LayoutHashed:
		digest, err := hashutil.HashString(id, hashutil.HashAlgoBLAKE3)
		if err != nil {
			return "", err
		}
		return filepath.Join(s.root, hashutil.ShardedPath(digest, shardLevels)), nil
	default:
		return s.rawPath(id)
	}
}

func (s *Store) rawPath(id string) (string, error) {
	if strings.ContainsRune(id, 0) {
		return "", fmt.Errorf("id contains NUL")
	}
	rel := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("id %q is an absolute path", id)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("id %q escapes the cache root", id)
	}
	// Ids that only clean to a path would share a file with another id.
	if filepath.ToSlash(rel) != id {
		return "", fmt.Errorf("id %q is not a canonical relative path", id)
	}
	return filepath.Join(s.root, rel), nil
}

func (s *Store) Get(_ context.Context, id string) (cache.Record, bool, error) {
	path, err := s.Path(id)
	if err != nil {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseInvalidKey, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cache.Record{}, false, nil
		}
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseReadFailure, err)
	}

	rec, err := cache.Decode(id, data)
	if err != nil {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseCorruptRecord, err)
	}
	return rec, true, nil
}

func (s *Store) Put(_ context.Context, id string, sourceURL url.URL, headers httpheader.List, body []byte) error {
	path, err := s.Path(id)
	if err != nil {
		return cache.NewCacheIOError(backendName, id, cache.ErrCauseInvalidKey, err)
	}

	data, err := cache.Encode(sourceURL, headers, body, s.now())
	if err != nil {
		return cache.NewCacheIOError(backendName, id, cache.ErrCauseWriteFailure, err)
	}

	if fileErr := fileutil.WriteFileAtomic(path, data, filePerm); fileErr != nil {
		cacheErr := cache.NewCacheIOError(backendName, id, cache.ErrCauseWriteFailure, fileErr)
		cacheErr.Retryable = fileErr.Retryable
		return cacheErr
	}
	return nil
}
