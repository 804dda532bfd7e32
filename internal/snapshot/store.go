// Package snapshot persists one raw data.json document per portal and day.
package snapshot

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned by Read when no snapshot exists for the key.
var ErrNotFound = errors.New("snapshot: not found")

// Key identifies a snapshot.
type Key struct {
	Portal string
	Date   string // YYYYMMDD
}

// Store reads and writes catalog snapshots.
type Store interface {
	Exists(key Key) (bool, error)
	Read(key Key) ([]byte, error)
	Write(key Key, data []byte) error
	// Previous returns the latest snapshot date for portal strictly before
	// the given date.
	Previous(portal, before string) (string, bool, error)
}

// FileStore keeps snapshots as <dir>/<portal>_<YYYYMMDD>.json.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "snapshot: create dir")
	}
	return &FileStore{dir: dir}, nil
}

// FileName returns the base name used for key.
func FileName(key Key) string {
	return key.Portal + "_" + key.Date + ".json"
}

// ParseFileName splits a snapshot file name into its key. Names that do not
// end in _YYYYMMDD.json are rejected.
func ParseFileName(name string) (Key, bool) {
	stem, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return Key{}, false
	}
	i := strings.LastIndexByte(stem, '_')
	if i <= 0 {
		return Key{}, false
	}
	date := stem[i+1:]
	if len(date) != 8 || strings.Trim(date, "0123456789") != "" {
		return Key{}, false
	}
	return Key{Portal: stem[:i], Date: date}, true
}

func (s *FileStore) path(key Key) string {
	return filepath.Join(s.dir, FileName(key))
}

// Exists reports whether a snapshot is stored for key.
func (s *FileStore) Exists(key Key) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, eris.Wrapf(err, "snapshot: stat %s", FileName(key))
}

// Read returns the stored document.
func (s *FileStore) Read(key Key) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: read %s", FileName(key))
	}
	return data, nil
}

// Write stores data for key via a temp file and rename, so readers never see
// a partial document.
func (s *FileStore) Write(key Key, data []byte) error {
	if err := WriteAtomic(s.path(key), data); err != nil {
		return eris.Wrapf(err, "snapshot: write %s", FileName(key))
	}
	return nil
}

// Previous scans the directory for the portal's most recent earlier date.
// The portal name must match exactly, so "city" never picks up
// "city_parks_20240101.json".
func (s *FileStore) Previous(portal, before string) (string, bool, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", false, eris.Wrap(err, "snapshot: list dir")
	}
	var best string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := ParseFileName(e.Name())
		if !ok || key.Portal != portal || key.Date >= before {
			continue
		}
		if key.Date > best {
			best = key.Date
		}
	}
	return best, best != "", nil
}

// WriteAtomic writes data to a temp file next to path and renames it into place.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
