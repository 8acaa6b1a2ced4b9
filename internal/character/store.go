package character

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/roleplayabyss/abyss/internal/errors"
)

// FileStore persists characters as one JSON file per name under a base
// directory. Every Load re-reads from disk; nothing is cached across calls,
// so a record edited by another process is picked up on the next selection.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates the characters directory (if absent) and returns a
// store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewStorage("init", err)
	}
	return &FileStore{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// nameLock returns the per-name mutex, creating it on first use. Save and
// Load on the same name serialize; different names proceed independently.
func (s *FileStore) nameLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Save serializes all character fields to <dir>/<name>.json, overwriting
// any existing record with the same name. The write goes through a temp
// file and rename so a crash mid-write cannot leave a truncated record.
func (s *FileStore) Save(c Character) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}

	lock := s.nameLock(c.Name)
	lock.Lock()
	defer lock.Unlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.NewInternal(err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, "."+c.Name+".json.tmp*")
	if err != nil {
		return errors.NewStorage("save", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewStorage("save", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewStorage("save", err)
	}
	if err := os.Rename(tmpPath, s.path(c.Name)); err != nil {
		os.Remove(tmpPath)
		return errors.NewStorage("save", err)
	}
	return nil
}

// Load reads the record for name fresh from disk.
// Returns NOT_FOUND if no record exists and CORRUPT_DATA if the stored
// bytes do not parse into the expected schema.
func (s *FileStore) Load(name string) (Character, error) {
	if err := ValidateName(name); err != nil {
		return Character{}, err
	}

	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Character{}, errors.NewNotFound(name)
		}
		return Character{}, errors.NewStorage("load", err)
	}

	var c Character
	if err := json.Unmarshal(data, &c); err != nil {
		return Character{}, errors.NewCorruptData(name, err)
	}
	if strings.TrimSpace(c.Name) == "" {
		return Character{}, errors.NewCorruptData(name, nil)
	}
	return c, nil
}

// ListNames returns the names of all stored characters, sorted for stable
// display. An empty store yields an empty slice, never an error.
func (s *FileStore) ListNames() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.NewStorage("list", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := e.Name()
		if !strings.HasSuffix(base, ".json") || strings.HasPrefix(base, ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(base, ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the record for name. Returns NOT_FOUND if absent.
func (s *FileStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFound(name)
		}
		return errors.NewStorage("delete", err)
	}
	return nil
}
