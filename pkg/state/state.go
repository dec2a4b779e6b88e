// Package state persists the small key=value install record (config.txt) that
// remembers user choices such as the tagging folder.
package state

import (
	"bufio"
	"bytes"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/adrg/xdg"

	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/fsutil"
)

// KeyTaggingFolder names the folder whose mp3 files are tagged.
const KeyTaggingFolder = "TAGGING_FOLDER"

// DefaultValues returns the values synthesized for absent keys.
func DefaultValues() map[string]string {
	return map[string]string{
		KeyTaggingFolder: xdg.UserDirs.Download,
	}
}

// Store is a process-wide key=value record backed by one file. It is loaded
// lazily on first access and rewritten atomically on every change.
type Store struct {
	path     string
	defaults map[string]string

	mu     sync.Mutex
	loaded bool
	values map[string]string
	order  []string
}

// NewStore creates a Store for path. defaults supplies the value persisted for an
// absent key on first read; nil selects DefaultValues.
func NewStore(path string, defaults map[string]string) *Store {
	if defaults == nil {
		defaults = DefaultValues()
	}
	return &Store{path: path, defaults: defaults}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Get returns the value of key. An absent key with a default is written with the
// default before Get returns. An absent key without a default wraps ErrUnknownConfigKey.
func (s *Store) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return "", err
	}
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	def, ok := s.defaults[key]
	if !ok {
		return "", errors.Wrapf(errors.ErrUnknownConfigKey, "%s", key)
	}
	s.putLocked(key, def)
	if err := s.saveLocked(); err != nil {
		return "", err
	}
	return def, nil
}

// Set stores value under key and persists the record.
func (s *Store) Set(key, value string) error {
	if key == "" || strings.ContainsAny(key, "=\n\r") || strings.ContainsAny(value, "\n\r") {
		return errors.Wrapf(errors.ErrInvalidPath, "invalid state entry %q", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	s.putLocked(key, value)
	return s.saveLocked()
}

// All returns a copy of every stored key and value.
func (s *Store) All() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

// TaggingFolder returns the configured tagging folder.
func (s *Store) TaggingFolder() (string, error) { return s.Get(KeyTaggingFolder) }

// SetTaggingFolder updates the tagging folder.
func (s *Store) SetTaggingFolder(dir string) error { return s.Set(KeyTaggingFolder, dir) }

func (s *Store) putLocked(key, value string) {
	if _, ok := s.values[key]; !ok {
		s.order = append(s.order, key)
	}
	s.values[key] = value
}

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}
	values := make(map[string]string)
	var order []string

	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		s.values, s.order = values, order
		for _, k := range sortedKeys(s.defaults) {
			s.putLocked(k, s.defaults[k])
		}
		if err := s.saveLocked(); err != nil {
			return err
		}
		s.loaded = true
		return nil
	case err != nil:
		return errors.Wrapf(err, "read state %s", s.path)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return errors.Wrapf(errors.ErrMalformedState, "%s line %d", s.path, lineNo)
		}
		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "read state %s", s.path)
	}

	s.values, s.order = values, order
	s.loaded = true
	return nil
}

func (s *Store) saveLocked() error {
	var buf bytes.Buffer
	for _, k := range s.order {
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(s.values[k])
		buf.WriteByte('\n')
	}
	if err := fsutil.AtomicWriteFile(s.path, buf.Bytes(), fsutil.FileModeDefault); err != nil {
		return errors.Wrapf(err, "write state %s", s.path)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
