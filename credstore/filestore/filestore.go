// Package filestore is a durable credstore.KV kept in a TOML file. Entries
// are stored as an ordered array so key enumeration order survives restarts,
// and every access holds an advisory file lock shared with the host process:
// shared for reads, exclusive for writes.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"

	"github.com/jrsteele09/go-auth-refresher/credstore"
	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
)

const (
	currentVersion = 0

	// LockTimeout bounds how long an access waits for another process.
	LockTimeout = 250 * time.Millisecond
)

var (
	_ credstore.KV          = (*Store)(nil)
	_ credstore.Snapshotter = (*Store)(nil)
)

type document struct {
	Version int     `toml:"version"`
	Entries []entry `toml:"entry"`
}

type entry struct {
	Key   string `toml:"key"`
	Value string `toml:"value"`
}

// Store is a file-backed KV.
type Store struct {
	path string
}

// New creates a store at path. The file and its directory are created on first write.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	return &Store{path: path}, nil
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) lockPath() string {
	return s.path + ".lock"
}

// Keys implements credstore.KV.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.withLock(false, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		keys = make([]string, 0, len(doc.Entries))
		for _, e := range doc.Entries {
			keys = append(keys, e.Key)
		}
		return nil
	})
	return keys, err
}

// Snapshot implements credstore.Snapshotter with a single locked read.
func (s *Store) Snapshot() ([]credstore.Entry, error) {
	var entries []credstore.Entry
	err := s.withLock(false, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		entries = make([]credstore.Entry, 0, len(doc.Entries))
		for _, e := range doc.Entries {
			entries = append(entries, credstore.Entry{Key: e.Key, Value: e.Value})
		}
		return nil
	})
	return entries, err
}

// Get implements credstore.KV.
func (s *Store) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.withLock(false, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		for _, e := range doc.Entries {
			if e.Key == key {
				value, found = e.Value, true
				return nil
			}
		}
		return nil
	})
	return value, found, err
}

// Set implements credstore.KV. New keys are appended, existing keys keep their position.
func (s *Store) Set(key, value string) error {
	return s.withLock(true, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		replaced := false
		for i := range doc.Entries {
			if doc.Entries[i].Key == key {
				doc.Entries[i].Value = value
				replaced = true
				break
			}
		}
		if !replaced {
			doc.Entries = append(doc.Entries, entry{Key: key, Value: value})
		}
		return s.save(doc)
	})
}

// Delete removes a key if present.
func (s *Store) Delete(key string) error {
	return s.withLock(true, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		kept := doc.Entries[:0]
		for _, e := range doc.Entries {
			if e.Key != key {
				kept = append(kept, e)
			}
		}
		doc.Entries = kept
		return s.save(doc)
	})
}

// withLock runs fn holding the file lock, shared for reads and exclusive for
// writes. Reads proceed unlocked when the lock is contended; writes fail with
// ErrStoreLocked.
func (s *Store) withLock(write bool, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating store dir: %w", err)
	}

	fl := flock.New(s.lockPath())
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	try := fl.TryRLockContext
	if write {
		try = fl.TryLockContext
	}
	locked, err := try(ctx, 10*time.Millisecond)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("locking store: %w", err)
	}
	if !locked {
		if write {
			return errs.ErrStoreLocked
		}
		return fn()
	}
	defer func() { _ = fl.Unlock() }()

	return fn()
}

func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &document{Version: currentVersion}, nil
		}
		return nil, fmt.Errorf("reading store: %w", err)
	}

	doc := &document{}
	if err := toml.Unmarshal(data, doc); err != nil {
		return nil, errs.WrapCause(errs.ErrStoreCorrupted, err, "parsing %s", s.path)
	}
	return doc, nil
}

func (s *Store) save(doc *document) error {
	doc.Version = currentVersion

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "store-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("writing store: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing store: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing store: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(s.path)
			return os.Rename(tmpPath, s.path)
		}
		os.Remove(tmpPath)
		return fmt.Errorf("writing store: %w", err)
	}
	return nil
}
