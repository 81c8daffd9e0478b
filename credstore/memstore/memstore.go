package memstore

import (
	"sync"

	"github.com/jrsteele09/go-auth-refresher/credstore"
)

var (
	_ credstore.KV          = (*Store)(nil)
	_ credstore.Snapshotter = (*Store)(nil)
)

// Store is an in-memory KV that enumerates keys in insertion order.
type Store struct {
	keys   []string
	values map[string]string
	lock   sync.RWMutex
}

func New() *Store {
	return &Store{
		values: make(map[string]string),
	}
}

// NewWith seeds the store from parallel key and value slices.
func NewWith(keys, values []string) *Store {
	s := New()
	for i, k := range keys {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		_ = s.Set(k, v)
	}
	return s
}

func (s *Store) Keys() ([]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys, nil
}

func (s *Store) Snapshot() ([]credstore.Entry, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	entries := make([]credstore.Entry, 0, len(s.keys))
	for _, k := range s.keys {
		entries = append(entries, credstore.Entry{Key: k, Value: s.values[k]})
	}
	return entries, nil
}

func (s *Store) Get(key string) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
	return nil
}

func (s *Store) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return nil
}
