// Package credstore locates the refresh token and granted scopes the host
// persisted in a durable key-value store, and reads the host's authorized state.
package credstore

import (
	"strings"

	"github.com/jrsteele09/go-auth-refresher/host"
	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
)

const (
	RefreshTokenMarker  = "refresh_token"
	GrantedScopesMarker = "granted_scopes"
)

// KV is a durable string store that can enumerate its keys in a stable order.
type KV interface {
	Keys() ([]string, error)
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Entry is one key-value pair in store order.
type Entry struct {
	Key   string
	Value string
}

// Snapshotter is implemented by stores that can return every entry in one
// consistent read. The scan prefers it over Keys and Get.
type Snapshotter interface {
	Snapshot() ([]Entry, error)
}

// Credentials is the result of a key scan. Any field may be empty.
type Credentials struct {
	RefreshToken    string
	RefreshTokenKey string
	Scope           string
	ScopeKey        string
}

// Store reads the host's authorization and its persisted credentials.
type Store struct {
	kv         KV
	selectors  host.Selectors
	schemeName string
}

// New creates a Store. An empty schemeName selects host.DefaultSchemeName.
func New(kv KV, selectors host.Selectors, schemeName string) *Store {
	if schemeName == "" {
		schemeName = host.DefaultSchemeName
	}
	return &Store{
		kv:         kv,
		selectors:  selectors,
		schemeName: schemeName,
	}
}

// SchemeName returns the security scheme this store reads.
func (s *Store) SchemeName() string {
	return s.schemeName
}

// ReadAuthorized returns the host's OAuth2 entry, or false if the host reports
// no authorization for the scheme.
func (s *Store) ReadAuthorized() (*host.AuthContext, bool) {
	if s.selectors == nil {
		return nil, false
	}
	schemes := s.selectors.AuthorizedSchemes()
	if len(schemes) == 0 {
		return nil, false
	}
	auth, ok := schemes[s.schemeName]
	if !ok {
		return nil, false
	}
	if auth.Name == "" {
		auth.Name = s.schemeName
	}
	return &auth, true
}

// FindRefreshTokenAndScope scans every key for the refresh token and granted
// scopes markers. The first key per marker wins and the scan stops once both
// were found.
func (s *Store) FindRefreshTokenAndScope() (Credentials, error) {
	if snap, ok := s.kv.(Snapshotter); ok {
		entries, err := snap.Snapshot()
		if err != nil {
			return Credentials{}, errs.Wrapf(err, "snapshot store")
		}
		return scan(keysOf(entries), func(i int) (string, error) { return entries[i].Value, nil })
	}

	keys, err := s.kv.Keys()
	if err != nil {
		return Credentials{}, errs.Wrapf(err, "list store keys")
	}
	return scan(keys, func(i int) (string, error) {
		value, _, err := s.kv.Get(keys[i])
		if err != nil {
			return "", errs.Wrapf(err, "read %s", keys[i])
		}
		return value, nil
	})
}

func keysOf(entries []Entry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// scan walks keys in order and reads a value only for the first match of each marker.
func scan(keys []string, value func(i int) (string, error)) (Credentials, error) {
	var creds Credentials
	for i, key := range keys {
		switch {
		case creds.RefreshTokenKey == "" && strings.Contains(key, RefreshTokenMarker):
			v, err := value(i)
			if err != nil {
				return creds, err
			}
			creds.RefreshTokenKey, creds.RefreshToken = key, v
		case creds.ScopeKey == "" && strings.Contains(key, GrantedScopesMarker):
			v, err := value(i)
			if err != nil {
				return creds, err
			}
			creds.ScopeKey, creds.Scope = key, v
		}
		if creds.RefreshTokenKey != "" && creds.ScopeKey != "" {
			break
		}
	}
	return creds, nil
}

// WriteRefreshToken overwrites the refresh token at a key found by a scan.
func (s *Store) WriteRefreshToken(key, value string) error {
	return s.write(key, value)
}

// WriteScope overwrites the granted scopes at a key found by a scan.
func (s *Store) WriteScope(key, value string) error {
	return s.write(key, value)
}

func (s *Store) write(key, value string) error {
	if key == "" {
		return nil
	}
	return errs.Wrapf(s.kv.Set(key, value), "write %s", key)
}

// Validate reports every field of auth the refresh grant cannot do without.
func Validate(auth *host.AuthContext) error {
	v := &errs.ValidationError{}
	if auth == nil {
		v.Add("auth")
		return v
	}
	if auth.Schema == nil {
		v.Add("schema")
		v.Add("schema.tokenUrl")
	} else if auth.Schema.TokenURL == "" {
		v.Add("schema.tokenUrl")
	}
	if auth.ClientID == "" {
		v.Add("clientId")
	}
	return v.Err()
}
