package credstore_test

import (
	"errors"
	"testing"

	"github.com/jrsteele09/go-auth-refresher/credstore"
	"github.com/jrsteele09/go-auth-refresher/credstore/memstore"
	"github.com/jrsteele09/go-auth-refresher/host"
	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
	"github.com/stretchr/testify/require"
)

type fakeSelectors map[string]host.AuthContext

func (f fakeSelectors) AuthorizedSchemes() map[string]host.AuthContext {
	return f
}

type failingKV struct{}

func (failingKV) Keys() ([]string, error)          { return nil, errors.New("disk gone") }
func (failingKV) Get(string) (string, bool, error) { return "", false, nil }
func (failingKV) Set(string, string) error         { return errors.New("read only") }

// countingKV only offers Keys and Get and records every Get.
type countingKV struct {
	keys   []string
	values map[string]string
	gets   []string
}

func newCountingKV(keys, values []string) *countingKV {
	kv := &countingKV{keys: keys, values: make(map[string]string)}
	for i, k := range keys {
		kv.values[k] = values[i]
	}
	return kv
}

func (c *countingKV) Keys() ([]string, error) { return c.keys, nil }

func (c *countingKV) Get(key string) (string, bool, error) {
	c.gets = append(c.gets, key)
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *countingKV) Set(key, value string) error {
	c.values[key] = value
	return nil
}

// snapshotKV counts snapshots and fails any per-key Get.
type snapshotKV struct {
	*countingKV
	snapshots int
}

func (s *snapshotKV) Snapshot() ([]credstore.Entry, error) {
	s.snapshots++
	entries := make([]credstore.Entry, 0, len(s.keys))
	for _, k := range s.keys {
		entries = append(entries, credstore.Entry{Key: k, Value: s.values[k]})
	}
	return entries, nil
}

func (s *snapshotKV) Get(string) (string, bool, error) {
	return "", false, errors.New("unexpected Get")
}

type failingSnapshotKV struct{ failingKV }

func (failingSnapshotKV) Snapshot() ([]credstore.Entry, error) {
	return nil, errors.New("lock file unreadable")
}

func TestFindRefreshTokenAndScope(t *testing.T) {
	t.Run("finds both markers", func(t *testing.T) {
		kv := memstore.NewWith(
			[]string{"x_refresh_token_abc", "other", "granted_scopes_1"},
			[]string{"R1", "O", "S1"},
		)
		creds, err := credstore.New(kv, nil, "").FindRefreshTokenAndScope()
		require.NoError(t, err)
		require.Equal(t, credstore.Credentials{
			RefreshTokenKey: "x_refresh_token_abc",
			RefreshToken:    "R1",
			ScopeKey:        "granted_scopes_1",
			Scope:           "S1",
		}, creds)
	})

	t.Run("first match per marker wins", func(t *testing.T) {
		kv := memstore.NewWith(
			[]string{"b_granted_scopes", "a_refresh_token", "c_refresh_token", "d_granted_scopes"},
			[]string{"S-first", "R-first", "R-second", "S-second"},
		)
		creds, err := credstore.New(kv, nil, "").FindRefreshTokenAndScope()
		require.NoError(t, err)
		require.Equal(t, "a_refresh_token", creds.RefreshTokenKey)
		require.Equal(t, "R-first", creds.RefreshToken)
		require.Equal(t, "b_granted_scopes", creds.ScopeKey)
		require.Equal(t, "S-first", creds.Scope)
	})

	t.Run("only one marker present", func(t *testing.T) {
		kv := memstore.NewWith([]string{"unrelated", "my_refresh_token"}, []string{"u", "R"})
		creds, err := credstore.New(kv, nil, "").FindRefreshTokenAndScope()
		require.NoError(t, err)
		require.Equal(t, "R", creds.RefreshToken)
		require.Empty(t, creds.ScopeKey)
		require.Empty(t, creds.Scope)
	})

	t.Run("nothing matches", func(t *testing.T) {
		kv := memstore.NewWith([]string{"a", "b"}, []string{"1", "2"})
		creds, err := credstore.New(kv, nil, "").FindRefreshTokenAndScope()
		require.NoError(t, err)
		require.Equal(t, credstore.Credentials{}, creds)
	})

	t.Run("stops reading once both markers are found", func(t *testing.T) {
		kv := newCountingKV(
			[]string{"a_refresh_token", "b_granted_scopes", "c_refresh_token", "d_granted_scopes"},
			[]string{"R1", "S1", "R2", "S2"},
		)
		creds, err := credstore.New(kv, nil, "").FindRefreshTokenAndScope()
		require.NoError(t, err)
		require.Equal(t, "R1", creds.RefreshToken)
		require.Equal(t, "S1", creds.Scope)
		require.Equal(t, []string{"a_refresh_token", "b_granted_scopes"}, kv.gets)
	})

	t.Run("reads only matching keys", func(t *testing.T) {
		kv := newCountingKV([]string{"theme", "x_refresh_token", "lang"}, []string{"dark", "R1", "en"})
		_, err := credstore.New(kv, nil, "").FindRefreshTokenAndScope()
		require.NoError(t, err)
		require.Equal(t, []string{"x_refresh_token"}, kv.gets)
	})

	t.Run("uses a single snapshot when offered", func(t *testing.T) {
		kv := &snapshotKV{countingKV: newCountingKV(
			[]string{"theme", "x_granted_scopes", "x_refresh_token"},
			[]string{"dark", "S1", "R1"},
		)}
		creds, err := credstore.New(kv, nil, "").FindRefreshTokenAndScope()
		require.NoError(t, err)
		require.Equal(t, 1, kv.snapshots)
		require.Equal(t, credstore.Credentials{
			RefreshTokenKey: "x_refresh_token",
			RefreshToken:    "R1",
			ScopeKey:        "x_granted_scopes",
			Scope:           "S1",
		}, creds)
	})

	t.Run("snapshot failure", func(t *testing.T) {
		_, err := credstore.New(failingSnapshotKV{}, nil, "").FindRefreshTokenAndScope()
		require.Error(t, err)
		require.Contains(t, err.Error(), "lock file unreadable")
	})

	t.Run("store failure", func(t *testing.T) {
		_, err := credstore.New(failingKV{}, nil, "").FindRefreshTokenAndScope()
		require.Error(t, err)
		require.Contains(t, err.Error(), "disk gone")
	})
}

func TestWrites(t *testing.T) {
	kv := memstore.NewWith([]string{"k_refresh_token", "k_granted_scopes"}, []string{"R1", "S1"})
	store := credstore.New(kv, nil, "")

	require.NoError(t, store.WriteRefreshToken("k_refresh_token", "R2"))
	require.NoError(t, store.WriteScope("k_granted_scopes", "S2"))

	creds, err := store.FindRefreshTokenAndScope()
	require.NoError(t, err)
	require.Equal(t, "R2", creds.RefreshToken)
	require.Equal(t, "S2", creds.Scope)

	t.Run("absent key is a no-op", func(t *testing.T) {
		require.NoError(t, store.WriteRefreshToken("", "R3"))
		keys, err := kv.Keys()
		require.NoError(t, err)
		require.Len(t, keys, 2)
	})

	t.Run("write failure is wrapped", func(t *testing.T) {
		err := credstore.New(failingKV{}, nil, "").WriteScope("k", "v")
		require.Error(t, err)
		require.Contains(t, err.Error(), "write k")
	})
}

func TestReadAuthorized(t *testing.T) {
	auth := host.AuthContext{
		Schema:   &host.Schema{TokenURL: "https://id.example.com/token"},
		ClientID: "console",
	}

	t.Run("default scheme", func(t *testing.T) {
		store := credstore.New(memstore.New(), fakeSelectors{"oauth": auth}, "")
		got, ok := store.ReadAuthorized()
		require.True(t, ok)
		require.Equal(t, "console", got.ClientID)
		require.Equal(t, "oauth", got.Name)
	})

	t.Run("custom scheme", func(t *testing.T) {
		store := credstore.New(memstore.New(), fakeSelectors{"petstore_auth": auth}, "petstore_auth")
		_, ok := store.ReadAuthorized()
		require.True(t, ok)
	})

	t.Run("nothing authorized", func(t *testing.T) {
		_, ok := credstore.New(memstore.New(), fakeSelectors{}, "").ReadAuthorized()
		require.False(t, ok)

		_, ok = credstore.New(memstore.New(), nil, "").ReadAuthorized()
		require.False(t, ok)
	})

	t.Run("other scheme only", func(t *testing.T) {
		_, ok := credstore.New(memstore.New(), fakeSelectors{"api_key": {}}, "").ReadAuthorized()
		require.False(t, ok)
	})
}

func TestValidate(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		require.NoError(t, credstore.Validate(&host.AuthContext{
			Schema:   &host.Schema{TokenURL: "https://id.example.com/token"},
			ClientID: "console",
		}))
	})

	t.Run("accumulates every missing field", func(t *testing.T) {
		err := credstore.Validate(&host.AuthContext{})
		require.ErrorIs(t, err, errs.ErrInvalidAuthSchema)

		var v *errs.ValidationError
		require.True(t, errs.As(err, &v))
		require.Equal(t, []string{"schema", "schema.tokenUrl", "clientId"}, v.Missing)
	})

	t.Run("missing client id only", func(t *testing.T) {
		err := credstore.Validate(&host.AuthContext{Schema: &host.Schema{TokenURL: "u"}})
		require.Error(t, err)
		require.Contains(t, err.Error(), "clientId")
		require.NotContains(t, err.Error(), "tokenUrl")
	})

	t.Run("nil auth", func(t *testing.T) {
		require.ErrorIs(t, credstore.Validate(nil), errs.ErrInvalidAuthSchema)
	})
}
