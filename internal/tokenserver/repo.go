package tokenserver

import (
	"sync"
	"time"

	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
)

// StoredRefreshToken is the server-side record of an issued refresh token.
// The client only ever sees Token.
type StoredRefreshToken struct {
	Token    string
	ClientID string
	Scope    string
	Iat      time.Time
}

// Repo stores refresh token records keyed by the token string.
type Repo interface {
	Upsert(rt *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	Count() int
}

type memRepo struct {
	tokens map[string]*StoredRefreshToken
	lock   sync.RWMutex
}

var _ Repo = (*memRepo)(nil)

// NewMemRepo returns an in-memory Repo.
func NewMemRepo() Repo {
	return &memRepo{tokens: make(map[string]*StoredRefreshToken)}
}

func (r *memRepo) Upsert(rt *StoredRefreshToken) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.tokens[rt.Token] = rt
	return nil
}

func (r *memRepo) Delete(token string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.tokens[token]; !ok {
		return errs.ErrNotFound
	}
	delete(r.tokens, token)
	return nil
}

func (r *memRepo) Get(token string) (*StoredRefreshToken, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	rt, ok := r.tokens[token]
	if !ok {
		return nil, errs.ErrNotFound
	}
	copied := *rt
	return &copied, nil
}

func (r *memRepo) Count() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.tokens)
}
