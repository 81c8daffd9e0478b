package patch

import (
	"math"
	"sync"
	"time"
)

// DefaultRefreshFraction is the share of a token's lifetime after which it is refreshed.
const DefaultRefreshFraction = 0.75

// maxExpiresIn keeps expires_in*time.Second within time.Duration.
const maxExpiresIn = int64(math.MaxInt64 / int64(time.Second))

// State holds the refresh deadline derived from the most recent authorization.
type State struct {
	fraction float64
	nowFunc  func() time.Time

	mu        sync.Mutex
	deadline  time.Time
	expiresAt time.Time
}

// NewState creates an unarmed State. A fraction outside (0, 1] selects DefaultRefreshFraction.
func NewState(fraction float64, now func() time.Time) *State {
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultRefreshFraction
	}
	if now == nil {
		now = time.Now
	}
	return &State{
		fraction: fraction,
		nowFunc:  now,
	}
}

// Arm replaces the deadline with now + expiresIn*fraction. It returns false
// and leaves the state untouched when expiresIn is not positive.
func (s *State) Arm(expiresIn int) (time.Time, bool) {
	if expiresIn <= 0 {
		return time.Time{}, false
	}

	seconds := int64(expiresIn)
	if seconds > maxExpiresIn {
		seconds = maxExpiresIn
	}

	now := s.nowFunc()
	lifetime := time.Duration(seconds) * time.Second

	offset := time.Duration(float64(lifetime) * s.fraction)
	if offset <= 0 || offset > lifetime {
		offset = lifetime
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = now.Add(offset)
	s.expiresAt = now.Add(lifetime)
	return s.deadline, true
}

// Deadline returns the refresh deadline, zero when unarmed.
func (s *State) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

// ExpiresAt returns the absolute expiry of the last armed token. Diagnostic only.
func (s *State) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}
