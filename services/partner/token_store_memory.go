package partner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryTokenStore keeps tokens in a mutex-guarded map. It backs tests and
// local development without a database.
type memoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]ApprovalToken
}

// NewMemoryTokenStore returns an empty in-memory TokenStore.
func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{tokens: make(map[string]ApprovalToken)}
}

func (s *memoryTokenStore) Insert(_ context.Context, t ApprovalToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[t.Token]; ok {
		return ErrDuplicateToken
	}
	s.tokens[t.Token] = t
	return nil
}

func (s *memoryTokenStore) FindByToken(_ context.Context, token string) (ApprovalToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return ApprovalToken{}, ErrTokenNotFound
	}
	return t, nil
}

func (s *memoryTokenStore) Consume(_ context.Context, token string, acceptedAt time.Time, origin *string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok || t.AcceptedAt != nil {
		return 0, nil
	}
	at := acceptedAt
	t.AcceptedAt = &at
	t.AcceptanceOrigin = origin
	s.tokens[token] = t
	return 1, nil
}

func (s *memoryTokenStore) ExpireOutstanding(_ context.Context, applicationID uuid.UUID, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, t := range s.tokens {
		if t.ApplicationID == applicationID && t.AcceptedAt == nil && t.ExpiresAt.After(cutoff) {
			t.ExpiresAt = cutoff
			s.tokens[k] = t
			n++
		}
	}
	return n, nil
}

func (s *memoryTokenStore) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]ApprovalToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ApprovalToken
	for _, t := range s.tokens {
		if t.ApplicationID == applicationID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (s *memoryTokenStore) ListAccepted(_ context.Context) ([]ApprovalToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ApprovalToken
	for _, t := range s.tokens {
		if t.AcceptedAt != nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AcceptedAt.Before(*out[j].AcceptedAt) })
	return out, nil
}
