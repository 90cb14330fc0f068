package partner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryApplicationStore struct {
	mu   sync.Mutex
	apps map[uuid.UUID]Application
	now  func() time.Time
}

// NewMemoryApplicationStore returns an empty in-memory ApplicationStore.
func NewMemoryApplicationStore() ApplicationStore {
	return &memoryApplicationStore{
		apps: make(map[uuid.UUID]Application),
		now:  time.Now,
	}
}

func (s *memoryApplicationStore) Create(_ context.Context, app *Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	now := s.now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now
	s.apps[app.ID] = *app
	return nil
}

func (s *memoryApplicationStore) GetByID(_ context.Context, id uuid.UUID) (Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return Application{}, ErrApplicationNotFound
	}
	return a, nil
}

func (s *memoryApplicationStore) List(_ context.Context) ([]Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Application, 0, len(s.apps))
	for _, a := range s.apps {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
