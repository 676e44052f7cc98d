// Package changelog persists the append-only audit log of detected domain
// changes (the domain_updates table).
package changelog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"domainwatch/internal/monitor/models"
)

// InMemory is an in-memory change log for unit tests.
type InMemory struct {
	mu      sync.RWMutex
	changes []models.Change
}

// NewInMemory creates an empty in-memory change log.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// Append records one change.
func (s *InMemory) Append(_ context.Context, change models.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now()
	}
	s.changes = append(s.changes, change)
	return nil
}

// ListByDomain returns all recorded changes for a domain, oldest first.
func (s *InMemory) ListByDomain(_ context.Context, domainID uuid.UUID) ([]models.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Change
	for _, c := range s.changes {
		if c.DomainID == domainID {
			out = append(out, c)
		}
	}
	return out, nil
}

// All returns every recorded change, oldest first. Test helper.
func (s *InMemory) All() []models.Change {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Change, len(s.changes))
	copy(out, s.changes)
	return out
}
