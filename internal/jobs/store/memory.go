package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"domainwatch/internal/jobs"
)

// InMemory is a mutex-guarded in-memory job queue for unit tests and local
// development.
type InMemory struct {
	mu   sync.Mutex
	rows map[string]jobs.Job // keyed by domain
	now  func() time.Time
}

// NewInMemory creates an empty in-memory job store.
func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[string]jobs.Job), now: time.Now}
}

// WithClock overrides the store clock. Test helper.
func (s *InMemory) WithClock(now func() time.Time) *InMemory {
	s.now = now
	return s
}

// Enqueue queues a job for the domain. A job already queued or in progress
// is left alone; terminal jobs are re-queued.
func (s *InMemory) Enqueue(_ context.Context, domain string, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.rows[domain]; ok {
		if job.Status == jobs.StatusQueued || job.Status == jobs.StatusInProgress {
			return nil
		}
		job.Status = jobs.StatusQueued
		job.LastUpdatedAt = s.now()
		s.rows[domain] = job
		return nil
	}
	s.rows[domain] = jobs.Job{
		ID:            uuid.New(),
		Domain:        domain,
		UserID:        userID,
		Status:        jobs.StatusQueued,
		LastUpdatedAt: s.now(),
	}
	return nil
}

// Dequeue returns up to batchSize queued jobs outside the retry cutoff
// window, never-attempted first, then oldest-attempted.
func (s *InMemory) Dequeue(_ context.Context, batchSize int, retryCutoff time.Duration) ([]jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := s.now().Add(-retryCutoff)
	var eligible []jobs.Job
	for _, job := range s.rows {
		if job.Status != jobs.StatusQueued {
			continue
		}
		if job.LastAttemptAt != nil && !job.LastAttemptAt.Before(threshold) {
			continue
		}
		eligible = append(eligible, job)
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i].LastAttemptAt, eligible[j].LastAttemptAt
		switch {
		case a == nil && b == nil:
			return eligible[i].Domain < eligible[j].Domain
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})

	if len(eligible) > batchSize {
		eligible = eligible[:batchSize]
	}
	return eligible, nil
}

// Claim atomically moves a queued job to in_progress, incrementing attempts
// and stamping the attempt time. Returns false if the job was no longer
// queued.
func (s *InMemory) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for domain, job := range s.rows {
		if job.ID != id {
			continue
		}
		if job.Status != jobs.StatusQueued {
			return false, nil
		}
		now := s.now()
		job.Status = jobs.StatusInProgress
		job.Attempts++
		job.LastAttemptAt = &now
		s.rows[domain] = job
		return true, nil
	}
	return false, ErrNotFound
}

// Complete marks a job complete.
func (s *InMemory) Complete(_ context.Context, id uuid.UUID) error {
	return s.setStatus(id, jobs.StatusComplete)
}

// Fail marks a job failed.
func (s *InMemory) Fail(_ context.Context, id uuid.UUID) error {
	return s.setStatus(id, jobs.StatusFailed)
}

func (s *InMemory) setStatus(id uuid.UUID, status jobs.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for domain, job := range s.rows {
		if job.ID != id {
			continue
		}
		job.Status = status
		job.LastUpdatedAt = s.now()
		s.rows[domain] = job
		return nil
	}
	return ErrNotFound
}

// Get returns the job for a domain. Test helper.
func (s *InMemory) Get(domain string) (jobs.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.rows[domain]
	return job, ok
}
