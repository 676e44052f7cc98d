package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaseKeyPrefix = "job-lease:"

// Lease is a Redis-backed per-domain claim lease with TTL. It guarantees
// at-most-one worker processes a domain concurrently even across scheduler
// instances, where the status-column compare-and-swap alone only narrows the
// window. The TTL releases leases held by crashed workers.
type Lease struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLease constructs a lease manager. Returns nil for a nil client so
// callers can treat the lease as optional.
func NewLease(client *redis.Client, ttl time.Duration) *Lease {
	if client == nil {
		return nil
	}
	return &Lease{client: client, ttl: ttl}
}

// Acquire takes the lease for a domain. Returns false when another worker
// holds it.
func (l *Lease) Acquire(ctx context.Context, domain string) (bool, error) {
	return l.client.SetNX(ctx, leaseKeyPrefix+domain, "1", l.ttl).Result()
}

// Release frees the lease for a domain.
func (l *Lease) Release(ctx context.Context, domain string) error {
	return l.client.Del(ctx, leaseKeyPrefix+domain).Err()
}
