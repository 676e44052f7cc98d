// Package reconcile orchestrates one reconciliation pass for a domain:
// load the stored graph, fetch the live snapshot, run the detector.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"domainwatch/internal/monitor/models"
	"domainwatch/internal/monitor/store"
	derrors "domainwatch/pkg/domain-errors"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// GraphStore loads the stored entity graph for a domain.
type GraphStore interface {
	GetDomain(ctx context.Context, domainName string, userID uuid.UUID) (*models.DomainGraph, error)
}

// Provider fetches the live upstream view of a domain.
type Provider interface {
	Fetch(ctx context.Context, domain string) (models.Snapshot, error)
}

// Detector applies the snapshot diff against the stored graph.
type Detector interface {
	Run(ctx context.Context, graph *models.DomainGraph, snap models.Snapshot) (int, error)
}

// Service ties store, provider and detector together into the single
// entry point both the HTTP trigger and the job worker call.
type Service struct {
	store        GraphStore
	provider     Provider
	detector     Detector
	fetchTimeout time.Duration
	logger       *slog.Logger
	tracer       trace.Tracer
}

type Option func(*Service)

func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(graphStore GraphStore, provider Provider, detector Detector, opts ...Option) *Service {
	s := &Service{
		store:        graphStore,
		provider:     provider,
		detector:     detector,
		fetchTimeout: 5 * time.Second,
		logger:       slog.Default(),
		tracer:       otel.Tracer("domainwatch/reconcile"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconcileDomain runs one full pass for a domain and returns the number
// of changes recorded. The provider fetch runs under its own timeout so a
// slow upstream cannot stall a whole batch.
func (s *Service) ReconcileDomain(ctx context.Context, domain string, userID uuid.UUID) (int, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return 0, derrors.New(derrors.CodeBadRequest, "domain is required")
	}
	if userID == uuid.Nil {
		return 0, derrors.New(derrors.CodeBadRequest, "user id is required")
	}

	ctx, span := s.tracer.Start(ctx, "reconcile.domain",
		trace.WithAttributes(attribute.String("domain", domain)))
	defer span.End()

	graph, err := s.store.GetDomain(ctx, domain, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, derrors.New(derrors.CodeNotFound, "domain is not monitored by this user")
		}
		return 0, derrors.Wrap(err, derrors.CodeInternal, "load domain graph")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	snap, err := s.provider.Fetch(fetchCtx, domain)
	if err != nil {
		if derrors.HasCode(err, derrors.CodeUpstream) {
			return 0, err
		}
		return 0, derrors.Wrap(err, derrors.CodeUpstream, "fetch domain snapshot")
	}

	changes, err := s.detector.Run(ctx, graph, snap)
	if err != nil {
		return changes, derrors.Wrap(err, derrors.CodeInternal, "apply snapshot diff")
	}
	span.SetAttributes(attribute.Int("changes", changes))

	s.logger.InfoContext(ctx, "domain reconciled", "domain", domain, "changes", changes)
	return changes, nil
}
