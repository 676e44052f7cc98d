package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"domainwatch/internal/jobs"
	"domainwatch/internal/monitor/models"
	"domainwatch/internal/notify"
	derrors "domainwatch/pkg/domain-errors"
	"domainwatch/pkg/platform/httputil"
)

// Reconciler runs one reconciliation pass for a domain.
type Reconciler interface {
	ReconcileDomain(ctx context.Context, domain string, userID uuid.UUID) (int, error)
}

// JobQueue enqueues reconciliation jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, domain string, userID uuid.UUID) error
}

// DomainLister enumerates monitored domains for the scheduled full sweep.
type DomainLister interface {
	ListDomains(ctx context.Context) ([]models.Domain, error)
}

// BatchRunner drives one batch of queued jobs.
type BatchRunner interface {
	RunBatch(ctx context.Context) (jobs.BatchResult, error)
}

// Sweeper resends unsent notifications and prunes old ones.
type Sweeper interface {
	Sweep(ctx context.Context) (notify.SweepResult, error)
}

// ReminderRunner queues expiry reminders.
type ReminderRunner interface {
	Run(ctx context.Context) (int, error)
}

// Pinger reports the health of one backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the service dependencies for all routes.
type Handler struct {
	reconciler Reconciler
	queue      JobQueue
	domains    DomainLister
	worker     BatchRunner
	sweeper    Sweeper
	reminders  ReminderRunner
	pingers    map[string]Pinger
	logger     *slog.Logger
}

func NewHandler(
	reconciler Reconciler,
	queue JobQueue,
	domains DomainLister,
	worker BatchRunner,
	sweeper Sweeper,
	reminders ReminderRunner,
	pingers map[string]Pinger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		reconciler: reconciler,
		queue:      queue,
		domains:    domains,
		worker:     worker,
		sweeper:    sweeper,
		reminders:  reminders,
		pingers:    pingers,
		logger:     logger,
	}
}

type reconcileRequest struct {
	Domain string    `json:"domain"`
	UserID uuid.UUID `json:"user_id"`
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reconcileRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	changes, err := h.reconciler.ReconcileDomain(ctx, req.Domain, req.UserID)
	if err != nil {
		if derrors.CodeOf(err) == derrors.CodeInternal {
			h.logger.ErrorContext(ctx, "reconcile failed", "domain", req.Domain, "error", err)
		} else {
			h.logger.WarnContext(ctx, "reconcile rejected", "domain", req.Domain, "error", err)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"domain":  req.Domain,
		"changes": changes,
	})
}

// handleEnqueue queues one job when a domain is given, or one job per
// monitored domain on an empty body. The cron trigger uses the latter.
func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reconcileRequest
	if err := httputil.Decode(r, &req); err != nil {
		if !errors.Is(err, io.EOF) {
			httputil.WriteError(w, err)
			return
		}
	}

	if req.Domain == "" {
		h.enqueueAll(w, r)
		return
	}
	if req.UserID == uuid.Nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "user id is required"))
		return
	}

	if err := h.queue.Enqueue(ctx, req.Domain, req.UserID); err != nil {
		h.logger.ErrorContext(ctx, "enqueue failed", "domain", req.Domain, "error", err)
		httputil.WriteError(w, derrors.Wrap(err, derrors.CodeInternal, "enqueue job"))
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "jobs": 1})
}

func (h *Handler) enqueueAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	domains, err := h.domains.ListDomains(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list domains failed", "error", err)
		httputil.WriteError(w, derrors.Wrap(err, derrors.CodeInternal, "list monitored domains"))
		return
	}

	queued := 0
	for _, d := range domains {
		if err := h.queue.Enqueue(ctx, d.DomainName, d.UserID); err != nil {
			h.logger.ErrorContext(ctx, "enqueue failed", "domain", d.DomainName, "error", err)
			continue
		}
		queued++
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "jobs": queued})
}

func (h *Handler) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.worker.RunBatch(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "job batch failed", "error", err)
		httputil.WriteError(w, derrors.Wrap(err, derrors.CodeInternal, "run job batch"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{
		"dequeued":  result.Dequeued,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
		"changes":   result.Changes,
	})
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.sweeper.Sweep(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "notification sweep failed", "error", err)
		httputil.WriteError(w, derrors.Wrap(err, derrors.CodeInternal, "sweep notifications"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"dispatched": result.Dispatched,
		"failed":     result.Failed,
		"deleted":    result.Deleted,
	})
}

func (h *Handler) handleReminders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	queued, err := h.reminders.Run(ctx)
	if err != nil {
		// Partial failures still queue what they can; report both.
		h.logger.ErrorContext(ctx, "reminder run had failures", "queued", queued, "error", err)
		httputil.WriteError(w, derrors.Wrap(err, derrors.CodeInternal, "run expiry reminders"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{"queued": queued})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := http.StatusOK
	deps := make(map[string]string, len(h.pingers))
	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	httputil.WriteJSON(w, status, map[string]any{
		"status":       healthWord(status),
		"dependencies": deps,
	})
}

func healthWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
