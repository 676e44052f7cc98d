package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"domainwatch/internal/jobs"
	"domainwatch/internal/monitor/models"
	"domainwatch/internal/notify"
	derrors "domainwatch/pkg/domain-errors"
)

const testSigningKey = "test-signing-key"

type stubReconciler struct {
	changes int
	err     error
	domain  string
	userID  uuid.UUID
}

func (s *stubReconciler) ReconcileDomain(_ context.Context, domain string, userID uuid.UUID) (int, error) {
	s.domain = domain
	s.userID = userID
	return s.changes, s.err
}

type stubQueue struct {
	err     error
	failFor string
	domains []string
}

func (s *stubQueue) Enqueue(_ context.Context, domain string, _ uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	if s.failFor != "" && domain == s.failFor {
		return errors.New("enqueue failed")
	}
	s.domains = append(s.domains, domain)
	return nil
}

type stubLister struct {
	domains []models.Domain
	err     error
}

func (s *stubLister) ListDomains(context.Context) ([]models.Domain, error) {
	return s.domains, s.err
}

type stubWorker struct {
	result jobs.BatchResult
	err    error
}

func (s *stubWorker) RunBatch(context.Context) (jobs.BatchResult, error) {
	return s.result, s.err
}

type stubSweeper struct {
	result notify.SweepResult
	err    error
}

func (s *stubSweeper) Sweep(context.Context) (notify.SweepResult, error) {
	return s.result, s.err
}

type stubReminders struct {
	queued int
	err    error
}

func (s *stubReminders) Run(context.Context) (int, error) {
	return s.queued, s.err
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

type HandlersSuite struct {
	suite.Suite
	reconciler *stubReconciler
	queue      *stubQueue
	lister     *stubLister
	worker     *stubWorker
	sweeper    *stubSweeper
	reminders  *stubReminders
	pingers    map[string]Pinger
	router     http.Handler
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	s.reconciler = &stubReconciler{}
	s.queue = &stubQueue{}
	s.lister = &stubLister{}
	s.worker = &stubWorker{}
	s.sweeper = &stubSweeper{}
	s.reminders = &stubReminders{}
	s.pingers = map[string]Pinger{"postgres": &stubPinger{}}

	logger := slog.New(slog.DiscardHandler)
	handler := NewHandler(s.reconciler, s.queue, s.lister, s.worker, s.sweeper, s.reminders, s.pingers, logger)
	s.router = NewRouter(handler, testSigningKey, logger)
}

func (s *HandlersSuite) token(key string) string {
	claims := jwt.MapClaims{
		"sub": "scheduler",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	s.Require().NoError(err)
	return signed
}

func (s *HandlersSuite) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlersSuite) TestTriggersRequireAuth() {
	for _, path := range []string{"/reconcile", "/jobs/enqueue", "/jobs/run", "/notifications/sweep", "/reminders/run"} {
		rec := s.request(http.MethodPost, path, nil, "")
		s.Equal(http.StatusUnauthorized, rec.Code, path)
	}
}

func (s *HandlersSuite) TestWrongKeyIsRejected() {
	rec := s.request(http.MethodPost, "/jobs/run", nil, s.token("wrong-key"))
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlersSuite) TestReconcile() {
	s.reconciler.changes = 3
	userID := uuid.New()

	rec := s.request(http.MethodPost, "/reconcile", map[string]any{
		"domain":  "example.com",
		"user_id": userID,
	}, s.token(testSigningKey))

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("example.com", s.reconciler.domain)
	s.Equal(userID, s.reconciler.userID)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal(float64(3), body["changes"])
}

func (s *HandlersSuite) TestReconcileErrorMapping() {
	cases := []struct {
		err    error
		status int
	}{
		{derrors.New(derrors.CodeBadRequest, "domain is required"), http.StatusBadRequest},
		{derrors.New(derrors.CodeNotFound, "domain is not monitored by this user"), http.StatusNotFound},
		{derrors.New(derrors.CodeUpstream, "lookup returned status 503"), http.StatusBadGateway},
		{errors.New("plain failure"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s.reconciler.err = tc.err
		rec := s.request(http.MethodPost, "/reconcile", map[string]any{
			"domain":  "example.com",
			"user_id": uuid.New(),
		}, s.token(testSigningKey))
		s.Equal(tc.status, rec.Code, tc.err.Error())
	}
}

func (s *HandlersSuite) TestReconcileRejectsMalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/reconcile", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer "+s.token(testSigningKey))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlersSuite) TestEnqueue() {
	rec := s.request(http.MethodPost, "/jobs/enqueue", map[string]any{
		"domain":  "example.com",
		"user_id": uuid.New(),
	}, s.token(testSigningKey))

	s.Equal(http.StatusAccepted, rec.Code)
	s.Equal([]string{"example.com"}, s.queue.domains)
}

func (s *HandlersSuite) TestEnqueueRejectsMissingUser() {
	rec := s.request(http.MethodPost, "/jobs/enqueue", map[string]any{
		"domain": "example.com",
	}, s.token(testSigningKey))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Empty(s.queue.domains)
}

func (s *HandlersSuite) TestEnqueueAllOnEmptyBody() {
	s.lister.domains = []models.Domain{
		{DomainName: "a.com", UserID: uuid.New()},
		{DomainName: "b.com", UserID: uuid.New()},
	}

	rec := s.request(http.MethodPost, "/jobs/enqueue", nil, s.token(testSigningKey))

	s.Equal(http.StatusAccepted, rec.Code)
	s.Equal([]string{"a.com", "b.com"}, s.queue.domains)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal(float64(2), body["jobs"])
}

func (s *HandlersSuite) TestEnqueueAllContinuesPastFailures() {
	s.lister.domains = []models.Domain{
		{DomainName: "a.com", UserID: uuid.New()},
		{DomainName: "broken.com", UserID: uuid.New()},
		{DomainName: "c.com", UserID: uuid.New()},
	}
	s.queue.failFor = "broken.com"

	rec := s.request(http.MethodPost, "/jobs/enqueue", nil, s.token(testSigningKey))

	s.Equal(http.StatusAccepted, rec.Code)
	s.Equal([]string{"a.com", "c.com"}, s.queue.domains)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal(float64(2), body["jobs"])
}

func (s *HandlersSuite) TestRunBatch() {
	s.worker.result = jobs.BatchResult{Dequeued: 5, Succeeded: 3, Failed: 1, Skipped: 1, Changes: 7}

	rec := s.request(http.MethodPost, "/jobs/run", nil, s.token(testSigningKey))
	s.Equal(http.StatusOK, rec.Code)

	var body map[string]int
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal(3, body["succeeded"])
	s.Equal(7, body["changes"])
}

func (s *HandlersSuite) TestSweep() {
	s.sweeper.result = notify.SweepResult{Dispatched: 2, Deleted: 9}

	rec := s.request(http.MethodPost, "/notifications/sweep", nil, s.token(testSigningKey))
	s.Equal(http.StatusOK, rec.Code)

	var body map[string]float64
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal(float64(2), body["dispatched"])
	s.Equal(float64(9), body["deleted"])
}

func (s *HandlersSuite) TestReminders() {
	s.reminders.queued = 4

	rec := s.request(http.MethodPost, "/reminders/run", nil, s.token(testSigningKey))
	s.Equal(http.StatusOK, rec.Code)

	var body map[string]int
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal(4, body["queued"])
}

func (s *HandlersSuite) TestHealthzReflectsDependencies() {
	rec := s.request(http.MethodGet, "/healthz", nil, "")
	s.Equal(http.StatusOK, rec.Code)

	s.pingers["postgres"] = &stubPinger{err: errors.New("down")}
	rec = s.request(http.MethodGet, "/healthz", nil, "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("degraded", body.Status)
	s.Equal("down", body.Dependencies["postgres"])
}

func (s *HandlersSuite) TestMetricsEndpointIsOpen() {
	rec := s.request(http.MethodGet, "/metrics", nil, "")
	s.Equal(http.StatusOK, rec.Code)
}
