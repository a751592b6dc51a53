package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/finvista/go-aa-sync-backend/internal/domain"
	"github.com/finvista/go-aa-sync-backend/internal/services"
)

// ---- stubs to satisfy handlers.New() dependencies ----

type stubSyncSvc struct {
	run     func(ctx context.Context, identity string) *services.Report
	cleanup func(ctx context.Context, identity string) error
}

func (s stubSyncSvc) Run(ctx context.Context, identity string) *services.Report {
	if s.run != nil {
		return s.run(ctx, identity)
	}
	return &services.Report{Summary: services.RunSummary{Passed: 7, Total: 7, Status: services.StatusPass}}
}

func (s stubSyncSvc) Cleanup(ctx context.Context, identity string) error {
	if s.cleanup != nil {
		return s.cleanup(ctx, identity)
	}
	return nil
}

type stubPortfolioSvc struct {
	accounts  func(ctx context.Context, identity string, page, pageSize int) ([]services.AccountView, int64, error)
	snapshots func(ctx context.Context, identity string, page, pageSize int) ([]domain.PortfolioSnapshot, int64, error)
	insights  func(ctx context.Context, identity string) ([]domain.Insight, error)
}

func (s stubPortfolioSvc) Accounts(ctx context.Context, identity string, page, pageSize int) ([]services.AccountView, int64, error) {
	if s.accounts != nil {
		return s.accounts(ctx, identity, page, pageSize)
	}
	return nil, 0, nil
}

func (s stubPortfolioSvc) Snapshots(ctx context.Context, identity string, page, pageSize int) ([]domain.PortfolioSnapshot, int64, error) {
	if s.snapshots != nil {
		return s.snapshots(ctx, identity, page, pageSize)
	}
	return nil, 0, nil
}

func (s stubPortfolioSvc) Insights(ctx context.Context, identity string) ([]domain.Insight, error) {
	if s.insights != nil {
		return s.insights(ctx, identity)
	}
	return nil, nil
}

type stubUpstream struct {
	hasToken bool
	baseURL  string
}

func (s stubUpstream) HasToken() bool  { return s.hasToken }
func (s stubUpstream) BaseURL() string { return s.baseURL }

func newSyncRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/sync/run", h.RunSync)
	r.DELETE("/sync/run", h.CleanupSync)
	r.GET("/sync/health", h.SyncHealth)
	return r
}

func TestRunSync_PassingRun(t *testing.T) {
	var gotIdentity string
	h := New(stubSyncSvc{
		run: func(_ context.Context, identity string) *services.Report {
			gotIdentity = identity
			return &services.Report{
				Summary: services.RunSummary{Passed: 7, Total: 7, Status: services.StatusPass},
				Steps:   []services.StepResult{{Name: services.StepCreateOrUpdateUser, Status: services.StatusPass}},
			}
		},
	}, stubPortfolioSvc{}, stubUpstream{}, "8956545791")
	r := newSyncRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/run", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if gotIdentity != "8956545791" {
		t.Fatalf("expected the configured sync identity, got %q", gotIdentity)
	}
	var rep services.Report
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Summary.Status != services.StatusPass || len(rep.Steps) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestRunSync_FailingRunIsBadGateway(t *testing.T) {
	h := New(stubSyncSvc{
		run: func(context.Context, string) *services.Report {
			return &services.Report{
				Summary: services.RunSummary{Passed: 1, Total: 2, Status: services.StatusFail},
				Steps: []services.StepResult{
					{Name: services.StepCreateOrUpdateUser, Status: services.StatusPass},
					{Name: services.StepCallUpstream, Status: services.StatusFail, Error: "upstream returned 500"},
				},
			}
		},
	}, stubPortfolioSvc{}, stubUpstream{}, "8956545791")
	r := newSyncRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/run", nil))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for a failing run, got %d", w.Code)
	}
	// The body still carries the full report.
	var rep services.Report
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(rep.Steps) != 2 || rep.Steps[1].Error == "" {
		t.Fatalf("expected the failing step with its error, got %+v", rep)
	}
}

func TestCleanupSync(t *testing.T) {
	h := New(stubSyncSvc{}, stubPortfolioSvc{}, stubUpstream{}, "8956545791")
	r := newSyncRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sync/run", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestCleanupSync_UnknownIdentity(t *testing.T) {
	h := New(stubSyncSvc{
		cleanup: func(context.Context, string) error { return services.ErrUserNotFound },
	}, stubPortfolioSvc{}, stubUpstream{}, "8956545791")
	r := newSyncRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sync/run", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if er.Code != ErrCodeNotFound {
		t.Fatalf("expected code %q, got %q", ErrCodeNotFound, er.Code)
	}
}

func TestCleanupSync_InternalError(t *testing.T) {
	h := New(stubSyncSvc{
		cleanup: func(context.Context, string) error { return context.DeadlineExceeded },
	}, stubPortfolioSvc{}, stubUpstream{}, "8956545791")
	r := newSyncRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sync/run", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestSyncHealth(t *testing.T) {
	h := New(stubSyncSvc{}, stubPortfolioSvc{}, stubUpstream{
		hasToken: true,
		baseURL:  "https://sandbox.api.fiaggregator.com/v1",
	}, "8956545791")
	r := newSyncRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp SyncHealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || !resp.HasToken || resp.BaseURL == "" {
		t.Fatalf("unexpected health payload: %+v", resp)
	}
}
