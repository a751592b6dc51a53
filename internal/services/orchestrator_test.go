package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/finvista/go-aa-sync-backend/internal/aggregator"
	"github.com/finvista/go-aa-sync-backend/internal/config"
	"github.com/finvista/go-aa-sync-backend/internal/repo"
)

const testIdentity = "8956545791"

// fakeAggregator serves /login and /fidata/fetch-all the way the sandbox
// does, letting tests switch the fetch response between calls.
type fakeAggregator struct {
	srv        *httptest.Server
	fetchCalls atomic.Int64

	// fetchStatus/fetchBody control the next fetch response.
	fetchStatus atomic.Int64
	fetchBody   atomic.Value // string
}

func newFakeAggregator(t *testing.T) *fakeAggregator {
	t.Helper()
	f := &fakeAggregator{}
	f.fetchStatus.Store(http.StatusOK)
	f.fetchBody.Store(`{
		"totalFiData": 2,
		"providers": [
			{
				"providerId": "fip-hdfc",
				"providerName": "HDFC Bank",
				"accounts": [
					{"linkRefNumber": "ext-dep-1", "maskedAccNumber": "XXXX1234", "accType": "SAVINGS", "fiType": "DEPOSIT", "currentBalance": 1250.75},
					{"linkRefNumber": "ext-mf-1", "maskedAccNumber": "XXXX5678", "accType": "FOLIO", "fiType": "MUTUAL_FUNDS", "currentBalance": 5000}
				]
			}
		]
	}`)

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	})
	mux.HandleFunc("/fidata/fetch-all", func(w http.ResponseWriter, r *http.Request) {
		f.fetchCalls.Add(1)
		status := int(f.fetchStatus.Load())
		w.WriteHeader(status)
		_, _ = w.Write([]byte(f.fetchBody.Load().(string)))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestOrchestrator(t *testing.T, f *fakeAggregator) (*Orchestrator, *gorm.DB) {
	t.Helper()
	db := newServiceDB(t)
	cfg := config.AggregatorConfig{
		BaseURL:           f.srv.URL,
		UserID:            "svc-user",
		Password:          "svc-pass",
		Timeout:           5 * time.Second,
		TokenTTL:          23 * time.Hour,
		TokenSafetyMargin: 5 * time.Minute,
	}
	client := aggregator.NewClient(cfg, aggregator.NewTokenCache(cfg))
	return NewOrchestrator(db, client), db
}

func stepNames(rep *Report) []string {
	names := make([]string, 0, len(rep.Steps))
	for _, s := range rep.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestOrchestrator_Run_FullCycle(t *testing.T) {
	f := newFakeAggregator(t)
	o, db := newTestOrchestrator(t, f)
	ctx := context.Background()

	rep := o.Run(ctx, testIdentity)

	if rep.Summary.Status != StatusPass {
		t.Fatalf("expected a passing run, got %+v", rep)
	}
	if rep.Summary.Passed != 7 || rep.Summary.Total != 7 {
		t.Fatalf("expected 7/7 steps, got %d/%d", rep.Summary.Passed, rep.Summary.Total)
	}
	want := []string{
		StepCreateOrUpdateUser, StepCallUpstream, StepRecordAudit,
		StepUpsertCanonical, StepComputeSummaries, StepAppendSnapshot, StepVerify,
	}
	got := stepNames(rep)
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("step %d = %q, want %q (all: %v)", i, got[i], name, got)
		}
	}

	u, err := repo.GetUserByIdentity(ctx, db, testIdentity)
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	accounts, _ := repo.CountAccounts(ctx, db, u.ID)
	summaries, _ := repo.CountAccountSummaries(ctx, db, u.ID)
	audits, _ := repo.CountAuditCalls(ctx, db, u.ID)
	snaps, _ := repo.CountSnapshots(ctx, db, u.ID)
	if accounts != 2 || summaries != 2 || audits != 1 || snaps != 1 {
		t.Fatalf("counts accounts=%d summaries=%d audits=%d snaps=%d, want 2/2/1/1",
			accounts, summaries, audits, snaps)
	}

	snap, err := repo.LatestSnapshot(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if snap.TotalAccounts != 2 || snap.TotalNetWorth != 6250.75 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestOrchestrator_Run_Idempotent(t *testing.T) {
	f := newFakeAggregator(t)
	o, db := newTestOrchestrator(t, f)
	ctx := context.Background()

	if rep := o.Run(ctx, testIdentity); rep.Summary.Status != StatusPass {
		t.Fatalf("first run failed: %+v", rep)
	}
	rep := o.Run(ctx, testIdentity)
	if rep.Summary.Status != StatusPass {
		t.Fatalf("second run failed: %+v", rep)
	}

	u, err := repo.GetUserByIdentity(ctx, db, testIdentity)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	accounts, _ := repo.CountAccounts(ctx, db, u.ID)
	summaries, _ := repo.CountAccountSummaries(ctx, db, u.ID)
	audits, _ := repo.CountAuditCalls(ctx, db, u.ID)
	snaps, _ := repo.CountSnapshots(ctx, db, u.ID)
	if accounts != 2 || summaries != 2 {
		t.Fatalf("current-state tables must not grow on re-run: accounts=%d summaries=%d", accounts, summaries)
	}
	if audits != 2 || snaps != 2 {
		t.Fatalf("append-only tables must grow by one per run: audits=%d snaps=%d", audits, snaps)
	}
}

func TestOrchestrator_Run_EmptyHoldingsPasses(t *testing.T) {
	f := newFakeAggregator(t)
	f.fetchBody.Store(`{"totalFiData": 0, "providers": []}`)
	o, db := newTestOrchestrator(t, f)
	ctx := context.Background()

	// An identity with no linked accounts is a valid upstream answer; the
	// run records a zero-valued snapshot instead of failing.
	rep := o.Run(ctx, testIdentity)
	if rep.Summary.Status != StatusPass || rep.Summary.Passed != 7 {
		t.Fatalf("expected 7/7 PASS for an empty portfolio, got %+v", rep.Summary)
	}

	u, err := repo.GetUserByIdentity(ctx, db, testIdentity)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	accounts, _ := repo.CountAccounts(ctx, db, u.ID)
	snaps, _ := repo.CountSnapshots(ctx, db, u.ID)
	if accounts != 0 || snaps != 1 {
		t.Fatalf("expected 0 accounts and 1 snapshot, got %d/%d", accounts, snaps)
	}
	snap, err := repo.LatestSnapshot(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if snap.TotalNetWorth != 0 || snap.TotalAccounts != 0 {
		t.Fatalf("expected a zero-valued snapshot, got %+v", snap)
	}
}

func TestOrchestrator_Run_PreCountFailureFailsFirstStep(t *testing.T) {
	f := newFakeAggregator(t)
	o, db := newTestOrchestrator(t, f)

	// A broken audit table must surface in CreateOrUpdateUser, not later as
	// a misleading Verify mismatch.
	if err := db.Migrator().DropTable("audit_calls"); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	rep := o.Run(context.Background(), testIdentity)
	if rep.Summary.Status != StatusFail || len(rep.Steps) != 1 {
		t.Fatalf("expected a single failing step, got %v", stepNames(rep))
	}
	if rep.Steps[0].Name != StepCreateOrUpdateUser || rep.Steps[0].Status != StatusFail {
		t.Fatalf("unexpected step: %+v", rep.Steps[0])
	}
	if f.fetchCalls.Load() != 0 {
		t.Fatal("no upstream call may happen when the store is broken")
	}
}

func TestOrchestrator_Run_UpstreamFailureShortCircuits(t *testing.T) {
	f := newFakeAggregator(t)
	f.fetchStatus.Store(http.StatusInternalServerError)
	f.fetchBody.Store(`{"error":"FIP timeout"}`)
	o, db := newTestOrchestrator(t, f)
	ctx := context.Background()

	rep := o.Run(ctx, testIdentity)

	if rep.Summary.Status != StatusFail {
		t.Fatalf("expected a failing run, got %+v", rep.Summary)
	}
	if len(rep.Steps) != 2 {
		t.Fatalf("expected exactly 2 steps, got %v", stepNames(rep))
	}
	if rep.Steps[0].Name != StepCreateOrUpdateUser || rep.Steps[0].Status != StatusPass {
		t.Fatalf("unexpected first step: %+v", rep.Steps[0])
	}
	if rep.Steps[1].Name != StepCallUpstream || rep.Steps[1].Status != StatusFail {
		t.Fatalf("unexpected second step: %+v", rep.Steps[1])
	}
	if !strings.Contains(rep.Steps[1].Error, "FIP timeout") {
		t.Fatalf("upstream body must be surfaced verbatim, got %q", rep.Steps[1].Error)
	}

	// Nothing downstream may have written.
	u, err := repo.GetUserByIdentity(ctx, db, testIdentity)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	accounts, _ := repo.CountAccounts(ctx, db, u.ID)
	audits, _ := repo.CountAuditCalls(ctx, db, u.ID)
	snaps, _ := repo.CountSnapshots(ctx, db, u.ID)
	if accounts != 0 || audits != 0 || snaps != 0 {
		t.Fatalf("downstream writes after short-circuit: accounts=%d audits=%d snaps=%d", accounts, audits, snaps)
	}
}

func TestOrchestrator_Run_UnparseablePayloadFails(t *testing.T) {
	f := newFakeAggregator(t)
	f.fetchBody.Store(`{"transactions":[]}`)
	o, _ := newTestOrchestrator(t, f)

	rep := o.Run(context.Background(), testIdentity)
	if rep.Summary.Status != StatusFail || len(rep.Steps) != 2 {
		t.Fatalf("expected CallUpstream to reject the shape, got %v", stepNames(rep))
	}
	if rep.Steps[1].Status != StatusFail {
		t.Fatalf("unexpected step: %+v", rep.Steps[1])
	}
}

func TestOrchestrator_Run_EmptyIdentity(t *testing.T) {
	f := newFakeAggregator(t)
	o, _ := newTestOrchestrator(t, f)

	rep := o.Run(context.Background(), "")
	if rep.Summary.Status != StatusFail || len(rep.Steps) != 1 {
		t.Fatalf("expected a single failing step, got %+v", rep)
	}
	if f.fetchCalls.Load() != 0 {
		t.Fatal("no upstream call may happen for an empty identity")
	}
}

func TestOrchestrator_Cleanup(t *testing.T) {
	f := newFakeAggregator(t)
	o, db := newTestOrchestrator(t, f)
	ctx := context.Background()

	if rep := o.Run(ctx, testIdentity); rep.Summary.Status != StatusPass {
		t.Fatalf("run failed: %+v", rep)
	}
	if err := o.Cleanup(ctx, testIdentity); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := repo.GetUserByIdentity(ctx, db, testIdentity); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected the user gone, got %v", err)
	}

	// Cleanup followed by a fresh run starts from zero again.
	rep := o.Run(ctx, testIdentity)
	if rep.Summary.Status != StatusPass {
		t.Fatalf("run after cleanup failed: %+v", rep)
	}
	u, err := repo.GetUserByIdentity(ctx, db, testIdentity)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	snaps, _ := repo.CountSnapshots(ctx, db, u.ID)
	if snaps != 1 {
		t.Fatalf("expected 1 snapshot after a fresh start, got %d", snaps)
	}
}

func TestOrchestrator_Cleanup_UnknownIdentity(t *testing.T) {
	f := newFakeAggregator(t)
	o, _ := newTestOrchestrator(t, f)
	if err := o.Cleanup(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
