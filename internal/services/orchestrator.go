// PipelineOrchestrator: runs the sync stages in order for one user/fetch
// cycle and reports a structured pass/fail result per step.
//
// The step sequence is a strict, non-branching state machine:
//
//	CreateOrUpdateUser → CallUpstream → RecordAudit → UpsertCanonical →
//	ComputeSummaries → AppendSnapshot → Verify
//
// A failure on CallUpstream (auth, upstream, transport) aborts all
// downstream steps, but the results collected up to that point are still
// returned: callers always receive a complete account of partial progress.
// Persistence failures in RecordAudit are non-fatal; in the canonical and
// derived stages they mark the step FAIL but Verify still runs and reports
// the true on-disk state. There is no transactional rollback across stages;
// a failed run is re-run from the top, which is safe because every
// current-state table is upserted by a stable key.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/finvista/go-aa-sync-backend/internal/aggregator"
	"github.com/finvista/go-aa-sync-backend/internal/domain"
	"github.com/finvista/go-aa-sync-backend/internal/repo"
)

// holdingsEndpoint is the versioned upstream path serving the full
// holdings-style payload for an identity.
const holdingsEndpoint = "/fidata/fetch-all"

// insightFrequency labels the period insight appended after each snapshot.
const insightFrequency = "daily"

// Step names, in execution order.
const (
	StepCreateOrUpdateUser = "CreateOrUpdateUser"
	StepCallUpstream       = "CallUpstream"
	StepRecordAudit        = "RecordAudit"
	StepUpsertCanonical    = "UpsertCanonical"
	StepComputeSummaries   = "ComputeSummaries"
	StepAppendSnapshot     = "AppendSnapshot"
	StepVerify             = "Verify"
)

// Step statuses.
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// StepResult is the typed outcome of one pipeline step.
type StepResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunSummary aggregates a run's step outcomes.
type RunSummary struct {
	Passed int    `json:"passed"`
	Total  int    `json:"total"`
	Status string `json:"status"`
}

// Report is the complete, ordered record of one sync run, including
// everything that failed and why. This is the contract the verification
// harness relies on.
type Report struct {
	Summary RunSummary   `json:"summary"`
	Steps   []StepResult `json:"steps"`
}

// Orchestrator sequences the pipeline stages for one sync run. It
// exclusively owns the ordering of writes across the layered store for that
// run; concurrent runs for the same user are not coordinated here (upserts
// by stable key make them commutative, and the append-only tables are
// time-ordered logs).
type Orchestrator struct {
	DB      *gorm.DB
	Client  *aggregator.Client
	Raw     *RawCaptureStage
	Canon   *CanonicalUpsertStage
	Derived *DerivedSummaryStage
}

// NewOrchestrator wires an orchestrator and its stages over one DB handle.
func NewOrchestrator(db *gorm.DB, client *aggregator.Client) *Orchestrator {
	return &Orchestrator{
		DB:      db,
		Client:  client,
		Raw:     &RawCaptureStage{DB: db},
		Canon:   &CanonicalUpsertStage{DB: db},
		Derived: &DerivedSummaryStage{DB: db},
	}
}

// Run executes one full sync cycle for externalIdentity and returns the
// per-step report. Run never returns an error: every failure mode is
// captured in the report itself.
func (o *Orchestrator) Run(ctx context.Context, externalIdentity string) *Report {
	tr := otel.Tracer("services/Orchestrator")
	ctx, span := tr.Start(ctx, "Run",
		trace.WithAttributes(attribute.String("sync.identity", externalIdentity)),
	)
	defer span.End()

	rep := &Report{}
	if externalIdentity == "" {
		rep.append(failedStep(StepCreateOrUpdateUser, 0, ErrEmptyIdentity))
		rep.finish()
		return rep
	}

	// Pre-run counts for the append-only tables, so Verify can assert exact
	// deltas instead of absolute totals.
	var preAudit, preSnaps int64

	// 1. CreateOrUpdateUser
	var user *domain.User
	res := o.step(ctx, StepCreateOrUpdateUser, func() (any, error) {
		u, err := repo.UpsertUser(ctx, o.DB, externalIdentity)
		if err != nil {
			return nil, err
		}
		user = u
		if preAudit, err = repo.CountAuditCalls(ctx, o.DB, u.ID); err != nil {
			return nil, err
		}
		if preSnaps, err = repo.CountSnapshots(ctx, o.DB, u.ID); err != nil {
			return nil, err
		}
		return map[string]string{"user_id": u.ID}, nil
	})
	rep.append(res)
	if res.Status == StatusFail {
		rep.finish()
		return rep
	}

	// 2. CallUpstream is the one short-circuiting step: without a payload
	// there is nothing for any downstream stage to do.
	var upResp *aggregator.Response
	var payload *domain.HoldingsPayload
	reqBody := domain.FetchRequest{UniqueIdentifier: externalIdentity}
	res = o.step(ctx, StepCallUpstream, func() (any, error) {
		r, err := o.Client.Forward(ctx, holdingsEndpoint, reqBody)
		if err != nil {
			upstreamCalls.WithLabelValues(holdingsEndpoint, "error").Inc()
			return nil, err
		}
		upstreamCalls.WithLabelValues(holdingsEndpoint, "ok").Inc()
		p, err := domain.ParseHoldingsPayload(r.Body)
		if err != nil {
			return nil, err
		}
		upResp = r
		payload = p
		return map[string]any{"status": r.Status, "providers": len(p.Providers)}, nil
	})
	rep.append(res)
	if res.Status == StatusFail {
		syncRuns.WithLabelValues(StatusFail).Inc()
		rep.finish()
		return rep
	}

	// 3. RecordAudit is best-effort; a FAIL here never aborts the run.
	res = o.step(ctx, StepRecordAudit, func() (any, error) {
		req, _ := json.Marshal(reqBody)
		_, err := o.Raw.Record(ctx, user.ID, holdingsEndpoint, "POST",
			string(req), string(upResp.Body), upResp.Status, upResp.LatencyMs)
		if err != nil {
			return nil, err
		}
		return map[string]any{"latency_ms": upResp.LatencyMs}, nil
	})
	rep.append(res)

	// 4. UpsertCanonical
	var canonRes *CanonicalResult
	res = o.step(ctx, StepUpsertCanonical, func() (any, error) {
		cr, err := o.Canon.Upsert(ctx, user.ID, payload)
		canonRes = cr
		return cr, err
	})
	rep.append(res)

	// 5. ComputeSummaries
	res = o.step(ctx, StepComputeSummaries, func() (any, error) {
		return o.Derived.UpsertSummaries(ctx, user.ID, payload)
	})
	rep.append(res)

	// 6. AppendSnapshot (plus the period insight derived from the history)
	res = o.step(ctx, StepAppendSnapshot, func() (any, error) {
		snap, err := o.Derived.AppendSnapshot(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if _, ierr := o.Derived.ComputeInsight(ctx, user.ID,
			snap.SnapshotAt.Add(-24*time.Hour), snap.SnapshotAt, insightFrequency); ierr != nil {
			log.Warn().Err(ierr).Str("user_id", user.ID).Msg("insight computation failed")
		}
		return map[string]any{
			"total_net_worth": snap.TotalNetWorth,
			"total_accounts":  snap.TotalAccounts,
		}, nil
	})
	rep.append(res)

	// 7. Verify re-reads what was just written; it reports, never rolls back.
	res = o.step(ctx, StepVerify, func() (any, error) {
		return o.verify(ctx, user.ID, canonRes, preAudit, preSnaps)
	})
	rep.append(res)

	rep.finish()
	syncRuns.WithLabelValues(rep.Summary.Status).Inc()
	log.Info().
		Str("identity", externalIdentity).
		Int("passed", rep.Summary.Passed).
		Int("total", rep.Summary.Total).
		Str("status", rep.Summary.Status).
		Msg("sync run finished")
	return rep
}

// Cleanup removes every row owned by externalIdentity, cascading from the
// user. Used by the harness to reset the test identity between runs.
func (o *Orchestrator) Cleanup(ctx context.Context, externalIdentity string) error {
	err := repo.DeleteUserData(ctx, o.DB, externalIdentity)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}

// verify asserts that on-disk row counts match what the stages reported.
// The canonical and summary tables are compared as absolute counts (the
// upsert key guarantees one row per account); the append-only tables are
// compared as deltas against the pre-run counts.
func (o *Orchestrator) verify(ctx context.Context, userID string, canonRes *CanonicalResult, preAudit, preSnaps int64) (any, error) {
	accounts, err := repo.CountAccounts(ctx, o.DB, userID)
	if err != nil {
		return nil, err
	}
	summaries, err := repo.CountAccountSummaries(ctx, o.DB, userID)
	if err != nil {
		return nil, err
	}
	audits, err := repo.CountAuditCalls(ctx, o.DB, userID)
	if err != nil {
		return nil, err
	}
	snaps, err := repo.CountSnapshots(ctx, o.DB, userID)
	if err != nil {
		return nil, err
	}

	counts := map[string]int64{
		"accounts":       accounts,
		"summaries":      summaries,
		"audit_calls":    audits,
		"snapshots":      snaps,
		"new_audit_rows": audits - preAudit,
		"new_snapshots":  snaps - preSnaps,
	}

	if canonRes != nil && accounts != int64(canonRes.AccountsUpserted) {
		return counts, fmt.Errorf("%w: accounts=%d upserted=%d",
			ErrVerifyMismatch, accounts, canonRes.AccountsUpserted)
	}
	if summaries != accounts {
		return counts, fmt.Errorf("%w: summaries=%d accounts=%d",
			ErrVerifyMismatch, summaries, accounts)
	}
	if snaps != preSnaps+1 {
		return counts, fmt.Errorf("%w: snapshots=%d expected=%d",
			ErrVerifyMismatch, snaps, preSnaps+1)
	}
	return counts, nil
}

// step times fn and converts its outcome into a StepResult.
func (o *Orchestrator) step(ctx context.Context, name string, fn func() (any, error)) StepResult {
	start := time.Now()
	data, err := fn()
	dur := time.Since(start)
	syncStepDuration.WithLabelValues(name).Observe(dur.Seconds())

	if err != nil {
		r := failedStep(name, dur.Milliseconds(), err)
		r.Data = data
		return r
	}
	return StepResult{
		Name:       name,
		Status:     StatusPass,
		DurationMs: dur.Milliseconds(),
		Data:       data,
	}
}

// failedStep builds a FAIL result carrying the error text. Upstream errors
// keep their status/body so the caller sees them verbatim.
func failedStep(name string, durMs int64, err error) StepResult {
	msg := err.Error()
	var ue *aggregator.UpstreamError
	if errors.As(err, &ue) && ue.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, ue.Body)
	}
	return StepResult{
		Name:       name,
		Status:     StatusFail,
		DurationMs: durMs,
		Error:      msg,
	}
}

func (r *Report) append(s StepResult) { r.Steps = append(r.Steps, s) }

// finish fills the run summary from the collected steps.
func (r *Report) finish() {
	r.Summary.Total = len(r.Steps)
	for _, s := range r.Steps {
		if s.Status == StatusPass {
			r.Summary.Passed++
		}
	}
	if r.Summary.Passed == r.Summary.Total {
		r.Summary.Status = StatusPass
	} else {
		r.Summary.Status = StatusFail
	}
}
