// DerivedSummaryStage (layer C): per-account summaries, portfolio
// snapshots, and period insights.
//
// Monetary values are computed with shopspring/decimal and rounded to two
// places at the point of snapshot computation; storage columns are plain
// numerics.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finvista/go-aa-sync-backend/internal/domain"
	"github.com/finvista/go-aa-sync-backend/internal/repo"
)

// Asset-class buckets recognized in upstream fiType values.
const (
	fiTypeDeposit    = "DEPOSIT"
	fiTypeMutualFund = "MUTUAL_FUNDS"
	fiTypeEquities   = "EQUITIES"
	fiTypeETF        = "ETF"
	fiTypeNPS        = "NPS"
)

// SummaryResult reports what one derived pass wrote. Like CanonicalResult,
// counts are over distinct stable identifiers: a payload repeating an
// account yields one summary row and a count of one.
type SummaryResult struct {
	SummariesUpserted int `json:"summaries_upserted"`
	SkippedRecords    int `json:"skipped_records"`
}

// DerivedSummaryStage computes and stores per-account summaries
// (overwrite-on-conflict, keyed on account id) and appends point-in-time
// portfolio snapshots (never overwritten).
type DerivedSummaryStage struct {
	DB *gorm.DB
}

// UpsertSummaries writes one summary row per account present in the
// holdings payload, keyed on the canonical account's id. Accounts that were
// skipped by the canonical stage (no external id, or not found in the
// ledger) are counted as skipped here too.
func (s *DerivedSummaryStage) UpsertSummaries(ctx context.Context, userID string, payload *domain.HoldingsPayload) (*SummaryResult, error) {
	res := &SummaryResult{}
	now := time.Now().UTC()
	seen := map[string]struct{}{}

	for _, p := range payload.Providers {
		for _, ua := range p.Accounts {
			if strings.TrimSpace(ua.ExternalAccountID) == "" {
				res.SkippedRecords++
				continue
			}
			acc, err := repo.GetAccountByExternalID(ctx, s.DB, ua.ExternalAccountID)
			if err != nil {
				res.SkippedRecords++
				continue
			}
			sum := &domain.AccountSummary{
				AccountID:        acc.ID,
				CurrentBalance:   round2(ua.CurrentBalance),
				AvailableBalance: round2(ua.AvailableBalance),
				InterestRate:     ua.InterestRate,
				Branch:           ua.Branch,
				IFSC:             ua.IFSC,
				AccountSubtype:   ua.AccountType,
				LastFetchTime:    now,
			}
			if err := repo.UpsertAccountSummary(ctx, s.DB, sum); err != nil {
				return res, err
			}
			if _, dup := seen[ua.ExternalAccountID]; !dup {
				seen[ua.ExternalAccountID] = struct{}{}
				res.SummariesUpserted++
			}
		}
	}
	return res, nil
}

// AppendSnapshot sums current balances across the user's summaries,
// bucketed by asset class, and appends a new snapshot row. Snapshot history
// is an append-only time series; calling twice yields two rows with
// increasing snapshot_at. A user with no summaries still gets a snapshot:
// an empty portfolio is a valid valuation of zero, and the history must
// record it so later insights can render the flat period.
func (s *DerivedSummaryStage) AppendSnapshot(ctx context.Context, userID string) (*domain.PortfolioSnapshot, error) {
	summaries, err := repo.ListAccountSummaries(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}

	byClass := map[string]decimal.Decimal{}
	total := decimal.Zero
	for _, sum := range summaries {
		acc, err := s.accountByID(ctx, sum.AccountID)
		if err != nil {
			continue
		}
		v := decimal.NewFromFloat(sum.CurrentBalance)
		byClass[acc.FIType] = byClass[acc.FIType].Add(v)
		total = total.Add(v)
	}

	active, err := repo.CountActiveAccounts(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}

	snap := &domain.PortfolioSnapshot{
		UserID:           userID,
		TotalNetWorth:    dec2(total),
		DepositsValue:    dec2(byClass[fiTypeDeposit]),
		MutualFundsValue: dec2(byClass[fiTypeMutualFund]),
		EquitiesValue:    dec2(byClass[fiTypeEquities]),
		ETFValue:         dec2(byClass[fiTypeETF]),
		NPSValue:         dec2(byClass[fiTypeNPS]),
		TotalAccounts:    int(active),
		SnapshotAt:       time.Now().UTC(),
	}
	if err := repo.CreateSnapshot(ctx, s.DB, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// ComputeInsight aggregates the user's snapshot history over [from, to]
// into one append-only insight row. Percent change is (end-start)/start*100,
// defined as 0 when the starting balance is 0.
func (s *DerivedSummaryStage) ComputeInsight(ctx context.Context, userID string, from, to time.Time, frequency string) (*domain.Insight, error) {
	var snaps []domain.PortfolioSnapshot
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND snapshot_at >= ? AND snapshot_at <= ?", userID, from, to).
		Order("snapshot_at ASC, id ASC").
		Find(&snaps).Error
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, ErrNoAccounts
	}

	start := decimal.NewFromFloat(snaps[0].TotalNetWorth)
	end := decimal.NewFromFloat(snaps[len(snaps)-1].TotalNetWorth)
	minV, maxV, sum := start, start, decimal.Zero
	for _, sn := range snaps {
		v := decimal.NewFromFloat(sn.TotalNetWorth)
		if v.LessThan(minV) {
			minV = v
		}
		if v.GreaterThan(maxV) {
			maxV = v
		}
		sum = sum.Add(v)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(snaps))))

	change := end.Sub(start)
	changePct := decimal.Zero
	if !start.IsZero() {
		changePct = change.Div(start).Mul(decimal.NewFromInt(100))
	}

	ins := &domain.Insight{
		UserID:       userID,
		PeriodFrom:   from,
		PeriodTo:     to,
		Frequency:    frequency,
		AvgBalance:   dec2(avg),
		MinBalance:   dec2(minV),
		MaxBalance:   dec2(maxV),
		StartBalance: dec2(start),
		EndBalance:   dec2(end),
		Change:       dec2(change),
		ChangePct:    dec2(changePct),
	}
	if err := repo.CreateInsight(ctx, s.DB, ins); err != nil {
		return nil, err
	}
	return ins, nil
}

func (s *DerivedSummaryStage) accountByID(ctx context.Context, id string) (*domain.Account, error) {
	var a domain.Account
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// round2 rounds a monetary float to two places via decimal.
func round2(v float64) float64 {
	return dec2(decimal.NewFromFloat(v))
}

// dec2 rounds a decimal to two places and converts it to float64 for storage.
func dec2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
