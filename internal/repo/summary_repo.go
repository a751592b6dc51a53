// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for layer C:
// account summaries (overwrite-on-conflict), insights and portfolio
// snapshots (both append-only).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finvista/go-aa-sync-backend/internal/domain"
)

// UpsertAccountSummary inserts or refreshes the summary row keyed on the
// unique account_id. Same overwrite semantics as the canonical account
// upsert: one row per account, all balance fields replaced on refresh.
func UpsertAccountSummary(ctx context.Context, db *gorm.DB, s *domain.AccountSummary) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"current_balance", "available_balance", "interest_rate",
				"branch", "ifsc", "account_subtype", "last_fetch_time", "updated_at",
			}),
		}).
		Create(s).Error
}

// ListAccountSummaries returns the summaries for all of a user's accounts.
func ListAccountSummaries(ctx context.Context, db *gorm.DB, userID string) ([]domain.AccountSummary, error) {
	var out []domain.AccountSummary
	err := db.WithContext(ctx).
		Joins("JOIN accounts ON accounts.id = account_summaries.account_id").
		Where("accounts.user_id = ?", userID).
		Order("account_summaries.created_at ASC").
		Find(&out).Error
	return out, err
}

// CountAccountSummaries returns the number of summary rows for a user's
// accounts. A raw COUNT is used so a missing table surfaces as an error.
func CountAccountSummaries(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw(`SELECT COUNT(*) FROM account_summaries
		     JOIN accounts ON accounts.id = account_summaries.account_id
		     WHERE accounts.user_id = ?`, userID).
		Scan(&total).Error
	return total, err
}

// CreateInsight appends one computed-period insight row.
func CreateInsight(ctx context.Context, db *gorm.DB, i *domain.Insight) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(i).Error
}

// ListInsights returns a user's insight rows, newest period first.
func ListInsights(ctx context.Context, db *gorm.DB, userID string) ([]domain.Insight, error) {
	var out []domain.Insight
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("period_to DESC, id DESC").
		Find(&out).Error
	return out, err
}

// CreateSnapshot appends one portfolio snapshot row. Snapshots are an
// append-only time series; there is deliberately no upsert variant.
func CreateSnapshot(ctx context.Context, db *gorm.DB, s *domain.PortfolioSnapshot) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SnapshotAt.IsZero() {
		s.SnapshotAt = time.Now().UTC()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.SnapshotAt
	}
	return db.WithContext(ctx).Create(s).Error
}

// CountSnapshots returns the number of snapshot rows for a user. A raw
// COUNT is used so a missing table surfaces as an error.
func CountSnapshots(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM portfolio_snapshots WHERE user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

// ListSnapshotsPage returns a page of a user's snapshots, newest first.
func ListSnapshotsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.PortfolioSnapshot, error) {
	var out []domain.PortfolioSnapshot
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("snapshot_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// LatestSnapshot returns the most recent snapshot for a user, or ErrNotFound.
func LatestSnapshot(ctx context.Context, db *gorm.DB, userID string) (*domain.PortfolioSnapshot, error) {
	var s domain.PortfolioSnapshot
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("snapshot_at DESC, id DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}
