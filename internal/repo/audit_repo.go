// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the AuditCall
// model (layer A). The table is append-only: rows are inserted, counted,
// and listed, never updated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finvista/go-aa-sync-backend/internal/domain"
)

// CreateAuditCall appends one audit row for an upstream call.
func CreateAuditCall(ctx context.Context, db *gorm.DB, a *domain.AuditCall) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CalledAt.IsZero() {
		a.CalledAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(a).Error
}

// CountAuditCalls returns the number of audit rows for a user. A raw COUNT
// is used so a missing table surfaces as an error.
func CountAuditCalls(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM audit_calls WHERE user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

// ListAuditCallsPage returns a page of audit rows for a user, newest first.
func ListAuditCallsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.AuditCall, error) {
	var out []domain.AuditCall
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("called_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
