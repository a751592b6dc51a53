// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Provider
// and Account models (layer B).
//
// Upsert semantics: both tables carry a stable external identifier with a
// unique index; INSERT ... ON CONFLICT DO UPDATE overwrites every mutable
// column with the new values while leaving the primary key and creation
// timestamp untouched. Re-running the same sync cycle is therefore a no-op
// beyond field refresh.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finvista/go-aa-sync-backend/internal/domain"
)

// UpsertProvider inserts or refreshes a provider keyed on its stable
// provider_id. On conflict only the name and updated_at change.
func UpsertProvider(ctx context.Context, db *gorm.DB, providerID, providerName string) error {
	p := domain.Provider{
		ID:           uuid.NewString(),
		ProviderID:   providerID,
		ProviderName: providerName,
		CreatedAt:    time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"provider_name", "updated_at"}),
		}).
		Create(&p).Error
}

// UpsertAccount inserts or refreshes a canonical account keyed on its
// unique external_account_id. On conflict all mutable fields are
// overwritten with the incoming values; id and created_at survive.
func UpsertAccount(ctx context.Context, db *gorm.DB, a *domain.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "account_ref_number", "masked_number", "account_type",
				"fi_type", "provider_id", "data_fetched", "last_fetch_time",
				"is_active", "updated_at",
			}),
		}).
		Create(a).Error
}

// GetAccountByExternalID fetches a canonical account by its upsert key, or
// ErrNotFound.
func GetAccountByExternalID(ctx context.Context, db *gorm.DB, externalAccountID string) (*domain.Account, error) {
	var a domain.Account
	err := db.WithContext(ctx).
		Where("external_account_id = ?", externalAccountID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAccounts returns all accounts for a user ordered by creation time.
func ListAccounts(ctx context.Context, db *gorm.DB, userID string) ([]domain.Account, error) {
	var out []domain.Account
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListAccountsPage returns a paginated slice of a user's accounts.
func ListAccountsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Account, error) {
	var out []domain.Account
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountAccounts returns the number of canonical accounts for a user. A raw
// COUNT is used so a missing table surfaces as an error.
func CountAccounts(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM accounts WHERE user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

// CountActiveAccounts returns the number of active accounts for a user.
func CountActiveAccounts(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&total).Error
	return total, err
}
