// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finvista/go-aa-sync-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertUser returns the user owning externalIdentity, creating the row on
// first sight. The identity column is unique; a concurrent insert losing the
// race falls back to re-reading the winner's row.
func UpsertUser(ctx context.Context, db *gorm.DB, externalIdentity string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("external_identity = ?", externalIdentity).
		First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	u = domain.User{
		ID:                 uuid.NewString(),
		ExternalIdentity:   externalIdentity,
		SubscriptionStatus: "trial",
		CreatedAt:          time.Now().UTC(),
	}
	if cerr := db.WithContext(ctx).Create(&u).Error; cerr != nil {
		// Lost a race on the unique index; the winner's row is authoritative.
		var again domain.User
		if rerr := db.WithContext(ctx).
			Where("external_identity = ?", externalIdentity).
			First(&again).Error; rerr == nil {
			return &again, nil
		}
		return nil, cerr
	}
	return &u, nil
}

// GetUserByIdentity fetches a user by external identity, or ErrNotFound.
func GetUserByIdentity(ctx context.Context, db *gorm.DB, externalIdentity string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("external_identity = ?", externalIdentity).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUserData hard-deletes a user and every row hanging off it: audit
// calls, accounts (summaries cascade from accounts), insights, and
// snapshots. Used by the cleanup endpoint for the test identity.
func DeleteUserData(ctx context.Context, db *gorm.DB, externalIdentity string) error {
	u, err := GetUserByIdentity(ctx, db, externalIdentity)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Children are removed explicitly rather than relying on FK cascades,
		// which SQLite only enforces when foreign_keys is on.
		sub := tx.Session(&gorm.Session{NewDB: true}).
			Model(&domain.Account{}).
			Select("id").
			Where("user_id = ?", u.ID)
		if err := tx.Unscoped().
			Where("account_id IN (?)", sub).
			Delete(&domain.AccountSummary{}).Error; err != nil {
			return err
		}
		for _, m := range []any{
			&domain.Account{},
			&domain.AuditCall{},
			&domain.Insight{},
			&domain.PortfolioSnapshot{},
		} {
			if err := tx.Where("user_id = ?", u.ID).Unscoped().Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Unscoped().Delete(&domain.User{}, "id = ?", u.ID).Error
	})
}
