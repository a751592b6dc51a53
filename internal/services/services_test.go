package services

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/finvista/go-aa-sync-backend/internal/domain"
	"github.com/finvista/go-aa-sync-backend/internal/repo"
)

// newServiceDB opens a throwaway SQLite database with the full schema.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// holdingsFixture is the canonical two-account test payload: one provider,
// one deposit account and one mutual-fund folio.
func holdingsFixture() *domain.HoldingsPayload {
	return &domain.HoldingsPayload{
		TotalFiData: 2,
		Providers: []domain.UpstreamProvider{
			{
				ProviderID:   "fip-hdfc",
				ProviderName: "HDFC Bank",
				Accounts: []domain.UpstreamAccount{
					{
						ExternalAccountID: "ext-dep-1",
						MaskedNumber:      "XXXX1234",
						AccountType:       "SAVINGS",
						FIType:            "DEPOSIT",
						CurrentBalance:    1250.756,
						AvailableBalance:  1200.10,
						InterestRate:      3.5,
						Branch:            "MG Road",
						IFSC:              "HDFC0000123",
					},
					{
						ExternalAccountID: "ext-mf-1",
						MaskedNumber:      "XXXX5678",
						AccountType:       "FOLIO",
						FIType:            "MUTUAL_FUNDS",
						CurrentBalance:    5000,
					},
				},
			},
		},
	}
}
