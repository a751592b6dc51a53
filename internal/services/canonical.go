// CanonicalUpsertStage (layer B): normalizes upstream provider/account
// payloads into the stable account ledger.
package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/finvista/go-aa-sync-backend/internal/domain"
	"github.com/finvista/go-aa-sync-backend/internal/repo"
)

// CanonicalResult reports what one canonical pass wrote. Counts are over
// distinct stable identifiers, not raw payload entries: a payload repeating
// an account yields one upserted row and a count of one, so re-running the
// same cycle reports the same counts while row totals stay unchanged.
type CanonicalResult struct {
	ProvidersUpserted int `json:"providers_upserted"`
	AccountsUpserted  int `json:"accounts_upserted"`
	SkippedRecords    int `json:"skipped_records"`
}

// CanonicalUpsertStage deduplicates providers and accounts by their stable
// external identifiers. Upserting by conflict key makes re-runs and
// concurrent runs commutative: the defining idempotence property of the
// pipeline.
type CanonicalUpsertStage struct {
	DB *gorm.DB
}

// Upsert walks the parsed holdings payload and upserts each provider
// (keyed on provider_id) and each account (keyed on external_account_id)
// for userID. Account entries with a missing or empty external id are
// dropped and counted as skipped records, not errors.
//
// On a persistence error the partial result collected so far is returned
// alongside the error; nothing is rolled back.
func (s *CanonicalUpsertStage) Upsert(ctx context.Context, userID string, payload *domain.HoldingsPayload) (*CanonicalResult, error) {
	res := &CanonicalResult{}
	now := time.Now().UTC()
	seenProviders := map[string]struct{}{}
	seenAccounts := map[string]struct{}{}

	for _, p := range payload.Providers {
		if strings.TrimSpace(p.ProviderID) == "" {
			res.SkippedRecords += len(p.Accounts)
			continue
		}
		if err := repo.UpsertProvider(ctx, s.DB, p.ProviderID, p.ProviderName); err != nil {
			return res, err
		}
		if _, dup := seenProviders[p.ProviderID]; !dup {
			seenProviders[p.ProviderID] = struct{}{}
			res.ProvidersUpserted++
		}

		for _, ua := range p.Accounts {
			if strings.TrimSpace(ua.ExternalAccountID) == "" {
				res.SkippedRecords++
				continue
			}
			acc := &domain.Account{
				UserID:            userID,
				ExternalAccountID: ua.ExternalAccountID,
				AccountRefNumber:  ua.AccountRefNumber,
				MaskedNumber:      ua.MaskedNumber,
				AccountType:       ua.AccountType,
				FIType:            ua.FIType,
				ProviderID:        p.ProviderID,
				DataFetched:       true,
				LastFetchTime:     now,
				IsActive:          true,
			}
			if err := repo.UpsertAccount(ctx, s.DB, acc); err != nil {
				return res, err
			}
			if _, dup := seenAccounts[ua.ExternalAccountID]; !dup {
				seenAccounts[ua.ExternalAccountID] = struct{}{}
				res.AccountsUpserted++
			}
		}
	}
	return res, nil
}
