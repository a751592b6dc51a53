// PortfolioService: read-side queries over the canonical ledger and the
// derived layer, consumed by the dashboard endpoints. The pipeline writes;
// this service only reads.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/finvista/go-aa-sync-backend/internal/domain"
	"github.com/finvista/go-aa-sync-backend/internal/repo"
)

// AccountView is a canonical account joined with its derived summary, the
// shape the dashboard renders per row.
type AccountView struct {
	Account domain.Account         `json:"account"`
	Summary *domain.AccountSummary `json:"summary,omitempty"`
}

// PortfolioService answers dashboard reads keyed by external identity.
type PortfolioService struct {
	DB *gorm.DB
}

// NewPortfolioService constructs a PortfolioService over db.
func NewPortfolioService(db *gorm.DB) *PortfolioService {
	return &PortfolioService{DB: db}
}

// Accounts returns a page of the identity's canonical accounts with their
// summaries attached, plus the total count.
func (s *PortfolioService) Accounts(ctx context.Context, externalIdentity string, page, pageSize int) ([]AccountView, int64, error) {
	u, err := s.user(ctx, externalIdentity)
	if err != nil {
		return nil, 0, err
	}
	page, pageSize = clampPage(page, pageSize)

	total, err := repo.CountAccounts(ctx, s.DB, u.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []AccountView{}, 0, nil
	}

	accounts, err := repo.ListAccountsPage(ctx, s.DB, u.ID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}

	out := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		view := AccountView{Account: a}
		var sum domain.AccountSummary
		if err := s.DB.WithContext(ctx).
			Where("account_id = ?", a.ID).
			First(&sum).Error; err == nil {
			view.Summary = &sum
		}
		out = append(out, view)
	}
	return out, total, nil
}

// Snapshots returns a page of the identity's snapshot history, newest
// first, plus the total count.
func (s *PortfolioService) Snapshots(ctx context.Context, externalIdentity string, page, pageSize int) ([]domain.PortfolioSnapshot, int64, error) {
	u, err := s.user(ctx, externalIdentity)
	if err != nil {
		return nil, 0, err
	}
	page, pageSize = clampPage(page, pageSize)

	total, err := repo.CountSnapshots(ctx, s.DB, u.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.PortfolioSnapshot{}, 0, nil
	}
	items, err := repo.ListSnapshotsPage(ctx, s.DB, u.ID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Insights returns all insight rows for the identity, newest period first.
func (s *PortfolioService) Insights(ctx context.Context, externalIdentity string) ([]domain.Insight, error) {
	u, err := s.user(ctx, externalIdentity)
	if err != nil {
		return nil, err
	}
	return repo.ListInsights(ctx, s.DB, u.ID)
}

func (s *PortfolioService) user(ctx context.Context, externalIdentity string) (*domain.User, error) {
	u, err := repo.GetUserByIdentity(ctx, s.DB, externalIdentity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// clampPage applies defaults for invalid page/pageSize.
func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
