// Package domain defines the persistence models for the layered canonical
// store: raw call capture (layer A), canonical accounts (layer B), and
// derived summaries/snapshots (layer C). These types are mapped with GORM
// and form the core data layer of the sync backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// User is the internal identity a sync cycle runs for. Users are keyed by a
// stable external identity (typically a phone number) and are created lazily
// on first sync.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ExternalIdentity: unique, stable identifier supplied by the caller.
//   - SubscriptionStatus: free-form status string ("trial", "active", ...).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type User struct {
	ID                 string         `json:"id"                  gorm:"type:char(36);primaryKey"`
	ExternalIdentity   string         `json:"external_identity"   gorm:"type:varchar(64);not null;uniqueIndex:ux_users_external_identity"`
	SubscriptionStatus string         `json:"subscription_status" gorm:"type:varchar(32);not null;default:'trial'"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-"                   gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// AuditCall records one outbound call to the upstream aggregator API
// (layer A). Rows are append-only; nothing ever updates or deletes them
// except an explicit per-user cleanup.
type AuditCall struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	UserID          string    `json:"user_id"          gorm:"type:char(36);not null;index:idx_audit_user"`
	Endpoint        string    `json:"endpoint"         gorm:"type:varchar(255);not null"`
	Method          string    `json:"method"           gorm:"type:varchar(8);not null"`
	RequestPayload  string    `json:"request_payload"  gorm:"type:text"`
	ResponsePayload string    `json:"response_payload" gorm:"type:text"`
	HTTPStatus      int       `json:"http_status"      gorm:"not null"`
	LatencyMs       int64     `json:"latency_ms"       gorm:"not null"`
	CalledAt        time.Time `json:"called_at"        gorm:"index:idx_audit_user,priority:2"`

	// User is the identity the call was made on behalf of. Audit rows are
	// cascade-deleted with their user.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AuditCall.
func (AuditCall) TableName() string { return "audit_calls" }

// Provider is a financial institution as reported by the upstream payloads.
// Providers are upserted on their stable external id whenever seen.
type Provider struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	ProviderID   string    `json:"provider_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_providers_provider_id"`
	ProviderName string    `json:"provider_name" gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Provider.
func (Provider) TableName() string { return "providers" }

// Account is a canonical financial account (layer B): the normalized,
// deduplicated representation of an account independent of how many times
// its raw form appears in source payloads.
//
// The upsert conflict key is ExternalAccountID; exactly one row exists per
// external account id regardless of how often a sync cycle repeats it.
type Account struct {
	ID                string    `json:"id"                  gorm:"type:char(36);primaryKey"`
	UserID            string    `json:"user_id"             gorm:"type:char(36);not null;index:idx_accounts_user"`
	ExternalAccountID string    `json:"external_account_id" gorm:"type:varchar(128);not null;uniqueIndex:ux_accounts_external_id"`
	AccountRefNumber  string    `json:"account_ref_number"  gorm:"type:varchar(128)"`
	MaskedNumber      string    `json:"masked_number"       gorm:"type:varchar(64)"`
	AccountType       string    `json:"account_type"        gorm:"type:varchar(32);not null"`
	FIType            string    `json:"fi_type"             gorm:"type:varchar(32);not null;index:idx_accounts_fi_type"`
	ProviderID        string    `json:"provider_id"         gorm:"type:varchar(64);not null;index"`
	DataFetched       bool      `json:"data_fetched"        gorm:"not null;default:false"`
	LastFetchTime     time.Time `json:"last_fetch_time"`
	IsActive          bool      `json:"is_active"           gorm:"not null;default:true"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// User owns the account; rows cascade with their user.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string { return "accounts" }

// AccountSummary holds the per-account derived balances (layer C). One row
// per account, overwritten on each refresh; the upsert conflict key is the
// unique AccountID.
type AccountSummary struct {
	ID               string    `json:"id"                gorm:"type:char(36);primaryKey"`
	AccountID        string    `json:"account_id"        gorm:"type:char(36);not null;uniqueIndex:ux_summaries_account_id"`
	CurrentBalance   float64   `json:"current_balance"   gorm:"not null;default:0"`
	AvailableBalance float64   `json:"available_balance" gorm:"not null;default:0"`
	InterestRate     float64   `json:"interest_rate"`
	Branch           string    `json:"branch"            gorm:"type:varchar(255)"`
	IFSC             string    `json:"ifsc"              gorm:"type:varchar(16)"`
	AccountSubtype   string    `json:"account_subtype"   gorm:"type:varchar(32)"`
	LastFetchTime    time.Time `json:"last_fetch_time"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Account is the summarized canonical account. Summaries are
	// cascade-deleted with their account.
	Account Account `json:"-" gorm:"foreignKey:AccountID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AccountSummary.
func (AccountSummary) TableName() string { return "account_summaries" }

// Insight is an aggregate balance statistic over a period (layer C).
// Append-only; one row per computed period.
type Insight struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID       string    `json:"user_id"       gorm:"type:char(36);not null;index:idx_insights_user"`
	PeriodFrom   time.Time `json:"period_from"   gorm:"not null"`
	PeriodTo     time.Time `json:"period_to"     gorm:"not null"`
	Frequency    string    `json:"frequency"     gorm:"type:varchar(16);not null"`
	AvgBalance   float64   `json:"avg_balance"`
	MinBalance   float64   `json:"min_balance"`
	MaxBalance   float64   `json:"max_balance"`
	StartBalance float64   `json:"start_balance"`
	EndBalance   float64   `json:"end_balance"`
	Change       float64   `json:"change"`
	ChangePct    float64   `json:"change_pct"`
	CreatedAt    time.Time `json:"created_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Insight.
func (Insight) TableName() string { return "insights" }

// PortfolioSnapshot is an immutable point-in-time valuation of a user's
// total holdings (layer C). History is never rewritten, only appended.
type PortfolioSnapshot struct {
	ID               string    `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID           string    `json:"user_id"         gorm:"type:char(36);not null;index:idx_snapshots_user"`
	TotalNetWorth    float64   `json:"total_net_worth" gorm:"not null;default:0"`
	DepositsValue    float64   `json:"deposits_value"`
	MutualFundsValue float64   `json:"mutual_funds_value"`
	EquitiesValue    float64   `json:"equities_value"`
	ETFValue         float64   `json:"etf_value"`
	NPSValue         float64   `json:"nps_value"`
	TotalAccounts    int       `json:"total_accounts"  gorm:"not null;default:0"`
	SnapshotAt       time.Time `json:"snapshot_at"     gorm:"index:idx_snapshots_user,priority:2"`
	CreatedAt        time.Time `json:"created_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PortfolioSnapshot.
func (PortfolioSnapshot) TableName() string { return "portfolio_snapshots" }
