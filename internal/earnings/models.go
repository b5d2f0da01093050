package earnings

import (
	"time"

	"gorm.io/gorm"
)

// Period granularities
const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// ValidPeriodType reports whether t is a supported granularity
func ValidPeriodType(t string) bool {
	return t == PeriodWeekly || t == PeriodMonthly
}

// EarningsPeriodRecord holds the synced measurements for one account over
// one period bucket. The composite unique index is the idempotence anchor:
// re-syncing a period overwrites this row instead of adding another.
// All monetary fields are stored in standard units, post cent-conversion.
type EarningsPeriodRecord struct {
	gorm.Model  `json:"-"`
	AccountID   string    `gorm:"uniqueIndex:idx_earnings_bucket" json:"account_id"`
	PeriodType  string    `gorm:"uniqueIndex:idx_earnings_bucket" json:"period_type"`
	PeriodStart time.Time `gorm:"uniqueIndex:idx_earnings_bucket" json:"period_start"`
	PeriodEnd   time.Time `gorm:"uniqueIndex:idx_earnings_bucket" json:"period_end"`
	Balance     float64   `json:"balance"`
	Equity      float64   `json:"equity"`
	ProfitLoss  float64   `json:"profit_loss"`
	LotsTraded  float64   `json:"lots_traded"`
	Rebate      float64   `json:"rebate"`
	SyncedAt    time.Time `json:"synced_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SyncSummary reports the outcome of a sync-all sweep
type SyncSummary struct {
	Total   int `json:"total"`
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
