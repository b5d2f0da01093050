package migrations

import (
	"gorm.io/gorm"
)

// AddEarningsIndexes creates the secondary indexes used by earnings queries.
// The composite unique index on the period bucket is created by AutoMigrate
// from the model tags; these cover the common read paths.
func AddEarningsIndexes(db *gorm.DB) error {
	indexes := []string{
		// Index for per-account history listings
		`CREATE INDEX IF NOT EXISTS idx_earnings_account_type
		 ON earnings_period_records(account_id, period_type)`,

		// Index for synced_at (useful for staleness queries)
		`CREATE INDEX IF NOT EXISTS idx_earnings_synced_at
		 ON earnings_period_records(synced_at)`,

		// Index for account status filtering by the reconciler
		`CREATE INDEX IF NOT EXISTS idx_trading_accounts_status
		 ON trading_accounts(status)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
