package database

import (
	"fmt"

	"github.com/sikharm/moneyx-api/internal/accounts"
	"github.com/sikharm/moneyx-api/internal/database/migrations"
	"github.com/sikharm/moneyx-api/internal/earnings"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate schemas
	err = db.AutoMigrate(
		&accounts.TradingAccount{},
		&earnings.EarningsPeriodRecord{},
	)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddEarningsIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
