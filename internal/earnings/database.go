package earnings

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// UpsertRecord writes the record for its period bucket. On conflict with an
// existing bucket every measurement field is overwritten, never accumulated,
// so re-running a sync converges on the latest computation.
func (d *Database) UpsertRecord(record *EarningsPeriodRecord) error {
	record.UpdatedAt = time.Now()

	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"},
			{Name: "period_type"},
			{Name: "period_start"},
			{Name: "period_end"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"balance",
			"equity",
			"profit_loss",
			"lots_traded",
			"rebate",
			"synced_at",
			"updated_at",
		}),
	}).Create(record).Error
}

// GetRecord fetches a single period bucket
func (d *Database) GetRecord(accountID, periodType string, periodStart, periodEnd time.Time) (*EarningsPeriodRecord, error) {
	var record EarningsPeriodRecord
	err := d.db.Where(
		"account_id = ? AND period_type = ? AND period_start = ? AND period_end = ?",
		accountID, periodType, periodStart, periodEnd,
	).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListRecords returns an account's earnings history for one granularity,
// newest bucket first
func (d *Database) ListRecords(accountID, periodType string) ([]EarningsPeriodRecord, error) {
	var records []EarningsPeriodRecord
	err := d.db.Where("account_id = ? AND period_type = ?", accountID, periodType).
		Order("period_start DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CountRecords returns how many buckets exist for an account and granularity
func (d *Database) CountRecords(accountID, periodType string) (int64, error) {
	var count int64
	err := d.db.Model(&EarningsPeriodRecord{}).
		Where("account_id = ? AND period_type = ?", accountID, periodType).
		Count(&count).Error
	return count, err
}
