package accounts

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateAccount(account *TradingAccount) error {
	return d.db.Create(account).Error
}

func (d *Database) GetAccount(accountID string) (*TradingAccount, error) {
	var account TradingAccount
	if err := d.db.Where("account_id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (d *Database) ListAccountsByUser(userID string) ([]TradingAccount, error) {
	var accounts []TradingAccount
	if err := d.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListProvisionedAccounts returns every account that has an external
// deployment, i.e. the set the reconciler and sync sweep operate on
func (d *Database) ListProvisionedAccounts() ([]TradingAccount, error) {
	var accounts []TradingAccount
	if err := d.db.Where("mt5_account_id <> ''").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (d *Database) UpdateAccount(account *TradingAccount) error {
	return d.db.Save(account).Error
}

func (d *Database) UpdateAccountStatus(accountID, status string) error {
	result := d.db.Model(&TradingAccount{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errors.New("account not found")
	}

	return nil
}

// DeleteAccountCascade removes the account and its earnings records in a
// single transaction. The earnings table is addressed by name because the
// earnings package sits above this one in the dependency order.
func (d *Database) DeleteAccountCascade(accountID string) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Exec("DELETE FROM earnings_period_records WHERE account_id = ?", accountID).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Where("account_id = ?", accountID).Delete(&TradingAccount{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
