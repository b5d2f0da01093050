package earnings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/sikharm/moneyx-api/internal/accounts"
	"github.com/sikharm/moneyx-api/internal/auth"
	"github.com/sikharm/moneyx-api/internal/mt5"
	"github.com/sikharm/moneyx-api/pkg/response"
	"gorm.io/gorm"
)

var (
	// ErrStillDeploying signals that the account's deployment has not
	// finished; the sync short-circuits without fetching data (HTTP 202).
	ErrStillDeploying = errors.New("account deployment still in progress")

	ErrInvalidPeriodType = errors.New("period_type must be weekly or monthly")
	ErrNotProvisioned    = errors.New("account has no deployment yet")
)

// PlatformClient is the slice of the MT5 bridge client the sync pipeline needs
type PlatformClient interface {
	GetDeploymentStatus(ctx context.Context, externalID string) (*mt5.DeploymentStatus, error)
	GetAccountInfo(ctx context.Context, externalID string) (*mt5.AccountInfo, error)
	GetDealHistory(ctx context.Context, externalID string, start, end time.Time) ([]mt5.Deal, error)
}

// Service runs the account synchronization and earnings-aggregation pipeline
type Service struct {
	db       *Database
	accounts *accounts.Service
	platform PlatformClient
	now      func() time.Time
}

// NewService creates a new earnings sync service
func NewService(gormDB *gorm.DB, accountsService *accounts.Service, platform PlatformClient) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		accounts: accountsService,
		platform: platform,
		now:      time.Now,
	}
}

// GetDB exposes the database layer for handlers and tests
func (s *Service) GetDB() *Database {
	return s.db
}

// SyncAccount runs the sync pipeline for one owned account and granularity:
// status check, account-info fetch, deal-history fetch, aggregation, upsert.
// Ownership violations abort before any fetch or write.
func (s *Service) SyncAccount(ctx context.Context, userID, accountID, periodType string) (*EarningsPeriodRecord, error) {
	if !ValidPeriodType(periodType) {
		return nil, ErrInvalidPeriodType
	}

	account, err := s.accounts.GetOwnedAccount(userID, accountID)
	if err != nil {
		return nil, err
	}

	return s.syncAccount(ctx, account, periodType)
}

// SyncAccountAsAdmin runs the pipeline for any account regardless of owner.
// Reserved for internal credentials; the admin console syncs on a user's
// behalf through this path.
func (s *Service) SyncAccountAsAdmin(ctx context.Context, accountID, periodType string) (*EarningsPeriodRecord, error) {
	if !ValidPeriodType(periodType) {
		return nil, ErrInvalidPeriodType
	}

	account, err := s.accounts.GetDB().GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accounts.ErrNotFound
	}

	return s.syncAccount(ctx, account, periodType)
}

// syncAccount is the ownership-agnostic pipeline, shared with the sweep
func (s *Service) syncAccount(ctx context.Context, account *accounts.TradingAccount, periodType string) (*EarningsPeriodRecord, error) {
	logger := log.With().
		Str("account_id", account.AccountID).
		Str("period_type", periodType).
		Str("service", "earnings").
		Logger()

	if account.MT5AccountID == "" {
		return nil, ErrNotProvisioned
	}

	deployment, err := s.platform.GetDeploymentStatus(ctx, account.MT5AccountID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch deployment status")
		return nil, fmt.Errorf("failed to fetch deployment status: %w", err)
	}

	if deployment.State != mt5.StateDeployed {
		// Short-circuit: record that the deployment is still underway and
		// try again on a later sync
		if err := s.accounts.ApplyStatus(account, accounts.StatusDeploying); err != nil {
			return nil, err
		}
		logger.Info().Str("state", deployment.State).Msg("deployment not ready, sync skipped")
		return nil, ErrStillDeploying
	}

	period, err := ResolvePeriod(periodType, s.now())
	if err != nil {
		return nil, err
	}

	// Account info and deal history both degrade on upstream failure:
	// partial data beats failing the whole sync. The zero-filled record is
	// still persisted, so a provider outage shows up as a zeroed period.
	var balance, equity float64
	info, err := s.platform.GetAccountInfo(ctx, account.MT5AccountID)
	if err != nil {
		logger.Warn().Err(err).Msg("account info unavailable, defaulting balance and equity to zero")
	} else {
		balance = info.Balance
		equity = info.Equity
	}

	deals, err := s.platform.GetDealHistory(ctx, account.MT5AccountID, period.Start, period.End)
	if err != nil {
		logger.Warn().Err(err).Msg("deal history unavailable, treating as empty")
		deals = nil
	}

	agg := AggregateDeals(deals, account.RebateRatePerLot, account.IsCentAccount, balance, equity)

	record := &EarningsPeriodRecord{
		AccountID:   account.AccountID,
		PeriodType:  period.Type,
		PeriodStart: period.BucketStart,
		PeriodEnd:   period.BucketEnd,
		Balance:     agg.Balance,
		Equity:      agg.Equity,
		ProfitLoss:  agg.ProfitLoss,
		LotsTraded:  agg.LotsTraded,
		Rebate:      agg.Rebate,
		SyncedAt:    s.now(),
		CreatedAt:   s.now(),
	}

	if err := s.db.UpsertRecord(record); err != nil {
		logger.Error().Err(err).Msg("failed to upsert earnings record")
		return nil, fmt.Errorf("failed to upsert earnings record: %w", err)
	}

	if err := s.accounts.ApplyStatus(account, accounts.MapDeploymentStatus(deployment.State, deployment.Connection)); err != nil {
		return nil, err
	}

	logger.Info().
		Float64("lots_traded", record.LotsTraded).
		Float64("profit_loss", record.ProfitLoss).
		Float64("rebate", record.Rebate).
		Time("period_start", record.PeriodStart).
		Msg("account synced")

	return record, nil
}

// SyncAll runs the pipeline sequentially for every provisioned account and
// both granularities. Per-account failures are logged and counted, never
// fatal to the sweep.
func (s *Service) SyncAll(ctx context.Context) (*SyncSummary, error) {
	logger := log.With().Str("service", "earnings").Logger()

	provisioned, err := s.accounts.GetDB().ListProvisionedAccounts()
	if err != nil {
		return nil, err
	}

	summary := &SyncSummary{Total: len(provisioned)}
	logger.Info().Int("account_count", summary.Total).Msg("starting sync sweep")

	for i := range provisioned {
		account := &provisioned[i]

		synced := true
		for _, periodType := range []string{PeriodWeekly, PeriodMonthly} {
			if _, err := s.syncAccount(ctx, account, periodType); err != nil {
				synced = false
				if errors.Is(err, ErrStillDeploying) || errors.Is(err, ErrNotProvisioned) {
					summary.Skipped++
				} else {
					summary.Failed++
					logger.Error().
						Err(err).
						Str("account_id", account.AccountID).
						Str("period_type", periodType).
						Msg("account sync failed")
				}
				break
			}
		}
		if synced {
			summary.Synced++
		}
	}

	logger.Info().
		Int("synced", summary.Synced).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("sync sweep completed")

	return summary, nil
}

// GetEarnings returns an owned account's earnings history for a granularity
func (s *Service) GetEarnings(userID, accountID, periodType string) ([]EarningsPeriodRecord, error) {
	if !ValidPeriodType(periodType) {
		return nil, ErrInvalidPeriodType
	}

	if _, err := s.accounts.GetOwnedAccount(userID, accountID); err != nil {
		return nil, err
	}

	return s.db.ListRecords(accountID, periodType)
}

// GinHandlers contains HTTP handlers for sync and earnings endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func handleSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		response.NotFound(c, "Account not found")
	case errors.Is(err, accounts.ErrForbidden):
		response.Forbidden(c, "Account is owned by a different user")
	case errors.Is(err, ErrInvalidPeriodType):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotProvisioned):
		response.BadRequest(c, "Account has not been deployed yet")
	case errors.Is(err, ErrStillDeploying):
		response.Accepted(c, gin.H{"status": accounts.StatusDeploying})
	case errors.Is(err, mt5.ErrQuotaExceeded):
		response.PaymentRequired(c, "Provider account quota exceeded")
	default:
		response.Handle(c, nil, err)
	}
}

// SyncAccountHandler handles POST requests to sync one account's earnings.
// Request body: {"period_type": "weekly"|"monthly"}. Tokens carrying the
// internal permission sync any account; everyone else only their own.
func (h *GinHandlers) SyncAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PeriodType string `json:"period_type" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		claims, _ := c.Get("claims")
		accountID := c.Param("account_id")

		var record *EarningsPeriodRecord
		var err error
		if auth.HasPermission(claims, "internal") {
			record, err = h.service.SyncAccountAsAdmin(c.Request.Context(), accountID, req.PeriodType)
		} else {
			record, err = h.service.SyncAccount(c.Request.Context(), auth.GetUserID(claims), accountID, req.PeriodType)
		}
		if err != nil {
			handleSyncError(c, err)
			return
		}

		response.OK(c, record)
	}
}

// GetEarningsHandler handles GET requests for an account's earnings history
// Query parameter: period_type (defaults to weekly)
func (h *GinHandlers) GetEarningsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		periodType := c.DefaultQuery("period_type", PeriodWeekly)

		records, err := h.service.GetEarnings(c.GetString("userID"), c.Param("account_id"), periodType)
		if err != nil {
			handleSyncError(c, err)
			return
		}

		response.OK(c, records)
	}
}

// SyncAllHandler handles POST requests to sweep every provisioned account.
// Protected by internal auth; also what the cron schedule invokes.
func (h *GinHandlers) SyncAllHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := h.service.SyncAll(c.Request.Context())
		response.Handle(c, summary, err)
	}
}
