package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sikharm/moneyx-api/internal/mt5"
	"github.com/sikharm/moneyx-api/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("account not found")
	ErrForbidden         = errors.New("account is owned by a different user")
	ErrInvalidRebateRate = errors.New("rebate rate must not be negative")
)

// PlatformClient is the slice of the MT5 bridge client the registry needs
type PlatformClient interface {
	GetDeploymentStatus(ctx context.Context, externalID string) (*mt5.DeploymentStatus, error)
	CreateDeployment(ctx context.Context, nickname string) (string, error)
	Redeploy(ctx context.Context, externalID string) error
}

// Service handles trading-account registration, ownership and status
type Service struct {
	db       *Database
	platform PlatformClient
}

// NewService creates a new account registry service
func NewService(gormDB *gorm.DB, platform PlatformClient) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		platform: platform,
	}
}

// GetDB exposes the database layer for background processors
func (s *Service) GetDB() *Database {
	return s.db
}

// CreateAccountRequest is the payload for registering an account
type CreateAccountRequest struct {
	Nickname         string  `json:"nickname" binding:"required"`
	RebateRatePerLot float64 `json:"rebate_rate_per_lot"`
	IsCentAccount    bool    `json:"is_cent_account"`
}

// CreateAccount registers a new trading account in pending state
func (s *Service) CreateAccount(userID string, req CreateAccountRequest) (*TradingAccount, error) {
	if req.RebateRatePerLot < 0 {
		return nil, ErrInvalidRebateRate
	}

	account := &TradingAccount{
		AccountID:        uuid.New().String(),
		UserID:           userID,
		Nickname:         req.Nickname,
		RebateRatePerLot: req.RebateRatePerLot,
		IsCentAccount:    req.IsCentAccount,
		Status:           StatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if err := s.db.CreateAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccounts returns all accounts owned by the user
func (s *Service) ListAccounts(userID string) ([]TradingAccount, error) {
	return s.db.ListAccountsByUser(userID)
}

// GetOwnedAccount resolves an account and verifies ownership
func (s *Service) GetOwnedAccount(userID, accountID string) (*TradingAccount, error) {
	account, err := s.db.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrNotFound
	}
	if account.UserID != userID {
		return nil, ErrForbidden
	}
	return account, nil
}

// DeleteAccount removes an owned account and cascades to its earnings records
func (s *Service) DeleteAccount(userID, accountID string) error {
	if _, err := s.GetOwnedAccount(userID, accountID); err != nil {
		return err
	}
	return s.db.DeleteAccountCascade(accountID)
}

// Deploy provisions a deployment for the account, or redeploys an existing
// one. This is the only path that may move status backward: redeploying an
// account explicitly resets it to deploying.
func (s *Service) Deploy(ctx context.Context, userID, accountID string) (*TradingAccount, error) {
	logger := log.With().
		Str("account_id", accountID).
		Str("service", "accounts").
		Logger()

	account, err := s.GetOwnedAccount(userID, accountID)
	if err != nil {
		return nil, err
	}

	if account.MT5AccountID == "" {
		externalID, err := s.platform.CreateDeployment(ctx, account.Nickname)
		if err != nil {
			logger.Error().Err(err).Msg("failed to provision deployment")
			return nil, err
		}
		account.MT5AccountID = externalID
		logger.Info().Str("mt5_account_id", externalID).Msg("provisioned new deployment")
	} else {
		if err := s.platform.Redeploy(ctx, account.MT5AccountID); err != nil {
			logger.Error().Err(err).Msg("failed to redeploy account")
			return nil, err
		}
		logger.Info().Str("mt5_account_id", account.MT5AccountID).Msg("redeploy requested")
	}

	account.Status = StatusDeploying
	account.UpdatedAt = time.Now()
	if err := s.db.UpdateAccount(account); err != nil {
		return nil, err
	}

	return account, nil
}

// CheckStatus reconciles the stored status with the provider's view on
// demand. Unprovisioned accounts are returned as-is.
func (s *Service) CheckStatus(ctx context.Context, userID, accountID string) (*TradingAccount, error) {
	account, err := s.GetOwnedAccount(userID, accountID)
	if err != nil {
		return nil, err
	}

	if account.MT5AccountID == "" {
		return account, nil
	}

	deployment, err := s.platform.GetDeploymentStatus(ctx, account.MT5AccountID)
	if err != nil {
		return nil, err
	}

	status := MapDeploymentStatus(deployment.State, deployment.Connection)
	if err := s.ApplyStatus(account, status); err != nil {
		return nil, err
	}

	return account, nil
}

// ApplyStatus writes the computed status back, but only when it actually
// changes and the transition is allowed
func (s *Service) ApplyStatus(account *TradingAccount, status string) error {
	if !allowedTransition(account.Status, status) {
		return nil
	}

	if err := s.db.UpdateAccountStatus(account.AccountID, status); err != nil {
		return err
	}
	account.Status = status
	account.UpdatedAt = time.Now()
	return nil
}

// GinHandlers contains HTTP handlers for account endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// handleAccountError maps registry errors to their HTTP responses
func handleAccountError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "Account not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, "Account is owned by a different user")
	case errors.Is(err, ErrInvalidRebateRate):
		response.BadRequest(c, err.Error())
	case errors.Is(err, mt5.ErrQuotaExceeded):
		response.PaymentRequired(c, "MT5 provider requires billing")
	default:
		response.Handle(c, nil, err)
	}
}

// CreateAccountHandler handles POST requests to register a trading account
func (h *GinHandlers) CreateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		account, err := h.service.CreateAccount(c.GetString("userID"), req)
		if err != nil {
			handleAccountError(c, err)
			return
		}

		response.Success(c, account)
	}
}

// ListAccountsHandler handles GET requests for the caller's accounts
func (h *GinHandlers) ListAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := h.service.ListAccounts(c.GetString("userID"))
		response.Handle(c, accounts, err)
	}
}

// GetAccountHandler handles GET requests for a single owned account
func (h *GinHandlers) GetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := h.service.GetOwnedAccount(c.GetString("userID"), c.Param("account_id"))
		if err != nil {
			handleAccountError(c, err)
			return
		}
		response.Success(c, account)
	}
}

// DeleteAccountHandler handles DELETE requests; earnings records cascade
func (h *GinHandlers) DeleteAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.DeleteAccount(c.GetString("userID"), c.Param("account_id")); err != nil {
			handleAccountError(c, err)
			return
		}
		response.OK(c, gin.H{"message": "account deleted"})
	}
}

// DeployAccountHandler handles POST requests to (re)deploy an account
func (h *GinHandlers) DeployAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := h.service.Deploy(c.Request.Context(), c.GetString("userID"), c.Param("account_id"))
		if err != nil {
			handleAccountError(c, err)
			return
		}
		response.Success(c, account)
	}
}

// CheckStatusHandler handles GET requests for on-demand status reconciliation
func (h *GinHandlers) CheckStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := h.service.CheckStatus(c.Request.Context(), c.GetString("userID"), c.Param("account_id"))
		if err != nil {
			handleAccountError(c, err)
			return
		}
		response.OK(c, account)
	}
}
