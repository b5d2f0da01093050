package accounts

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Reconciler periodically polls the provider's deployment state for every
// provisioned account and writes the mapped status back on change
type Reconciler struct {
	service  *Service
	platform PlatformClient
	interval time.Duration
}

func NewReconciler(service *Service, platform PlatformClient, interval time.Duration) *Reconciler {
	return &Reconciler{
		service:  service,
		platform: platform,
		interval: interval,
	}
}

// Start begins the reconciliation loop
func (r *Reconciler) Start(ctx context.Context) {
	logger := log.With().Str("component", "status_reconciler").Logger()
	logger.Info().Dur("interval", r.interval).Msg("starting status reconciler")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down status reconciler")
			return
		case <-ticker.C:
			if err := r.reconcileAll(ctx); err != nil {
				logger.Error().Err(err).Msg("failed to reconcile account statuses")
			}
		}
	}
}

func (r *Reconciler) reconcileAll(ctx context.Context) error {
	logger := log.With().Str("component", "status_reconciler").Logger()

	accounts, err := r.service.GetDB().ListProvisionedAccounts()
	if err != nil {
		return err
	}

	logger.Debug().Int("account_count", len(accounts)).Msg("reconciling account statuses")

	for i := range accounts {
		account := &accounts[i]

		deployment, err := r.platform.GetDeploymentStatus(ctx, account.MT5AccountID)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("account_id", account.AccountID).
				Msg("failed to fetch deployment status, skipping account")
			continue
		}

		status := MapDeploymentStatus(deployment.State, deployment.Connection)
		if status == account.Status {
			continue
		}

		if err := r.service.ApplyStatus(account, status); err != nil {
			logger.Error().
				Err(err).
				Str("account_id", account.AccountID).
				Msg("failed to update account status")
			continue
		}

		logger.Info().
			Str("account_id", account.AccountID).
			Str("status", account.Status).
			Msg("account status updated")
	}

	return nil
}
