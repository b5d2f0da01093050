package accounts

import (
	"context"
	"fmt"
	"testing"

	"github.com/sikharm/moneyx-api/internal/mt5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubPlatform struct {
	status      *mt5.DeploymentStatus
	statusErr   error
	createdID   string
	createErr   error
	redeploys   int
	deployments int
}

func (s *stubPlatform) GetDeploymentStatus(_ context.Context, _ string) (*mt5.DeploymentStatus, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.status, nil
}

func (s *stubPlatform) CreateDeployment(_ context.Context, _ string) (string, error) {
	s.deployments++
	if s.createErr != nil {
		return "", s.createErr
	}
	return s.createdID, nil
}

func (s *stubPlatform) Redeploy(_ context.Context, _ string) error {
	s.redeploys++
	return nil
}

func setupService(t *testing.T, platform PlatformClient) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&TradingAccount{}))
	// Cascade deletes address the earnings table by name
	require.NoError(t, db.Exec(
		`CREATE TABLE IF NOT EXISTS earnings_period_records (id INTEGER PRIMARY KEY, account_id TEXT)`,
	).Error)

	return NewService(db, platform)
}

func TestMapDeploymentStatus(t *testing.T) {
	tests := []struct {
		state      string
		connection string
		want       string
	}{
		{mt5.StateDeployed, mt5.ConnectionConnected, StatusConnected},
		{mt5.StateDeployed, mt5.ConnectionDisconnected, StatusDeployed},
		{mt5.StateDeployed, "", StatusDeployed},
		{mt5.StateDeploying, "", StatusDeploying},
		{mt5.StateDeploying, mt5.ConnectionConnected, StatusDeploying},
		{mt5.StateUndeployed, "", StatusError},
		{"DRAFT", "", StatusError},
	}

	for _, tt := range tests {
		got := MapDeploymentStatus(tt.state, tt.connection)
		assert.Equal(t, tt.want, got, "state=%s connection=%s", tt.state, tt.connection)
	}
}

func TestAllowedTransition(t *testing.T) {
	assert.True(t, allowedTransition(StatusPending, StatusDeploying))
	assert.True(t, allowedTransition(StatusDeploying, StatusDeployed))
	assert.True(t, allowedTransition(StatusDeployed, StatusConnected))
	assert.True(t, allowedTransition(StatusPending, StatusConnected))
	assert.True(t, allowedTransition(StatusDeployed, StatusError))

	// A connection drop moves connected back to deployed
	assert.True(t, allowedTransition(StatusConnected, StatusDeployed))

	// No writes for no-op moves or deployment regressions
	assert.False(t, allowedTransition(StatusConnected, StatusConnected))
	assert.False(t, allowedTransition(StatusDeployed, StatusDeploying))
	assert.False(t, allowedTransition(StatusConnected, StatusDeploying))
	assert.False(t, allowedTransition(StatusDeployed, StatusPending))

	// Errored accounts only recover via explicit redeploy
	assert.False(t, allowedTransition(StatusError, StatusConnected))
	assert.False(t, allowedTransition(StatusError, StatusError))
}

func TestCreateAccount(t *testing.T) {
	svc := setupService(t, &stubPlatform{})

	account, err := svc.CreateAccount("user-a", CreateAccountRequest{
		Nickname:         "main",
		RebateRatePerLot: 3.5,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, account.AccountID)
	assert.Equal(t, StatusPending, account.Status)
	assert.Empty(t, account.MT5AccountID)
}

func TestCreateAccountNegativeRate(t *testing.T) {
	svc := setupService(t, &stubPlatform{})

	_, err := svc.CreateAccount("user-a", CreateAccountRequest{
		Nickname:         "main",
		RebateRatePerLot: -0.5,
	})
	assert.ErrorIs(t, err, ErrInvalidRebateRate)
}

func TestGetOwnedAccountOwnership(t *testing.T) {
	svc := setupService(t, &stubPlatform{})

	account, err := svc.CreateAccount("user-a", CreateAccountRequest{Nickname: "main"})
	require.NoError(t, err)

	_, err = svc.GetOwnedAccount("user-b", account.AccountID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetOwnedAccount("user-a", "no-such-account")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.GetOwnedAccount("user-a", account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, account.AccountID, got.AccountID)
}

func TestDeployProvisionsOnce(t *testing.T) {
	platform := &stubPlatform{createdID: "ext-42"}
	svc := setupService(t, platform)

	account, err := svc.CreateAccount("user-a", CreateAccountRequest{Nickname: "main"})
	require.NoError(t, err)

	deployed, err := svc.Deploy(context.Background(), "user-a", account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "ext-42", deployed.MT5AccountID)
	assert.Equal(t, StatusDeploying, deployed.Status)
	assert.Equal(t, 1, platform.deployments)

	// Second deploy redeploys the existing deployment
	redeployed, err := svc.Deploy(context.Background(), "user-a", account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "ext-42", redeployed.MT5AccountID)
	assert.Equal(t, 1, platform.deployments)
	assert.Equal(t, 1, platform.redeploys)
}

func TestDeployQuotaExceeded(t *testing.T) {
	platform := &stubPlatform{createErr: mt5.ErrQuotaExceeded}
	svc := setupService(t, platform)

	account, err := svc.CreateAccount("user-a", CreateAccountRequest{Nickname: "main"})
	require.NoError(t, err)

	_, err = svc.Deploy(context.Background(), "user-a", account.AccountID)
	assert.ErrorIs(t, err, mt5.ErrQuotaExceeded)

	stored, err := svc.GetDB().GetAccount(account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status, "failed deploy leaves status untouched")
}

func TestDeployForbiddenDoesNotProvision(t *testing.T) {
	platform := &stubPlatform{createdID: "ext-42"}
	svc := setupService(t, platform)

	account, err := svc.CreateAccount("user-a", CreateAccountRequest{Nickname: "main"})
	require.NoError(t, err)

	_, err = svc.Deploy(context.Background(), "user-b", account.AccountID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, platform.deployments)
}

func TestCheckStatusWritesBackOnChange(t *testing.T) {
	platform := &stubPlatform{
		createdID: "ext-42",
		status:    &mt5.DeploymentStatus{State: mt5.StateDeployed, Connection: mt5.ConnectionConnected},
	}
	svc := setupService(t, platform)

	account, err := svc.CreateAccount("user-a", CreateAccountRequest{Nickname: "main"})
	require.NoError(t, err)
	_, err = svc.Deploy(context.Background(), "user-a", account.AccountID)
	require.NoError(t, err)

	checked, err := svc.CheckStatus(context.Background(), "user-a", account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, StatusConnected, checked.Status)

	stored, err := svc.GetDB().GetAccount(account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, StatusConnected, stored.Status)
}

func TestCheckStatusConnectionDrop(t *testing.T) {
	platform := &stubPlatform{
		createdID: "ext-42",
		status:    &mt5.DeploymentStatus{State: mt5.StateDeployed, Connection: mt5.ConnectionConnected},
	}
	svc := setupService(t, platform)

	account, err := svc.CreateAccount("user-a", CreateAccountRequest{Nickname: "main"})
	require.NoError(t, err)
	_, err = svc.Deploy(context.Background(), "user-a", account.AccountID)
	require.NoError(t, err)
	_, err = svc.CheckStatus(context.Background(), "user-a", account.AccountID)
	require.NoError(t, err)

	// Provider reports the connection gone while the deployment stays up
	platform.status = &mt5.DeploymentStatus{State: mt5.StateDeployed, Connection: mt5.ConnectionDisconnected}

	checked, err := svc.CheckStatus(context.Background(), "user-a", account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeployed, checked.Status)

	stored, err := svc.GetDB().GetAccount(account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeployed, stored.Status, "connection drop is written back")
}

func TestCheckStatusUnprovisioned(t *testing.T) {
	svc := setupService(t, &stubPlatform{})

	account, err := svc.CreateAccount("user-a", CreateAccountRequest{Nickname: "main"})
	require.NoError(t, err)

	checked, err := svc.CheckStatus(context.Background(), "user-a", account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, checked.Status)
}
