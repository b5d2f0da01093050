package accounts

import (
	"time"

	"github.com/sikharm/moneyx-api/internal/mt5"
	"gorm.io/gorm"
)

// Account statuses, ordered by lifecycle progress
const (
	StatusPending   = "pending"
	StatusDeploying = "deploying"
	StatusDeployed  = "deployed"
	StatusConnected = "connected"
	StatusError     = "error"
)

// TradingAccount is a user's MT5 trading account registration
type TradingAccount struct {
	gorm.Model       `json:"-"`
	AccountID        string    `gorm:"uniqueIndex" json:"account_id"`
	UserID           string    `gorm:"index" json:"user_id"`
	Nickname         string    `json:"nickname"`
	MT5AccountID     string    `json:"mt5_account_id,omitempty"` // empty until provisioned
	RebateRatePerLot float64   `json:"rebate_rate_per_lot"`
	IsCentAccount    bool      `json:"is_cent_account"`
	Status           string    `json:"status"` // pending, deploying, deployed, connected, error
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

var statusRank = map[string]int{
	StatusPending:   0,
	StatusDeploying: 1,
	StatusDeployed:  2,
	StatusConnected: 3,
}

// MapDeploymentStatus translates the provider's deployment and connection
// state into an internal account status
func MapDeploymentStatus(state, connection string) string {
	switch state {
	case mt5.StateDeployed:
		if connection == mt5.ConnectionConnected {
			return StatusConnected
		}
		return StatusDeployed
	case mt5.StateDeploying:
		return StatusDeploying
	default:
		return StatusError
	}
}

// allowedTransition reports whether the account may move from -> to without
// an explicit redeploy. The deployment dimension is monotonic: a deployed
// account never silently falls back to deploying or pending. The connection
// dimension is not: connected drops back to deployed when the provider
// reports a disconnect, since polling is the only way we learn of one.
func allowedTransition(from, to string) bool {
	if from == to {
		return false
	}
	if to == StatusError {
		return from != StatusError
	}
	if from == StatusError {
		// Only a redeploy recovers an errored account
		return false
	}
	if from == StatusConnected && to == StatusDeployed {
		// Connection drop
		return true
	}
	return statusRank[to] > statusRank[from]
}
