package mt5

// Deployment states reported by the MT5 bridge provider
const (
	StateDeployed   = "DEPLOYED"
	StateDeploying  = "DEPLOYING"
	StateUndeployed = "UNDEPLOYED"
)

// Connection states reported alongside a DEPLOYED account
const (
	ConnectionConnected    = "CONNECTED"
	ConnectionDisconnected = "DISCONNECTED"
)

// Deal types as reported in the provider's deal history
const (
	DealTypeBuy  = "DEAL_TYPE_BUY"
	DealTypeSell = "DEAL_TYPE_SELL"
)

// DeploymentStatus is the provider's view of an account deployment
type DeploymentStatus struct {
	ID         string `json:"_id"`
	State      string `json:"state"`
	Connection string `json:"connectionStatus"`
}

// AccountInfo carries the live balance and equity of a deployed account.
// Values are raw provider units; cent-account conversion happens downstream.
type AccountInfo struct {
	Balance float64 `json:"balance"`
	Equity  float64 `json:"equity"`
}

// Deal is a single historical trade deal. Only buy/sell deals carry traded
// volume, but any deal may carry a profit figure (swaps, commissions,
// balance operations).
type Deal struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Volume float64 `json:"volume"`
	Profit float64 `json:"profit"`
}

// IsTrade reports whether the deal contributes traded volume
func (d Deal) IsTrade() bool {
	return d.Type == DealTypeBuy || d.Type == DealTypeSell
}
