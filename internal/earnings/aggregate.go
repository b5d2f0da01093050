package earnings

import (
	"github.com/sikharm/moneyx-api/internal/mt5"
)

// Aggregate is the reduction of a deal history plus live account state
type Aggregate struct {
	Balance    float64
	Equity     float64
	ProfitLoss float64
	LotsTraded float64
	Rebate     float64
}

// AggregateDeals reduces a deal list into traded volume and net P/L, applies
// cent-account conversion and derives the rebate.
//
// Volume only counts buy/sell deals, but profit counts for any deal type
// with a non-zero profit field (swaps and balance operations still affect
// P/L). This asymmetry matches the upstream accounting and is intentional.
//
// Cent accounts report balance, equity and profit in 1/100th units, so those
// three are divided by 100. Volume is lots on every account type and is
// never converted; the rebate therefore uses the unconverted volume.
func AggregateDeals(deals []mt5.Deal, ratePerLot float64, isCentAccount bool, rawBalance, rawEquity float64) Aggregate {
	var lotsTraded, profitLoss float64

	for _, deal := range deals {
		if deal.IsTrade() {
			lotsTraded += deal.Volume
		}
		if deal.Profit != 0 {
			profitLoss += deal.Profit
		}
	}

	balance := rawBalance
	equity := rawEquity
	if isCentAccount {
		balance /= 100
		equity /= 100
		profitLoss /= 100
	}

	return Aggregate{
		Balance:    balance,
		Equity:     equity,
		ProfitLoss: profitLoss,
		LotsTraded: lotsTraded,
		Rebate:     lotsTraded * ratePerLot,
	}
}
