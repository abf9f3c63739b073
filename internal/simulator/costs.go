package simulator

import (
	"github.com/shopspring/decimal"

	"github.com/wonny/chronos/internal/contracts"
)

// A-share fee schedule. Commission and transfer fee apply to both
// directions; stamp tax is sell-side only. Floors are absolute yuan
// amounts.
var (
	commissionRate  = decimal.NewFromFloat(0.0003)
	commissionFloor = decimal.NewFromInt(5)
	stampTaxRate    = decimal.NewFromFloat(0.001)
	transferRate    = decimal.NewFromFloat(0.00002)
	transferFloor   = decimal.NewFromInt(1)
	slippageRate    = decimal.NewFromFloat(0.001)
)

// CostBreakdown itemizes the fees of one trade.
type CostBreakdown struct {
	Commission  float64
	StampTax    float64
	TransferFee float64
	Slippage    float64
}

// Total is the sum of all fee components.
func (c CostBreakdown) Total() float64 {
	return c.Commission + c.StampTax + c.TransferFee + c.Slippage
}

// CalculateCosts computes the fee breakdown for a trade of the given
// notional value. Fee arithmetic runs on decimals so the floors apply
// exactly (a one-yuan notional still pays the full 5 yuan commission
// and 1 yuan transfer fee).
func CalculateCosts(notional float64, side contracts.SignalType) CostBreakdown {
	n := decimal.NewFromFloat(notional)

	commission := n.Mul(commissionRate)
	if commission.LessThan(commissionFloor) {
		commission = commissionFloor
	}

	transfer := n.Mul(transferRate)
	if transfer.LessThan(transferFloor) {
		transfer = transferFloor
	}

	stamp := decimal.Zero
	if side == contracts.SignalSell {
		stamp = n.Mul(stampTaxRate)
	}

	slippage := n.Mul(slippageRate)

	return CostBreakdown{
		Commission:  commission.InexactFloat64(),
		StampTax:    stamp.InexactFloat64(),
		TransferFee: transfer.InexactFloat64(),
		Slippage:    slippage.InexactFloat64(),
	}
}
