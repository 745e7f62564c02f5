package x402

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a smallest-unit amount with all asset decimals,
// e.g. 500000 with 6 decimals and symbol USDC becomes "0.500000 USDC".
func FormatAmount(amount *big.Int, decimals int, symbol string) string {
	if amount == nil {
		amount = new(big.Int)
	}
	value := decimal.NewFromBigInt(amount, -int32(decimals)).StringFixed(int32(decimals))
	if symbol == "" {
		return value
	}
	return value + " " + symbol
}
