package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatUnits renders an integer amount with the given number of decimals.
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// FormatEther renders wei as whole native units.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, 18)
}
