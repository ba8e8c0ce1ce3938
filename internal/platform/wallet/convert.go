package wallet

import "math/big"

// USDC carries 6 decimals; one cent is 10^4 base units.
var weiPerCent = big.NewInt(10_000)

// CentsToWei converts USD cents to USDC base units.
func CentsToWei(cents int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(cents), weiPerCent)
}

// WeiToCents converts USDC base units to USD cents, truncating sub-cent
// dust. Balances beyond int64 cents are clamped.
func WeiToCents(wei *big.Int) int64 {
	cents := new(big.Int).Quo(wei, weiPerCent)
	if !cents.IsInt64() {
		return int64(^uint64(0) >> 1)
	}
	return cents.Int64()
}
