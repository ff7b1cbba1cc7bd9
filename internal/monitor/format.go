package monitor

import (
	"fmt"
	"math/big"
)

var (
	fixedPointOne = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	hundred       = big.NewInt(100)
)

var chainNames = map[uint64]string{
	1:      "Mainnet",
	4:      "Rinkeby",
	5:      "Goerli",
	10:     "Optimism",
	28:     "Boba Rinkeby",
	42:     "Kovan",
	69:     "Optimism Kovan",
	137:    "Polygon",
	288:    "Boba",
	42161:  "Arbitrum",
	421611: "Arbitrum Rinkeby",
}

func chainName(chainID uint64) string {
	if name, ok := chainNames[chainID]; ok {
		return name
	}
	return fmt.Sprintf("chain %d", chainID)
}

// thresholdFixedPoint scales an integer percent to the 1e18 fixed point used
// by pool utilization and fee fields.
func thresholdFixedPoint(percent uint64) *big.Int {
	scaled := new(big.Int).Mul(new(big.Int).SetUint64(percent), fixedPointOne)
	return scaled.Quo(scaled, hundred)
}

// formatPercent renders a 1e18 fixed point ratio as a percentage with two decimals.
func formatPercent(value *big.Int) string {
	if value == nil {
		return "0.00%"
	}
	scaled := new(big.Int).Mul(value, hundred)
	return new(big.Rat).SetFrac(scaled, fixedPointOne).FloatString(2) + "%"
}

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	text := new(big.Rat).SetFrac(abs, denom).FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

func ratioFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	ratio, _ := new(big.Rat).SetFrac(value, fixedPointOne).Float64()
	return ratio
}
