package farm

import "math/big"

const (
	// CommonFundID identifies the non-lockup reward fund every deposit
	// subscribes to.
	CommonFundID = 0
	// LockupFundID identifies the lockup reward fund. It only exists on
	// farms configured with a non-zero cooldown period.
	LockupFundID = 1

	// MaxNumRewards caps the reward tokens a single farm can track.
	MaxNumRewards = 4

	// MinCooldownPeriod and MaxCooldownPeriod bound the configurable
	// cooldown, expressed in days.
	MinCooldownPeriod = 1
	MaxCooldownPeriod = 30

	// SecondsPerDay converts the day-denominated cooldown period into the
	// second-denominated expiry stamp on a deposit.
	SecondsPerDay = 86400
)

// Precision is the fixed-point scale used by the per-share accumulators.
// Reward rates are wei-per-second figures; scaling by 1e18 keeps per-share
// values exact for small rates over large liquidity totals.
var Precision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// RecoverMax is the sentinel amount accepted by RecoverRewardFunds to drain
// exactly the uncommitted reward balance.
var RecoverMax = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func copyBigInts(vs []*big.Int) []*big.Int {
	if vs == nil {
		return nil
	}
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = copyBigInt(v)
	}
	return out
}

func zeroBigInts(n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = big.NewInt(0)
	}
	return out
}
