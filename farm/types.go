package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RewardTokenData describes one reward token supplied at initialization.
type RewardTokenData struct {
	Token   common.Address `json:"token"`
	Manager common.Address `json:"manager"`
}

// RewardToken is the registry entry for one reward token. Accumulators and
// running totals are indexed by fund id.
type RewardToken struct {
	Token   common.Address `json:"token"`
	Manager common.Address `json:"manager"`

	// AccRewardPerShare is the 1e18-scaled rewards-per-unit-liquidity
	// accumulator, one entry per fund. It never decreases.
	AccRewardPerShare []*big.Int `json:"accRewardPerShare"`

	Funded        *big.Int `json:"funded"`
	TotalAccrued  *big.Int `json:"totalAccrued"`
	TotalClaimed  *big.Int `json:"totalClaimed"`
}

// Clone returns a deep copy protecting internal big.Int references.
func (t *RewardToken) Clone() *RewardToken {
	if t == nil {
		return nil
	}
	return &RewardToken{
		Token:             t.Token,
		Manager:           t.Manager,
		AccRewardPerShare: copyBigInts(t.AccRewardPerShare),
		Funded:            copyBigInt(t.Funded),
		TotalAccrued:      copyBigInt(t.TotalAccrued),
		TotalClaimed:      copyBigInt(t.TotalClaimed),
	}
}

// RewardFund is one of the two liquidity pools rewards accrue against.
type RewardFund struct {
	// TotalLiquidity sums the liquidity of every deposit currently
	// subscribed to this fund.
	TotalLiquidity *big.Int `json:"totalLiquidity"`
	// RewardsPerSecond holds the wei-per-second emission assigned to this
	// fund, one entry per registered reward token.
	RewardsPerSecond []*big.Int `json:"rewardsPerSecond"`
}

// Clone returns a deep copy of the fund.
func (f *RewardFund) Clone() *RewardFund {
	if f == nil {
		return nil
	}
	return &RewardFund{
		TotalLiquidity:   copyBigInt(f.TotalLiquidity),
		RewardsPerSecond: copyBigInts(f.RewardsPerSecond),
	}
}

// Subscription links a deposit to a fund it earns from. RewardDebt carries the
// 1e18-scaled checkpoint (liquidity * accRewardPerShare / 1e18) per token so
// only rewards accrued after subscribing are ever owed.
type Subscription struct {
	FundID     uint8      `json:"fundId"`
	RewardDebt []*big.Int `json:"rewardDebt"`
	// RewardsClaimed tracks per-token rewards paid out through this
	// subscription over its lifetime.
	RewardsClaimed []*big.Int `json:"rewardsClaimed"`
}

// Clone returns a deep copy of the subscription.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	return &Subscription{
		FundID:         s.FundID,
		RewardDebt:     copyBigInts(s.RewardDebt),
		RewardsClaimed: copyBigInts(s.RewardsClaimed),
	}
}

// Deposit is one staked position owned by a single account. The cooldown
// period is pinned at creation and never tracks later farm-level updates.
type Deposit struct {
	Liquidity      *big.Int        `json:"liquidity"`
	DepositTime    uint64          `json:"depositTime"`
	CooldownPeriod uint64          `json:"cooldownPeriod"`
	ExpiryDate     uint64          `json:"expiryDate"`
	Locked         bool            `json:"locked"`
	Subscriptions  []*Subscription `json:"subscriptions"`
	// TotalRewardsClaimed aggregates claims per reward token across every
	// fund this deposit was ever subscribed to.
	TotalRewardsClaimed []*big.Int `json:"totalRewardsClaimed"`
}

// Clone returns a deep copy of the deposit.
func (d *Deposit) Clone() *Deposit {
	if d == nil {
		return nil
	}
	clone := &Deposit{
		Liquidity:           copyBigInt(d.Liquidity),
		DepositTime:         d.DepositTime,
		CooldownPeriod:      d.CooldownPeriod,
		ExpiryDate:          d.ExpiryDate,
		Locked:              d.Locked,
		TotalRewardsClaimed: copyBigInts(d.TotalRewardsClaimed),
	}
	if d.Subscriptions != nil {
		clone.Subscriptions = make([]*Subscription, len(d.Subscriptions))
		for i, sub := range d.Subscriptions {
			clone.Subscriptions[i] = sub.Clone()
		}
	}
	return clone
}

func (d *Deposit) subscription(fundID uint8) *Subscription {
	for _, sub := range d.Subscriptions {
		if sub.FundID == fundID {
			return sub
		}
	}
	return nil
}

func (d *Deposit) dropSubscription(fundID uint8) {
	for i, sub := range d.Subscriptions {
		if sub.FundID == fundID {
			d.Subscriptions = append(d.Subscriptions[:i], d.Subscriptions[i+1:]...)
			return
		}
	}
}

// FarmState is the full mutable aggregate owned by a single engine instance.
type FarmState struct {
	Owner          common.Address `json:"owner"`
	LiquidityToken common.Address `json:"liquidityToken"`

	FarmStartTime uint64 `json:"farmStartTime"`
	// CooldownPeriod is the farm-level default, in days, stamped into new
	// deposits. Zero means the farm has no lockup fund at all.
	CooldownPeriod     uint64 `json:"cooldownPeriod"`
	LastFundUpdateTime uint64 `json:"lastFundUpdateTime"`

	Paused bool `json:"paused"`
	Closed bool `json:"closed"`

	RewardTokens []*RewardToken         `json:"rewardTokens"`
	RewardFunds  []*RewardFund          `json:"rewardFunds"`
	Deposits     map[string][]*Deposit  `json:"deposits"`
}

// HasLockup reports whether the farm was created with lockup support.
func (s *FarmState) HasLockup() bool { return s != nil && s.CooldownPeriod > 0 }

func (s *FarmState) numFunds() int {
	if s.HasLockup() {
		return 2
	}
	return 1
}

func (s *FarmState) rewardTokenIndex(token common.Address) int {
	for i, rt := range s.RewardTokens {
		if rt.Token == token {
			return i
		}
	}
	return -1
}

func depositKey(account common.Address) string { return account.Hex() }
