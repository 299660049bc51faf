package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RewardFundInfo is the view projection of one reward fund.
type RewardFundInfo struct {
	TotalLiquidity   *big.Int   `json:"totalLiquidity"`
	RewardsPerSecond []*big.Int `json:"rewardsPerSecond"`
}

// RewardTokenInfo is the view projection of one registered reward token.
type RewardTokenInfo struct {
	Token        common.Address `json:"token"`
	Manager      common.Address `json:"manager"`
	Funded       *big.Int       `json:"funded"`
	TotalAccrued *big.Int       `json:"totalAccrued"`
	TotalClaimed *big.Int       `json:"totalClaimed"`
}

// FarmInfo summarises the farm lifecycle state.
type FarmInfo struct {
	Owner              common.Address    `json:"owner"`
	LiquidityToken     common.Address    `json:"liquidityToken"`
	FarmStartTime      uint64            `json:"farmStartTime"`
	CooldownPeriod     uint64            `json:"cooldownPeriod"`
	LastFundUpdateTime uint64            `json:"lastFundUpdateTime"`
	Paused             bool              `json:"paused"`
	Closed             bool              `json:"closed"`
	RewardTokens       []RewardTokenInfo `json:"rewardTokens"`
}

// Info returns the farm lifecycle summary.
func (e *Engine) Info() (*FarmInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	s := e.state
	info := &FarmInfo{
		Owner:              s.Owner,
		LiquidityToken:     s.LiquidityToken,
		FarmStartTime:      s.FarmStartTime,
		CooldownPeriod:     s.CooldownPeriod,
		LastFundUpdateTime: s.LastFundUpdateTime,
		Paused:             s.Paused,
		Closed:             s.Closed,
	}
	for _, rt := range s.RewardTokens {
		info.RewardTokens = append(info.RewardTokens, RewardTokenInfo{
			Token:        rt.Token,
			Manager:      rt.Manager,
			Funded:       copyBigInt(rt.Funded),
			TotalAccrued: copyBigInt(rt.TotalAccrued),
			TotalClaimed: copyBigInt(rt.TotalClaimed),
		})
	}
	return info, nil
}

// IsPaused reports the paused flag.
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != nil && e.state.Paused
}

// IsClosed reports the closed flag.
func (e *Engine) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != nil && e.state.Closed
}

// GetRewardFundInfo returns the liquidity total and emission rates for one
// fund.
func (e *Engine) GetRewardFundInfo(fundID uint8) (*RewardFundInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	if int(fundID) >= len(e.state.RewardFunds) {
		return nil, ErrRewardFundNotFound
	}
	fund := e.state.RewardFunds[fundID]
	return &RewardFundInfo{
		TotalLiquidity:   copyBigInt(fund.TotalLiquidity),
		RewardsPerSecond: copyBigInts(fund.RewardsPerSecond),
	}, nil
}

// GetDeposit returns a copy of the deposit record.
func (e *Engine) GetDeposit(account common.Address, depositID int) (*Deposit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	d, err := e.depositAt(account, depositID)
	if err != nil {
		return nil, err
	}
	return d.Clone(), nil
}

// GetNumDeposits returns how many deposits the account currently holds.
func (e *Engine) GetNumDeposits(account common.Address) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return 0, err
	}
	return len(e.state.Deposits[depositKey(account)]), nil
}

// GetNumSubscriptions returns the deposit's current subscription count.
func (e *Engine) GetNumSubscriptions(account common.Address, depositID int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return 0, err
	}
	d, err := e.depositAt(account, depositID)
	if err != nil {
		return 0, err
	}
	return len(d.Subscriptions), nil
}

// GetSubscriptionInfo returns a copy of one of the deposit's subscriptions.
func (e *Engine) GetSubscriptionInfo(account common.Address, depositID, index int) (*Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	d, err := e.depositAt(account, depositID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(d.Subscriptions) {
		return nil, ErrSubscriptionNotFound
	}
	return d.Subscriptions[index].Clone(), nil
}
