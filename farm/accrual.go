package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// accrueAll lazily advances every fund's per-share accumulator to upto.
// Rewards only accrue while the farm has started, is not closed and, under
// the default pause policy, is not paused. Funds with zero liquidity do not
// advance: nothing accrues while nobody is staked.
func (e *Engine) accrueAll(upto uint64) {
	s := e.state
	if s.Closed {
		return
	}
	if upto <= s.LastFundUpdateTime {
		return
	}
	if s.Paused && !e.accrueWhilePaused {
		// The paused window is skipped entirely. Advancing the clock
		// here keeps unpausing from accruing it retroactively.
		s.LastFundUpdateTime = upto
		return
	}
	dt := new(big.Int).SetUint64(upto - s.LastFundUpdateTime)
	for fundID, fund := range s.RewardFunds {
		if fund.TotalLiquidity.Sign() == 0 {
			continue
		}
		for ti, rt := range s.RewardTokens {
			rate := fund.RewardsPerSecond[ti]
			if rate.Sign() == 0 {
				continue
			}
			accrued := new(big.Int).Mul(rate, dt)
			rt.TotalAccrued.Add(rt.TotalAccrued, accrued)
			share := new(big.Int).Mul(accrued, Precision)
			share.Quo(share, fund.TotalLiquidity)
			rt.AccRewardPerShare[fundID].Add(rt.AccRewardPerShare[fundID], share)
		}
	}
	s.LastFundUpdateTime = upto
}

// projectedAccPerShare mirrors accrueAll without committing: it returns what
// each token's per-fund accumulator would read at upto. Views use it so
// repeated queries at the same timestamp stay stable.
func (e *Engine) projectedAccPerShare(upto uint64) [][]*big.Int {
	s := e.state
	acc := make([][]*big.Int, len(s.RewardTokens))
	for ti, rt := range s.RewardTokens {
		acc[ti] = copyBigInts(rt.AccRewardPerShare)
	}
	if s.Closed || upto <= s.LastFundUpdateTime {
		return acc
	}
	if s.Paused && !e.accrueWhilePaused {
		return acc
	}
	dt := new(big.Int).SetUint64(upto - s.LastFundUpdateTime)
	for fundID, fund := range s.RewardFunds {
		if fund.TotalLiquidity.Sign() == 0 {
			continue
		}
		for ti := range s.RewardTokens {
			rate := fund.RewardsPerSecond[ti]
			if rate.Sign() == 0 {
				continue
			}
			share := new(big.Int).Mul(rate, dt)
			share.Mul(share, Precision)
			share.Quo(share, fund.TotalLiquidity)
			acc[ti][fundID].Add(acc[ti][fundID], share)
		}
	}
	return acc
}

// rewardBalanceLocked computes the uncommitted balance for the token at
// index ti: funded minus the accrued-but-unclaimed obligation, floored at
// zero. Callers hold the engine lock and have already settled accrual.
func (e *Engine) rewardBalanceLocked(ti int) *big.Int {
	rt := e.state.RewardTokens[ti]
	obligation := new(big.Int).Sub(rt.TotalAccrued, rt.TotalClaimed)
	balance := new(big.Int).Sub(rt.Funded, obligation)
	if balance.Sign() < 0 {
		balance.SetInt64(0)
	}
	return balance
}

// AddRewards funds the farm with amount of a registered reward token. Any
// account may fund.
func (e *Engine) AddRewards(from, token common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if e.state.Closed {
		return ErrFarmClosed
	}
	ti := e.state.rewardTokenIndex(token)
	if ti < 0 {
		return ErrInvalidRewardToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	e.accrueAll(e.now())
	if err := e.ledger.TransferIn(token, from, amount); err != nil {
		return err
	}
	e.state.RewardTokens[ti].Funded.Add(e.state.RewardTokens[ti].Funded, amount)
	e.emit(newTokenEvent(EventTypeRewardAdded, token, map[string]string{
		"amount": attrAmount(amount),
		"from":   from.Hex(),
	}))
	return nil
}

// SetRewardRate replaces the per-fund emission rates for a token. The rates
// slice cardinality must match the farm's fund count and only the token
// manager may call. The old rate's contribution is frozen by accruing first.
func (e *Engine) SetRewardRate(caller, token common.Address, rates []*big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if e.state.Closed {
		return ErrFarmClosed
	}
	ti := e.state.rewardTokenIndex(token)
	if ti < 0 {
		return ErrInvalidRewardToken
	}
	rt := e.state.RewardTokens[ti]
	if caller != rt.Manager {
		return ErrNotTokenManager
	}
	if len(rates) != e.state.numFunds() {
		return ErrInvalidRewardRatesLength
	}
	for _, rate := range rates {
		if rate == nil || rate.Sign() < 0 {
			return ErrInvalidAmount
		}
	}
	e.accrueAll(e.now())
	oldRates := make([]*big.Int, len(e.state.RewardFunds))
	for fundID, fund := range e.state.RewardFunds {
		oldRates[fundID] = fund.RewardsPerSecond[ti]
		fund.RewardsPerSecond[ti] = new(big.Int).Set(rates[fundID])
	}
	e.emit(newTokenEvent(EventTypeRewardRateUpdated, token, map[string]string{
		"oldRewardRate": attrAmounts(oldRates),
		"newRewardRate": attrAmounts(rates),
	}))
	return nil
}

// RecoverRewardFunds returns uncommitted reward balance to the token
// manager. Passing RecoverMax (or nil) drains exactly the available amount;
// anything above the available balance is rejected. Already-accrued
// obligations are never touched.
func (e *Engine) RecoverRewardFunds(caller, token common.Address, amount *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	ti := e.state.rewardTokenIndex(token)
	if ti < 0 {
		return nil, ErrInvalidRewardToken
	}
	rt := e.state.RewardTokens[ti]
	if caller != rt.Manager {
		return nil, ErrNotTokenManager
	}
	e.accrueAll(e.now())
	available := e.rewardBalanceLocked(ti)
	recover := amount
	if recover == nil || recover.Cmp(RecoverMax) == 0 {
		recover = available
	}
	if recover.Sign() < 0 || recover.Cmp(available) > 0 {
		return nil, ErrInvalidAmount
	}
	if recover.Sign() > 0 {
		if err := e.ledger.TransferOut(token, rt.Manager, recover); err != nil {
			return nil, err
		}
		rt.Funded.Sub(rt.Funded, recover)
	}
	recovered := new(big.Int).Set(recover)
	e.emit(newTokenEvent(EventTypeFundsRecovered, token, map[string]string{
		"amount": attrAmount(recovered),
		"to":     rt.Manager.Hex(),
	}))
	return recovered, nil
}

// GetRewardBalance reports the uncommitted balance for a registered reward
// token, projected to the current time.
func (e *Engine) GetRewardBalance(token common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	ti := e.state.rewardTokenIndex(token)
	if ti < 0 {
		return nil, ErrInvalidRewardToken
	}
	rt := e.state.RewardTokens[ti]
	accrued := new(big.Int).Set(rt.TotalAccrued)
	// Project the pending interval the same way accrueAll would commit it.
	s := e.state
	upto := e.now()
	if !s.Closed && upto > s.LastFundUpdateTime && !(s.Paused && !e.accrueWhilePaused) {
		dt := new(big.Int).SetUint64(upto - s.LastFundUpdateTime)
		for _, fund := range s.RewardFunds {
			if fund.TotalLiquidity.Sign() == 0 {
				continue
			}
			accrued.Add(accrued, new(big.Int).Mul(fund.RewardsPerSecond[ti], dt))
		}
	}
	obligation := new(big.Int).Sub(accrued, rt.TotalClaimed)
	balance := new(big.Int).Sub(rt.Funded, obligation)
	if balance.Sign() < 0 {
		balance.SetInt64(0)
	}
	return balance, nil
}

// GetRewardRates returns the current per-fund emission rates for a token.
func (e *Engine) GetRewardRates(token common.Address) ([]*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	ti := e.state.rewardTokenIndex(token)
	if ti < 0 {
		return nil, ErrInvalidRewardToken
	}
	rates := make([]*big.Int, len(e.state.RewardFunds))
	for fundID, fund := range e.state.RewardFunds {
		rates[fundID] = new(big.Int).Set(fund.RewardsPerSecond[ti])
	}
	return rates, nil
}
