package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Deposit stakes liquidity for the account and subscribes the new position to
// the common fund, plus the lockup fund when locked. The farm's cooldown
// period is pinned into locked deposits at this moment; later farm-level
// updates never touch it. Returns the new deposit id.
func (e *Engine) Deposit(account common.Address, liquidity *big.Int, locked bool) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return 0, err
	}
	if e.state.Paused || e.state.Closed {
		return 0, ErrFarmPaused
	}
	if account == (common.Address{}) {
		return 0, ErrInvalidAddress
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if locked && !e.state.HasLockup() {
		return 0, ErrLockupDisabled
	}

	now := e.now()
	e.accrueAll(now)

	if err := e.ledger.TransferIn(e.state.LiquidityToken, account, liquidity); err != nil {
		return 0, err
	}

	numTokens := len(e.state.RewardTokens)
	d := &Deposit{
		Liquidity:           new(big.Int).Set(liquidity),
		DepositTime:         now,
		Locked:              locked,
		TotalRewardsClaimed: zeroBigInts(numTokens),
	}
	if locked {
		d.CooldownPeriod = e.state.CooldownPeriod
	}

	e.subscribe(d, CommonFundID)
	if locked {
		e.subscribe(d, LockupFundID)
	}

	key := depositKey(account)
	e.state.Deposits[key] = append(e.state.Deposits[key], d)
	depositID := len(e.state.Deposits[key]) - 1

	e.emit(newDepositEvent(EventTypeDeposited, account, depositID, map[string]string{
		"liquidity": attrAmount(liquidity),
		"locked":    attrBool(locked),
	}))
	return depositID, nil
}

// IncreaseDeposit adds liquidity to an existing deposit. Pending rewards are
// paid out first so the enlarged position never earns retroactively.
func (e *Engine) IncreaseDeposit(account common.Address, depositID int, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if e.state.Paused || e.state.Closed {
		return ErrFarmPaused
	}
	d, err := e.depositAt(account, depositID)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if d.ExpiryDate != 0 {
		return ErrCooldownActive
	}

	e.accrueAll(e.now())
	if _, err := e.settleDeposit(account, d, true); err != nil {
		return err
	}
	if err := e.ledger.TransferIn(e.state.LiquidityToken, account, amount); err != nil {
		return err
	}

	for _, sub := range d.Subscriptions {
		fund := e.state.RewardFunds[sub.FundID]
		fund.TotalLiquidity.Add(fund.TotalLiquidity, amount)
	}
	d.Liquidity.Add(d.Liquidity, amount)
	e.rebaseDebts(d)

	e.emit(newDepositEvent(EventTypeDepositIncreased, account, depositID, map[string]string{
		"amount":    attrAmount(amount),
		"liquidity": attrAmount(d.Liquidity),
	}))
	return nil
}

// InitiateCooldown starts the mandatory waiting period for a locked deposit.
// Lockup-fund rewards are settled and paid, the lockup subscription is
// removed and the expiry stamp is derived from the cooldown pinned at
// deposit time.
func (e *Engine) InitiateCooldown(account common.Address, depositID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if e.state.Paused || e.state.Closed {
		return ErrFarmPaused
	}
	d, err := e.depositAt(account, depositID)
	if err != nil {
		return err
	}
	if d.CooldownPeriod == 0 {
		return ErrCannotInitiateCooldown
	}
	if d.ExpiryDate != 0 {
		return ErrDepositInCooldown
	}

	now := e.now()
	e.accrueAll(now)
	if _, err := e.settleDeposit(account, d, true); err != nil {
		return err
	}

	e.unsubscribe(d, LockupFundID)
	d.ExpiryDate = now + d.CooldownPeriod*SecondsPerDay
	d.Locked = false

	e.emit(newDepositEvent(EventTypeCooldownInitiated, account, depositID, map[string]string{
		"expiryDate": attrUint(d.ExpiryDate),
	}))
	return nil
}

// Withdraw exits a deposit completely: final rewards are settled for every
// remaining subscription, the principal returns to the depositor and the
// deposit is removed. Locked deposits must ride out their cooldown first
// unless the farm is paused or closed, which waives the requirement.
func (e *Engine) Withdraw(account common.Address, depositID int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	d, err := e.depositAt(account, depositID)
	if err != nil {
		return nil, err
	}

	farmActive := !e.state.Paused && !e.state.Closed
	if farmActive && d.CooldownPeriod != 0 {
		if d.ExpiryDate == 0 {
			return nil, ErrCooldownNotInitiated
		}
		if e.now() < d.ExpiryDate {
			return nil, ErrDepositInCooldown
		}
	}

	e.accrueAll(e.now())
	if !e.state.Closed {
		if _, err := e.settleDeposit(account, d, true); err != nil {
			return nil, err
		}
	}

	for len(d.Subscriptions) > 0 {
		e.unsubscribe(d, d.Subscriptions[0].FundID)
	}

	liquidity := new(big.Int).Set(d.Liquidity)
	if err := e.ledger.TransferOut(e.state.LiquidityToken, account, liquidity); err != nil {
		return nil, err
	}

	key := depositKey(account)
	deposits := e.state.Deposits[key]
	e.state.Deposits[key] = append(deposits[:depositID], deposits[depositID+1:]...)

	e.emit(newDepositEvent(EventTypeDepositWithdrawn, account, depositID, map[string]string{
		"liquidity":           attrAmount(liquidity),
		"totalRewardsClaimed": attrAmounts(d.TotalRewardsClaimed),
	}))
	return liquidity, nil
}

// WithdrawPartially returns part of a deposit's principal. Only deposits
// that never carried a cooldown obligation qualify; anything on the lockup
// path must exit through the full withdrawal flow.
func (e *Engine) WithdrawPartially(account common.Address, depositID int, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	d, err := e.depositAt(account, depositID)
	if err != nil {
		return err
	}
	if d.CooldownPeriod != 0 || d.ExpiryDate != 0 {
		return ErrPartialNotPermitted
	}
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(d.Liquidity) >= 0 {
		return ErrInvalidAmount
	}

	e.accrueAll(e.now())
	if !e.state.Closed {
		if _, err := e.settleDeposit(account, d, true); err != nil {
			return err
		}
	}

	for _, sub := range d.Subscriptions {
		fund := e.state.RewardFunds[sub.FundID]
		fund.TotalLiquidity.Sub(fund.TotalLiquidity, amount)
	}
	d.Liquidity.Sub(d.Liquidity, amount)
	e.rebaseDebts(d)

	if err := e.ledger.TransferOut(e.state.LiquidityToken, account, amount); err != nil {
		return err
	}

	e.emit(newDepositEvent(EventTypeDepositWithdrawn, account, depositID, map[string]string{
		"amount":    attrAmount(amount),
		"liquidity": attrAmount(d.Liquidity),
	}))
	return nil
}

// ClaimRewards pays out every pending reward for the deposit across its
// current subscriptions. Claiming twice with no elapsed time pays zero the
// second time. Claims stay open while paused but not once the farm closes.
func (e *Engine) ClaimRewards(account common.Address, depositID int) ([]*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	if e.state.Closed {
		return nil, ErrFarmClosed
	}
	d, err := e.depositAt(account, depositID)
	if err != nil {
		return nil, err
	}

	e.accrueAll(e.now())
	totals, err := e.settleDeposit(account, d, true)
	if err != nil {
		return nil, err
	}

	// Zero amounts are still reported; callers rely on a full-width array.
	e.emit(newDepositEvent(EventTypeRewardsClaimed, account, depositID, map[string]string{
		"rewardAmount": attrAmounts(totals),
	}))
	return totals, nil
}

// ComputeRewards projects the pending rewards per token for a deposit at the
// current time without touching state. Repeated calls at the same timestamp
// return identical values.
func (e *Engine) ComputeRewards(account common.Address, depositID int) ([]*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	d, err := e.depositAt(account, depositID)
	if err != nil {
		return nil, err
	}

	acc := e.projectedAccPerShare(e.now())
	totals := zeroBigInts(len(e.state.RewardTokens))
	for _, sub := range d.Subscriptions {
		for ti := range e.state.RewardTokens {
			accrued := new(big.Int).Mul(d.Liquidity, acc[ti][sub.FundID])
			accrued.Quo(accrued, Precision)
			pending := new(big.Int).Sub(accrued, sub.RewardDebt[ti])
			if pending.Sign() > 0 {
				totals[ti].Add(totals[ti], pending)
			}
		}
	}
	return totals, nil
}

// internal helpers -----------------------------------------------------------

func (e *Engine) depositAt(account common.Address, depositID int) (*Deposit, error) {
	deposits := e.state.Deposits[depositKey(account)]
	if depositID < 0 || depositID >= len(deposits) {
		return nil, ErrDepositNotFound
	}
	return deposits[depositID], nil
}

// subscribe joins the deposit to a fund with reward debt initialized at the
// current accumulator so nothing back-dated is owed.
func (e *Engine) subscribe(d *Deposit, fundID uint8) {
	numTokens := len(e.state.RewardTokens)
	sub := &Subscription{
		FundID:         fundID,
		RewardDebt:     make([]*big.Int, numTokens),
		RewardsClaimed: zeroBigInts(numTokens),
	}
	for ti, rt := range e.state.RewardTokens {
		debt := new(big.Int).Mul(d.Liquidity, rt.AccRewardPerShare[fundID])
		debt.Quo(debt, Precision)
		sub.RewardDebt[ti] = debt
	}
	d.Subscriptions = append(d.Subscriptions, sub)
	fund := e.state.RewardFunds[fundID]
	fund.TotalLiquidity.Add(fund.TotalLiquidity, d.Liquidity)
}

// unsubscribe removes the fund subscription and releases its liquidity from
// the fund total. Rewards must have been settled by the caller.
func (e *Engine) unsubscribe(d *Deposit, fundID uint8) {
	if d.subscription(fundID) == nil {
		return
	}
	fund := e.state.RewardFunds[fundID]
	fund.TotalLiquidity.Sub(fund.TotalLiquidity, d.Liquidity)
	d.dropSubscription(fundID)
}

// settleDeposit advances every subscription's reward debt to the committed
// accumulators and optionally pays the pending amounts out. Returns the
// per-token totals across all subscriptions.
func (e *Engine) settleDeposit(account common.Address, d *Deposit, pay bool) ([]*big.Int, error) {
	totals := zeroBigInts(len(e.state.RewardTokens))
	for _, sub := range d.Subscriptions {
		for ti, rt := range e.state.RewardTokens {
			accrued := new(big.Int).Mul(d.Liquidity, rt.AccRewardPerShare[sub.FundID])
			accrued.Quo(accrued, Precision)
			pending := new(big.Int).Sub(accrued, sub.RewardDebt[ti])
			sub.RewardDebt[ti] = accrued
			if pending.Sign() <= 0 {
				continue
			}
			sub.RewardsClaimed[ti].Add(sub.RewardsClaimed[ti], pending)
			d.TotalRewardsClaimed[ti].Add(d.TotalRewardsClaimed[ti], pending)
			rt.TotalClaimed.Add(rt.TotalClaimed, pending)
			totals[ti].Add(totals[ti], pending)
		}
	}
	if pay {
		for ti, rt := range e.state.RewardTokens {
			if totals[ti].Sign() == 0 {
				continue
			}
			if err := e.ledger.TransferOut(rt.Token, account, totals[ti]); err != nil {
				return nil, err
			}
		}
	}
	return totals, nil
}

// rebaseDebts re-anchors every subscription's reward debt after a liquidity
// change. Pending rewards must already be settled.
func (e *Engine) rebaseDebts(d *Deposit) {
	for _, sub := range d.Subscriptions {
		for ti, rt := range e.state.RewardTokens {
			debt := new(big.Int).Mul(d.Liquidity, rt.AccRewardPerShare[sub.FundID])
			debt.Quo(debt, Precision)
			sub.RewardDebt[ti] = debt
		}
	}
}
