package farm

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenLedger is the external balance keeper the engine settles against. The
// engine never inspects balances during accrual; transfers happen only at the
// operation boundary.
type TokenLedger interface {
	TransferIn(token, from common.Address, amount *big.Int) error
	TransferOut(token, to common.Address, amount *big.Int) error
	BalanceOf(token, account common.Address) (*big.Int, error)
}

// Engine implements the multi-fund reward farm: per-second accrual across the
// common and lockup funds, deposit lifecycle management and the admin
// surface. All operations are serialized behind a single mutex so callers
// observe strict transaction ordering.
type Engine struct {
	mu    sync.Mutex
	state *FarmState

	ledger TokenLedger
	sink   Sink
	nowFn  func() uint64

	// address the engine itself holds custody under, used for the
	// stray-token sweep.
	farmAddress common.Address

	// accrueWhilePaused switches the pause interpretation: when false
	// (default) accumulators freeze for the paused window; when true pause
	// only blocks depositor entry points while accrual keeps ticking.
	accrueWhilePaused bool

	// The primary reward token's manager is a protocol constant and wins
	// over whatever the initializer supplied.
	primaryToken   common.Address
	primaryManager common.Address
}

// NewEngine constructs an engine bound to a token ledger. The event sink
// defaults to a no-op and the clock to wall time.
func NewEngine(farmAddress common.Address, ledger TokenLedger) *Engine {
	return &Engine{
		ledger:      ledger,
		sink:        NoopSink{},
		nowFn:       func() uint64 { return uint64(time.Now().Unix()) },
		farmAddress: farmAddress,
	}
}

// SetSink configures the event sink. Passing nil resets to a no-op.
func (e *Engine) SetSink(sink Sink) {
	if sink == nil {
		e.sink = NoopSink{}
		return
	}
	e.sink = sink
}

// SetNowFunc overrides the time source. Intended for deterministic tests.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// SetAccrueWhilePaused selects the pause interpretation. Must be called
// before operations begin.
func (e *Engine) SetAccrueWhilePaused(v bool) { e.accrueWhilePaused = v }

// SetPrimaryRewardToken pins the manager for the protocol's designated
// reward token. Initialization overrides any caller-supplied manager for it.
func (e *Engine) SetPrimaryRewardToken(token, manager common.Address) {
	e.primaryToken = token
	e.primaryManager = manager
}

func (e *Engine) emit(evt *Event) {
	if evt == nil {
		return
	}
	e.sink.AppendEvent(evt)
}

func (e *Engine) now() uint64 { return e.nowFn() }

// Initialize creates the farm state. The start time must not be in the past
// and the cooldown period must be zero (no lockup) or within the allowed
// day range. Reward tokens are registered once, here.
func (e *Engine) Initialize(owner, liquidityToken common.Address, farmStartTime, cooldownPeriod uint64, rewardData []RewardTokenData) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != nil {
		return ErrAlreadyInitialized
	}
	if owner == (common.Address{}) || liquidityToken == (common.Address{}) {
		return ErrInvalidAddress
	}
	if farmStartTime < e.now() {
		return ErrInvalidFarmStartTime
	}
	if cooldownPeriod != 0 && (cooldownPeriod < MinCooldownPeriod || cooldownPeriod > MaxCooldownPeriod) {
		return ErrInvalidCooldownPeriod
	}
	if len(rewardData) == 0 || len(rewardData) > MaxNumRewards {
		return ErrInvalidRewardData
	}

	state := &FarmState{
		Owner:              owner,
		LiquidityToken:     liquidityToken,
		FarmStartTime:      farmStartTime,
		CooldownPeriod:     cooldownPeriod,
		LastFundUpdateTime: farmStartTime,
		Deposits:           make(map[string][]*Deposit),
	}

	numFunds := 1
	if cooldownPeriod > 0 {
		numFunds = 2
	}
	for i := 0; i < numFunds; i++ {
		state.RewardFunds = append(state.RewardFunds, &RewardFund{
			TotalLiquidity:   big.NewInt(0),
			RewardsPerSecond: zeroBigInts(len(rewardData)),
		})
	}

	for _, data := range rewardData {
		if data.Token == (common.Address{}) {
			return ErrInvalidRewardData
		}
		manager := data.Manager
		if data.Token == e.primaryToken {
			manager = e.primaryManager
		}
		if manager == (common.Address{}) {
			return ErrInvalidAddress
		}
		for _, existing := range state.RewardTokens {
			if existing.Token == data.Token {
				return ErrRewardTokenAlreadyAdded
			}
		}
		state.RewardTokens = append(state.RewardTokens, &RewardToken{
			Token:             data.Token,
			Manager:           manager,
			AccRewardPerShare: zeroBigInts(numFunds),
			Funded:            big.NewInt(0),
			TotalAccrued:      big.NewInt(0),
			TotalClaimed:      big.NewInt(0),
		})
	}

	e.state = state
	return nil
}

// Restore replaces the engine state with a previously persisted snapshot.
func (e *Engine) Restore(state *FarmState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != nil {
		return ErrAlreadyInitialized
	}
	if state == nil {
		return ErrNotInitialized
	}
	if state.Deposits == nil {
		state.Deposits = make(map[string][]*Deposit)
	}
	e.state = state
	return nil
}

// Snapshot returns a deep copy of the current farm state for persistence.
func (e *Engine) Snapshot() (*FarmState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, ErrNotInitialized
	}
	return e.cloneState(), nil
}

func (e *Engine) cloneState() *FarmState {
	s := e.state
	clone := &FarmState{
		Owner:              s.Owner,
		LiquidityToken:     s.LiquidityToken,
		FarmStartTime:      s.FarmStartTime,
		CooldownPeriod:     s.CooldownPeriod,
		LastFundUpdateTime: s.LastFundUpdateTime,
		Paused:             s.Paused,
		Closed:             s.Closed,
		Deposits:           make(map[string][]*Deposit, len(s.Deposits)),
	}
	for _, rt := range s.RewardTokens {
		clone.RewardTokens = append(clone.RewardTokens, rt.Clone())
	}
	for _, fund := range s.RewardFunds {
		clone.RewardFunds = append(clone.RewardFunds, fund.Clone())
	}
	for key, deposits := range s.Deposits {
		copied := make([]*Deposit, len(deposits))
		for i, d := range deposits {
			copied[i] = d.Clone()
		}
		clone.Deposits[key] = copied
	}
	return clone
}

func (e *Engine) requireInitialized() error {
	if e.state == nil {
		return ErrNotInitialized
	}
	return nil
}

func (e *Engine) requireOwner(caller common.Address) error {
	if caller != e.state.Owner {
		return ErrNotOwner
	}
	return nil
}

// Admin operations ----------------------------------------------------------

// UpdateCooldownPeriod changes the farm-level cooldown stamped into future
// deposits. Existing deposits keep the value pinned at creation.
func (e *Engine) UpdateCooldownPeriod(caller common.Address, newPeriod uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if e.state.Closed {
		return ErrFarmClosed
	}
	if !e.state.HasLockup() {
		return ErrNoLockupSupport
	}
	if newPeriod < MinCooldownPeriod || newPeriod > MaxCooldownPeriod {
		return ErrInvalidCooldownPeriod
	}
	old := e.state.CooldownPeriod
	e.state.CooldownPeriod = newPeriod
	e.emit(&Event{Type: EventTypeCooldownPeriodUpdated, Attributes: map[string]string{
		"oldCooldownPeriod": attrUint(old),
		"newCooldownPeriod": attrUint(newPeriod),
	}})
	return nil
}

// UpdateFarmStartTime moves a not-yet-started farm's start time forward or
// backward, rebasing the accrual clock.
func (e *Engine) UpdateFarmStartTime(caller common.Address, newStartTime uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if e.state.Closed {
		return ErrFarmClosed
	}
	now := e.now()
	if now >= e.state.FarmStartTime {
		return ErrFarmAlreadyStarted
	}
	if newStartTime < now {
		return ErrTimeInPast
	}
	e.state.FarmStartTime = newStartTime
	e.state.LastFundUpdateTime = newStartTime
	e.emit(&Event{Type: EventTypeStartTimeUpdated, Attributes: map[string]string{
		"newStartTime": attrUint(newStartTime),
	}})
	return nil
}

// FarmPauseSwitch toggles the paused flag. Accrual is settled up to now
// before the switch so the paused window is cleanly bounded.
func (e *Engine) FarmPauseSwitch(caller common.Address, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if e.state.Closed {
		return ErrFarmClosed
	}
	if e.state.Paused == paused {
		return ErrFarmAlreadyInState
	}
	e.accrueAll(e.now())
	e.state.Paused = paused
	e.emit(&Event{Type: EventTypePaused, Attributes: map[string]string{
		"paused": attrBool(paused),
	}})
	return nil
}

// CloseFarm irreversibly shuts the farm down: every reward rate drops to
// zero and each token's uncommitted balance is returned to its manager.
// Principal withdrawals stay open; claims do not.
func (e *Engine) CloseFarm(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if e.state.Closed {
		return ErrFarmClosed
	}
	e.accrueAll(e.now())

	for ti, rt := range e.state.RewardTokens {
		recoverable := e.rewardBalanceLocked(ti)
		if recoverable.Sign() > 0 {
			if err := e.ledger.TransferOut(rt.Token, rt.Manager, recoverable); err != nil {
				return err
			}
			rt.Funded.Sub(rt.Funded, recoverable)
			e.emit(newTokenEvent(EventTypeFundsRecovered, rt.Token, map[string]string{
				"amount": attrAmount(recoverable),
				"to":     rt.Manager.Hex(),
			}))
		}
		for _, fund := range e.state.RewardFunds {
			fund.RewardsPerSecond[ti] = big.NewInt(0)
		}
	}

	e.state.Closed = true
	e.state.Paused = true
	e.emit(&Event{Type: EventTypeClosed, Attributes: map[string]string{
		"closedAt": attrUint(e.now()),
	}})
	return nil
}

// RecoverERC20 sweeps a stray token balance to the owner. The farm's own
// liquidity token and every registered reward token are off limits.
func (e *Engine) RecoverERC20(caller, token common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	if token == e.state.LiquidityToken {
		return nil, ErrRecoverFarmToken
	}
	if e.state.rewardTokenIndex(token) >= 0 {
		return nil, ErrRecoverRewardToken
	}
	balance, err := e.ledger.BalanceOf(token, e.farmAddress)
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.Sign() == 0 {
		return nil, ErrNothingToRecover
	}
	amount := new(big.Int).Set(balance)
	if err := e.ledger.TransferOut(token, e.state.Owner, amount); err != nil {
		return nil, err
	}
	e.emit(newTokenEvent(EventTypeERC20Recovered, token, map[string]string{
		"amount": attrAmount(amount),
		"to":     e.state.Owner.Hex(),
	}))
	return amount, nil
}

func attrBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
