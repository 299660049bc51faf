package ledger

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAmount       = errors.New("ledger: amount must be positive")
	ErrInvalidAddress      = errors.New("ledger: invalid address")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
)

// Ledger is an in-memory token balance keeper. It stands in for the external
// token contracts: the farm engine only ever asks it to move balances in and
// out of the custodian account and never reaches into accrual state.
type Ledger struct {
	mu        sync.RWMutex
	custodian common.Address
	balances  map[common.Address]map[common.Address]*big.Int
}

// New creates a ledger whose TransferIn/TransferOut settle against the given
// custodian address.
func New(custodian common.Address) *Ledger {
	return &Ledger{
		custodian: custodian,
		balances:  make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (l *Ledger) balance(token, account common.Address) *big.Int {
	accounts, ok := l.balances[token]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		l.balances[token] = accounts
	}
	bal, ok := accounts[account]
	if !ok {
		bal = big.NewInt(0)
		accounts[account] = bal
	}
	return bal
}

// Mint credits an account out of thin air. Test and bootstrap helper.
func (l *Ledger) Mint(token, account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balance(token, account)
	bal.Add(bal, amount)
	return nil
}

// Transfer moves amount between two arbitrary accounts.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if from == (common.Address{}) || to == (common.Address{}) {
		return ErrInvalidAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.balance(token, from)
	if src.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	dst := l.balance(token, to)
	src.Sub(src, amount)
	dst.Add(dst, amount)
	return nil
}

// TransferIn moves amount from the given account into custody.
func (l *Ledger) TransferIn(token, from common.Address, amount *big.Int) error {
	return l.Transfer(token, from, l.custodian, amount)
}

// TransferOut moves amount out of custody to the given account.
func (l *Ledger) TransferOut(token, to common.Address, amount *big.Int) error {
	return l.Transfer(token, l.custodian, to, amount)
}

// BalanceOf reports the current balance for an account.
func (l *Ledger) BalanceOf(token, account common.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	accounts, ok := l.balances[token]
	if !ok {
		return big.NewInt(0), nil
	}
	bal, ok := accounts[account]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}
