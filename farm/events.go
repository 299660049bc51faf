package farm

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	EventTypeDeposited             = "farm.deposited"
	EventTypeDepositIncreased      = "farm.deposit.increased"
	EventTypeCooldownInitiated     = "farm.cooldown.initiated"
	EventTypeDepositWithdrawn      = "farm.deposit.withdrawn"
	EventTypeRewardsClaimed        = "farm.rewards.claimed"
	EventTypeRewardAdded           = "farm.reward.added"
	EventTypeRewardRateUpdated     = "farm.reward.rate_updated"
	EventTypeFundsRecovered        = "farm.reward.funds_recovered"
	EventTypeERC20Recovered        = "farm.erc20.recovered"
	EventTypeCooldownPeriodUpdated = "farm.cooldown_period.updated"
	EventTypeStartTimeUpdated      = "farm.start_time.updated"
	EventTypePaused                = "farm.paused"
	EventTypeClosed                = "farm.closed"
)

// Event is the canonical payload emitted for every observable state change.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Sink receives events as operations commit. Implementations must not call
// back into the engine.
type Sink interface {
	AppendEvent(evt *Event)
}

// NoopSink discards every event.
type NoopSink struct{}

func (NoopSink) AppendEvent(*Event) {}

func attrAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func attrAmounts(vs []*big.Int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = attrAmount(v)
	}
	return strings.Join(parts, ",")
}

func attrUint(v uint64) string { return strconv.FormatUint(v, 10) }

func newDepositEvent(typ string, account common.Address, depositID int, attrs map[string]string) *Event {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	attrs["account"] = account.Hex()
	attrs["depositId"] = strconv.Itoa(depositID)
	return &Event{Type: typ, Attributes: attrs}
}

func newTokenEvent(typ string, token common.Address, attrs map[string]string) *Event {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	attrs["token"] = token.Hex()
	return &Event{Type: typ, Attributes: attrs}
}
