package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// FarmMetrics aggregates the Prometheus collectors for the farm engine.
type FarmMetrics struct {
	deposits        prometheus.Counter
	withdrawals     prometheus.Counter
	claims          prometheus.Counter
	rewardsClaimed  *prometheus.CounterVec
	fundLiquidity   *prometheus.GaugeVec
	rewardBalance   *prometheus.GaugeVec
	paused          prometheus.Gauge
	closed          prometheus.Gauge
}

var (
	farmOnce     sync.Once
	farmRegistry *FarmMetrics
)

// Farm returns the process-wide farm metrics, registering the collectors on
// first use.
func Farm() *FarmMetrics {
	farmOnce.Do(func() {
		farmRegistry = &FarmMetrics{
			deposits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "farm_deposits_total",
				Help: "Count of accepted deposit operations.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "farm_withdrawals_total",
				Help: "Count of completed withdrawals, full and partial.",
			}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "farm_claims_total",
				Help: "Count of reward claim operations.",
			}),
			rewardsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "farm_rewards_claimed_wei_total",
				Help: "Total rewards paid out per token, in wei.",
			}, []string{"token"}),
			fundLiquidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "farm_fund_liquidity",
				Help: "Current subscribed liquidity per reward fund.",
			}, []string{"fund"}),
			rewardBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "farm_reward_balance_wei",
				Help: "Uncommitted reward balance per token, in wei.",
			}, []string{"token"}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "farm_paused",
				Help: "1 while the farm is paused.",
			}),
			closed: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "farm_closed",
				Help: "1 once the farm is closed.",
			}),
		}
		prometheus.MustRegister(
			farmRegistry.deposits,
			farmRegistry.withdrawals,
			farmRegistry.claims,
			farmRegistry.rewardsClaimed,
			farmRegistry.fundLiquidity,
			farmRegistry.rewardBalance,
			farmRegistry.paused,
			farmRegistry.closed,
		)
	})
	return farmRegistry
}

func (m *FarmMetrics) ObserveDeposit()    { m.deposits.Inc() }
func (m *FarmMetrics) ObserveWithdrawal() { m.withdrawals.Inc() }
func (m *FarmMetrics) ObserveClaim()      { m.claims.Inc() }

// AddRewardsClaimed records a payout amount for a token. Precision loss in
// the float conversion is acceptable for dashboards.
func (m *FarmMetrics) AddRewardsClaimed(token string, amount float64) {
	m.rewardsClaimed.WithLabelValues(token).Add(amount)
}

func (m *FarmMetrics) SetFundLiquidity(fund string, v float64) {
	m.fundLiquidity.WithLabelValues(fund).Set(v)
}

func (m *FarmMetrics) SetRewardBalance(token string, v float64) {
	m.rewardBalance.WithLabelValues(token).Set(v)
}

func (m *FarmMetrics) SetPaused(paused bool) {
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}

func (m *FarmMetrics) SetClosed(closed bool) {
	if closed {
		m.closed.Set(1)
		return
	}
	m.closed.Set(0)
}
