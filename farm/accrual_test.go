package farm

import (
	"errors"
	"math/big"
	"testing"
)

func TestNoAccrualBeforeStart(t *testing.T) {
	env := newTestEnv(t, 0)
	env.fundRewards(t, [][]*big.Int{{wei(1, 15)}, {wei(2, 15)}})
	id := env.deposit(t, alice, wei(1, 21), false)

	env.setNow(startTime - 1)
	rewards, err := env.engine.ComputeRewards(alice, id)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for _, r := range rewards {
		if r.Sign() != 0 {
			t.Fatalf("rewards accrued before start: %s", r)
		}
	}
}

func TestLinearAccrual(t *testing.T) {
	env := newTestEnv(t, 0)
	rateA, rateB := wei(1, 15), wei(2, 15)
	env.fundRewards(t, [][]*big.Int{{rateA}, {rateB}})
	id := env.deposit(t, alice, wei(1, 21), false)

	env.setNow(startTime + 1000)
	rewards, err := env.engine.ComputeRewards(alice, id)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	wantA := new(big.Int).Mul(rateA, big.NewInt(1000))
	wantB := new(big.Int).Mul(rateB, big.NewInt(1000))
	if rewards[0].Cmp(wantA) != 0 || rewards[1].Cmp(wantB) != 0 {
		t.Fatalf("rewards = %s/%s, want %s/%s", rewards[0], rewards[1], wantA, wantB)
	}

	// Repeated projection at the same timestamp must not drift.
	again, err := env.engine.ComputeRewards(alice, id)
	if err != nil {
		t.Fatalf("compute again: %v", err)
	}
	if rewards[0].Cmp(again[0]) != 0 || rewards[1].Cmp(again[1]) != 0 {
		t.Fatalf("projection not stable: %s vs %s", rewards[0], again[0])
	}
}

func TestLockupEarnsBothFunds(t *testing.T) {
	env := newTestEnv(t, 21)
	common0, lockup0 := wei(1, 15), wei(2, 15)
	env.fundRewards(t, [][]*big.Int{
		{common0, lockup0},
		{big.NewInt(0), big.NewInt(0)},
	})
	id := env.deposit(t, alice, wei(1, 21), true)

	env.setNow(startTime + 1000)
	rewards, err := env.engine.ComputeRewards(alice, id)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	combined := new(big.Int).Add(common0, lockup0)
	want := combined.Mul(combined, big.NewInt(1000))
	if rewards[0].Cmp(want) != 0 {
		t.Fatalf("locked deposit rewards = %s, want %s", rewards[0], want)
	}
	if rewards[1].Sign() != 0 {
		t.Fatalf("zero-rate token accrued %s", rewards[1])
	}
}

func TestProportionalSplit(t *testing.T) {
	env := newTestEnv(t, 0)
	rate := wei(1, 15)
	env.fundRewards(t, [][]*big.Int{{rate}, {big.NewInt(0)}})
	aliceID := env.deposit(t, alice, wei(3, 21), false)
	bobID := env.deposit(t, bob, wei(1, 21), false)

	env.setNow(startTime + 1000)
	aliceRewards, err := env.engine.ComputeRewards(alice, aliceID)
	if err != nil {
		t.Fatalf("compute alice: %v", err)
	}
	bobRewards, err := env.engine.ComputeRewards(bob, bobID)
	if err != nil {
		t.Fatalf("compute bob: %v", err)
	}
	total := new(big.Int).Mul(rate, big.NewInt(1000))
	sum := new(big.Int).Add(aliceRewards[0], bobRewards[0])
	if sum.Cmp(total) != 0 {
		t.Fatalf("split does not conserve: %s + %s != %s", aliceRewards[0], bobRewards[0], total)
	}
	if new(big.Int).Mul(bobRewards[0], big.NewInt(3)).Cmp(aliceRewards[0]) != 0 {
		t.Fatalf("split not proportional: alice %s, bob %s", aliceRewards[0], bobRewards[0])
	}
}

func TestClaimIdempotent(t *testing.T) {
	env := newTestEnv(t, 0)
	rate := wei(1, 15)
	env.fundRewards(t, [][]*big.Int{{rate}, {big.NewInt(0)}})
	id := env.deposit(t, alice, wei(1, 21), false)

	env.setNow(startTime + 1000)
	first, err := env.engine.ClaimRewards(alice, id)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	want := new(big.Int).Mul(rate, big.NewInt(1000))
	if first[0].Cmp(want) != 0 {
		t.Fatalf("claimed %s, want %s", first[0], want)
	}
	aliceBal, _ := env.ledger.BalanceOf(rwdTokenA, alice)
	if aliceBal.Cmp(want) != 0 {
		t.Fatalf("payout not transferred: balance %s", aliceBal)
	}

	second, err := env.engine.ClaimRewards(alice, id)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second[0].Sign() != 0 {
		t.Fatalf("second claim with no elapsed time paid %s", second[0])
	}
}

func TestRateChangeFreezesOldRate(t *testing.T) {
	env := newTestEnv(t, 0)
	r0 := wei(1, 15)
	env.fundRewards(t, [][]*big.Int{{r0}, {big.NewInt(0)}})
	id := env.deposit(t, alice, wei(1, 21), false)

	env.setNow(startTime + 600)
	r1 := wei(3, 15)
	if err := env.engine.SetRewardRate(managerA, rwdTokenA, []*big.Int{r1}); err != nil {
		t.Fatalf("set rate: %v", err)
	}

	env.setNow(startTime + 1000)
	rewards, err := env.engine.ComputeRewards(alice, id)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := new(big.Int).Mul(r0, big.NewInt(600))
	want.Add(want, new(big.Int).Mul(r1, big.NewInt(400)))
	if rewards[0].Cmp(want) != 0 {
		t.Fatalf("piecewise accrual = %s, want %s", rewards[0], want)
	}
}

func TestSetRewardRateValidation(t *testing.T) {
	env := newTestEnv(t, 0)
	rate := []*big.Int{wei(1, 15)}
	if err := env.engine.SetRewardRate(alice, rwdTokenA, rate); !errors.Is(err, ErrNotTokenManager) {
		t.Fatalf("non-manager accepted: %v", err)
	}
	if err := env.engine.SetRewardRate(managerA, strayToken, rate); !errors.Is(err, ErrInvalidRewardToken) {
		t.Fatalf("unregistered token accepted: %v", err)
	}
	if err := env.engine.SetRewardRate(managerA, rwdTokenA, []*big.Int{wei(1, 15), wei(1, 15)}); !errors.Is(err, ErrInvalidRewardRatesLength) {
		t.Fatalf("wrong cardinality accepted: %v", err)
	}
}

func TestPauseFreezesAccrual(t *testing.T) {
	env := newTestEnv(t, 0)
	rate := wei(1, 15)
	env.fundRewards(t, [][]*big.Int{{rate}, {big.NewInt(0)}})
	id := env.deposit(t, alice, wei(1, 21), false)

	env.setNow(startTime + 500)
	if err := env.engine.FarmPauseSwitch(owner, true); err != nil {
		t.Fatalf("pause: %v", err)
	}

	want := new(big.Int).Mul(rate, big.NewInt(500))
	env.setNow(startTime + 1500)
	rewards, err := env.engine.ComputeRewards(alice, id)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if rewards[0].Cmp(want) != 0 {
		t.Fatalf("rewards grew while paused: %s, want %s", rewards[0], want)
	}

	// Claims stay open during a pause and pay only the pre-pause accrual.
	claimed, err := env.engine.ClaimRewards(alice, id)
	if err != nil {
		t.Fatalf("claim while paused: %v", err)
	}
	if claimed[0].Cmp(want) != 0 {
		t.Fatalf("claimed %s while paused, want %s", claimed[0], want)
	}

	// Unpausing must not accrue the skipped window retroactively.
	if err := env.engine.FarmPauseSwitch(owner, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	env.advance(300)
	rewards, err = env.engine.ComputeRewards(alice, id)
	if err != nil {
		t.Fatalf("compute after unpause: %v", err)
	}
	wantAfter := new(big.Int).Mul(rate, big.NewInt(300))
	if rewards[0].Cmp(wantAfter) != 0 {
		t.Fatalf("post-unpause rewards = %s, want %s", rewards[0], wantAfter)
	}
}

func TestAccrueWhilePausedPolicy(t *testing.T) {
	env := newTestEnv(t, 0)
	env.engine.SetAccrueWhilePaused(true)
	rate := wei(1, 15)
	env.fundRewards(t, [][]*big.Int{{rate}, {big.NewInt(0)}})
	id := env.deposit(t, alice, wei(1, 21), false)

	env.setNow(startTime + 500)
	if err := env.engine.FarmPauseSwitch(owner, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	env.setNow(startTime + 1500)
	rewards, err := env.engine.ComputeRewards(alice, id)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := new(big.Int).Mul(rate, big.NewInt(1500))
	if rewards[0].Cmp(want) != 0 {
		t.Fatalf("rewards = %s, want %s under accrue-while-paused", rewards[0], want)
	}
}

func TestAddRewardsValidation(t *testing.T) {
	env := newTestEnv(t, 0)
	env.ledger.mint(strayToken, alice, wei(1, 18))
	if err := env.engine.AddRewards(alice, strayToken, wei(1, 18)); !errors.Is(err, ErrInvalidRewardToken) {
		t.Fatalf("unregistered token accepted: %v", err)
	}
	if err := env.engine.AddRewards(alice, rwdTokenA, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount accepted: %v", err)
	}
	// Funding is open to any account, not just the manager.
	env.ledger.mint(rwdTokenA, alice, wei(1, 18))
	if err := env.engine.AddRewards(alice, rwdTokenA, wei(1, 18)); err != nil {
		t.Fatalf("third-party funding rejected: %v", err)
	}
	balance, err := env.engine.GetRewardBalance(rwdTokenA)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(wei(1, 18)) != 0 {
		t.Fatalf("balance = %s, want %s", balance, wei(1, 18))
	}
}

func TestRecoverRewardFunds(t *testing.T) {
	env := newTestEnv(t, 0)
	rate := wei(1, 15)
	env.fundRewards(t, [][]*big.Int{{rate}, {big.NewInt(0)}})
	id := env.deposit(t, alice, wei(1, 21), false)
	env.setNow(startTime + 1000)

	if _, err := env.engine.RecoverRewardFunds(alice, rwdTokenA, nil); !errors.Is(err, ErrNotTokenManager) {
		t.Fatalf("non-manager recover accepted: %v", err)
	}

	available, err := env.engine.GetRewardBalance(rwdTokenA)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	over := new(big.Int).Add(available, big.NewInt(1))
	if _, err := env.engine.RecoverRewardFunds(managerA, rwdTokenA, over); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("over-recover accepted: %v", err)
	}

	recovered, err := env.engine.RecoverRewardFunds(managerA, rwdTokenA, new(big.Int).Set(RecoverMax))
	if err != nil {
		t.Fatalf("recover max: %v", err)
	}
	if recovered.Cmp(available) != 0 {
		t.Fatalf("recovered %s, want available %s", recovered, available)
	}
	balance, err := env.engine.GetRewardBalance(rwdTokenA)
	if err != nil {
		t.Fatalf("balance after recover: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("balance after max recover = %s, want 0", balance)
	}

	// The accrued obligation survives the drain and remains claimable.
	claimed, err := env.engine.ClaimRewards(alice, id)
	if err != nil {
		t.Fatalf("claim after recover: %v", err)
	}
	want := new(big.Int).Mul(rate, big.NewInt(1000))
	if claimed[0].Cmp(want) != 0 {
		t.Fatalf("claim after recover paid %s, want %s", claimed[0], want)
	}
}

func TestZeroLiquidityNoAccrual(t *testing.T) {
	env := newTestEnv(t, 0)
	env.fundRewards(t, [][]*big.Int{{wei(1, 15)}, {wei(2, 15)}})
	before, err := env.engine.GetRewardBalance(rwdTokenA)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	env.setNow(startTime + 5000)
	after, err := env.engine.GetRewardBalance(rwdTokenA)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if before.Cmp(after) != 0 {
		t.Fatalf("rewards accrued with zero liquidity: %s -> %s", before, after)
	}
}
