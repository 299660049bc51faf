package farm

import (
	"errors"
	"math/big"
	"testing"
)

func TestDepositValidation(t *testing.T) {
	env := newTestEnv(t, 0)
	if _, err := env.engine.Deposit(alice, big.NewInt(0), false); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero liquidity accepted: %v", err)
	}
	if _, err := env.engine.Deposit(alice, wei(1, 21), true); !errors.Is(err, ErrLockupDisabled) {
		t.Fatalf("locked deposit accepted on no-lockup farm: %v", err)
	}
	env.ledger.mint(liqToken, alice, wei(1, 18))
	if _, err := env.engine.Deposit(alice, wei(1, 21), false); err == nil {
		t.Fatal("deposit above balance accepted")
	}
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	env := newTestEnv(t, 0)
	liquidity := wei(1, 21)
	id := env.deposit(t, alice, liquidity, false)

	fund, err := env.engine.GetRewardFundInfo(CommonFundID)
	if err != nil {
		t.Fatalf("fund info: %v", err)
	}
	if fund.TotalLiquidity.Cmp(liquidity) != 0 {
		t.Fatalf("fund liquidity %s, want %s", fund.TotalLiquidity, liquidity)
	}
	if n, _ := env.engine.GetNumDeposits(alice); n != 1 {
		t.Fatalf("deposit count %d, want 1", n)
	}

	returned, err := env.engine.Withdraw(alice, id)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if returned.Cmp(liquidity) != 0 {
		t.Fatalf("returned %s, want %s", returned, liquidity)
	}
	aliceBal, _ := env.ledger.BalanceOf(liqToken, alice)
	if aliceBal.Cmp(liquidity) != 0 {
		t.Fatalf("principal not restored: %s", aliceBal)
	}
	fund, err = env.engine.GetRewardFundInfo(CommonFundID)
	if err != nil {
		t.Fatalf("fund info: %v", err)
	}
	if fund.TotalLiquidity.Sign() != 0 {
		t.Fatalf("fund liquidity after exit %s, want 0", fund.TotalLiquidity)
	}
	if n, _ := env.engine.GetNumDeposits(alice); n != 0 {
		t.Fatalf("deposit count after exit %d, want 0", n)
	}
	if _, err := env.engine.GetDeposit(alice, id); !errors.Is(err, ErrDepositNotFound) {
		t.Fatalf("removed deposit still readable: %v", err)
	}
}

func TestLockupLifecycle(t *testing.T) {
	const cooldownDays = 21
	env := newTestEnv(t, cooldownDays)
	env.fundRewards(t, [][]*big.Int{
		{wei(1, 15), wei(2, 15)},
		{big.NewInt(0), big.NewInt(0)},
	})
	id := env.deposit(t, alice, wei(1, 21), true)

	if n, _ := env.engine.GetNumSubscriptions(alice, id); n != 2 {
		t.Fatalf("locked deposit subscriptions %d, want 2", n)
	}
	if _, err := env.engine.Withdraw(alice, id); !errors.Is(err, ErrCooldownNotInitiated) {
		t.Fatalf("withdraw without cooldown accepted: %v", err)
	}

	env.setNow(startTime + 1000)
	if err := env.engine.InitiateCooldown(alice, id); err != nil {
		t.Fatalf("initiate cooldown: %v", err)
	}
	if n, _ := env.engine.GetNumSubscriptions(alice, id); n != 1 {
		t.Fatalf("subscriptions after cooldown %d, want 1", n)
	}
	d, err := env.engine.GetDeposit(alice, id)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}
	wantExpiry := env.now + cooldownDays*SecondsPerDay
	if d.ExpiryDate != wantExpiry {
		t.Fatalf("expiry %d, want %d", d.ExpiryDate, wantExpiry)
	}
	if d.Locked {
		t.Fatal("deposit still flagged locked after cooldown initiation")
	}
	fund, err := env.engine.GetRewardFundInfo(LockupFundID)
	if err != nil {
		t.Fatalf("lockup fund: %v", err)
	}
	if fund.TotalLiquidity.Sign() != 0 {
		t.Fatalf("lockup fund still holds %s after unsubscribe", fund.TotalLiquidity)
	}

	if err := env.engine.InitiateCooldown(alice, id); !errors.Is(err, ErrDepositInCooldown) {
		t.Fatalf("double cooldown initiation accepted: %v", err)
	}
	if _, err := env.engine.Withdraw(alice, id); !errors.Is(err, ErrDepositInCooldown) {
		t.Fatalf("withdraw before expiry accepted: %v", err)
	}

	env.setNow(wantExpiry)
	if _, err := env.engine.Withdraw(alice, id); err != nil {
		t.Fatalf("withdraw at expiry rejected: %v", err)
	}
}

func TestCooldownPinnedAtDeposit(t *testing.T) {
	env := newTestEnv(t, 21)
	firstID := env.deposit(t, alice, wei(1, 21), true)

	if err := env.engine.UpdateCooldownPeriod(owner, 5); err != nil {
		t.Fatalf("update cooldown: %v", err)
	}
	secondID := env.deposit(t, alice, wei(1, 21), true)

	first, err := env.engine.GetDeposit(alice, firstID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	second, err := env.engine.GetDeposit(alice, secondID)
	if err != nil {
		t.Fatalf("get second: %v", err)
	}
	if first.CooldownPeriod != 21 {
		t.Fatalf("existing deposit cooldown changed to %d", first.CooldownPeriod)
	}
	if second.CooldownPeriod != 5 {
		t.Fatalf("new deposit cooldown %d, want 5", second.CooldownPeriod)
	}
}

func TestUnlockedDepositOnLockupFarm(t *testing.T) {
	env := newTestEnv(t, 21)
	id := env.deposit(t, alice, wei(1, 21), false)

	if n, _ := env.engine.GetNumSubscriptions(alice, id); n != 1 {
		t.Fatalf("unlocked deposit subscriptions %d, want 1", n)
	}
	if err := env.engine.InitiateCooldown(alice, id); !errors.Is(err, ErrCannotInitiateCooldown) {
		t.Fatalf("cooldown initiation accepted for unlocked deposit: %v", err)
	}
	// No cooldown obligation was ever pinned, so exit is immediate.
	if _, err := env.engine.Withdraw(alice, id); err != nil {
		t.Fatalf("withdraw rejected: %v", err)
	}
}

func TestIncreaseDeposit(t *testing.T) {
	env := newTestEnv(t, 21)
	rate := wei(1, 15)
	env.fundRewards(t, [][]*big.Int{
		{rate, big.NewInt(0)},
		{big.NewInt(0), big.NewInt(0)},
	})
	id := env.deposit(t, alice, wei(1, 21), true)

	env.setNow(startTime + 1000)
	extra := wei(1, 21)
	env.ledger.mint(liqToken, alice, extra)
	if err := env.engine.IncreaseDeposit(alice, id, extra); err != nil {
		t.Fatalf("increase: %v", err)
	}

	// The pending rewards were paid out as part of the increase.
	aliceRwd, _ := env.ledger.BalanceOf(rwdTokenA, alice)
	want := new(big.Int).Mul(rate, big.NewInt(1000))
	if aliceRwd.Cmp(want) != 0 {
		t.Fatalf("settled rewards %s, want %s", aliceRwd, want)
	}

	d, err := env.engine.GetDeposit(alice, id)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}
	if d.Liquidity.Cmp(wei(2, 21)) != 0 {
		t.Fatalf("liquidity %s, want %s", d.Liquidity, wei(2, 21))
	}
	for _, fundID := range []uint8{CommonFundID, LockupFundID} {
		fund, err := env.engine.GetRewardFundInfo(fundID)
		if err != nil {
			t.Fatalf("fund %d: %v", fundID, err)
		}
		if fund.TotalLiquidity.Cmp(wei(2, 21)) != 0 {
			t.Fatalf("fund %d liquidity %s, want %s", fundID, fund.TotalLiquidity, wei(2, 21))
		}
	}

	// The enlarged position earns at the new size but not retroactively.
	env.advance(500)
	rewards, err := env.engine.ComputeRewards(alice, id)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	wantAfter := new(big.Int).Mul(rate, big.NewInt(500))
	if rewards[0].Cmp(wantAfter) != 0 {
		t.Fatalf("post-increase rewards %s, want %s", rewards[0], wantAfter)
	}

	if err := env.engine.InitiateCooldown(alice, id); err != nil {
		t.Fatalf("initiate cooldown: %v", err)
	}
	env.ledger.mint(liqToken, alice, extra)
	if err := env.engine.IncreaseDeposit(alice, id, extra); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("increase accepted during cooldown: %v", err)
	}
}

func TestWithdrawPartially(t *testing.T) {
	env := newTestEnv(t, 0)
	id := env.deposit(t, alice, wei(2, 21), false)

	if err := env.engine.WithdrawPartially(alice, id, wei(2, 21)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("full-amount partial accepted: %v", err)
	}
	if err := env.engine.WithdrawPartially(alice, id, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero partial accepted: %v", err)
	}
	if err := env.engine.WithdrawPartially(alice, id, wei(1, 21)); err != nil {
		t.Fatalf("partial withdraw: %v", err)
	}
	d, err := env.engine.GetDeposit(alice, id)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}
	if d.Liquidity.Cmp(wei(1, 21)) != 0 {
		t.Fatalf("remaining liquidity %s, want %s", d.Liquidity, wei(1, 21))
	}
	aliceBal, _ := env.ledger.BalanceOf(liqToken, alice)
	if aliceBal.Cmp(wei(1, 21)) != 0 {
		t.Fatalf("returned principal %s, want %s", aliceBal, wei(1, 21))
	}

	lockupEnv := newTestEnv(t, 21)
	lockedID := lockupEnv.deposit(t, alice, wei(2, 21), true)
	if err := lockupEnv.engine.WithdrawPartially(alice, lockedID, wei(1, 21)); !errors.Is(err, ErrPartialNotPermitted) {
		t.Fatalf("partial accepted for locked deposit: %v", err)
	}
}

func TestWithdrawBypassWhenPaused(t *testing.T) {
	env := newTestEnv(t, 21)
	id := env.deposit(t, alice, wei(1, 21), true)

	env.setNow(startTime + 100)
	if err := env.engine.FarmPauseSwitch(owner, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	// Paused farms waive the cooldown requirement entirely.
	if _, err := env.engine.Withdraw(alice, id); err != nil {
		t.Fatalf("withdraw while paused rejected: %v", err)
	}
	aliceBal, _ := env.ledger.BalanceOf(liqToken, alice)
	if aliceBal.Cmp(wei(1, 21)) != 0 {
		t.Fatalf("principal not returned: %s", aliceBal)
	}
}

func TestConservationAcrossLifecycle(t *testing.T) {
	env := newTestEnv(t, 21)
	rate := wei(1, 15)
	env.fundRewards(t, [][]*big.Int{
		{rate, rate},
		{big.NewInt(0), big.NewInt(0)},
	})
	aliceID := env.deposit(t, alice, wei(3, 21), true)
	bobID := env.deposit(t, bob, wei(1, 21), false)

	env.setNow(startTime + 900)
	if _, err := env.engine.ClaimRewards(bob, bobID); err != nil {
		t.Fatalf("bob claim: %v", err)
	}
	env.advance(600)
	if err := env.engine.InitiateCooldown(alice, aliceID); err != nil {
		t.Fatalf("alice cooldown: %v", err)
	}

	// After every settlement the fund totals must equal the sum of the
	// subscribed deposits, and total claimed can never exceed accrual.
	aliceDep, err := env.engine.GetDeposit(alice, aliceID)
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	bobDep, err := env.engine.GetDeposit(bob, bobID)
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	common0, err := env.engine.GetRewardFundInfo(CommonFundID)
	if err != nil {
		t.Fatalf("common fund: %v", err)
	}
	sum := new(big.Int).Add(aliceDep.Liquidity, bobDep.Liquidity)
	if common0.TotalLiquidity.Cmp(sum) != 0 {
		t.Fatalf("common fund %s != deposit sum %s", common0.TotalLiquidity, sum)
	}

	info, err := env.engine.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, rt := range info.RewardTokens {
		if rt.TotalClaimed.Cmp(rt.TotalAccrued) > 0 {
			t.Fatalf("token %s claimed %s exceeds accrued %s", rt.Token.Hex(), rt.TotalClaimed, rt.TotalAccrued)
		}
	}

	// Custodian reward balance covers the outstanding obligation exactly.
	custody, _ := env.ledger.BalanceOf(rwdTokenA, farmAddr)
	rtA := info.RewardTokens[0]
	outstanding := new(big.Int).Sub(rtA.TotalAccrued, rtA.TotalClaimed)
	covered := new(big.Int).Sub(rtA.Funded, rtA.TotalClaimed)
	if custody.Cmp(covered) != 0 {
		t.Fatalf("custody %s != funded-claimed %s", custody, covered)
	}
	if covered.Cmp(outstanding) < 0 {
		t.Fatalf("custody cannot cover obligation: %s < %s", covered, outstanding)
	}
}

func TestDepositEvents(t *testing.T) {
	env := newTestEnv(t, 21)
	env.fundRewards(t, [][]*big.Int{
		{wei(1, 15), big.NewInt(0)},
		{big.NewInt(0), big.NewInt(0)},
	})
	id := env.deposit(t, alice, wei(1, 21), true)

	evt := env.sink.lastOfType(EventTypeDeposited)
	if evt == nil {
		t.Fatal("no deposited event")
	}
	if evt.Attributes["account"] != alice.Hex() || evt.Attributes["locked"] != "true" {
		t.Fatalf("deposited event malformed: %+v", evt.Attributes)
	}

	env.setNow(startTime + 1000)
	if _, err := env.engine.ClaimRewards(alice, id); err != nil {
		t.Fatalf("claim: %v", err)
	}
	evt = env.sink.lastOfType(EventTypeRewardsClaimed)
	if evt == nil {
		t.Fatal("no claim event")
	}
	// Zero amounts still appear so the array always spans every token.
	if evt.Attributes["rewardAmount"] != wei(1, 18).String()+",0" {
		t.Fatalf("claim event amounts = %q", evt.Attributes["rewardAmount"])
	}
}
