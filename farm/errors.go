package farm

import "errors"

var (
	ErrNotInitialized     = errors.New("farm: not initialized")
	ErrAlreadyInitialized = errors.New("farm: already initialized")

	ErrInvalidAddress           = errors.New("farm: invalid address")
	ErrInvalidAmount            = errors.New("farm: invalid amount")
	ErrInvalidRewardData        = errors.New("farm: invalid reward data")
	ErrInvalidRewardToken       = errors.New("farm: invalid reward token")
	ErrRewardTokenAlreadyAdded  = errors.New("farm: reward token already added")
	ErrInvalidRewardRatesLength = errors.New("farm: invalid reward rates length")
	ErrInvalidCooldownPeriod    = errors.New("farm: invalid cooldown period")
	ErrInvalidFarmStartTime     = errors.New("farm: invalid farm start time")

	ErrRewardFundNotFound = errors.New("farm: reward fund does not exist")
	ErrDepositNotFound    = errors.New("farm: deposit does not exist")
	ErrSubscriptionNotFound = errors.New("farm: subscription does not exist")

	ErrFarmPaused         = errors.New("farm: farm paused")
	ErrFarmClosed         = errors.New("farm: farm closed")
	ErrFarmAlreadyStarted = errors.New("farm: farm already started")
	ErrFarmAlreadyInState = errors.New("farm: farm already in required state")
	ErrTimeInPast         = errors.New("farm: time < now")

	ErrNoLockupSupport = errors.New("farm: farm does not support lockup")
	ErrLockupDisabled  = errors.New("farm: lockup functionality is disabled")

	ErrCannotInitiateCooldown = errors.New("farm: can not initiate cooldown")
	// ErrDepositInCooldown rejects withdrawals before the cooldown expiry.
	ErrDepositInCooldown = errors.New("farm: deposit is in cooldown")
	// ErrCooldownActive rejects increases while a cooldown is pending.
	ErrCooldownActive       = errors.New("farm: deposit in cooldown")
	ErrCooldownNotInitiated = errors.New("farm: please initiate cooldown")
	ErrPartialNotPermitted  = errors.New("farm: partial withdraw not permitted")

	ErrNotOwner        = errors.New("farm: caller is not the owner")
	ErrNotTokenManager = errors.New("farm: not the token manager")

	ErrRecoverRewardToken = errors.New("farm: cannot recover a reward token")
	ErrRecoverFarmToken   = errors.New("farm: cannot recover the farm liquidity token")
	ErrNothingToRecover   = errors.New("farm: no balance to recover")
)
