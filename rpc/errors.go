package rpc

import (
	"errors"
	"net/http"

	"stakefarm/farm"
)

// statusFor maps engine rejections to HTTP status codes. Validation and
// state-precondition failures are the caller's problem; everything else is a
// server fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, farm.ErrDepositNotFound),
		errors.Is(err, farm.ErrSubscriptionNotFound),
		errors.Is(err, farm.ErrRewardFundNotFound):
		return http.StatusNotFound
	case errors.Is(err, farm.ErrNotOwner),
		errors.Is(err, farm.ErrNotTokenManager):
		return http.StatusForbidden
	case errors.Is(err, farm.ErrInvalidAddress),
		errors.Is(err, farm.ErrInvalidAmount),
		errors.Is(err, farm.ErrInvalidRewardData),
		errors.Is(err, farm.ErrInvalidRewardToken),
		errors.Is(err, farm.ErrInvalidRewardRatesLength),
		errors.Is(err, farm.ErrInvalidCooldownPeriod),
		errors.Is(err, farm.ErrInvalidFarmStartTime),
		errors.Is(err, farm.ErrRewardTokenAlreadyAdded),
		errors.Is(err, farm.ErrTimeInPast):
		return http.StatusBadRequest
	case errors.Is(err, farm.ErrFarmPaused),
		errors.Is(err, farm.ErrFarmClosed),
		errors.Is(err, farm.ErrFarmAlreadyStarted),
		errors.Is(err, farm.ErrFarmAlreadyInState),
		errors.Is(err, farm.ErrNoLockupSupport),
		errors.Is(err, farm.ErrLockupDisabled),
		errors.Is(err, farm.ErrCannotInitiateCooldown),
		errors.Is(err, farm.ErrDepositInCooldown),
		errors.Is(err, farm.ErrCooldownActive),
		errors.Is(err, farm.ErrCooldownNotInitiated),
		errors.Is(err, farm.ErrPartialNotPermitted),
		errors.Is(err, farm.ErrRecoverRewardToken),
		errors.Is(err, farm.ErrRecoverFarmToken),
		errors.Is(err, farm.ErrNothingToRecover):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
