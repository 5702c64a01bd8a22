package storage

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrOverclaim is matched by *OverclaimError.
	ErrOverclaim = errors.New("claim amount exceeds claimable amount")

	// ErrConcurrentUpdateConflict means another writer changed the row between read
	// and write. The whole read-compute-write sequence may be retried.
	ErrConcurrentUpdateConflict = errors.New("concurrent update conflict")

	ErrReferralCodeSpaceExhausted = errors.New("unable to generate a unique referral code")

	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrStakeNotActive      = errors.New("stake is not active")
	ErrStakeLocked         = errors.New("stake is still locked")
	ErrPoolNotActive       = errors.New("staking pool is not active")
	ErrScheduleInactive    = errors.New("vesting schedule is inactive")
	ErrPresaleNotActive    = errors.New("presale is not active")
	ErrPurchaseOutOfBounds = errors.New("purchase amount outside presale limits")
	ErrHardCapExceeded     = errors.New("purchase exceeds presale hard cap")
	ErrUnknownReferralCode = errors.New("unknown referral code")
)

type OverclaimError struct {
	Kind      string
	Id        uint64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *OverclaimError) Error() string {
	return fmt.Sprintf("%s %d: requested %s but only %s is claimable", e.Kind, e.Id, e.Requested, e.Available)
}

func (e *OverclaimError) Is(target error) bool {
	return target == ErrOverclaim
}
