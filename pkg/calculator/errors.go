package calculator

import "errors"

var (
	// ErrInvalidStake is returned when a stake snapshot violates principal > 0,
	// apr >= 0 or rewardsClaimed >= 0.
	ErrInvalidStake = errors.New("invalid stake")

	// ErrInvalidSchedule is returned for a vesting schedule whose end is not after
	// its start, whose amounts are negative, or whose claims exceed the total.
	ErrInvalidSchedule = errors.New("invalid vesting schedule")
)
