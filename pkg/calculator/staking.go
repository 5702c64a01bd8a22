package calculator

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DaysPerYear is the fixed year length APR is spread over; leap years are not special.
	DaysPerYear = 365

	day = 24 * time.Hour
)

// aprDivisor turns "percent per year" into "fraction per day": 365 * 100.
var aprDivisor = decimal.NewFromInt(DaysPerYear * 100)

// StakeSnapshot is the stored state of a stake the reward calculation reads.
type StakeSnapshot struct {
	Principal      decimal.Decimal
	StakingDate    time.Time
	AprPercent     decimal.Decimal
	RewardsClaimed decimal.Decimal
}

func (s StakeSnapshot) Validate() error {
	if !s.Principal.IsPositive() {
		return fmt.Errorf("%w: principal must be positive, got %s", ErrInvalidStake, s.Principal)
	}
	if s.AprPercent.IsNegative() {
		return fmt.Errorf("%w: apr must not be negative, got %s", ErrInvalidStake, s.AprPercent)
	}
	if s.RewardsClaimed.IsNegative() {
		return fmt.Errorf("%w: rewards claimed must not be negative, got %s", ErrInvalidStake, s.RewardsClaimed)
	}
	return nil
}

// TotalAccrued is the reward earned since the staking date, ignoring claims.
func (s StakeSnapshot) TotalAccrued(now time.Time) (decimal.Decimal, error) {
	if err := s.Validate(); err != nil {
		return decimal.Zero, err
	}
	days := ElapsedDays(s.StakingDate, now)
	if days <= 0 {
		return decimal.Zero, nil
	}
	return ProjectedReward(s.Principal, s.AprPercent, days), nil
}

// AccruedReward is the accrued reward not yet claimed, never negative.
func (s StakeSnapshot) AccruedReward(now time.Time) (decimal.Decimal, error) {
	total, err := s.TotalAccrued(now)
	if err != nil {
		return decimal.Zero, err
	}
	return nonNegative(total.Sub(s.RewardsClaimed)), nil
}

// ComputeAccruedReward returns the simple-interest reward accrued on principal
// for every whole day since stakingDate, minus what has already been claimed.
func ComputeAccruedReward(
	principal decimal.Decimal,
	stakingDate time.Time,
	aprPercent decimal.Decimal,
	rewardsClaimed decimal.Decimal,
	now time.Time,
) (decimal.Decimal, error) {
	return StakeSnapshot{
		Principal:      principal,
		StakingDate:    stakingDate,
		AprPercent:     aprPercent,
		RewardsClaimed: rewardsClaimed,
	}.AccruedReward(now)
}

// ElapsedDays counts whole days between stakingDate and now. Partial days do not count.
func ElapsedDays(stakingDate time.Time, now time.Time) int64 {
	if !now.After(stakingDate) {
		return 0
	}
	return int64(now.Sub(stakingDate) / day)
}

// ProjectedReward is principal * apr / 365 / 100 * days with a single final division.
func ProjectedReward(principal decimal.Decimal, aprPercent decimal.Decimal, days int64) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return principal.Mul(aprPercent).Mul(decimal.NewFromInt(days)).Div(aprDivisor)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
