package calculator

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// VestingSnapshot is the stored state of a vesting schedule the unlock calculation reads.
type VestingSnapshot struct {
	TotalAmount   decimal.Decimal
	StartDate     time.Time
	CliffDate     *time.Time
	EndDate       time.Time
	ClaimedAmount decimal.Decimal
}

// Validate checks the invariants the calculator depends on. A cliff at or past the
// end date is tolerated here; ValidateSchedule is the stricter creation-time check.
func (v VestingSnapshot) Validate() error {
	if !v.EndDate.After(v.StartDate) {
		return fmt.Errorf("%w: end date %s must be after start date %s",
			ErrInvalidSchedule, v.EndDate.Format(time.RFC3339), v.StartDate.Format(time.RFC3339))
	}
	if v.TotalAmount.IsNegative() {
		return fmt.Errorf("%w: total amount must not be negative, got %s", ErrInvalidSchedule, v.TotalAmount)
	}
	if v.ClaimedAmount.IsNegative() {
		return fmt.Errorf("%w: claimed amount must not be negative, got %s", ErrInvalidSchedule, v.ClaimedAmount)
	}
	if v.ClaimedAmount.GreaterThan(v.TotalAmount) {
		return fmt.Errorf("%w: claimed amount %s exceeds total %s", ErrInvalidSchedule, v.ClaimedAmount, v.TotalAmount)
	}
	return nil
}

// Unlocked returns the amount unlocked by now, before subtracting claims.
func (v VestingSnapshot) Unlocked(now time.Time) (decimal.Decimal, error) {
	if err := v.Validate(); err != nil {
		return decimal.Zero, err
	}
	switch {
	case now.Before(v.StartDate):
		return decimal.Zero, nil
	case v.CliffDate != nil && now.Before(*v.CliffDate):
		return decimal.Zero, nil
	case !now.Before(v.EndDate):
		return v.TotalAmount, nil
	}

	elapsed := decimal.NewFromInt(int64(now.Sub(v.StartDate)))
	span := decimal.NewFromInt(int64(v.EndDate.Sub(v.StartDate)))
	return v.TotalAmount.Mul(elapsed).Div(span), nil
}

func (v VestingSnapshot) UnlockedUnclaimed(now time.Time) (decimal.Decimal, error) {
	unlocked, err := v.Unlocked(now)
	if err != nil {
		return decimal.Zero, err
	}
	return nonNegative(unlocked.Sub(v.ClaimedAmount)), nil
}

// ComputeUnlockedUnclaimed returns the vested amount that is claimable at now.
// cliffDate may be nil.
func ComputeUnlockedUnclaimed(
	totalAmount decimal.Decimal,
	startDate time.Time,
	cliffDate *time.Time,
	endDate time.Time,
	claimedAmount decimal.Decimal,
	now time.Time,
) (decimal.Decimal, error) {
	return VestingSnapshot{
		TotalAmount:   totalAmount,
		StartDate:     startDate,
		CliffDate:     cliffDate,
		EndDate:       endDate,
		ClaimedAmount: claimedAmount,
	}.UnlockedUnclaimed(now)
}

// ValidateSchedule is run before a schedule is persisted.
func ValidateSchedule(totalAmount decimal.Decimal, startDate time.Time, cliffDate *time.Time, endDate time.Time) error {
	if !totalAmount.IsPositive() {
		return fmt.Errorf("%w: total amount must be positive, got %s", ErrInvalidSchedule, totalAmount)
	}
	snapshot := VestingSnapshot{
		TotalAmount: totalAmount,
		StartDate:   startDate,
		CliffDate:   cliffDate,
		EndDate:     endDate,
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}
	if cliffDate != nil && (cliffDate.Before(startDate) || cliffDate.After(endDate)) {
		return fmt.Errorf("%w: cliff date %s must fall within [%s, %s]",
			ErrInvalidSchedule,
			cliffDate.Format(time.RFC3339),
			startDate.Format(time.RFC3339),
			endDate.Format(time.RFC3339),
		)
	}
	return nil
}
