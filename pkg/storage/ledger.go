package storage

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertTransaction appends a ledger row, assigning a reference and status when unset.
func InsertTransaction(tx *gorm.DB, t *Transaction) (*Transaction, error) {
	if t.Reference == "" {
		t.Reference = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TransactionStatus_Pending
	}
	if res := tx.Model(&Transaction{}).Create(t); res.Error != nil {
		return nil, fmt.Errorf("failed to insert %s transaction: %w", t.Type, res.Error)
	}
	return t, nil
}

// TransactionMetadata encodes an arbitrary value for Transaction.Metadata.
func TransactionMetadata(v interface{}) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// UserStatsDelta holds increments to apply to a user_stats row. Zero fields are skipped.
type UserStatsDelta struct {
	TotalPurchased      decimal.Decimal
	TotalTokens         decimal.Decimal
	TotalStaked         decimal.Decimal
	TotalRewardsEarned  decimal.Decimal
	TotalRewardsClaimed decimal.Decimal
	TotalVestingClaimed decimal.Decimal
	ReferralCount       int64
	ReferralEarnings    decimal.Decimal
}

func (d *UserStatsDelta) amounts() map[string]decimal.Decimal {
	amounts := map[string]decimal.Decimal{}
	add := func(column string, value decimal.Decimal) {
		if !value.IsZero() {
			amounts[column] = value
		}
	}
	add("total_purchased", d.TotalPurchased)
	add("total_tokens", d.TotalTokens)
	add("total_staked", d.TotalStaked)
	add("total_rewards_earned", d.TotalRewardsEarned)
	add("total_rewards_claimed", d.TotalRewardsClaimed)
	add("total_vesting_claimed", d.TotalVestingClaimed)
	add("referral_earnings", d.ReferralEarnings)
	return amounts
}

// IncrementUserStats applies delta through AddAmounts so concurrent writers never lose
// updates. The row is created on first use.
func IncrementUserStats(tx *gorm.DB, userId uint64, delta *UserStatsDelta) error {
	amounts := delta.amounts()
	if len(amounts) == 0 && delta.ReferralCount == 0 {
		return nil
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&UserStats{UserId: userId})
	if res.Error != nil {
		return fmt.Errorf("failed to initialize user stats for user %d: %w", userId, res.Error)
	}

	if delta.ReferralCount != 0 {
		res = tx.Model(&UserStats{}).
			Where("user_id = ?", userId).
			Update("referral_count", gorm.Expr("referral_count + ?", delta.ReferralCount))
		if res.Error != nil {
			return fmt.Errorf("failed to update user stats for user %d: %w", userId, res.Error)
		}
	}
	if err := AddAmounts(tx, &UserStats{}, amounts, "user_id = ?", userId); err != nil {
		return fmt.Errorf("failed to update user stats for user %d: %w", userId, err)
	}
	return nil
}
