package storage

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionType string

const (
	TransactionType_Purchase       TransactionType = "purchase"
	TransactionType_Stake          TransactionType = "stake"
	TransactionType_Unstake        TransactionType = "unstake"
	TransactionType_RewardClaim    TransactionType = "reward_claim"
	TransactionType_VestingClaim   TransactionType = "vesting_claim"
	TransactionType_ReferralReward TransactionType = "referral_reward"
)

type TransactionStatus string

const (
	TransactionStatus_Pending   TransactionStatus = "pending"
	TransactionStatus_Completed TransactionStatus = "completed"
	TransactionStatus_Failed    TransactionStatus = "failed"
)

type StakeStatus string

const (
	StakeStatus_Active    StakeStatus = "active"
	StakeStatus_Withdrawn StakeStatus = "withdrawn"
)

// Tables.
type User struct {
	Id            uint64 `gorm:"primaryKey"`
	WalletAddress string `gorm:"type:varchar(42);uniqueIndex;not null"`
	Email         string
	Username      string
	ReferralCode  string  `gorm:"type:varchar(32);uniqueIndex;not null"`
	ReferredBy    *uint64 `gorm:"index"`
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type UserStats struct {
	UserId              uint64          `gorm:"primaryKey;autoIncrement:false"`
	TotalPurchased      decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	TotalTokens         decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	TotalStaked         decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	TotalRewardsEarned  decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	TotalRewardsClaimed decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	TotalVestingClaimed decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	ReferralCount       int64           `gorm:"not null;default:0"`
	ReferralEarnings    decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	UpdatedAt           time.Time
}

type Presale struct {
	Id                    uint64          `gorm:"primaryKey"`
	Name                  string          `gorm:"not null"`
	TokenSymbol           string          `gorm:"type:varchar(16);not null"`
	TokenPrice            decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	HardCap               decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	MinPurchase           decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	MaxPurchase           decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	TokensSold            decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	AmountRaised          decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	ReferralRewardPercent decimal.Decimal `gorm:"type:numeric(9,4);not null;default:0"`
	StartDate             time.Time
	EndDate               time.Time
	IsActive              bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Transaction struct {
	Id          uint64            `gorm:"primaryKey"`
	Reference   string            `gorm:"type:varchar(36);uniqueIndex;not null"`
	UserId      uint64            `gorm:"index;not null"`
	PresaleId   *uint64           `gorm:"index"`
	Type        TransactionType   `gorm:"type:varchar(32);index;not null"`
	Status      TransactionStatus `gorm:"type:varchar(16);not null"`
	Amount      decimal.Decimal   `gorm:"type:numeric(38,18);not null;default:0"`
	TokenAmount decimal.Decimal   `gorm:"type:numeric(38,18);not null;default:0"`
	Currency    string            `gorm:"type:varchar(16)"`
	TxHash      string            `gorm:"type:varchar(66)"`
	Metadata    datatypes.JSON
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Referral struct {
	Id           uint64          `gorm:"primaryKey"`
	ReferrerId   uint64          `gorm:"index;not null"`
	RefereeId    uint64          `gorm:"uniqueIndex;not null"`
	Code         string          `gorm:"type:varchar(32);not null"`
	RewardEarned decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	CreatedAt    time.Time
}

type StakingPool struct {
	Id          uint64          `gorm:"primaryKey"`
	Name        string          `gorm:"not null"`
	Apr         decimal.Decimal `gorm:"type:numeric(9,4);not null"`
	MinStake    decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	LockDays    int             `gorm:"not null;default:0"`
	TotalStaked decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Stake struct {
	Id                 uint64          `gorm:"primaryKey"`
	UserId             uint64          `gorm:"index;not null"`
	PoolId             uint64          `gorm:"index;not null"`
	Amount             decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	StakingDate        time.Time       `gorm:"not null"`
	UnlockDate         time.Time       `gorm:"not null"`
	Status             StakeStatus     `gorm:"type:varchar(16);index;not null"`
	TotalRewardsEarned decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	RewardsClaimed     decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	WithdrawnAt        *time.Time
	Version            uint64 `gorm:"not null;default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StakeRewardClaim rows are append-only.
type StakeRewardClaim struct {
	Id        uint64          `gorm:"primaryKey"`
	StakeId   uint64          `gorm:"index;not null"`
	UserId    uint64          `gorm:"index;not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	ClaimedAt time.Time       `gorm:"not null"`
}

type VestingSchedule struct {
	Id            uint64          `gorm:"primaryKey"`
	UserId        uint64          `gorm:"index;not null"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	VestedAmount  decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	ClaimedAmount decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	StartDate     time.Time       `gorm:"not null"`
	CliffDate     *time.Time
	EndDate       time.Time `gorm:"not null"`
	IsActive      bool
	Version       uint64 `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (*UserStats) TableName() string {
	return "user_stats"
}

func (*StakeRewardClaim) TableName() string {
	return "stake_reward_claims"
}

// AllModels lists every table, in dependency order, for AutoMigrate in tests and local sqlite runs.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&UserStats{},
		&Presale{},
		&Transaction{},
		&Referral{},
		&StakingPool{},
		&Stake{},
		&StakeRewardClaim{},
		&VestingSchedule{},
	}
}
