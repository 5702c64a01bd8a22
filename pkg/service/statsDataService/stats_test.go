package statsDataService

import (
	"context"
	"testing"
	"time"

	"github.com/presale-labs/presale-store/internal/config"
	"github.com/presale-labs/presale-store/internal/logger"
	"github.com/presale-labs/presale-store/internal/metrics"
	"github.com/presale-labs/presale-store/internal/tests"
	"github.com/presale-labs/presale-store/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup() (
	*gorm.DB,
	*zap.Logger,
	*config.Config,
	error,
) {
	cfg := tests.GetConfig()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, nil, nil, err
	}
	grm, err := tests.GetInMemorySqliteDatabase(cfg.Debug)
	if err != nil {
		return nil, nil, nil, err
	}
	return grm, l, cfg, nil
}

func Test_StatsDataService(t *testing.T) {
	grm, l, cfg, err := setup()
	if err != nil {
		t.Fatalf("Failed to setup test: %v", err)
	}
	defer tests.CloseDatabase(grm)

	ctx := context.Background()
	sds := NewStatsDataService(grm, l, cfg, metrics.NewNoopMetricsSink())

	t.Run("Should return zeroed stats on an empty database", func(t *testing.T) {
		stats, err := sds.GetPlatformStats(ctx)
		assert.Nil(t, err)
		assert.Equal(t, int64(0), stats.UserCount)
		assert.True(t, stats.TotalRaised.IsZero())
		assert.True(t, stats.TotalStaked.IsZero())
	})

	user, err := tests.CreateTestUser(grm, "STATS001")
	require.Nil(t, err)

	t.Run("Should return zero stats for a user without a stats row", func(t *testing.T) {
		stats, err := sds.GetUserStats(ctx, user.Id)
		assert.Nil(t, err)
		assert.Equal(t, user.Id, stats.UserId)
		assert.True(t, stats.TotalPurchased.IsZero())
	})

	t.Run("Should return the stored user stats", func(t *testing.T) {
		require.Nil(t, storage.IncrementUserStats(grm, user.Id, &storage.UserStatsDelta{
			TotalPurchased: decimal.NewFromFloat(12.5),
			ReferralCount:  2,
		}))
		stats, err := sds.GetUserStats(ctx, user.Id)
		assert.Nil(t, err)
		assert.Equal(t, "12.5", stats.TotalPurchased.String())
		assert.Equal(t, int64(2), stats.ReferralCount)
	})

	t.Run("Should aggregate totals across the platform", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		require.Nil(t, grm.Create(&storage.Presale{
			Name: "A", TokenSymbol: "A", TokenPrice: decimal.NewFromInt(1), HardCap: decimal.NewFromInt(1000),
			TokensSold: decimal.NewFromInt(100), AmountRaised: decimal.NewFromInt(100),
			StartDate: now, EndDate: now.Add(time.Hour), IsActive: true,
		}).Error)
		require.Nil(t, grm.Create(&storage.Presale{
			Name: "B", TokenSymbol: "B", TokenPrice: decimal.NewFromFloat(0.5), HardCap: decimal.NewFromInt(1000),
			TokensSold: decimal.NewFromInt(100), AmountRaised: decimal.NewFromInt(50),
			StartDate: now, EndDate: now.Add(time.Hour), IsActive: true,
		}).Error)
		require.Nil(t, grm.Create(&storage.Stake{
			UserId: user.Id, PoolId: 1, Amount: decimal.NewFromInt(400), StakingDate: now, UnlockDate: now,
			Status: storage.StakeStatus_Active, RewardsClaimed: decimal.NewFromInt(10),
		}).Error)
		require.Nil(t, grm.Create(&storage.Stake{
			UserId: user.Id, PoolId: 1, Amount: decimal.NewFromInt(600), StakingDate: now, UnlockDate: now,
			Status: storage.StakeStatus_Withdrawn, RewardsClaimed: decimal.NewFromInt(5),
		}).Error)
		require.Nil(t, grm.Create(&storage.VestingSchedule{
			UserId: user.Id, TotalAmount: decimal.NewFromInt(1000), ClaimedAmount: decimal.NewFromInt(250),
			StartDate: now, EndDate: now.Add(time.Hour), IsActive: true,
		}).Error)

		stats, err := sds.GetPlatformStats(ctx)
		assert.Nil(t, err)
		assert.Equal(t, int64(1), stats.UserCount)
		assert.Equal(t, "150", stats.TotalRaised.String())
		assert.Equal(t, "200", stats.TokensSold.String())
		assert.Equal(t, "400", stats.TotalStaked.String())
		assert.Equal(t, "15", stats.RewardsClaimed.String())
		assert.Equal(t, "250", stats.VestingClaimed.String())
	})
}
