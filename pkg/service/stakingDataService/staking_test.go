package stakingDataService

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/presale-labs/presale-store/internal/config"
	"github.com/presale-labs/presale-store/internal/logger"
	"github.com/presale-labs/presale-store/internal/metrics"
	"github.com/presale-labs/presale-store/internal/tests"
	"github.com/presale-labs/presale-store/pkg/service/types"
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

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func Test_StakingDataService(t *testing.T) {
	grm, l, cfg, err := setup()
	if err != nil {
		t.Fatalf("Failed to setup test: %v", err)
	}
	defer tests.CloseDatabase(grm)

	ctx := context.Background()
	sds := NewStakingDataService(grm, l, cfg, metrics.NewNoopMetricsSink())
	stakedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	user, err := tests.CreateTestUser(grm, "STAKER01")
	require.Nil(t, err)

	pool, err := sds.CreatePool(ctx, &CreatePoolRequest{
		Name:     "Flexible",
		Apr:      decimal.NewFromInt(12),
		MinStake: decimal.NewFromInt(100),
		LockDays: 30,
	})
	require.Nil(t, err)

	t.Run("Should list the active pools", func(t *testing.T) {
		inactive, err := sds.CreatePool(ctx, &CreatePoolRequest{Name: "Closed", Apr: decimal.NewFromInt(5)})
		require.Nil(t, err)
		res := grm.Model(&storage.StakingPool{}).Where("id = ?", inactive.Id).Update("is_active", false)
		require.Nil(t, res.Error)

		pools, err := sds.ListActivePools(ctx)
		assert.Nil(t, err)
		assert.Len(t, pools, 1)
		assert.Equal(t, pool.Id, pools[0].Id)

		_, err = sds.CreateStake(ctx, &CreateStakeRequest{UserId: user.Id, PoolId: inactive.Id, Amount: decimal.NewFromInt(1000)}, stakedAt)
		assert.True(t, errors.Is(err, storage.ErrPoolNotActive))
	})

	t.Run("Should reject stakes below the pool minimum", func(t *testing.T) {
		_, err := sds.CreateStake(ctx, &CreateStakeRequest{UserId: user.Id, PoolId: pool.Id, Amount: decimal.NewFromInt(50)}, stakedAt)
		assert.True(t, errors.Is(err, storage.ErrInvalidAmount))
	})

	t.Run("Should reject stakes for unknown users", func(t *testing.T) {
		_, err := sds.CreateStake(ctx, &CreateStakeRequest{UserId: 9999, PoolId: pool.Id, Amount: decimal.NewFromInt(1000)}, stakedAt)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	stake, err := sds.CreateStake(ctx, &CreateStakeRequest{UserId: user.Id, PoolId: pool.Id, Amount: decimal.NewFromInt(1000)}, stakedAt)
	require.Nil(t, err)

	t.Run("Should create a stake and update the totals", func(t *testing.T) {
		assert.Equal(t, storage.StakeStatus_Active, stake.Status)
		assert.True(t, stake.UnlockDate.Equal(stakedAt.Add(days(30))))

		p, err := sds.GetPool(ctx, pool.Id)
		assert.Nil(t, err)
		assert.Equal(t, "1000", p.TotalStaked.String())

		stats := &storage.UserStats{}
		res := grm.Where("user_id = ?", user.Id).First(stats)
		assert.Nil(t, res.Error)
		assert.Equal(t, "1000", stats.TotalStaked.String())

		var ledgerRows int64
		grm.Model(&storage.Transaction{}).Where("user_id = ? and type = ?", user.Id, storage.TransactionType_Stake).Count(&ledgerRows)
		assert.Equal(t, int64(1), ledgerRows)

		stakes, err := sds.ListStakesForUser(ctx, user.Id, nil, types.NewDefaultPagination())
		assert.Nil(t, err)
		assert.Len(t, stakes, 1)
	})

	t.Run("Should compute the accrued reward from the pool apr", func(t *testing.T) {
		snapshot, err := sds.GetStakeSnapshot(ctx, stake.Id)
		assert.Nil(t, err)
		assert.Equal(t, "12", snapshot.AprPercent.String())

		reward, err := sds.GetAccruedReward(ctx, stake.Id, stakedAt.Add(days(365)))
		assert.Nil(t, err)
		assert.Equal(t, "120", reward.String())

		reward, err = sds.GetAccruedReward(ctx, stake.Id, stakedAt.Add(12*time.Hour))
		assert.Nil(t, err)
		assert.True(t, reward.IsZero())

		_, err = sds.GetStakeSnapshot(ctx, 9999)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	claimAt := stakedAt.Add(days(365))

	t.Run("Should reject non-positive claim amounts", func(t *testing.T) {
		_, err := sds.ClaimRewards(ctx, stake.Id, decimal.Zero, claimAt)
		assert.True(t, errors.Is(err, storage.ErrInvalidAmount))

		_, err = sds.ClaimRewards(ctx, stake.Id, decimal.NewFromInt(-5), claimAt)
		assert.True(t, errors.Is(err, storage.ErrInvalidAmount))
	})

	t.Run("Should claim part of the accrued reward", func(t *testing.T) {
		res, err := sds.ClaimRewards(ctx, stake.Id, decimal.NewFromInt(25), claimAt)
		require.Nil(t, err)
		assert.Equal(t, "25", res.Claim.Amount.String())
		assert.Equal(t, "95", res.RemainingReward.String())
		assert.Equal(t, storage.TransactionType_RewardClaim, res.Transaction.Type)

		reward, err := sds.GetAccruedReward(ctx, stake.Id, claimAt)
		assert.Nil(t, err)
		assert.Equal(t, "95", reward.String())

		updated, err := sds.GetStake(ctx, stake.Id)
		assert.Nil(t, err)
		assert.Equal(t, "25", updated.RewardsClaimed.String())
		assert.Equal(t, stake.Version+1, updated.Version)

		claims, err := sds.ListRewardClaims(ctx, stake.Id)
		assert.Nil(t, err)
		assert.Len(t, claims, 1)
	})

	t.Run("Should reject an overclaim and leave the stake untouched", func(t *testing.T) {
		before, err := sds.GetStake(ctx, stake.Id)
		require.Nil(t, err)

		_, err = sds.ClaimRewards(ctx, stake.Id, decimal.NewFromInt(96), claimAt)
		assert.True(t, errors.Is(err, storage.ErrOverclaim))

		var overclaim *storage.OverclaimError
		assert.True(t, errors.As(err, &overclaim))
		assert.Equal(t, "95", overclaim.Available.String())
		assert.Equal(t, "96", overclaim.Requested.String())

		after, err := sds.GetStake(ctx, stake.Id)
		assert.Nil(t, err)
		assert.Equal(t, before.Version, after.Version)
		assert.Equal(t, before.RewardsClaimed.String(), after.RewardsClaimed.String())

		claims, err := sds.ListRewardClaims(ctx, stake.Id)
		assert.Nil(t, err)
		assert.Len(t, claims, 1)
	})

	t.Run("Should allow claiming exactly the remaining reward", func(t *testing.T) {
		res, err := sds.ClaimRewards(ctx, stake.Id, decimal.NewFromInt(95), claimAt)
		require.Nil(t, err)
		assert.True(t, res.RemainingReward.IsZero())

		_, err = sds.ClaimRewards(ctx, stake.Id, decimal.NewFromInt(1), claimAt)
		assert.True(t, errors.Is(err, storage.ErrOverclaim))

		stats := &storage.UserStats{}
		grm.Where("user_id = ?", user.Id).First(stats)
		assert.Equal(t, "120", stats.TotalRewardsClaimed.String())
	})

	t.Run("Should fail a claim written against a stale version", func(t *testing.T) {
		stale, err := sds.GetStake(ctx, stake.Id)
		require.Nil(t, err)

		res := grm.Model(&storage.Stake{}).Where("id = ?", stake.Id).Update("version", gorm.Expr("version + 1"))
		require.Nil(t, res.Error)

		err = applyStakeClaim(grm, stale, decimal.NewFromInt(1))
		assert.True(t, errors.Is(err, storage.ErrConcurrentUpdateConflict))

		current, err := sds.GetStake(ctx, stake.Id)
		assert.Nil(t, err)
		assert.Equal(t, "120", current.RewardsClaimed.String())
	})

	t.Run("Should not withdraw a locked stake", func(t *testing.T) {
		locked, err := sds.CreateStake(ctx, &CreateStakeRequest{UserId: user.Id, PoolId: pool.Id, Amount: decimal.NewFromInt(500)}, stakedAt)
		require.Nil(t, err)

		_, err = sds.WithdrawStake(ctx, locked.Id, stakedAt.Add(days(10)))
		assert.True(t, errors.Is(err, storage.ErrStakeLocked))

		withdrawn, err := sds.WithdrawStake(ctx, locked.Id, stakedAt.Add(days(30)))
		assert.Nil(t, err)
		assert.Equal(t, storage.StakeStatus_Withdrawn, withdrawn.Status)
		assert.NotNil(t, withdrawn.WithdrawnAt)
	})

	t.Run("Should withdraw and close the stake", func(t *testing.T) {
		_, err := sds.WithdrawStake(ctx, stake.Id, claimAt)
		require.Nil(t, err)

		p, err := sds.GetPool(ctx, pool.Id)
		assert.Nil(t, err)
		assert.True(t, p.TotalStaked.IsZero())

		stats := &storage.UserStats{}
		grm.Where("user_id = ?", user.Id).First(stats)
		assert.True(t, stats.TotalStaked.IsZero())

		_, err = sds.WithdrawStake(ctx, stake.Id, claimAt)
		assert.True(t, errors.Is(err, storage.ErrStakeNotActive))

		_, err = sds.ClaimRewards(ctx, stake.Id, decimal.NewFromInt(1), claimAt.Add(days(365)))
		assert.True(t, errors.Is(err, storage.ErrStakeNotActive))

		active := storage.StakeStatus_Active
		stakes, err := sds.ListStakesForUser(ctx, user.Id, &active, nil)
		assert.Nil(t, err)
		assert.Len(t, stakes, 0)
	})
}

func Test_StakingDataService_FractionalAmounts(t *testing.T) {
	grm, l, cfg, err := setup()
	if err != nil {
		t.Fatalf("Failed to setup test: %v", err)
	}
	defer tests.CloseDatabase(grm)

	ctx := context.Background()
	sds := NewStakingDataService(grm, l, cfg, metrics.NewNoopMetricsSink())
	stakedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	claimAt := stakedAt.Add(days(30))

	user, err := tests.CreateTestUser(grm, "STAKER02")
	require.Nil(t, err)

	pool, err := sds.CreatePool(ctx, &CreatePoolRequest{Name: "Monthly", Apr: decimal.NewFromInt(12)})
	require.Nil(t, err)

	stake, err := sds.CreateStake(ctx, &CreateStakeRequest{UserId: user.Id, PoolId: pool.Id, Amount: decimal.NewFromInt(1000)}, stakedAt)
	require.Nil(t, err)

	accrued, err := sds.GetAccruedReward(ctx, stake.Id, claimAt)
	require.Nil(t, err)

	t.Run("Should accrue a fractional reward after 30 days", func(t *testing.T) {
		assert.Equal(t, "9.863013698630137", accrued.String())
	})

	t.Run("Should store each claimed counter as the prior value plus the claim", func(t *testing.T) {
		claimed := decimal.Zero
		for _, amount := range []string{"0.1", "0.2", "1.123456789012345678"} {
			delta := decimal.RequireFromString(amount)
			before, err := sds.GetStake(ctx, stake.Id)
			require.Nil(t, err)

			res, err := sds.ClaimRewards(ctx, stake.Id, delta, claimAt)
			require.Nil(t, err)
			claimed = claimed.Add(delta)
			assert.True(t, accrued.Sub(claimed).Equal(res.RemainingReward), "remaining %s", res.RemainingReward)

			after, err := sds.GetStake(ctx, stake.Id)
			require.Nil(t, err)
			assert.True(t, before.RewardsClaimed.Add(delta).Equal(after.RewardsClaimed), "claimed %s", after.RewardsClaimed)
			assert.True(t, before.TotalRewardsEarned.Add(delta).Equal(after.TotalRewardsEarned))
		}

		current, err := sds.GetStake(ctx, stake.Id)
		require.Nil(t, err)
		assert.Equal(t, "1.423456789012345678", current.RewardsClaimed.String())
	})

	t.Run("Should claim the exact remainder and leave nothing accrued", func(t *testing.T) {
		remaining, err := sds.GetAccruedReward(ctx, stake.Id, claimAt)
		require.Nil(t, err)
		assert.Equal(t, "8.439556909617791322", remaining.String())

		res, err := sds.ClaimRewards(ctx, stake.Id, remaining, claimAt)
		require.Nil(t, err)
		assert.True(t, res.RemainingReward.IsZero())

		current, err := sds.GetStake(ctx, stake.Id)
		require.Nil(t, err)
		assert.True(t, accrued.Equal(current.RewardsClaimed), "claimed %s", current.RewardsClaimed)

		reward, err := sds.GetAccruedReward(ctx, stake.Id, claimAt)
		assert.Nil(t, err)
		assert.True(t, reward.IsZero())

		_, err = sds.ClaimRewards(ctx, stake.Id, decimal.RequireFromString("0.000000000000000001"), claimAt)
		assert.True(t, errors.Is(err, storage.ErrOverclaim))

		stats := &storage.UserStats{}
		res2 := grm.Where("user_id = ?", user.Id).First(stats)
		assert.Nil(t, res2.Error)
		assert.Equal(t, "9.863013698630137", stats.TotalRewardsClaimed.String())
	})
}
