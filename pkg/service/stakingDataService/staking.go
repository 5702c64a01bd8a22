package stakingDataService

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/presale-labs/presale-store/internal/config"
	"github.com/presale-labs/presale-store/internal/metrics"
	"github.com/presale-labs/presale-store/internal/metrics/metricsTypes"
	"github.com/presale-labs/presale-store/internal/validation"
	"github.com/presale-labs/presale-store/pkg/calculator"
	"github.com/presale-labs/presale-store/pkg/postgres/helpers"
	"github.com/presale-labs/presale-store/pkg/service/baseDataService"
	"github.com/presale-labs/presale-store/pkg/service/types"
	"github.com/presale-labs/presale-store/pkg/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const claimKind = "stake"

type StakingDataService struct {
	baseDataService.BaseDataService
	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	validator    *validation.Validator
}

func NewStakingDataService(
	db *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
	ms *metrics.MetricsSink,
) *StakingDataService {
	return &StakingDataService{
		BaseDataService: baseDataService.BaseDataService{
			DB:      db,
			Logger:  logger,
			Metrics: ms,
		},
		db:           db,
		logger:       logger,
		globalConfig: globalConfig,
		validator:    validation.NewValidator(),
	}
}

type CreatePoolRequest struct {
	Name     string          `validate:"required,max=128"`
	Apr      decimal.Decimal `validate:"decimal_gte0"`
	MinStake decimal.Decimal `validate:"decimal_gte0"`
	LockDays int             `validate:"gte=0"`
}

func (sds *StakingDataService) CreatePool(ctx context.Context, req *CreatePoolRequest) (*storage.StakingPool, error) {
	if err := sds.validator.Struct(req); err != nil {
		return nil, err
	}
	pool := &storage.StakingPool{
		Name:     req.Name,
		Apr:      req.Apr,
		MinStake: req.MinStake,
		LockDays: req.LockDays,
		IsActive: true,
	}
	if res := sds.db.WithContext(ctx).Create(pool); res.Error != nil {
		sds.logger.Sugar().Errorw("Failed to create staking pool", zap.String("name", req.Name), zap.Error(res.Error))
		return nil, errors.Wrap(res.Error, "failed to create staking pool")
	}
	return pool, nil
}

func (sds *StakingDataService) GetPool(ctx context.Context, id uint64) (*storage.StakingPool, error) {
	pool := &storage.StakingPool{}
	if err := sds.FindById(sds.db.WithContext(ctx), pool, "staking pool", id, false); err != nil {
		return nil, err
	}
	return pool, nil
}

func (sds *StakingDataService) ListActivePools(ctx context.Context) ([]*storage.StakingPool, error) {
	pools := make([]*storage.StakingPool, 0)
	res := sds.db.WithContext(ctx).Where("is_active = ?", true).Order("id asc").Find(&pools)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to list staking pools")
	}
	return pools, nil
}

type CreateStakeRequest struct {
	UserId uint64          `validate:"required"`
	PoolId uint64          `validate:"required"`
	Amount decimal.Decimal `validate:"decimal_gt0"`
}

// CreateStake opens a stake at now in the given pool. The unlock date is now plus the
// pool's lock period.
func (sds *StakingDataService) CreateStake(ctx context.Context, req *CreateStakeRequest, now time.Time) (*storage.Stake, error) {
	if err := sds.validator.Struct(req); err != nil {
		return nil, err
	}

	stake, err := helpers.WrapTxAndCommit(ctx, func(tx *gorm.DB) (*storage.Stake, error) {
		pool := &storage.StakingPool{}
		if err := sds.FindById(tx, pool, "staking pool", req.PoolId, true); err != nil {
			return nil, err
		}
		if !pool.IsActive {
			return nil, errors.Wrapf(storage.ErrPoolNotActive, "pool %d", pool.Id)
		}
		if req.Amount.LessThan(pool.MinStake) {
			return nil, errors.Wrapf(storage.ErrInvalidAmount, "stake %s is below the pool minimum %s", req.Amount, pool.MinStake)
		}

		user := &storage.User{}
		if err := sds.FindById(tx, user, "user", req.UserId, false); err != nil {
			return nil, err
		}

		stake := &storage.Stake{
			UserId:      user.Id,
			PoolId:      pool.Id,
			Amount:      req.Amount,
			StakingDate: now,
			UnlockDate:  now.Add(time.Duration(pool.LockDays) * 24 * time.Hour),
			Status:      storage.StakeStatus_Active,
		}
		if res := tx.Create(stake); res.Error != nil {
			return nil, errors.Wrap(res.Error, "failed to create stake")
		}

		if err := storage.AddAmounts(tx, &storage.StakingPool{}, map[string]decimal.Decimal{"total_staked": req.Amount}, "id = ?", pool.Id); err != nil {
			return nil, errors.Wrapf(err, "failed to update pool %d total", pool.Id)
		}

		if err := storage.IncrementUserStats(tx, user.Id, &storage.UserStatsDelta{TotalStaked: req.Amount}); err != nil {
			return nil, err
		}

		if err := sds.appendLedger(tx, stake, storage.TransactionType_Stake, req.Amount); err != nil {
			return nil, err
		}
		return stake, nil
	}, sds.db, nil)
	if err != nil {
		sds.logger.Sugar().Errorw("Failed to create stake",
			zap.Uint64("userId", req.UserId),
			zap.Uint64("poolId", req.PoolId),
			zap.String("amount", req.Amount.String()),
			zap.Error(err),
		)
		return nil, err
	}

	sds.Incr(metricsTypes.Metric_Incr_StakeCreated, []metricsTypes.MetricsLabel{
		{Name: "pool_id", Value: strconv.FormatUint(req.PoolId, 10)},
	})
	return stake, nil
}

func (sds *StakingDataService) appendLedger(tx *gorm.DB, stake *storage.Stake, txType storage.TransactionType, tokens decimal.Decimal) error {
	metadata, err := storage.TransactionMetadata(map[string]interface{}{
		"stakeId": stake.Id,
		"poolId":  stake.PoolId,
	})
	if err != nil {
		return err
	}
	_, err = storage.InsertTransaction(tx, &storage.Transaction{
		UserId:      stake.UserId,
		Type:        txType,
		Status:      storage.TransactionStatus_Completed,
		TokenAmount: tokens,
		Metadata:    metadata,
	})
	return err
}

func (sds *StakingDataService) GetStake(ctx context.Context, id uint64) (*storage.Stake, error) {
	stake := &storage.Stake{}
	if err := sds.FindById(sds.db.WithContext(ctx), stake, "stake", id, false); err != nil {
		return nil, err
	}
	return stake, nil
}

// ListStakesForUser returns the user's stakes, newest first. status may be nil.
func (sds *StakingDataService) ListStakesForUser(
	ctx context.Context,
	userId uint64,
	status *storage.StakeStatus,
	pagination *types.Pagination,
) ([]*storage.Stake, error) {
	q := sds.db.WithContext(ctx).Where("user_id = ?", userId)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	stakes := make([]*storage.Stake, 0)
	res := q.Order("id desc").Limit(pagination.Limit()).Offset(pagination.Offset()).Find(&stakes)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "failed to list stakes for user %d", userId)
	}
	return stakes, nil
}

func (sds *StakingDataService) snapshot(tx *gorm.DB, stake *storage.Stake) (*calculator.StakeSnapshot, error) {
	pool := &storage.StakingPool{}
	if err := sds.FindById(tx, pool, "staking pool", stake.PoolId, false); err != nil {
		return nil, err
	}
	return &calculator.StakeSnapshot{
		Principal:      stake.Amount,
		StakingDate:    stake.StakingDate,
		AprPercent:     pool.Apr,
		RewardsClaimed: stake.RewardsClaimed,
	}, nil
}

// GetStakeSnapshot loads the calculator inputs for a stake, taking the apr from its pool.
func (sds *StakingDataService) GetStakeSnapshot(ctx context.Context, id uint64) (*calculator.StakeSnapshot, error) {
	tx := sds.db.WithContext(ctx)
	stake := &storage.Stake{}
	if err := sds.FindById(tx, stake, "stake", id, false); err != nil {
		return nil, err
	}
	return sds.snapshot(tx, stake)
}

func (sds *StakingDataService) GetAccruedReward(ctx context.Context, id uint64, now time.Time) (decimal.Decimal, error) {
	snapshot, err := sds.GetStakeSnapshot(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return snapshot.AccruedReward(now)
}

type RewardClaimResult struct {
	Claim           *storage.StakeRewardClaim
	Transaction     *storage.Transaction
	RemainingReward decimal.Decimal
}

// ClaimRewards pays amount out of the stake's accrued reward. The stake row is locked
// and rewritten only if its version is unchanged, so two concurrent claims can never
// both spend the same accrued reward.
func (sds *StakingDataService) ClaimRewards(ctx context.Context, id uint64, amount decimal.Decimal, now time.Time) (*RewardClaimResult, error) {
	start := time.Now()
	defer func() {
		sds.Timing(metricsTypes.Metric_Timing_ClaimDuration, time.Since(start), []metricsTypes.MetricsLabel{
			{Name: "kind", Value: claimKind},
		})
	}()

	result, err := helpers.WrapTxAndCommit(ctx, func(tx *gorm.DB) (*RewardClaimResult, error) {
		if !amount.IsPositive() {
			return nil, errors.Wrapf(storage.ErrInvalidAmount, "claim amount %s", amount)
		}

		stake := &storage.Stake{}
		if err := sds.FindById(tx, stake, "stake", id, true); err != nil {
			return nil, err
		}
		if stake.Status != storage.StakeStatus_Active {
			return nil, errors.Wrapf(storage.ErrStakeNotActive, "stake %d is %s", stake.Id, stake.Status)
		}

		snapshot, err := sds.snapshot(tx, stake)
		if err != nil {
			return nil, err
		}
		available, err := snapshot.AccruedReward(now)
		if err != nil {
			return nil, err
		}
		if amount.GreaterThan(available) {
			return nil, &storage.OverclaimError{Kind: claimKind, Id: stake.Id, Requested: amount, Available: available}
		}

		if err := applyStakeClaim(tx, stake, amount); err != nil {
			return nil, err
		}

		claim := &storage.StakeRewardClaim{
			StakeId:   stake.Id,
			UserId:    stake.UserId,
			Amount:    amount,
			ClaimedAt: now,
		}
		if res := tx.Create(claim); res.Error != nil {
			return nil, errors.Wrapf(res.Error, "failed to record claim for stake %d", stake.Id)
		}

		if err := storage.IncrementUserStats(tx, stake.UserId, &storage.UserStatsDelta{
			TotalRewardsEarned:  amount,
			TotalRewardsClaimed: amount,
		}); err != nil {
			return nil, err
		}

		metadata, err := storage.TransactionMetadata(map[string]interface{}{
			"stakeId": stake.Id,
			"claimId": claim.Id,
		})
		if err != nil {
			return nil, err
		}
		ledger, err := storage.InsertTransaction(tx, &storage.Transaction{
			UserId:      stake.UserId,
			Type:        storage.TransactionType_RewardClaim,
			Status:      storage.TransactionStatus_Completed,
			TokenAmount: amount,
			Metadata:    metadata,
		})
		if err != nil {
			return nil, err
		}

		return &RewardClaimResult{
			Claim:           claim,
			Transaction:     ledger,
			RemainingReward: available.Sub(amount),
		}, nil
	}, sds.db, nil)
	if err != nil {
		sds.RecordClaimRejection(claimKind, err)
		sds.logger.Sugar().Errorw("Failed to claim stake rewards",
			zap.Uint64("stakeId", id),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return nil, err
	}

	sds.Incr(metricsTypes.Metric_Incr_StakeRewardClaimed, nil)
	return result, nil
}

// applyStakeClaim writes the claimed counters of stake plus amount, computed in decimal
// from the loaded row, only if stake.Version still matches the stored row.
func applyStakeClaim(tx *gorm.DB, stake *storage.Stake, amount decimal.Decimal) error {
	rewardsClaimed := stake.RewardsClaimed.Add(amount)
	totalRewardsEarned := stake.TotalRewardsEarned.Add(amount)
	res := tx.Model(&storage.Stake{}).
		Where("id = ? AND version = ?", stake.Id, stake.Version).
		Updates(map[string]interface{}{
			"rewards_claimed":      rewardsClaimed,
			"total_rewards_earned": totalRewardsEarned,
			"version":              gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to update stake %d", stake.Id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(storage.ErrConcurrentUpdateConflict, "stake %d at version %d", stake.Id, stake.Version)
	}
	stake.RewardsClaimed = rewardsClaimed
	stake.TotalRewardsEarned = totalRewardsEarned
	stake.Version++
	return nil
}

// WithdrawStake closes an unlocked stake and returns its principal to the user's
// balance. Unclaimed rewards are not paid out.
func (sds *StakingDataService) WithdrawStake(ctx context.Context, id uint64, now time.Time) (*storage.Stake, error) {
	stake, err := helpers.WrapTxAndCommit(ctx, func(tx *gorm.DB) (*storage.Stake, error) {
		stake := &storage.Stake{}
		if err := sds.FindById(tx, stake, "stake", id, true); err != nil {
			return nil, err
		}
		if stake.Status != storage.StakeStatus_Active {
			return nil, errors.Wrapf(storage.ErrStakeNotActive, "stake %d is %s", stake.Id, stake.Status)
		}
		if now.Before(stake.UnlockDate) {
			return nil, errors.Wrapf(storage.ErrStakeLocked, "stake %d unlocks at %s", stake.Id, stake.UnlockDate.Format(time.RFC3339))
		}

		res := tx.Model(&storage.Stake{}).
			Where("id = ? AND version = ?", stake.Id, stake.Version).
			Updates(map[string]interface{}{
				"status":       storage.StakeStatus_Withdrawn,
				"withdrawn_at": now,
				"version":      gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return nil, errors.Wrapf(res.Error, "failed to withdraw stake %d", stake.Id)
		}
		if res.RowsAffected == 0 {
			return nil, errors.Wrapf(storage.ErrConcurrentUpdateConflict, "stake %d at version %d", stake.Id, stake.Version)
		}

		if err := storage.AddAmounts(tx, &storage.StakingPool{}, map[string]decimal.Decimal{"total_staked": stake.Amount.Neg()}, "id = ?", stake.PoolId); err != nil {
			return nil, errors.Wrapf(err, "failed to update pool %d total", stake.PoolId)
		}

		if err := storage.IncrementUserStats(tx, stake.UserId, &storage.UserStatsDelta{TotalStaked: stake.Amount.Neg()}); err != nil {
			return nil, err
		}
		if err := sds.appendLedger(tx, stake, storage.TransactionType_Unstake, stake.Amount); err != nil {
			return nil, err
		}

		withdrawnAt := now
		stake.Status = storage.StakeStatus_Withdrawn
		stake.WithdrawnAt = &withdrawnAt
		stake.Version++
		return stake, nil
	}, sds.db, nil)
	if err != nil {
		sds.logger.Sugar().Errorw("Failed to withdraw stake", zap.Uint64("stakeId", id), zap.Error(err))
		return nil, err
	}

	sds.Incr(metricsTypes.Metric_Incr_StakeWithdrawn, []metricsTypes.MetricsLabel{
		{Name: "pool_id", Value: strconv.FormatUint(stake.PoolId, 10)},
	})
	return stake, nil
}

func (sds *StakingDataService) ListRewardClaims(ctx context.Context, stakeId uint64) ([]*storage.StakeRewardClaim, error) {
	claims := make([]*storage.StakeRewardClaim, 0)
	res := sds.db.WithContext(ctx).Where("stake_id = ?", stakeId).Order("id asc").Find(&claims)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "failed to list reward claims for stake %d", stakeId)
	}
	return claims, nil
}
