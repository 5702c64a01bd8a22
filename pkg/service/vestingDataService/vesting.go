package vestingDataService

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/presale-labs/presale-store/internal/config"
	"github.com/presale-labs/presale-store/internal/metrics"
	"github.com/presale-labs/presale-store/internal/metrics/metricsTypes"
	"github.com/presale-labs/presale-store/internal/validation"
	"github.com/presale-labs/presale-store/pkg/calculator"
	"github.com/presale-labs/presale-store/pkg/postgres/helpers"
	"github.com/presale-labs/presale-store/pkg/service/baseDataService"
	"github.com/presale-labs/presale-store/pkg/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const claimKind = "vesting"

type VestingDataService struct {
	baseDataService.BaseDataService
	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	validator    *validation.Validator
}

func NewVestingDataService(
	db *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
	ms *metrics.MetricsSink,
) *VestingDataService {
	return &VestingDataService{
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

type CreateScheduleRequest struct {
	UserId      uint64          `validate:"required"`
	TotalAmount decimal.Decimal `validate:"decimal_gt0"`
	StartDate   time.Time       `validate:"required"`
	CliffDate   *time.Time
	EndDate     time.Time `validate:"required"`
}

func (vds *VestingDataService) CreateSchedule(ctx context.Context, req *CreateScheduleRequest) (*storage.VestingSchedule, error) {
	if err := calculator.ValidateSchedule(req.TotalAmount, req.StartDate, req.CliffDate, req.EndDate); err != nil {
		return nil, err
	}
	if err := vds.validator.Struct(req); err != nil {
		return nil, err
	}

	return helpers.WrapTxAndCommit(ctx, func(tx *gorm.DB) (*storage.VestingSchedule, error) {
		user := &storage.User{}
		if err := vds.FindById(tx, user, "user", req.UserId, false); err != nil {
			return nil, err
		}
		schedule := &storage.VestingSchedule{
			UserId:      user.Id,
			TotalAmount: req.TotalAmount,
			StartDate:   req.StartDate,
			CliffDate:   req.CliffDate,
			EndDate:     req.EndDate,
			IsActive:    true,
		}
		if res := tx.Create(schedule); res.Error != nil {
			vds.logger.Sugar().Errorw("Failed to create vesting schedule", zap.Uint64("userId", user.Id), zap.Error(res.Error))
			return nil, errors.Wrap(res.Error, "failed to create vesting schedule")
		}
		return schedule, nil
	}, vds.db, nil)
}

func (vds *VestingDataService) GetSchedule(ctx context.Context, id uint64) (*storage.VestingSchedule, error) {
	schedule := &storage.VestingSchedule{}
	if err := vds.FindById(vds.db.WithContext(ctx), schedule, "vesting schedule", id, false); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (vds *VestingDataService) ListSchedulesForUser(ctx context.Context, userId uint64) ([]*storage.VestingSchedule, error) {
	schedules := make([]*storage.VestingSchedule, 0)
	res := vds.db.WithContext(ctx).Where("user_id = ?", userId).Order("id asc").Find(&schedules)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "failed to list vesting schedules for user %d", userId)
	}
	return schedules, nil
}

func snapshotOf(schedule *storage.VestingSchedule) *calculator.VestingSnapshot {
	return &calculator.VestingSnapshot{
		TotalAmount:   schedule.TotalAmount,
		StartDate:     schedule.StartDate,
		CliffDate:     schedule.CliffDate,
		EndDate:       schedule.EndDate,
		ClaimedAmount: schedule.ClaimedAmount,
	}
}

func (vds *VestingDataService) GetSnapshot(ctx context.Context, id uint64) (*calculator.VestingSnapshot, error) {
	schedule, err := vds.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	return snapshotOf(schedule), nil
}

// GetUnlockedAmount returns what the holder could claim at now.
func (vds *VestingDataService) GetUnlockedAmount(ctx context.Context, id uint64, now time.Time) (decimal.Decimal, error) {
	snapshot, err := vds.GetSnapshot(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return snapshot.UnlockedUnclaimed(now)
}

type VestingClaimResult struct {
	Schedule          *storage.VestingSchedule
	Transaction       *storage.Transaction
	RemainingUnlocked decimal.Decimal
}

// ClaimVested releases amount from the unlocked, unclaimed portion of the schedule.
func (vds *VestingDataService) ClaimVested(ctx context.Context, id uint64, amount decimal.Decimal, now time.Time) (*VestingClaimResult, error) {
	start := time.Now()
	defer func() {
		vds.Timing(metricsTypes.Metric_Timing_ClaimDuration, time.Since(start), []metricsTypes.MetricsLabel{
			{Name: "kind", Value: claimKind},
		})
	}()

	result, err := helpers.WrapTxAndCommit(ctx, func(tx *gorm.DB) (*VestingClaimResult, error) {
		if !amount.IsPositive() {
			return nil, errors.Wrapf(storage.ErrInvalidAmount, "claim amount %s", amount)
		}

		schedule := &storage.VestingSchedule{}
		if err := vds.FindById(tx, schedule, "vesting schedule", id, true); err != nil {
			return nil, err
		}
		if !schedule.IsActive {
			return nil, errors.Wrapf(storage.ErrScheduleInactive, "schedule %d", schedule.Id)
		}

		available, err := snapshotOf(schedule).UnlockedUnclaimed(now)
		if err != nil {
			return nil, err
		}
		if amount.GreaterThan(available) {
			return nil, &storage.OverclaimError{Kind: claimKind, Id: schedule.Id, Requested: amount, Available: available}
		}

		if err := applyVestingClaim(tx, schedule, amount); err != nil {
			return nil, err
		}

		if err := storage.IncrementUserStats(tx, schedule.UserId, &storage.UserStatsDelta{TotalVestingClaimed: amount}); err != nil {
			return nil, err
		}

		metadata, err := storage.TransactionMetadata(map[string]interface{}{
			"scheduleId": schedule.Id,
			"claimable":  available.String(),
		})
		if err != nil {
			return nil, err
		}
		ledger, err := storage.InsertTransaction(tx, &storage.Transaction{
			UserId:      schedule.UserId,
			Type:        storage.TransactionType_VestingClaim,
			Status:      storage.TransactionStatus_Completed,
			TokenAmount: amount,
			Metadata:    metadata,
		})
		if err != nil {
			return nil, err
		}

		return &VestingClaimResult{
			Schedule:          schedule,
			Transaction:       ledger,
			RemainingUnlocked: available.Sub(amount),
		}, nil
	}, vds.db, nil)
	if err != nil {
		vds.RecordClaimRejection(claimKind, err)
		vds.logger.Sugar().Errorw("Failed to claim vested tokens",
			zap.Uint64("scheduleId", id),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return nil, err
	}

	vds.Incr(metricsTypes.Metric_Incr_VestingClaimed, nil)
	return result, nil
}

// applyVestingClaim adds amount to both the vested-to-date and claimed counters of the
// loaded schedule and writes them, guarded by the schedule version.
func applyVestingClaim(tx *gorm.DB, schedule *storage.VestingSchedule, amount decimal.Decimal) error {
	vestedAmount := schedule.VestedAmount.Add(amount)
	claimedAmount := schedule.ClaimedAmount.Add(amount)
	res := tx.Model(&storage.VestingSchedule{}).
		Where("id = ? AND version = ?", schedule.Id, schedule.Version).
		Updates(map[string]interface{}{
			"vested_amount":  vestedAmount,
			"claimed_amount": claimedAmount,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to update vesting schedule %d", schedule.Id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(storage.ErrConcurrentUpdateConflict, "vesting schedule %d at version %d", schedule.Id, schedule.Version)
	}
	schedule.VestedAmount = vestedAmount
	schedule.ClaimedAmount = claimedAmount
	schedule.Version++
	return nil
}

// DeactivateSchedule stops further claims. Already claimed amounts are untouched.
func (vds *VestingDataService) DeactivateSchedule(ctx context.Context, id uint64) error {
	_, err := helpers.WrapTxAndCommit(ctx, func(tx *gorm.DB) (*storage.VestingSchedule, error) {
		schedule := &storage.VestingSchedule{}
		if err := vds.FindById(tx, schedule, "vesting schedule", id, true); err != nil {
			return nil, err
		}
		if !schedule.IsActive {
			vds.logger.Sugar().Debugw("Vesting schedule already inactive", zap.Uint64("scheduleId", id))
			return schedule, nil
		}
		res := tx.Model(&storage.VestingSchedule{}).
			Where("id = ?", schedule.Id).
			Updates(map[string]interface{}{
				"is_active": false,
				"version":   gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return nil, errors.Wrapf(res.Error, "failed to deactivate vesting schedule %d", id)
		}
		return schedule, nil
	}, vds.db, nil)
	return err
}
