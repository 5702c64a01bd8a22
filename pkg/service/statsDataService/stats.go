package statsDataService

import (
	"context"

	"github.com/pkg/errors"
	"github.com/presale-labs/presale-store/internal/config"
	"github.com/presale-labs/presale-store/internal/metrics"
	"github.com/presale-labs/presale-store/pkg/service/baseDataService"
	"github.com/presale-labs/presale-store/pkg/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type StatsDataService struct {
	baseDataService.BaseDataService
	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
}

func NewStatsDataService(
	db *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
	ms *metrics.MetricsSink,
) *StatsDataService {
	return &StatsDataService{
		BaseDataService: baseDataService.BaseDataService{
			DB:      db,
			Logger:  logger,
			Metrics: ms,
		},
		db:           db,
		logger:       logger,
		globalConfig: globalConfig,
	}
}

// GetUserStats returns the user's running totals. Users that have never transacted
// get an all-zero row.
func (sds *StatsDataService) GetUserStats(ctx context.Context, userId uint64) (*storage.UserStats, error) {
	stats := &storage.UserStats{}
	res := sds.db.WithContext(ctx).Where("user_id = ?", userId).First(stats)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return &storage.UserStats{UserId: userId}, nil
		}
		return nil, errors.Wrapf(res.Error, "failed to load stats for user %d", userId)
	}
	return stats, nil
}

type PlatformStats struct {
	UserCount      int64
	TotalRaised    decimal.Decimal
	TokensSold     decimal.Decimal
	TotalStaked    decimal.Decimal
	RewardsClaimed decimal.Decimal
	VestingClaimed decimal.Decimal
}

func (sds *StatsDataService) GetPlatformStats(ctx context.Context) (*PlatformStats, error) {
	db := sds.db.WithContext(ctx)
	stats := &PlatformStats{}
	if res := db.Model(&storage.User{}).Count(&stats.UserCount); res.Error != nil {
		sds.logger.Sugar().Errorw("Failed to load platform stats", zap.Error(res.Error))
		return nil, errors.Wrap(res.Error, "failed to count users")
	}

	sums := []struct {
		dest   *decimal.Decimal
		query  *gorm.DB
		column string
	}{
		{&stats.TotalRaised, db.Model(&storage.Presale{}), "amount_raised"},
		{&stats.TokensSold, db.Model(&storage.Presale{}), "tokens_sold"},
		{&stats.TotalStaked, db.Model(&storage.Stake{}).Where("status = ?", storage.StakeStatus_Active), "amount"},
		{&stats.RewardsClaimed, db.Model(&storage.Stake{}), "rewards_claimed"},
		{&stats.VestingClaimed, db.Model(&storage.VestingSchedule{}), "claimed_amount"},
	}
	for _, sum := range sums {
		total, err := storage.SumAmount(sum.query, sum.column)
		if err != nil {
			sds.logger.Sugar().Errorw("Failed to load platform stats", zap.String("column", sum.column), zap.Error(err))
			return nil, errors.Wrap(err, "failed to load platform stats")
		}
		*sum.dest = total
	}
	return stats, nil
}
