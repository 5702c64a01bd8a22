package referralDataService

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

var oneHundred = decimal.NewFromInt(100)

type ReferralDataService struct {
	baseDataService.BaseDataService
	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	generateCode CodeGenerator
}

func NewReferralDataService(
	db *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
	ms *metrics.MetricsSink,
) *ReferralDataService {
	return &ReferralDataService{
		BaseDataService: baseDataService.BaseDataService{
			DB:      db,
			Logger:  logger,
			Metrics: ms,
		},
		db:           db,
		logger:       logger,
		globalConfig: globalConfig,
		generateCode: RandomReferralCode,
	}
}

// WithCodeGenerator swaps the random source used for new codes.
func (rds *ReferralDataService) WithCodeGenerator(g CodeGenerator) *ReferralDataService {
	rds.generateCode = g
	return rds
}

// GenerateUniqueReferralCode draws codes until one is unused, giving up after the
// configured number of attempts with ErrReferralCodeSpaceExhausted.
func (rds *ReferralDataService) GenerateUniqueReferralCode(ctx context.Context, tx *gorm.DB) (string, error) {
	if tx == nil {
		tx = rds.db.WithContext(ctx)
	}
	attempts := rds.globalConfig.ReferralConfig.MaxGenerationAttempts
	length := rds.globalConfig.ReferralConfig.CodeLength

	for attempt := 1; attempt <= attempts; attempt++ {
		code, err := rds.generateCode(length)
		if err != nil {
			return "", errors.Wrap(err, "failed to generate referral code")
		}

		var count int64
		res := tx.Model(&storage.User{}).Where("referral_code = ?", code).Count(&count)
		if res.Error != nil {
			return "", errors.Wrap(res.Error, "failed to check referral code uniqueness")
		}
		if count == 0 {
			return code, nil
		}
		rds.logger.Sugar().Debugw("Referral code collision",
			zap.String("code", code),
			zap.Int("attempt", attempt),
		)
	}
	rds.logger.Sugar().Errorw("Exhausted referral code generation attempts", zap.Int("attempts", attempts))
	return "", errors.Wrapf(storage.ErrReferralCodeSpaceExhausted, "%d attempts", attempts)
}

func (rds *ReferralDataService) RecordReferral(ctx context.Context, tx *gorm.DB, referrer *storage.User, refereeId uint64) (*storage.Referral, error) {
	if tx == nil {
		tx = rds.db.WithContext(ctx)
	}
	referral := &storage.Referral{
		ReferrerId: referrer.Id,
		RefereeId:  refereeId,
		Code:       referrer.ReferralCode,
	}
	if res := tx.Create(referral); res.Error != nil {
		return nil, errors.Wrapf(res.Error, "failed to record referral of user %d by %d", refereeId, referrer.Id)
	}
	if err := storage.IncrementUserStats(tx, referrer.Id, &storage.UserStatsDelta{ReferralCount: 1}); err != nil {
		return nil, err
	}
	return referral, nil
}

// CreditReferralReward pays the referee's referrer percent of purchaseAmount. It
// returns zero when the referee was not referred or the percent is zero.
func (rds *ReferralDataService) CreditReferralReward(
	ctx context.Context,
	tx *gorm.DB,
	refereeId uint64,
	presaleId *uint64,
	purchaseAmount decimal.Decimal,
	percent decimal.Decimal,
) (decimal.Decimal, error) {
	if tx == nil {
		tx = rds.db.WithContext(ctx)
	}
	if !percent.IsPositive() || !purchaseAmount.IsPositive() {
		return decimal.Zero, nil
	}

	var referral storage.Referral
	res := tx.Where("referee_id = ?", refereeId).Limit(1).Find(&referral)
	if res.Error != nil {
		return decimal.Zero, errors.Wrapf(res.Error, "failed to load referral for user %d", refereeId)
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, nil
	}

	reward := purchaseAmount.Mul(percent).Div(oneHundred)

	err := storage.AddAmounts(tx, &storage.Referral{}, map[string]decimal.Decimal{"reward_earned": reward}, "id = ?", referral.Id)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to credit referral %d", referral.Id)
	}

	if err := storage.IncrementUserStats(tx, referral.ReferrerId, &storage.UserStatsDelta{ReferralEarnings: reward}); err != nil {
		return decimal.Zero, err
	}

	metadata, err := storage.TransactionMetadata(map[string]interface{}{
		"refereeId":      refereeId,
		"purchaseAmount": purchaseAmount.String(),
		"percent":        percent.String(),
	})
	if err != nil {
		return decimal.Zero, err
	}
	_, err = storage.InsertTransaction(tx, &storage.Transaction{
		UserId:    referral.ReferrerId,
		PresaleId: presaleId,
		Type:      storage.TransactionType_ReferralReward,
		Status:    storage.TransactionStatus_Completed,
		Amount:    reward,
		Metadata:  metadata,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return reward, nil
}

func (rds *ReferralDataService) ListReferralsForUser(ctx context.Context, referrerId uint64) ([]*storage.Referral, error) {
	referrals := make([]*storage.Referral, 0)
	res := rds.db.WithContext(ctx).
		Where("referrer_id = ?", referrerId).
		Order("id asc").
		Find(&referrals)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "failed to list referrals for user %d", referrerId)
	}
	return referrals, nil
}

type ReferralStats struct {
	ReferrerId    uint64
	ReferralCount int64
	TotalEarned   decimal.Decimal
}

func (rds *ReferralDataService) GetReferralStats(ctx context.Context, referrerId uint64) (*ReferralStats, error) {
	db := rds.db.WithContext(ctx)
	stats := &ReferralStats{ReferrerId: referrerId}

	res := db.Model(&storage.Referral{}).Where("referrer_id = ?", referrerId).Count(&stats.ReferralCount)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "failed to load referral stats for user %d", referrerId)
	}

	total, err := storage.SumAmount(db.Model(&storage.Referral{}).Where("referrer_id = ?", referrerId), "reward_earned")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load referral stats for user %d", referrerId)
	}
	stats.TotalEarned = total
	return stats, nil
}
