package presaleDataService

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/presale-labs/presale-store/internal/config"
	"github.com/presale-labs/presale-store/internal/metrics"
	"github.com/presale-labs/presale-store/internal/metrics/metricsTypes"
	"github.com/presale-labs/presale-store/internal/validation"
	"github.com/presale-labs/presale-store/pkg/postgres/helpers"
	"github.com/presale-labs/presale-store/pkg/service/baseDataService"
	"github.com/presale-labs/presale-store/pkg/service/referralDataService"
	"github.com/presale-labs/presale-store/pkg/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PresaleDataService struct {
	baseDataService.BaseDataService
	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	validator    *validation.Validator
	referrals    *referralDataService.ReferralDataService
}

func NewPresaleDataService(
	db *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
	ms *metrics.MetricsSink,
	referrals *referralDataService.ReferralDataService,
) *PresaleDataService {
	return &PresaleDataService{
		BaseDataService: baseDataService.BaseDataService{
			DB:      db,
			Logger:  logger,
			Metrics: ms,
		},
		db:           db,
		logger:       logger,
		globalConfig: globalConfig,
		validator:    validation.NewValidator(),
		referrals:    referrals,
	}
}

type CreatePresaleRequest struct {
	Name                  string          `validate:"required,max=128"`
	TokenSymbol           string          `validate:"required,max=16"`
	TokenPrice            decimal.Decimal `validate:"decimal_gt0"`
	HardCap               decimal.Decimal `validate:"decimal_gt0"`
	MinPurchase           decimal.Decimal `validate:"decimal_gte0"`
	MaxPurchase           decimal.Decimal `validate:"decimal_gte0"`
	ReferralRewardPercent decimal.Decimal `validate:"decimal_gte0"`
	StartDate             time.Time       `validate:"required"`
	EndDate               time.Time       `validate:"required,gtfield=StartDate"`
}

// A zero max purchase means no upper limit.
func checkPurchaseLimits(minPurchase decimal.Decimal, maxPurchase decimal.Decimal) error {
	if maxPurchase.IsPositive() && maxPurchase.LessThan(minPurchase) {
		return fmt.Errorf("%w: max purchase %s is below min purchase %s", validation.ErrValidation, maxPurchase, minPurchase)
	}
	return nil
}

func (pds *PresaleDataService) CreatePresale(ctx context.Context, req *CreatePresaleRequest) (*storage.Presale, error) {
	if err := pds.validator.Struct(req); err != nil {
		return nil, err
	}
	if err := checkPurchaseLimits(req.MinPurchase, req.MaxPurchase); err != nil {
		return nil, err
	}

	presale := &storage.Presale{
		Name:                  req.Name,
		TokenSymbol:           req.TokenSymbol,
		TokenPrice:            req.TokenPrice,
		HardCap:               req.HardCap,
		MinPurchase:           req.MinPurchase,
		MaxPurchase:           req.MaxPurchase,
		ReferralRewardPercent: req.ReferralRewardPercent,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		IsActive:              true,
	}
	if res := pds.db.WithContext(ctx).Create(presale); res.Error != nil {
		pds.logger.Sugar().Errorw("Failed to create presale", zap.String("name", req.Name), zap.Error(res.Error))
		return nil, errors.Wrap(res.Error, "failed to create presale")
	}
	return presale, nil
}

func (pds *PresaleDataService) GetPresaleById(ctx context.Context, id uint64) (*storage.Presale, error) {
	presale := &storage.Presale{}
	if err := pds.FindById(pds.db.WithContext(ctx), presale, "presale", id, false); err != nil {
		return nil, err
	}
	return presale, nil
}

// GetActivePresale returns the most recently started active presale whose window contains now.
func (pds *PresaleDataService) GetActivePresale(ctx context.Context, now time.Time) (*storage.Presale, error) {
	presale := &storage.Presale{}
	res := pds.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("start_date <= ? and end_date > ?", now, now).
		Order("start_date desc").
		First(presale)
	if res.Error != nil {
		return nil, pds.NotFoundOrError(res.Error, "active presale at", now.Format(time.RFC3339))
	}
	return presale, nil
}

// PresaleUpdate lists the configurable presale fields. Nil means unchanged.
type PresaleUpdate struct {
	Name                  *string          `validate:"omitempty,max=128"`
	TokenPrice            *decimal.Decimal `validate:"omitempty,decimal_gt0"`
	HardCap               *decimal.Decimal `validate:"omitempty,decimal_gt0"`
	MinPurchase           *decimal.Decimal `validate:"omitempty,decimal_gte0"`
	MaxPurchase           *decimal.Decimal `validate:"omitempty,decimal_gte0"`
	ReferralRewardPercent *decimal.Decimal `validate:"omitempty,decimal_gte0"`
	StartDate             *time.Time
	EndDate               *time.Time
	IsActive              *bool
}

func (pds *PresaleDataService) UpdatePresale(ctx context.Context, id uint64, update *PresaleUpdate) (*storage.Presale, error) {
	if err := pds.validator.Struct(update); err != nil {
		return nil, err
	}

	return helpers.WrapTxAndCommit(ctx, func(tx *gorm.DB) (*storage.Presale, error) {
		presale := &storage.Presale{}
		if err := pds.FindById(tx, presale, "presale", id, true); err != nil {
			return nil, err
		}

		if update.Name != nil {
			presale.Name = *update.Name
		}
		if update.TokenPrice != nil {
			presale.TokenPrice = *update.TokenPrice
		}
		if update.HardCap != nil {
			if update.HardCap.LessThan(presale.TokensSold) {
				return nil, fmt.Errorf("%w: hard cap %s is below tokens already sold %s", validation.ErrValidation, update.HardCap, presale.TokensSold)
			}
			presale.HardCap = *update.HardCap
		}
		if update.MinPurchase != nil {
			presale.MinPurchase = *update.MinPurchase
		}
		if update.MaxPurchase != nil {
			presale.MaxPurchase = *update.MaxPurchase
		}
		if update.ReferralRewardPercent != nil {
			presale.ReferralRewardPercent = *update.ReferralRewardPercent
		}
		if update.StartDate != nil {
			presale.StartDate = *update.StartDate
		}
		if update.EndDate != nil {
			presale.EndDate = *update.EndDate
		}
		if update.IsActive != nil {
			presale.IsActive = *update.IsActive
		}

		if !presale.EndDate.After(presale.StartDate) {
			return nil, fmt.Errorf("%w: presale end date must be after its start date", validation.ErrValidation)
		}
		if err := checkPurchaseLimits(presale.MinPurchase, presale.MaxPurchase); err != nil {
			return nil, err
		}

		// counters are only ever moved by RecordPurchase
		res := tx.Model(presale).Select(
			"name", "token_price", "hard_cap", "min_purchase", "max_purchase",
			"referral_reward_percent", "start_date", "end_date", "is_active",
		).Updates(presale)
		if res.Error != nil {
			return nil, errors.Wrapf(res.Error, "failed to update presale %d", id)
		}
		return presale, nil
	}, pds.db, nil)
}

func (pds *PresaleDataService) DeactivatePresale(ctx context.Context, id uint64) error {
	inactive := false
	_, err := pds.UpdatePresale(ctx, id, &PresaleUpdate{IsActive: &inactive})
	return err
}

type PurchaseRequest struct {
	UserId    uint64          `validate:"required"`
	PresaleId uint64          `validate:"required"`
	Amount    decimal.Decimal `validate:"decimal_gt0"`
	Currency  string          `validate:"required,max=16"`
	TxHash    string          `validate:"omitempty,max=66"`
}

type PurchaseResult struct {
	Transaction    *storage.Transaction
	TokenAmount    decimal.Decimal
	ReferralReward decimal.Decimal
}

// RecordPurchase books a purchase against the presale counters, the buyer's stats
// and the ledger, and credits the buyer's referrer, all in one transaction.
func (pds *PresaleDataService) RecordPurchase(ctx context.Context, req *PurchaseRequest, now time.Time) (*PurchaseResult, error) {
	if err := pds.validator.Struct(req); err != nil {
		return nil, err
	}

	result, err := helpers.WrapTxAndCommit(ctx, func(tx *gorm.DB) (*PurchaseResult, error) {
		presale := &storage.Presale{}
		if err := pds.FindById(tx, presale, "presale", req.PresaleId, true); err != nil {
			return nil, err
		}
		if !presale.IsActive || now.Before(presale.StartDate) || !now.Before(presale.EndDate) {
			return nil, errors.Wrapf(storage.ErrPresaleNotActive, "presale %d", presale.Id)
		}
		if req.Amount.LessThan(presale.MinPurchase) ||
			(presale.MaxPurchase.IsPositive() && req.Amount.GreaterThan(presale.MaxPurchase)) {
			return nil, errors.Wrapf(storage.ErrPurchaseOutOfBounds, "amount %s not within [%s, %s]",
				req.Amount, presale.MinPurchase, presale.MaxPurchase)
		}

		tokens := req.Amount.Div(presale.TokenPrice)
		if presale.TokensSold.Add(tokens).GreaterThan(presale.HardCap) {
			return nil, errors.Wrapf(storage.ErrHardCapExceeded, "%s tokens requested, %s remaining",
				tokens, presale.HardCap.Sub(presale.TokensSold))
		}

		user := &storage.User{}
		if err := pds.FindById(tx, user, "user", req.UserId, false); err != nil {
			return nil, err
		}

		err := storage.AddAmounts(tx, &storage.Presale{}, map[string]decimal.Decimal{
			"tokens_sold":   tokens,
			"amount_raised": req.Amount,
		}, "id = ?", presale.Id)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to update presale %d totals", presale.Id)
		}

		if err := storage.IncrementUserStats(tx, user.Id, &storage.UserStatsDelta{
			TotalPurchased: req.Amount,
			TotalTokens:    tokens,
		}); err != nil {
			return nil, err
		}

		metadata, err := storage.TransactionMetadata(map[string]interface{}{
			"tokenPrice": presale.TokenPrice.String(),
		})
		if err != nil {
			return nil, err
		}
		purchase, err := storage.InsertTransaction(tx, &storage.Transaction{
			UserId:      user.Id,
			PresaleId:   &presale.Id,
			Type:        storage.TransactionType_Purchase,
			Status:      storage.TransactionStatus_Completed,
			Amount:      req.Amount,
			TokenAmount: tokens,
			Currency:    req.Currency,
			TxHash:      req.TxHash,
			Metadata:    metadata,
		})
		if err != nil {
			return nil, err
		}

		reward, err := pds.referrals.CreditReferralReward(ctx, tx, user.Id, &presale.Id, req.Amount, presale.ReferralRewardPercent)
		if err != nil {
			return nil, err
		}

		return &PurchaseResult{
			Transaction:    purchase,
			TokenAmount:    tokens,
			ReferralReward: reward,
		}, nil
	}, pds.db, nil)
	if err != nil {
		pds.logger.Sugar().Errorw("Failed to record purchase",
			zap.Uint64("userId", req.UserId),
			zap.Uint64("presaleId", req.PresaleId),
			zap.String("amount", req.Amount.String()),
			zap.Error(err),
		)
		return nil, err
	}

	pds.Incr(metricsTypes.Metric_Incr_PurchaseRecorded, []metricsTypes.MetricsLabel{
		{Name: "presale_id", Value: strconv.FormatUint(req.PresaleId, 10)},
	})
	return result, nil
}
