package userDataService

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/presale-labs/presale-store/internal/config"
	"github.com/presale-labs/presale-store/internal/metrics"
	"github.com/presale-labs/presale-store/internal/metrics/metricsTypes"
	"github.com/presale-labs/presale-store/internal/validation"
	"github.com/presale-labs/presale-store/pkg/postgres"
	"github.com/presale-labs/presale-store/pkg/postgres/helpers"
	"github.com/presale-labs/presale-store/pkg/service/baseDataService"
	"github.com/presale-labs/presale-store/pkg/service/referralDataService"
	"github.com/presale-labs/presale-store/pkg/service/types"
	"github.com/presale-labs/presale-store/pkg/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrUserExists = errors.New("user already exists for wallet")

type UserDataService struct {
	baseDataService.BaseDataService
	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	validator    *validation.Validator
	referrals    *referralDataService.ReferralDataService
}

func NewUserDataService(
	db *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
	ms *metrics.MetricsSink,
	referrals *referralDataService.ReferralDataService,
) *UserDataService {
	return &UserDataService{
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

// NormalizeWalletAddress returns the lowercase 0x-prefixed form of a hex address.
func NormalizeWalletAddress(wallet string) (string, error) {
	if !common.IsHexAddress(wallet) {
		return "", fmt.Errorf("%w: invalid wallet address '%s'", validation.ErrValidation, wallet)
	}
	return strings.ToLower(common.HexToAddress(wallet).Hex()), nil
}

type CreateUserRequest struct {
	WalletAddress string `validate:"required,eth_addr"`
	Email         string `validate:"omitempty,email"`
	Username      string `validate:"omitempty,max=64"`
	ReferrerCode  string `validate:"omitempty,alphanum,max=32"`
}

// CreateUser inserts the user with a fresh referral code, its stats row, and the
// referral link when a referrer code is supplied.
func (uds *UserDataService) CreateUser(ctx context.Context, req *CreateUserRequest) (*storage.User, error) {
	if err := uds.validator.Struct(req); err != nil {
		return nil, err
	}
	wallet, err := NormalizeWalletAddress(req.WalletAddress)
	if err != nil {
		return nil, err
	}

	user, err := helpers.WrapTxAndCommit(ctx, func(tx *gorm.DB) (*storage.User, error) {
		var existing int64
		if res := tx.Model(&storage.User{}).Where("wallet_address = ?", wallet).Count(&existing); res.Error != nil {
			return nil, errors.Wrap(res.Error, "failed to check for existing user")
		}
		if existing > 0 {
			return nil, errors.Wrapf(ErrUserExists, "%s", wallet)
		}

		var referrer *storage.User
		if req.ReferrerCode != "" {
			referrer = &storage.User{}
			res := tx.Where("referral_code = ?", strings.ToUpper(req.ReferrerCode)).First(referrer)
			if res.Error != nil {
				if errors.Is(res.Error, gorm.ErrRecordNotFound) {
					return nil, errors.Wrapf(storage.ErrUnknownReferralCode, "%s", req.ReferrerCode)
				}
				return nil, errors.Wrap(res.Error, "failed to resolve referrer")
			}
		}

		code, err := uds.referrals.GenerateUniqueReferralCode(ctx, tx)
		if err != nil {
			return nil, err
		}

		user := &storage.User{
			WalletAddress: wallet,
			Email:         strings.ToLower(req.Email),
			Username:      req.Username,
			ReferralCode:  code,
			IsActive:      true,
		}
		if referrer != nil {
			user.ReferredBy = &referrer.Id
		}
		if res := tx.Create(user); res.Error != nil {
			// lost a race with a concurrent signup for the same wallet
			if postgres.IsDuplicateKeyError(res.Error) {
				return nil, errors.Wrapf(ErrUserExists, "%s", wallet)
			}
			return nil, errors.Wrap(res.Error, "failed to create user")
		}
		if res := tx.Create(&storage.UserStats{UserId: user.Id}); res.Error != nil {
			return nil, errors.Wrap(res.Error, "failed to create user stats")
		}

		if referrer != nil {
			if _, err := uds.referrals.RecordReferral(ctx, tx, referrer, user.Id); err != nil {
				return nil, err
			}
		}
		return user, nil
	}, uds.db, nil)
	if err != nil {
		uds.logger.Sugar().Errorw("Failed to create user",
			zap.String("walletAddress", wallet),
			zap.Error(err),
		)
		return nil, err
	}

	uds.Incr(metricsTypes.Metric_Incr_UserCreated, nil)
	return user, nil
}

func (uds *UserDataService) GetUserById(ctx context.Context, id uint64) (*storage.User, error) {
	user := &storage.User{}
	if err := uds.FindById(uds.db.WithContext(ctx), user, "user", id, false); err != nil {
		return nil, err
	}
	return user, nil
}

func (uds *UserDataService) GetUserByWallet(ctx context.Context, wallet string) (*storage.User, error) {
	normalized, err := NormalizeWalletAddress(wallet)
	if err != nil {
		return nil, err
	}
	user := &storage.User{}
	res := uds.db.WithContext(ctx).Where("wallet_address = ?", normalized).First(user)
	if res.Error != nil {
		return nil, uds.NotFoundOrError(res.Error, "user with wallet", normalized)
	}
	return user, nil
}

func (uds *UserDataService) GetUserByReferralCode(ctx context.Context, code string) (*storage.User, error) {
	user := &storage.User{}
	res := uds.db.WithContext(ctx).Where("referral_code = ?", strings.ToUpper(code)).First(user)
	if res.Error != nil {
		return nil, uds.NotFoundOrError(res.Error, "user with referral code", code)
	}
	return user, nil
}

// UserProfileUpdate lists the fields a caller may change. Nil means unchanged.
type UserProfileUpdate struct {
	Email    *string `validate:"omitempty,email"`
	Username *string `validate:"omitempty,max=64"`
	IsActive *bool
}

func (u *UserProfileUpdate) columns() map[string]interface{} {
	columns := map[string]interface{}{}
	if u.Email != nil {
		columns["email"] = strings.ToLower(*u.Email)
	}
	if u.Username != nil {
		columns["username"] = *u.Username
	}
	if u.IsActive != nil {
		columns["is_active"] = *u.IsActive
	}
	return columns
}

func (uds *UserDataService) UpdateUserProfile(ctx context.Context, id uint64, update *UserProfileUpdate) (*storage.User, error) {
	if err := uds.validator.Struct(update); err != nil {
		return nil, err
	}
	columns := update.columns()

	return helpers.WrapTxAndCommit(ctx, func(tx *gorm.DB) (*storage.User, error) {
		user := &storage.User{}
		if err := uds.FindById(tx, user, "user", id, true); err != nil {
			return nil, err
		}
		if len(columns) == 0 {
			return user, nil
		}
		if res := tx.Model(user).Updates(columns); res.Error != nil {
			return nil, errors.Wrapf(res.Error, "failed to update user %d", id)
		}
		if err := uds.FindById(tx, user, "user", id, false); err != nil {
			return nil, err
		}
		return user, nil
	}, uds.db, nil)
}

func (uds *UserDataService) ListUsers(ctx context.Context, pagination *types.Pagination) ([]*storage.User, error) {
	users := make([]*storage.User, 0)
	res := uds.db.WithContext(ctx).
		Order("id asc").
		Limit(pagination.Limit()).
		Offset(pagination.Offset()).
		Find(&users)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to list users")
	}
	return users, nil
}
