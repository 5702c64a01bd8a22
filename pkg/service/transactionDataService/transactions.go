package transactionDataService

import (
	"context"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/presale-labs/presale-store/internal/config"
	"github.com/presale-labs/presale-store/internal/metrics"
	"github.com/presale-labs/presale-store/internal/validation"
	"github.com/presale-labs/presale-store/pkg/postgres/helpers"
	"github.com/presale-labs/presale-store/pkg/service/baseDataService"
	"github.com/presale-labs/presale-store/pkg/service/types"
	"github.com/presale-labs/presale-store/pkg/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidStatusTransition = errors.New("invalid transaction status transition")

type TransactionDataService struct {
	baseDataService.BaseDataService
	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	validator    *validation.Validator
}

func NewTransactionDataService(
	db *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
	ms *metrics.MetricsSink,
) *TransactionDataService {
	return &TransactionDataService{
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

type CreateTransactionRequest struct {
	UserId      uint64                  `validate:"required"`
	PresaleId   *uint64                 `validate:"omitempty,gt=0"`
	Type        storage.TransactionType `validate:"required,oneof=purchase stake unstake reward_claim vesting_claim referral_reward"`
	Amount      decimal.Decimal         `validate:"decimal_gte0"`
	TokenAmount decimal.Decimal         `validate:"decimal_gte0"`
	Currency    string                  `validate:"omitempty,max=16"`
	TxHash      string                  `validate:"omitempty,max=66"`
	Metadata    map[string]interface{}
}

// CreateTransaction records a pending ledger entry, typically for a payment that is
// still awaiting on-chain confirmation.
func (tds *TransactionDataService) CreateTransaction(ctx context.Context, req *CreateTransactionRequest) (*storage.Transaction, error) {
	if err := tds.validator.Struct(req); err != nil {
		return nil, err
	}

	t := &storage.Transaction{
		UserId:      req.UserId,
		PresaleId:   req.PresaleId,
		Type:        req.Type,
		Status:      storage.TransactionStatus_Pending,
		Amount:      req.Amount,
		TokenAmount: req.TokenAmount,
		Currency:    req.Currency,
		TxHash:      req.TxHash,
	}
	if req.Metadata != nil {
		metadata, err := storage.TransactionMetadata(req.Metadata)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode transaction metadata")
		}
		t.Metadata = metadata
	}

	created, err := storage.InsertTransaction(tds.db.WithContext(ctx), t)
	if err != nil {
		tds.logger.Sugar().Errorw("Failed to create transaction",
			zap.Uint64("userId", req.UserId),
			zap.String("type", string(req.Type)),
			zap.Error(err),
		)
		return nil, err
	}
	return created, nil
}

func (tds *TransactionDataService) GetTransactionById(ctx context.Context, id uint64) (*storage.Transaction, error) {
	t := &storage.Transaction{}
	if err := tds.FindById(tds.db.WithContext(ctx), t, "transaction", id, false); err != nil {
		return nil, err
	}
	return t, nil
}

func (tds *TransactionDataService) GetTransactionByReference(ctx context.Context, reference string) (*storage.Transaction, error) {
	t := &storage.Transaction{}
	res := tds.db.WithContext(ctx).Where("reference = ?", reference).First(t)
	if res.Error != nil {
		return nil, tds.NotFoundOrError(res.Error, "transaction", reference)
	}
	return t, nil
}

// ListTransactionsForUser returns the newest transactions first. txType may be nil.
func (tds *TransactionDataService) ListTransactionsForUser(
	ctx context.Context,
	userId uint64,
	txType *storage.TransactionType,
	pagination *types.Pagination,
) ([]*storage.Transaction, error) {
	q := tds.db.WithContext(ctx).Where("user_id = ?", userId)
	if txType != nil {
		q = q.Where("type = ?", *txType)
	}

	transactions := make([]*storage.Transaction, 0)
	res := q.Order("id desc").
		Limit(pagination.Limit()).
		Offset(pagination.Offset()).
		Find(&transactions)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "failed to list transactions for user %d", userId)
	}
	return transactions, nil
}

// UpdateTransactionStatus settles a pending transaction. Settled transactions are final.
func (tds *TransactionDataService) UpdateTransactionStatus(
	ctx context.Context,
	id uint64,
	status storage.TransactionStatus,
	txHash string,
) (*storage.Transaction, error) {
	if status != storage.TransactionStatus_Completed && status != storage.TransactionStatus_Failed {
		return nil, errors.Wrapf(ErrInvalidStatusTransition, "cannot move to '%s'", status)
	}

	return helpers.WrapTxAndCommit(ctx, func(tx *gorm.DB) (*storage.Transaction, error) {
		t := &storage.Transaction{}
		if err := tds.FindById(tx, t, "transaction", id, true); err != nil {
			return nil, err
		}
		if t.Status != storage.TransactionStatus_Pending {
			return nil, errors.Wrapf(ErrInvalidStatusTransition, "transaction %d is already %s", id, t.Status)
		}

		columns := map[string]interface{}{"status": status}
		if txHash != "" {
			columns["tx_hash"] = txHash
		}
		if res := tx.Model(t).Updates(columns); res.Error != nil {
			return nil, errors.Wrapf(res.Error, "failed to update transaction %d", id)
		}
		t.Status = status
		if txHash != "" {
			t.TxHash = txHash
		}
		return t, nil
	}, tds.db, nil)
}

type transactionCsvRow struct {
	Reference   string `csv:"reference"`
	Type        string `csv:"type"`
	Status      string `csv:"status"`
	Amount      string `csv:"amount"`
	TokenAmount string `csv:"token_amount"`
	Currency    string `csv:"currency"`
	TxHash      string `csv:"tx_hash"`
	CreatedAt   string `csv:"created_at"`
}

// ExportTransactionsCsv writes every transaction of the user, oldest first.
func (tds *TransactionDataService) ExportTransactionsCsv(ctx context.Context, userId uint64, w io.Writer) error {
	transactions := make([]*storage.Transaction, 0)
	res := tds.db.WithContext(ctx).Where("user_id = ?", userId).Order("id asc").Find(&transactions)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to load transactions for user %d", userId)
	}

	rows := make([]*transactionCsvRow, 0, len(transactions))
	for _, t := range transactions {
		rows = append(rows, &transactionCsvRow{
			Reference:   t.Reference,
			Type:        string(t.Type),
			Status:      string(t.Status),
			Amount:      t.Amount.String(),
			TokenAmount: t.TokenAmount.String(),
			Currency:    t.Currency,
			TxHash:      t.TxHash,
			CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return errors.Wrap(err, "failed to write transactions csv")
	}
	return nil
}
