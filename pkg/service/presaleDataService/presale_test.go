package presaleDataService

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/presale-labs/presale-store/internal/config"
	"github.com/presale-labs/presale-store/internal/logger"
	"github.com/presale-labs/presale-store/internal/metrics"
	"github.com/presale-labs/presale-store/internal/tests"
	"github.com/presale-labs/presale-store/internal/validation"
	"github.com/presale-labs/presale-store/pkg/service/referralDataService"
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

func Test_PresaleDataService(t *testing.T) {
	grm, l, cfg, err := setup()
	if err != nil {
		t.Fatalf("Failed to setup test: %v", err)
	}
	defer tests.CloseDatabase(grm)

	ctx := context.Background()
	ms := metrics.NewNoopMetricsSink()
	rds := referralDataService.NewReferralDataService(grm, l, cfg, ms)
	pds := NewPresaleDataService(grm, l, cfg, ms, rds)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	during := start.Add(24 * time.Hour)

	referrer, err := tests.CreateTestUser(grm, "REFERRER")
	require.Nil(t, err)
	buyer, err := tests.CreateTestUser(grm, "BUYER001")
	require.Nil(t, err)
	_, err = rds.RecordReferral(ctx, nil, referrer, buyer.Id)
	require.Nil(t, err)

	t.Run("Should reject a max purchase below the min purchase", func(t *testing.T) {
		_, err := pds.CreatePresale(ctx, &CreatePresaleRequest{
			Name:        "Broken",
			TokenSymbol: "BRK",
			TokenPrice:  decimal.NewFromFloat(0.5),
			HardCap:     decimal.NewFromInt(300),
			MinPurchase: decimal.NewFromInt(100),
			MaxPurchase: decimal.NewFromInt(10),
			StartDate:   start,
			EndDate:     end,
		})
		assert.True(t, errors.Is(err, validation.ErrValidation))
	})

	t.Run("Should reject an end date before the start date", func(t *testing.T) {
		_, err := pds.CreatePresale(ctx, &CreatePresaleRequest{
			Name:        "Backwards",
			TokenSymbol: "BCK",
			TokenPrice:  decimal.NewFromFloat(0.5),
			HardCap:     decimal.NewFromInt(300),
			StartDate:   end,
			EndDate:     start,
		})
		assert.True(t, errors.Is(err, validation.ErrValidation))
	})

	presale, err := pds.CreatePresale(ctx, &CreatePresaleRequest{
		Name:                  "Seed round",
		TokenSymbol:           "SEED",
		TokenPrice:            decimal.NewFromFloat(0.5),
		HardCap:               decimal.NewFromInt(300),
		MinPurchase:           decimal.NewFromInt(10),
		MaxPurchase:           decimal.NewFromInt(1000),
		ReferralRewardPercent: decimal.NewFromInt(5),
		StartDate:             start,
		EndDate:               end,
	})
	require.Nil(t, err)

	t.Run("Should find the presale active at a point in time", func(t *testing.T) {
		active, err := pds.GetActivePresale(ctx, during)
		assert.Nil(t, err)
		assert.Equal(t, presale.Id, active.Id)

		_, err = pds.GetActivePresale(ctx, end)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("Should reject purchases outside the sale window", func(t *testing.T) {
		_, err := pds.RecordPurchase(ctx, &PurchaseRequest{
			UserId: buyer.Id, PresaleId: presale.Id, Amount: decimal.NewFromInt(100), Currency: "USDT",
		}, start.Add(-time.Second))
		assert.True(t, errors.Is(err, storage.ErrPresaleNotActive))
	})

	t.Run("Should reject purchases outside the limits", func(t *testing.T) {
		_, err := pds.RecordPurchase(ctx, &PurchaseRequest{
			UserId: buyer.Id, PresaleId: presale.Id, Amount: decimal.NewFromInt(5), Currency: "USDT",
		}, during)
		assert.True(t, errors.Is(err, storage.ErrPurchaseOutOfBounds))

		_, err = pds.RecordPurchase(ctx, &PurchaseRequest{
			UserId: buyer.Id, PresaleId: presale.Id, Amount: decimal.NewFromInt(2000), Currency: "USDT",
		}, during)
		assert.True(t, errors.Is(err, storage.ErrPurchaseOutOfBounds))
	})

	t.Run("Should record a purchase and credit the referrer", func(t *testing.T) {
		res, err := pds.RecordPurchase(ctx, &PurchaseRequest{
			UserId: buyer.Id, PresaleId: presale.Id, Amount: decimal.NewFromInt(100), Currency: "USDT",
		}, during)
		require.Nil(t, err)
		assert.Equal(t, "200", res.TokenAmount.String())
		assert.Equal(t, "5", res.ReferralReward.String())
		assert.Equal(t, storage.TransactionType_Purchase, res.Transaction.Type)
		assert.Equal(t, storage.TransactionStatus_Completed, res.Transaction.Status)

		stored, err := pds.GetPresaleById(ctx, presale.Id)
		assert.Nil(t, err)
		assert.Equal(t, "200", stored.TokensSold.String())
		assert.Equal(t, "100", stored.AmountRaised.String())

		buyerStats := &storage.UserStats{}
		assert.Nil(t, grm.Where("user_id = ?", buyer.Id).First(buyerStats).Error)
		assert.Equal(t, "100", buyerStats.TotalPurchased.String())
		assert.Equal(t, "200", buyerStats.TotalTokens.String())

		referrerStats := &storage.UserStats{}
		assert.Nil(t, grm.Where("user_id = ?", referrer.Id).First(referrerStats).Error)
		assert.Equal(t, "5", referrerStats.ReferralEarnings.String())
	})

	t.Run("Should not sell past the hard cap", func(t *testing.T) {
		_, err := pds.RecordPurchase(ctx, &PurchaseRequest{
			UserId: buyer.Id, PresaleId: presale.Id, Amount: decimal.NewFromInt(100), Currency: "USDT",
		}, during)
		assert.True(t, errors.Is(err, storage.ErrHardCapExceeded))

		stored, err := pds.GetPresaleById(ctx, presale.Id)
		assert.Nil(t, err)
		assert.Equal(t, "200", stored.TokensSold.String())
	})

	t.Run("Should reject purchases by unknown users", func(t *testing.T) {
		_, err := pds.RecordPurchase(ctx, &PurchaseRequest{
			UserId: 9999, PresaleId: presale.Id, Amount: decimal.NewFromInt(10), Currency: "USDT",
		}, during)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("Should not lower the hard cap below tokens sold", func(t *testing.T) {
		lowCap := decimal.NewFromInt(150)
		_, err := pds.UpdatePresale(ctx, presale.Id, &PresaleUpdate{HardCap: &lowCap})
		assert.True(t, errors.Is(err, validation.ErrValidation))

		name := "Seed round II"
		raisedCap := decimal.NewFromInt(1000)
		updated, err := pds.UpdatePresale(ctx, presale.Id, &PresaleUpdate{Name: &name, HardCap: &raisedCap})
		assert.Nil(t, err)
		assert.Equal(t, name, updated.Name)
		assert.Equal(t, "1000", updated.HardCap.String())
		assert.Equal(t, "200", updated.TokensSold.String())
	})

	t.Run("Should refuse purchases once deactivated", func(t *testing.T) {
		assert.Nil(t, pds.DeactivatePresale(ctx, presale.Id))

		_, err := pds.RecordPurchase(ctx, &PurchaseRequest{
			UserId: buyer.Id, PresaleId: presale.Id, Amount: decimal.NewFromInt(10), Currency: "USDT",
		}, during)
		assert.True(t, errors.Is(err, storage.ErrPresaleNotActive))

		_, err = pds.GetActivePresale(ctx, during)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
}
