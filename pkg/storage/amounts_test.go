package storage_test

import (
	"testing"

	"github.com/presale-labs/presale-store/internal/tests"
	"github.com/presale-labs/presale-store/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Amounts(t *testing.T) {
	cfg := tests.GetConfig()
	grm, err := tests.GetInMemorySqliteDatabase(cfg.Debug)
	if err != nil {
		t.Fatalf("Failed to setup test: %v", err)
	}
	defer tests.CloseDatabase(grm)

	first, err := tests.CreateTestUser(grm, "AMOUNT01")
	require.Nil(t, err)
	second, err := tests.CreateTestUser(grm, "AMOUNT02")
	require.Nil(t, err)

	t.Run("Should store amounts as text on sqlite", func(t *testing.T) {
		require.Nil(t, storage.IncrementUserStats(grm, first.Id, &storage.UserStatsDelta{
			TotalPurchased: decimal.RequireFromString("0.1"),
		}))

		var kind string
		res := grm.Raw("select typeof(total_purchased) from user_stats where user_id = ?", first.Id).Scan(&kind)
		assert.Nil(t, res.Error)
		assert.Equal(t, "text", kind)
	})

	t.Run("Should add amounts exactly", func(t *testing.T) {
		require.Nil(t, storage.IncrementUserStats(grm, first.Id, &storage.UserStatsDelta{
			TotalPurchased: decimal.RequireFromString("0.2"),
			ReferralCount:  1,
		}))

		stats := &storage.UserStats{}
		res := grm.Where("user_id = ?", first.Id).First(stats)
		assert.Nil(t, res.Error)
		assert.Equal(t, "0.3", stats.TotalPurchased.String())
		assert.Equal(t, int64(1), stats.ReferralCount)

		err := storage.AddAmounts(grm, &storage.UserStats{}, map[string]decimal.Decimal{
			"total_purchased": decimal.RequireFromString("-0.300000000000000001"),
		}, "user_id = ?", first.Id)
		assert.Nil(t, err)

		res = grm.Where("user_id = ?", first.Id).First(stats)
		assert.Nil(t, res.Error)
		assert.Equal(t, "-0.000000000000000001", stats.TotalPurchased.String())
	})

	t.Run("Should ignore rows that do not exist", func(t *testing.T) {
		err := storage.AddAmounts(grm, &storage.UserStats{}, map[string]decimal.Decimal{
			"total_purchased": decimal.NewFromInt(1),
		}, "user_id = ?", 9999)
		assert.Nil(t, err)
	})

	t.Run("Should sum amounts exactly", func(t *testing.T) {
		require.Nil(t, storage.IncrementUserStats(grm, second.Id, &storage.UserStatsDelta{
			TotalPurchased: decimal.RequireFromString("0.100000000000000001"),
		}))

		total, err := storage.SumAmount(grm.Model(&storage.UserStats{}), "total_purchased")
		assert.Nil(t, err)
		assert.Equal(t, "0.1", total.String())

		total, err = storage.SumAmount(grm.Model(&storage.UserStats{}).Where("user_id = ?", 9999), "total_purchased")
		assert.Nil(t, err)
		assert.True(t, total.IsZero())
	})
}
