package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/presale-labs/presale-store/internal/config"
	"github.com/presale-labs/presale-store/internal/logger"
	"github.com/presale-labs/presale-store/internal/metrics"
	"github.com/presale-labs/presale-store/pkg/postgres"
	"github.com/presale-labs/presale-store/pkg/service/presaleDataService"
	"github.com/presale-labs/presale-store/pkg/service/referralDataService"
	"github.com/presale-labs/presale-store/pkg/service/stakingDataService"
	"github.com/presale-labs/presale-store/pkg/service/statsDataService"
	"github.com/presale-labs/presale-store/pkg/service/transactionDataService"
	"github.com/presale-labs/presale-store/pkg/service/userDataService"
	"github.com/presale-labs/presale-store/pkg/service/vestingDataService"
	"github.com/presale-labs/presale-store/pkg/sqlite"
	"github.com/presale-labs/presale-store/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	nowFlag    = "now"
	amountFlag = "amount"
)

// services holds everything a subcommand needs. close must be called before exit
// so buffered metrics are pushed.
type services struct {
	cfg *config.Config
	l   *zap.Logger
	ms  *metrics.MetricsSink
	grm *gorm.DB

	users        *userDataService.UserDataService
	referrals    *referralDataService.ReferralDataService
	presales     *presaleDataService.PresaleDataService
	transactions *transactionDataService.TransactionDataService
	staking      *stakingDataService.StakingDataService
	vesting      *vestingDataService.VestingDataService
	stats        *statsDataService.StatsDataService
}

func newServices() (*services, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, err
	}

	clients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		l.Sugar().Errorw("Failed to setup metrics clients", zap.Error(err))
		return nil, err
	}
	ms, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, clients)
	if err != nil {
		return nil, err
	}

	grm, err := openDatabase(cfg, l)
	if err != nil {
		l.Sugar().Errorw("Failed to open database", zap.String("driver", string(cfg.DatabaseConfig.Driver)), zap.Error(err))
		return nil, err
	}

	referrals := referralDataService.NewReferralDataService(grm, l, cfg, ms)
	return &services{
		cfg:          cfg,
		l:            l,
		ms:           ms,
		grm:          grm,
		users:        userDataService.NewUserDataService(grm, l, cfg, ms, referrals),
		referrals:    referrals,
		presales:     presaleDataService.NewPresaleDataService(grm, l, cfg, ms, referrals),
		transactions: transactionDataService.NewTransactionDataService(grm, l, cfg, ms),
		staking:      stakingDataService.NewStakingDataService(grm, l, cfg, ms),
		vesting:      vestingDataService.NewVestingDataService(grm, l, cfg, ms),
		stats:        statsDataService.NewStatsDataService(grm, l, cfg, ms),
	}, nil
}

// openDatabase connects to postgres, or opens a sqlite file that is migrated from the
// storage models for local use.
func openDatabase(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	if cfg.DatabaseConfig.Driver == config.DatabaseDriver_Postgres {
		return postgres.NewGormFromConfig(&cfg.DatabaseConfig, cfg.Debug, l)
	}

	path := cfg.DatabaseConfig.SqlitePath
	if path == "" {
		path = sqlite.SqliteInMemoryPath
	}
	grm, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(path), cfg.Debug)
	if err != nil {
		return nil, err
	}
	if err := sqlite.AutoMigrate(grm, storage.AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}
	return grm, nil
}

func (s *services) close() {
	s.ms.Flush()
	if db, err := s.grm.DB(); err == nil {
		_ = db.Close()
	}
	_ = s.l.Sync()
}

func evaluationTime() (time.Time, error) {
	raw := viper.GetString(nowFlag)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	now, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s '%s': %w", nowFlag, raw, err)
	}
	return now.UTC(), nil
}

func parseId(raw string, what string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id '%s'", what, raw)
	}
	return id, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s '%s': %w", amountFlag, raw, err)
	}
	return amount, nil
}
