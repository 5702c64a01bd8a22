package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/presale-labs/presale-store/internal/config"
	"github.com/presale-labs/presale-store/pkg/sqlite"
	"github.com/presale-labs/presale-store/pkg/storage"
	"gorm.io/gorm"
)

func GetConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Debug = os.Getenv(config.ENV_PREFIX+"_DEBUG") == "true"
	return cfg
}

func GetDbConfigFromEnv() *config.DatabaseConfig {
	port, err := strconv.Atoi(os.Getenv("PRESALE_DATABASE_PORT"))
	if err != nil {
		port = 5432
	}
	return &config.DatabaseConfig{
		Driver:   config.DatabaseDriver_Postgres,
		Host:     os.Getenv("PRESALE_DATABASE_HOST"),
		Port:     port,
		User:     os.Getenv("PRESALE_DATABASE_USER"),
		Password: os.Getenv("PRESALE_DATABASE_PASSWORD"),
	}
}

func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}

// GetInMemorySqliteDatabase returns an isolated, migrated in-memory database.
func GetInMemorySqliteDatabase(debug bool) (*gorm.DB, error) {
	name, err := GenerateTestDbName()
	if err != nil {
		return nil, err
	}
	grm, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), debug)
	if err != nil {
		return nil, err
	}
	if err := sqlite.AutoMigrate(grm, storage.AllModels()...); err != nil {
		return nil, err
	}
	return grm, nil
}

func CloseDatabase(grm *gorm.DB) {
	if db, err := grm.DB(); err == nil {
		_ = db.Close()
	}
}

// CreateTestUser inserts an active user with a random wallet and the given referral code.
func CreateTestUser(grm *gorm.DB, referralCode string) (*storage.User, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	user := &storage.User{
		WalletAddress: fmt.Sprintf("0x%s00000000", strings.ReplaceAll(id.String(), "-", "")),
		ReferralCode:  referralCode,
		IsActive:      true,
	}
	if res := grm.Create(user); res.Error != nil {
		return nil, res.Error
	}
	return user, nil
}
