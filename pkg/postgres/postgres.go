package postgres

import (
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/lib/pq"
	"github.com/presale-labs/presale-store/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSSLMode = "disable"

var validSSLModes = []string{
	"disable",
	"require",
	"verify-ca",
	"verify-full",
}

// unique_violation
const uniqueViolationCode = "23505"

type PostgresConfig struct {
	Host                string
	Port                int
	Username            string
	Password            string
	DbName              string
	CreateDbIfNotExists bool
	SchemaName          string
	SSLMode             string
	SSLCert             string
	SSLKey              string
	SSLRootCert         string
	Debug               bool
}

type Postgres struct {
	Db *sql.DB
}

func PostgresConfigFromDbConfig(dbCfg *config.DatabaseConfig) *PostgresConfig {
	return &PostgresConfig{
		Host:        dbCfg.Host,
		Port:        dbCfg.Port,
		Username:    dbCfg.User,
		Password:    dbCfg.Password,
		DbName:      dbCfg.DbName,
		SchemaName:  dbCfg.SchemaName,
		SSLMode:     dbCfg.SSLMode,
		SSLCert:     dbCfg.SSLCert,
		SSLKey:      dbCfg.SSLKey,
		SSLRootCert: dbCfg.SSLRootCert,
	}
}

func getConnectionString(cfg *PostgresConfig) (string, error) {
	sslMode := defaultSSLMode
	if cfg.SSLMode != "" {
		if !slices.Contains(validSSLModes, cfg.SSLMode) {
			return "", fmt.Errorf("invalid ssl mode: %s. Must be one of: %s", cfg.SSLMode, strings.Join(validSSLModes, ", "))
		}
		sslMode = cfg.SSLMode
	}

	parts := []string{fmt.Sprintf("host=%s", cfg.Host)}
	if cfg.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	parts = append(parts,
		fmt.Sprintf("dbname=%s", cfg.DbName),
		fmt.Sprintf("port=%d", cfg.Port),
		fmt.Sprintf("sslmode=%s", sslMode),
		"TimeZone=UTC",
	)

	if sslMode != defaultSSLMode {
		if cfg.SSLCert != "" {
			parts = append(parts, fmt.Sprintf("sslcert=%s", cfg.SSLCert))
		}
		if cfg.SSLKey != "" {
			parts = append(parts, fmt.Sprintf("sslkey=%s", cfg.SSLKey))
		}
		if cfg.SSLRootCert != "" {
			parts = append(parts, fmt.Sprintf("sslrootcert=%s", cfg.SSLRootCert))
		}
	}
	if cfg.SchemaName != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", cfg.SchemaName))
	}
	return strings.Join(parts, " "), nil
}

func getRootConnection(cfg *PostgresConfig) (*sql.DB, error) {
	rootCfg := *cfg
	rootCfg.DbName = "postgres"
	rootCfg.SchemaName = ""

	connStr, err := getConnectionString(&rootCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connection string: %v", err)
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to postgres database: %v", err)
	}
	return db, nil
}

func CreateDatabaseIfNotExists(cfg *PostgresConfig, l *zap.Logger) error {
	rootDb, err := getRootConnection(cfg)
	if err != nil {
		return err
	}
	defer rootDb.Close()

	var exists bool
	err = rootDb.QueryRow(`SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)`, cfg.DbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("error checking if database exists: %v", err)
	}
	if exists {
		return nil
	}

	// database names cannot be bound as parameters
	if _, err = rootDb.Exec(fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(cfg.DbName))); err != nil {
		return fmt.Errorf("error creating database: %v", err)
	}
	l.Sugar().Infow("Created database", zap.String("dbName", cfg.DbName))
	return nil
}

func DeleteDatabase(cfg *PostgresConfig, dbName string, l *zap.Logger) error {
	rootDb, err := getRootConnection(cfg)
	if err != nil {
		return err
	}
	defer rootDb.Close()

	if _, err = rootDb.Exec(fmt.Sprintf("DROP DATABASE %s", pq.QuoteIdentifier(dbName))); err != nil {
		return fmt.Errorf("error dropping database: %v", err)
	}
	l.Sugar().Infow("Dropped database", zap.String("dbName", dbName))
	return nil
}

func NewPostgres(cfg *PostgresConfig, l *zap.Logger) (*Postgres, error) {
	if cfg.CreateDbIfNotExists {
		if err := CreateDatabaseIfNotExists(cfg, l); err != nil {
			return nil, fmt.Errorf("failed to create database if not exists: %v", err)
		}
	}
	connectString, err := getConnectionString(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", connectString)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %v", err)
	}
	return &Postgres{Db: db}, nil
}

func NewGormFromPostgresConnection(pgDb *sql.DB, debug bool) (*gorm.DB, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: pgDb,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup gorm: %v", err)
	}
	return db, nil
}

// NewGormFromConfig opens the connection and wraps it with gorm in one step.
func NewGormFromConfig(dbCfg *config.DatabaseConfig, debug bool, l *zap.Logger) (*gorm.DB, error) {
	pgConfig := PostgresConfigFromDbConfig(dbCfg)
	pgConfig.Debug = debug

	pg, err := NewPostgres(pgConfig, l)
	if err != nil {
		return nil, err
	}
	return NewGormFromPostgresConnection(pg.Db, debug)
}

func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if pqErr, ok := err.(*pq.Error); ok {
		return string(pqErr.Code) == uniqueViolationCode
	}
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
