package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "PRESALE"

type DatabaseDriver string

const (
	DatabaseDriver_Postgres DatabaseDriver = "postgres"
	DatabaseDriver_Sqlite   DatabaseDriver = "sqlite"
)

func parseDatabaseDriver(d string) (DatabaseDriver, error) {
	switch strings.ToLower(d) {
	case "", "postgres", "postgresql":
		return DatabaseDriver_Postgres, nil
	case "sqlite", "sqlite3":
		return DatabaseDriver_Sqlite, nil
	}
	return "", fmt.Errorf("unsupported database driver '%s'", d)
}

type Config struct {
	Debug            bool
	DatabaseConfig   DatabaseConfig
	ReferralConfig   ReferralConfig
	PrometheusConfig PrometheusConfig
	DataDogConfig    DataDogConfig
}

type DatabaseConfig struct {
	Driver      DatabaseDriver
	Host        string
	Port        int
	User        string
	Password    string
	DbName      string
	SchemaName  string
	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string
	SqlitePath  string
}

type ReferralConfig struct {
	CodeLength            int
	MaxGenerationAttempts int
}

type PrometheusConfig struct {
	Enabled        bool
	PushGatewayUrl string
	JobName        string
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

const (
	DefaultReferralCodeLength            = 8
	DefaultReferralMaxGenerationAttempts = 10
)

var (
	Debug = "debug"

	DatabaseDriverKey   = "database.driver"
	DatabaseHost        = "database.host"
	DatabasePort        = "database.port"
	DatabaseUser        = "database.user"
	DatabasePassword    = "database.password"
	DatabaseDbName      = "database.db_name"
	DatabaseSchemaName  = "database.schema_name"
	DatabaseSSLMode     = "database.ssl_mode"
	DatabaseSSLCert     = "database.ssl_cert"
	DatabaseSSLKey      = "database.ssl_key"
	DatabaseSSLRootCert = "database.ssl_root_cert"
	DatabaseSqlitePath  = "database.sqlite_path"

	ReferralCodeLength            = "referral.code_length"
	ReferralMaxGenerationAttempts = "referral.max_generation_attempts"

	PrometheusEnabled        = "prometheus.enabled"
	PrometheusPushGatewayUrl = "prometheus.pushgateway_url"
	PrometheusJobName        = "prometheus.job_name"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample_rate"
)

// NewConfig builds the Config from whatever has been bound into viper
// (flags, PRESALE_* environment variables).
func NewConfig() (*Config, error) {
	driver, err := parseDatabaseDriver(viper.GetString(normalizeFlagName(DatabaseDriverKey)))
	if err != nil {
		return nil, err
	}

	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		DatabaseConfig: DatabaseConfig{
			Driver:      driver,
			Host:        viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:        viper.GetInt(normalizeFlagName(DatabasePort)),
			User:        viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:    viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:      viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName:  viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:     viper.GetString(normalizeFlagName(DatabaseSSLMode)),
			SSLCert:     viper.GetString(normalizeFlagName(DatabaseSSLCert)),
			SSLKey:      viper.GetString(normalizeFlagName(DatabaseSSLKey)),
			SSLRootCert: viper.GetString(normalizeFlagName(DatabaseSSLRootCert)),
			SqlitePath:  viper.GetString(normalizeFlagName(DatabaseSqlitePath)),
		},

		ReferralConfig: ReferralConfig{
			CodeLength:            intOrDefault(viper.GetInt(normalizeFlagName(ReferralCodeLength)), DefaultReferralCodeLength),
			MaxGenerationAttempts: intOrDefault(viper.GetInt(normalizeFlagName(ReferralMaxGenerationAttempts)), DefaultReferralMaxGenerationAttempts),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled:        viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			PushGatewayUrl: viper.GetString(normalizeFlagName(PrometheusPushGatewayUrl)),
			JobName:        viper.GetString(normalizeFlagName(PrometheusJobName)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
		},
	}, nil
}

// NewDefaultConfig is used by tests and callers that do not go through the CLI.
func NewDefaultConfig() *Config {
	return &Config{
		DatabaseConfig: DatabaseConfig{
			Driver: DatabaseDriver_Postgres,
			Host:   "localhost",
			Port:   5432,
		},
		ReferralConfig: ReferralConfig{
			CodeLength:            DefaultReferralCodeLength,
			MaxGenerationAttempts: DefaultReferralMaxGenerationAttempts,
		},
		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				SampleRate: 1.0,
			},
		},
	}
}

func intOrDefault(v int, defaultVal int) int {
	if v <= 0 {
		return defaultVal
	}
	return v
}

func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}
