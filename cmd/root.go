package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/presale-labs/presale-store/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "presale",
	Short: "Query and settle presale purchases, stakes and vesting schedules",
}

func Execute(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool("debug", false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.DatabaseDriverKey, string(config.DatabaseDriver_Postgres), `Database driver ("postgres" or "sqlite")`)
	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "presale", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "presale", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLMode, "disable", `PostgreSQL ssl mode`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLCert, "", `Path to the client certificate`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLKey, "", `Path to the client key`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLRootCert, "", `Path to the root certificate`)
	rootCmd.PersistentFlags().String(config.DatabaseSqlitePath, "", `sqlite database file (in-memory when empty)`)

	rootCmd.PersistentFlags().Int(config.ReferralCodeLength, config.DefaultReferralCodeLength, `Length of generated referral codes`)
	rootCmd.PersistentFlags().Int(config.ReferralMaxGenerationAttempts, config.DefaultReferralMaxGenerationAttempts, `Attempts before giving up on a unique referral code`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.PrometheusPushGatewayUrl, "", `Pushgateway that receives metrics when a command exits`)
	rootCmd.PersistentFlags().String(config.PrometheusJobName, "presale", `Job name used when pushing metrics`)

	rootCmd.PersistentFlags().String(nowFlag, "", `Evaluate at this RFC3339 time instead of the current time`)

	// setup sub commands
	rootCmd.AddCommand(runVersionCmd)
	rootCmd.AddCommand(stakeCmd)
	rootCmd.AddCommand(vestingCmd)
	rootCmd.AddCommand(referralCmd)
	rootCmd.AddCommand(transactionsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(presaleCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
