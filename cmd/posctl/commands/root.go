// Package commands holds the posctl subcommands for store operators.
package commands

import (
	"context"

	"brewpos/internal/config"
	"brewpos/internal/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "posctl",
	Short: "Operator tools for the brewpos order service",
	Long: `posctl seeds the menu and manager account, imports menu CSV exports,
and re-prints receipts of settled transactions.

Connection settings come from the same environment variables as the API
(DB_DSN, REDIS_ADDR, RECEIPT_TIMEZONE, ...), optionally loaded from --env.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Optional dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

// runtime is what every subcommand needs: config, a logger and the database.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func open(ctx context.Context) (*runtime, error) {
	config.LoadDotEnv(envFile)
	cfg := config.FromEnv()

	zcfg := zap.NewDevelopmentConfig()
	if !verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, pool: pool}, nil
}

func (r *runtime) Close() {
	r.pool.Close()
	_ = r.logger.Sync()
}
