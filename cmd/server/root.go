package main

import (
	"context"
	"fmt"
	"os"

	"noteboard/internal/config"
	"noteboard/internal/logger"
	"noteboard/internal/store"
	"noteboard/internal/store/mongostore"
	"noteboard/internal/store/sqlstore"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	envFile  string
	addrFlag string
	driver   string
)

var version = "dev"

// rootCmd serves the board when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:     "noteboard",
	Short:   "Ordered sticky-note board server",
	Version: version,
	Long: `Noteboard keeps a board of colored notes in a user-chosen order.
Running it without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an optional .env file")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "Storage driver: sqlite3, postgres or mongo (overrides DB_DRIVER)")
	rootCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (overrides LISTEN_ADDR)")
}

// loadConfig applies flag overrides on top of the environment and builds
// the process logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Read(envFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if addrFlag != "" {
		cfg.ListenAddr = addrFlag
	}
	if driver != "" {
		cfg.DBDriver = driver
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogFormat), nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case config.DriverMongo:
		return mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return sqlstore.New(cfg.DBDriver, cfg.DBConn)
	}
}
