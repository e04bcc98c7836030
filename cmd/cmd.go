package cmd

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configPath string
	storage    string
	clearData  bool
)

const (
	storagePostgres = "postgres"
	storageMemory   = "memory"
)

var rootCmd = &cobra.Command{
	Use:   "merchant-settlement",
	Short: "Merchant Settlement",
	Long:  `Payment capture, balance ledger, settlement release and PayPal withdrawals for booking platform merchants.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig reads config.yml when present, overlays the process environment
// (including .env in development) and validates the result.
func loadConfig(path string) (*internal.Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	var cfg *internal.Config
	if os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true" {
		envCfg, err := internal.LoadConfigFromEnv()
		if err != nil {
			return nil, err
		}
		cfg = envCfg
	} else {
		fileCfg, err := loadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if storage == storageMemory {
		// the in-memory store needs no database
		if cfg.Database.Source == "" {
			cfg.Database.Source = storageMemory
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	logger.Configure(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
	return cfg, nil
}

func loadConfigFile(path string) (*internal.Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// secrets such as JWT_SECRET and VITE_PAYPAL_CLIENT_SECRET stay out of the file
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

func init() {
	// amounts go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yml")
	rootCmd.PersistentFlags().StringVar(&storage, "storage", storagePostgres, "storage backend: postgres or memory")

	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
