package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the engine's immutable runtime configuration, loaded once at
// startup by LoadConfig and never mutated afterward — components that need
// config read from the same *Config value for the life of the process
// (spec §6).
type Config struct {
	// Environment selects gin's release/debug mode ("production" or "development").
	Environment string `mapstructure:"environment"`

	// Gateway configuration: the REST + WebSocket external API surface.
	Gateway struct {
		Host           string `mapstructure:"host"`
		Port           int    `mapstructure:"port"`
		StreamPath     string `mapstructure:"stream_path"`
		MaxConnections int    `mapstructure:"max_connections"`
	} `mapstructure:"gateway"`

	// Engine configures the in-process matching/persistence runtime (spec §6).
	Engine struct {
		MaxOrdersInMemory int  `mapstructure:"max_orders_memory"`
		RetentionDays     int  `mapstructure:"retention_days"`
		EnableMatching    bool `mapstructure:"enable_matching"`
		PersistBatchSize  int  `mapstructure:"persist_batch_size"`
	} `mapstructure:"engine"`

	// Database configuration for the durable OMS persistence store.
	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	// MarketData selects which symbols the engine maintains books for.
	MarketData struct {
		Symbols []string `mapstructure:"symbols"`
	} `mapstructure:"market_data"`

	// Matching configures the crossing engine's default policies.
	Matching struct {
		SelfTradePolicy string `mapstructure:"self_trade_policy"` // allow|cancel_resting|cancel_incoming|reject
		L3Enabled       bool   `mapstructure:"l3_enabled"`
	} `mapstructure:"matching"`

	// Venue lists the downstream execution venues the router may send
	// child orders to.
	Venue struct {
		StalenessWindowMillis int      `mapstructure:"staleness_window_millis"`
		Names                 []string `mapstructure:"names"`
	} `mapstructure:"venue"`

	// Router configures default algorithm pacing.
	Router struct {
		TWAPSliceIntervalSeconds int `mapstructure:"twap_slice_interval_seconds"`
		POVParticipationBps      int `mapstructure:"pov_participation_bps"`
		IcebergDisplayBps        int `mapstructure:"iceberg_display_bps"`
	} `mapstructure:"router"`

	// Risk management configuration: pre-submit check thresholds (spec §6),
	// expressed as human-facing decimals and converted to fixed-point at
	// the internal/risk.Validator boundary.
	Risk struct {
		MaxOrderValue    float64 `mapstructure:"max_order_value"`
		MaxPositionValue float64 `mapstructure:"max_position_value"`
		MaxLeverage      float64 `mapstructure:"max_leverage"`
		MaxPositionSize  float64 `mapstructure:"max_position_size"`
		MaxOpenPositions int     `mapstructure:"max_open_positions"`
		MaxLossPerTrade  float64 `mapstructure:"max_loss_per_trade"`
		MaxDailyLoss     float64 `mapstructure:"max_daily_loss"`
		MinMarginBuffer  float64 `mapstructure:"min_margin_buffer"`
	} `mapstructure:"risk"`

	// Monitoring configuration.
	Monitoring struct {
		PrometheusPort int    `mapstructure:"prometheus_port"`
		LogLevel       string `mapstructure:"log_level"`
	} `mapstructure:"monitoring"`

	// Authentication configuration.
	Auth struct {
		JWTSecret     string `mapstructure:"jwt_secret"`
		TokenDuration int    `mapstructure:"token_duration"` // in minutes
	} `mapstructure:"auth"`
}

var (
	config *Config
	once   sync.Once
)

// LoadConfig loads the configuration from the specified directory (or "."
// and "./config" and "/etc/tradsys" if empty), falling back to the defaults
// of setDefaults for anything the file omits. Environment variables
// (TRADSYS_ prefix) override only keys the file itself sets, and no key
// replacer is installed, so a nested key's variable keeps its dot
// (TRADSYS_GATEWAY.PORT). Subsequent
// calls return the first-loaded Config; the engine never reloads config
// live.
func LoadConfig(configPath string) (*Config, error) {
	var err error

	once.Do(func() {
		config = &Config{}
		setDefaults()

		v := viper.New()
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if configPath != "" {
			v.AddConfigPath(configPath)
		} else {
			v.AddConfigPath(".")
			v.AddConfigPath("./config")
			v.AddConfigPath("/etc/tradsys")
		}

		v.AutomaticEnv()
		v.SetEnvPrefix("TRADSYS")

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("failed to read config file: %w", readErr)
				return
			}
		}

		if err = v.Unmarshal(config); err != nil {
			err = fmt.Errorf("failed to unmarshal config: %w", err)
			return
		}
	})

	return config, err
}

// GetConfig returns the process-wide configuration, loading it with
// defaults if LoadConfig has not yet been called.
func GetConfig() *Config {
	if config == nil {
		if _, err := LoadConfig(""); err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	}
	return config
}

// SaveConfig writes the configuration to path as JSON, creating the parent
// directory if needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setDefaults() {
	config.Gateway.Host = "0.0.0.0"
	config.Gateway.Port = 8080
	config.Gateway.StreamPath = "/v1/stream/executions"
	config.Gateway.MaxConnections = 2000

	config.Environment = "development"

	config.Engine.MaxOrdersInMemory = 1_000_000
	config.Engine.RetentionDays = 30
	config.Engine.EnableMatching = true
	config.Engine.PersistBatchSize = 200

	config.Database.Host = "localhost"
	config.Database.Port = 5432
	config.Database.User = "postgres"
	config.Database.Name = "tradsys"
	config.Database.SSLMode = "disable"

	config.MarketData.Symbols = []string{"BTC-USD", "ETH-USD"}

	config.Matching.SelfTradePolicy = "allow"
	config.Matching.L3Enabled = true

	config.Venue.StalenessWindowMillis = 5000
	config.Venue.Names = []string{"SIM"}

	config.Router.TWAPSliceIntervalSeconds = 30
	config.Router.POVParticipationBps = 1000 // 10%
	config.Router.IcebergDisplayBps = 1000    // 10% of parent shown at a time

	config.Risk.MaxOrderValue = 1_000_000.0
	config.Risk.MaxPositionValue = 5_000_000.0
	config.Risk.MaxLeverage = 5.0
	config.Risk.MaxPositionSize = 1_000_000.0
	config.Risk.MaxOpenPositions = 50
	config.Risk.MaxLossPerTrade = 50_000.0
	config.Risk.MaxDailyLoss = 250_000.0
	config.Risk.MinMarginBuffer = 10_000.0

	config.Monitoring.PrometheusPort = 9090
	config.Monitoring.LogLevel = "info"

	config.Auth.TokenDuration = 60
}

// InitLogger builds a zap.Logger whose level follows Monitoring.LogLevel.
func InitLogger(cfg *Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	switch cfg.Monitoring.LogLevel {
	case "debug":
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
