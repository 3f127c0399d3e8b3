package config

import (
	"os"

	"go.uber.org/fx"
)

// NewConfigFromEnv loads configuration from TRADSYS_CONFIG_PATH (or the
// default search path when unset), the fx-injectable front door to
// LoadConfig.
func NewConfigFromEnv() (*Config, error) {
	return LoadConfig(os.Getenv("TRADSYS_CONFIG_PATH"))
}

// Module provides configuration and the process logger for fx.
var Module = fx.Options(
	fx.Provide(NewConfigFromEnv),
	fx.Provide(InitLogger),
)
