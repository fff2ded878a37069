package config

import (
	"go.uber.org/fx"
)

type (
	Params struct {
		fx.In
		CustomConfig *customConfig `optional:"true"`
	}

	customConfig struct {
		config *Config
	}
)

var Module = fx.Provide(NewConfig)

func NewConfig(params Params) (*Config, error) {
	if params.CustomConfig != nil {
		return params.CustomConfig.config, nil
	}

	return New()
}

// WithCustomConfig overrides the config provided by the module.
func WithCustomConfig(config *Config) fx.Option {
	return fx.Provide(func() *customConfig {
		return &customConfig{config: config}
	})
}
