package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type DevBackendConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	// Token accepted as the only valid bearer credential. Anything else
	// gets a 401, which is how the auth paths are exercised locally.
	Token         string        `env:"DEV_TOKEN" envDefault:"dev-token"`
	TableID       int64         `env:"DEV_TABLE_ID" envDefault:"1"`
	StageInterval time.Duration `env:"DEV_STAGE_INTERVAL" envDefault:"5s"`
}

func LoadDevBackend() (DevBackendConfig, error) {
	var cfg DevBackendConfig
	err := env.Parse(&cfg)
	return cfg, err
}
