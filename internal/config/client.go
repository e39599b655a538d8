package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// ClientConfig holds the environment-driven settings shared by everything
// that talks to the backend. Values are read once at startup.
type ClientConfig struct {
	APIBaseURL  string `env:"API_BASE_URL" envDefault:"http://localhost:8080/api"`
	WSBaseURL   string `env:"WS_BASE_URL" envDefault:"ws://localhost:8080/ws"`
	Environment string `env:"ENVIRONMENT" envDefault:"production"`

	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
}

func (c ClientConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	err := env.Parse(&cfg)
	return cfg, err
}
