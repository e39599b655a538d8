package config

import "github.com/caarlos0/env/v11"

type WatcherConfig struct {
	Token    string `env:"API_TOKEN"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	TableID  int64  `env:"TABLE_ID" envDefault:"0"`
	BuyIn    int    `env:"BUY_IN" envDefault:"1000"`
}

func LoadWatcher() (WatcherConfig, error) {
	var cfg WatcherConfig
	err := env.Parse(&cfg)
	return cfg, err
}
