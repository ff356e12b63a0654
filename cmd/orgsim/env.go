package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envConfig supplies flag defaults, so a deployment can pin them without
// wrapping the command line. Explicit flags still win.
type envConfig struct {
	DataDir    string `env:"ORGSIM_DATA_DIR"    envDefault:"./data"`
	LogLevel   string `env:"ORGSIM_LOG_LEVEL"   envDefault:"info"`
	LogJSON    bool   `env:"ORGSIM_LOG_JSON"`
	Seed       int64  `env:"ORGSIM_SEED"        envDefault:"1337"`
	TuningPath string `env:"ORGSIM_TUNING"`
	DisableDB  bool   `env:"ORGSIM_DISABLE_DB"`
}

func loadEnv() (envConfig, error) {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
