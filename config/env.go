package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

type StorageEnv struct {
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".microgig/data"`
	// TasksKey is the single storage key holding the task collection blob.
	TasksKey string `envconfig:"STORAGE_TASKS_KEY" default:"tasks.yaml"`
	// WatchExternalWrites reloads the collection when another process
	// overwrites the blob. Last write still wins.
	WatchExternalWrites bool `envconfig:"STORAGE_WATCH" default:"false"`
}

type LedgerEnv struct {
	HorizonURL        string `envconfig:"HORIZON_URL" default:"https://horizon-testnet.stellar.org"`
	FriendbotURL      string `envconfig:"FRIENDBOT_URL" default:"https://friendbot.stellar.org"`
	NetworkPassphrase string `envconfig:"NETWORK_PASSPHRASE" default:"Test SDF Network ; September 2015"`
	BaseFee           int64  `envconfig:"BASE_FEE" default:"100"`
	TxTimeoutSeconds  int64  `envconfig:"TX_TIMEOUT_SECONDS" default:"60"`
	ReserveMargin     string `envconfig:"RESERVE_MARGIN" default:"1"`
}

type WalletEnv struct {
	BalanceRefreshInterval time.Duration `envconfig:"BALANCE_REFRESH_INTERVAL" default:"10s"`
}

type Env struct {
	BaseEnv
	StorageEnv
	LedgerEnv
	WalletEnv
}

const namespace = "MICROGIG"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
