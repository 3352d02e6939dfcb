package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/owizdom/solana-indexer/pkg/contracts"
	"github.com/owizdom/solana-indexer/pkg/poller"
	"github.com/owizdom/solana-indexer/pkg/rpc"
)

// chainConfig is the on-disk shape of one configured chain, loaded
// through viper from a YAML/JSON/TOML config file and environment
// overrides.
type chainConfig struct {
	ChainID             int64    `mapstructure:"chain_id"`
	Name                string   `mapstructure:"name"`
	RPCEndpoint         string   `mapstructure:"rpc_endpoint"`
	Commitment          string   `mapstructure:"commitment"`
	PollingIntervalMS   int64    `mapstructure:"polling_interval_ms"`
	InterestingPrograms []string `mapstructure:"interesting_programs"`
	MaxReorgDepth       uint64   `mapstructure:"max_reorg_depth"`
	SlotHistorySize     uint64   `mapstructure:"slot_history_size"`
	LogBufferSize       int      `mapstructure:"log_buffer_size"`
}

// appConfig is the root config document.
type appConfig struct {
	ListenAddress string         `mapstructure:"listen_address"`
	Debug         bool           `mapstructure:"debug"`
	Chains        []chainConfig  `mapstructure:"chains"`
	Contracts     []contractEntry `mapstructure:"contracts"`
}

type contractEntry struct {
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
	ChainID int64  `mapstructure:"chain_id"`
}

// loadConfig reads configuration from configPath (if non-empty), from
// a "solana-poller" config file in the current directory or
// /etc/solana-poller otherwise, and from SOLANA_POLLER_-prefixed
// environment variables. Following viper's precedence, environment
// variables override config-file values, which override defaults.
func loadConfig(configPath string) (appConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("SOLANA_POLLER")
	v.AutomaticEnv()

	v.SetDefault("listen_address", ":9273")
	v.SetDefault("debug", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("solana-poller")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/solana-poller")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return appConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg appConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Chains) == 0 {
		return appConfig{}, fmt.Errorf("config: at least one entry under \"chains\" is required")
	}
	return cfg, nil
}

func (c chainConfig) commitment() rpc.Commitment {
	switch c.Commitment {
	case "confirmed":
		return rpc.CommitmentConfirmed
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentFinalized
	}
}

func (c chainConfig) pollerConfig() poller.Config {
	interval := time.Duration(c.PollingIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return poller.Config{
		ChainID:             c.ChainID,
		PollingInterval:     interval,
		InterestingPrograms: c.InterestingPrograms,
		MaxReorgDepth:       c.MaxReorgDepth,
		SlotHistorySize:     c.SlotHistorySize,
	}
}

func contractsFromConfig(entries []contractEntry) []contracts.Contract {
	out := make([]contracts.Contract, 0, len(entries))
	for _, e := range entries {
		out = append(out, contracts.Contract{Name: e.Name, Address: e.Address, ChainID: e.ChainID})
	}
	return out
}
