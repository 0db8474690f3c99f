package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"vaultguard/pkg/state"
)

// Config describes one monitored vault deployment.
type Config struct {
	RPCURL  string `yaml:"rpc_url"`
	Network string `yaml:"network"`

	Vault string `yaml:"vault"`
	Asset string `yaml:"asset"`
	Silo  string `yaml:"silo"`
	Safe  string `yaml:"safe"`

	// Storage slots of the two packed words (hex, 32 bytes).
	NavWordSlot   string `yaml:"nav_word_slot"`
	EpochWordSlot string `yaml:"epoch_word_slot"`

	// Share decimals minus asset decimals; the issuance formula uses
	// 10^DecimalsOffset.
	DecimalsOffset int `yaml:"decimals_offset"`

	ReportFile string `yaml:"report_file"`
	Verbose    bool   `yaml:"verbose"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc_url is required")
	}
	for name, addr := range map[string]string{
		"vault": c.Vault, "asset": c.Asset, "silo": c.Silo, "safe": c.Safe,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid address: %q", name, addr)
		}
	}
	if c.DecimalsOffset < 0 {
		return fmt.Errorf("decimals_offset must be non-negative, got %d", c.DecimalsOffset)
	}
	return nil
}

// ChainConfig converts the file form into the reader's typed form.
func (c *Config) ChainConfig() state.ChainConfig {
	offset := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(c.DecimalsOffset)), nil)
	return state.ChainConfig{
		Vault:          common.HexToAddress(c.Vault),
		Asset:          common.HexToAddress(c.Asset),
		Silo:           common.HexToAddress(c.Silo),
		Safe:           common.HexToAddress(c.Safe),
		NavWordSlot:    common.HexToHash(c.NavWordSlot),
		EpochWordSlot:  common.HexToHash(c.EpochWordSlot),
		DecimalsOffset: offset,
	}
}
