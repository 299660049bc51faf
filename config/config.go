package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// RewardTokenConfig names one reward token and its manager.
type RewardTokenConfig struct {
	Token   string `toml:"Token"`
	Manager string `toml:"Manager"`
}

// FarmConfig describes the farm a node instantiates at startup.
type FarmConfig struct {
	Owner          string `toml:"Owner"`
	FarmAddress    string `toml:"FarmAddress"`
	LiquidityToken string `toml:"LiquidityToken"`
	// FarmStartTime is a unix timestamp. Zero means "StartDelay seconds
	// from boot".
	FarmStartTime uint64 `toml:"FarmStartTime"`
	StartDelay    uint64 `toml:"StartDelay"`
	// CooldownPeriod in days; zero disables the lockup fund.
	CooldownPeriod      uint64              `toml:"CooldownPeriod"`
	PrimaryRewardToken  string              `toml:"PrimaryRewardToken"`
	PrimaryTokenManager string              `toml:"PrimaryTokenManager"`
	RewardTokens        []RewardTokenConfig `toml:"RewardTokens"`
}

// Config is the top-level farmd configuration.
type Config struct {
	ListenAddress     string `toml:"ListenAddress"`
	DataDir           string `toml:"DataDir"`
	HistoryDSN        string `toml:"HistoryDSN"`
	Environment       string `toml:"Environment"`
	LogFile           string `toml:"LogFile"`
	AdminJWTSecret    string `toml:"AdminJWTSecret"`
	AccrueWhilePaused bool   `toml:"AccrueWhilePaused"`

	Farm FarmConfig `toml:"Farm"`
}

const (
	minCooldownDays = 1
	maxCooldownDays = 30
	maxRewardTokens = 4
)

// Load reads the configuration from path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8555"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./farmdata"
	}
	if strings.TrimSpace(cfg.HistoryDSN) == "" {
		cfg.HistoryDSN = filepath.Join(cfg.DataDir, "history.db")
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.Farm.StartDelay == 0 {
		cfg.Farm.StartDelay = 300
	}
}

// Validate checks address shapes and farm parameter bounds before any state
// is touched.
func (c *Config) Validate() error {
	for name, addr := range map[string]string{
		"Farm.Owner":          c.Farm.Owner,
		"Farm.FarmAddress":    c.Farm.FarmAddress,
		"Farm.LiquidityToken": c.Farm.LiquidityToken,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("config: %s is not a valid address: %q", name, addr)
		}
	}
	if c.Farm.CooldownPeriod != 0 &&
		(c.Farm.CooldownPeriod < minCooldownDays || c.Farm.CooldownPeriod > maxCooldownDays) {
		return fmt.Errorf("config: Farm.CooldownPeriod must be 0 or within [%d, %d] days", minCooldownDays, maxCooldownDays)
	}
	if len(c.Farm.RewardTokens) == 0 {
		return fmt.Errorf("config: at least one reward token is required")
	}
	if len(c.Farm.RewardTokens) > maxRewardTokens {
		return fmt.Errorf("config: at most %d reward tokens are supported", maxRewardTokens)
	}
	seen := make(map[common.Address]bool)
	for i, rt := range c.Farm.RewardTokens {
		if !common.IsHexAddress(rt.Token) {
			return fmt.Errorf("config: Farm.RewardTokens[%d].Token is not a valid address: %q", i, rt.Token)
		}
		if !common.IsHexAddress(rt.Manager) {
			return fmt.Errorf("config: Farm.RewardTokens[%d].Manager is not a valid address: %q", i, rt.Manager)
		}
		addr := common.HexToAddress(rt.Token)
		if seen[addr] {
			return fmt.Errorf("config: duplicate reward token %s", rt.Token)
		}
		seen[addr] = true
	}
	if c.Farm.PrimaryRewardToken != "" && !common.IsHexAddress(c.Farm.PrimaryRewardToken) {
		return fmt.Errorf("config: Farm.PrimaryRewardToken is not a valid address: %q", c.Farm.PrimaryRewardToken)
	}
	if c.Farm.PrimaryRewardToken != "" && !common.IsHexAddress(c.Farm.PrimaryTokenManager) {
		return fmt.Errorf("config: Farm.PrimaryTokenManager is not a valid address: %q", c.Farm.PrimaryTokenManager)
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8555",
		DataDir:       "./farmdata",
		Environment:   "local",
		Farm: FarmConfig{
			StartDelay:     300,
			CooldownPeriod: 21,
		},
	}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	// The generated file still needs addresses filled in before it
	// validates, so hand it back without validating.
	return cfg, nil
}
