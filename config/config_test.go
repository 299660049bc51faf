package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validConfig = `
ListenAddress = ":9000"
DataDir = "/tmp/farmdata"
Environment = "staging"

[Farm]
Owner = "0x0000000000000000000000000000000000000001"
FarmAddress = "0x00000000000000000000000000000000000000Fa"
LiquidityToken = "0x0000000000000000000000000000000000000010"
CooldownPeriod = 21

[[Farm.RewardTokens]]
Token = "0x0000000000000000000000000000000000000020"
Manager = "0x0000000000000000000000000000000000000040"

[[Farm.RewardTokens]]
Token = "0x0000000000000000000000000000000000000021"
Manager = "0x0000000000000000000000000000000000000041"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "farmd.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9000" {
		t.Fatalf("listen address %q", cfg.ListenAddress)
	}
	if cfg.Farm.CooldownPeriod != 21 {
		t.Fatalf("cooldown %d", cfg.Farm.CooldownPeriod)
	}
	if len(cfg.Farm.RewardTokens) != 2 {
		t.Fatalf("reward tokens %d", len(cfg.Farm.RewardTokens))
	}
	// Unset fields pick up defaults.
	if cfg.HistoryDSN != filepath.Join("/tmp/farmdata", "history.db") {
		t.Fatalf("history dsn %q", cfg.HistoryDSN)
	}
	if cfg.Farm.StartDelay != 300 {
		t.Fatalf("start delay %d", cfg.Farm.StartDelay)
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "farmd.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if cfg.ListenAddress != ":8555" {
		t.Fatalf("default listen address %q", cfg.ListenAddress)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not created: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad owner", func(c *Config) { c.Farm.Owner = "not-an-address" }},
		{"bad liquidity token", func(c *Config) { c.Farm.LiquidityToken = "0x123" }},
		{"cooldown out of range", func(c *Config) { c.Farm.CooldownPeriod = 31 }},
		{"no reward tokens", func(c *Config) { c.Farm.RewardTokens = nil }},
		{"too many reward tokens", func(c *Config) {
			rt := c.Farm.RewardTokens[0]
			c.Farm.RewardTokens = []RewardTokenConfig{rt, rt, rt, rt, rt}
		}},
		{"duplicate reward token", func(c *Config) {
			c.Farm.RewardTokens = append(c.Farm.RewardTokens, c.Farm.RewardTokens[0])
		}},
		{"primary token without manager", func(c *Config) {
			c.Farm.PrimaryRewardToken = c.Farm.RewardTokens[0].Token
			c.Farm.PrimaryTokenManager = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validConfig))
			if err != nil {
				t.Fatalf("load base: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}
