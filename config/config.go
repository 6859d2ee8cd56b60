// Package config loads rebalancer configuration from the environment,
// with an optional YAML file for overrides.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/rebalancer/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort              = 3000
	defaultRebalanceInterval = 60 * time.Second
	defaultTolerance         = "0.01"
	defaultChainID           = 8453 // Base
	defaultSwapPollInterval  = 30 * time.Second
	defaultSwapMaxWait       = 30 * time.Minute
	defaultApprovalWait      = 10 * time.Second
	defaultTriggerCooldown   = 2 * time.Minute
	defaultGuardExpiry       = 10 * time.Minute
)

// Base mainnet token pair rebalanced by default.
var defaultPair = domain.Pair{
	Base: domain.Token{
		Address:  "0x4200000000000000000000000000000000000006",
		Symbol:   "WETH",
		Decimals: 18,
	},
	Quote: domain.Token{
		Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Symbol:   "USDC",
		Decimals: 6,
	},
}

type Config struct {
	PrivateKey        string
	NodeURL           string
	DevPortalAPIToken string

	Port              int
	RebalanceInterval time.Duration
	Tolerance         decimal.Decimal
	ChainID           int64
	Pair              domain.Pair

	SwapPollInterval time.Duration
	SwapMaxWait      time.Duration
	ApprovalWait     time.Duration
	TriggerCooldown  time.Duration
	GuardExpiry      time.Duration

	IexecAppAddress        string
	IexecWorkerpoolAddress string
	IexecRPCURL            string
}

// IexecConfigured reports whether a confidential-compute app is set up.
func (c *Config) IexecConfigured() bool {
	return c.IexecAppAddress != ""
}

type configYaml struct {
	Port              int           `yaml:"port,omitempty"`
	RebalanceInterval time.Duration `yaml:"rebalance_interval,omitempty"`
	Tolerance         string        `yaml:"tolerance,omitempty"`
	ChainID           int64         `yaml:"chain_id,omitempty"`
	SwapPollInterval  time.Duration `yaml:"swap_poll_interval,omitempty"`
	SwapMaxWait       time.Duration `yaml:"swap_max_wait,omitempty"`
	ApprovalWait      time.Duration `yaml:"approval_wait,omitempty"`
	TriggerCooldown   time.Duration `yaml:"trigger_cooldown,omitempty"`
	GuardExpiry       time.Duration `yaml:"guard_expiry,omitempty"`
	Tokens            []tokenYaml   `yaml:"tokens,omitempty"`
}

type tokenYaml struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Decimals uint   `yaml:"decimals"`
}

// Get builds the configuration. Missing required environment variables
// abort startup.
func Get() (*Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	// .env is optional, real environment wins
	_ = godotenv.Load()

	required := []string{"PRIVATE_KEY", "NODE_URL", "DEV_PORTAL_API_TOKEN"}
	var missing []string
	for _, k := range required {
		if strings.TrimSpace(os.Getenv(k)) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables (empty or undefined): %s", strings.Join(missing, ", "))
	}

	cfg := &Config{
		PrivateKey:        strings.TrimPrefix(os.Getenv("PRIVATE_KEY"), "0x"),
		NodeURL:           os.Getenv("NODE_URL"),
		DevPortalAPIToken: os.Getenv("DEV_PORTAL_API_TOKEN"),

		Port:              defaultPort,
		RebalanceInterval: defaultRebalanceInterval,
		Tolerance:         decimal.RequireFromString(defaultTolerance),
		ChainID:           defaultChainID,
		Pair:              defaultPair,

		SwapPollInterval: defaultSwapPollInterval,
		SwapMaxWait:      defaultSwapMaxWait,
		ApprovalWait:     defaultApprovalWait,
		TriggerCooldown:  defaultTriggerCooldown,
		GuardExpiry:      defaultGuardExpiry,

		IexecAppAddress:        os.Getenv("IEXEC_APP_ADDRESS"),
		IexecWorkerpoolAddress: os.Getenv("IEXEC_WORKERPOOL_ADDRESS"),
		IexecRPCURL:            os.Getenv("IEXEC_RPC_URL"),
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if *configPath != "" {
		if err := applyYaml(cfg, *configPath); err != nil {
			return nil, err
		}
	}

	if cfg.Tolerance.IsNegative() {
		return nil, fmt.Errorf("tolerance must be non-negative, got %s", cfg.Tolerance.String())
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("incorrect PORT value %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("REBALANCING_INTERVAL"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("incorrect REBALANCING_INTERVAL value %q (milliseconds expected): %w", v, err)
		}
		cfg.RebalanceInterval = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("OFFSET"); v != "" {
		tolerance, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("incorrect OFFSET value %q (fraction expected, e.g. 0.01): %w", v, err)
		}
		cfg.Tolerance = tolerance
	}
	return nil
}

func applyYaml(cfg *Config, path string) error {
	f, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var y configYaml
	if err := yaml.Unmarshal(f, &y); err != nil {
		return fmt.Errorf("incorrect yaml config %s: %w", path, err)
	}

	if y.Port != 0 {
		cfg.Port = y.Port
	}
	if y.RebalanceInterval != 0 {
		cfg.RebalanceInterval = y.RebalanceInterval
	}
	if y.Tolerance != "" {
		tolerance, err := decimal.NewFromString(y.Tolerance)
		if err != nil {
			return fmt.Errorf("incorrect 'tolerance' param in yaml config: %w", err)
		}
		cfg.Tolerance = tolerance
	}
	if y.ChainID != 0 {
		cfg.ChainID = y.ChainID
	}
	if y.SwapPollInterval != 0 {
		cfg.SwapPollInterval = y.SwapPollInterval
	}
	if y.SwapMaxWait != 0 {
		cfg.SwapMaxWait = y.SwapMaxWait
	}
	if y.ApprovalWait != 0 {
		cfg.ApprovalWait = y.ApprovalWait
	}
	if y.TriggerCooldown != 0 {
		cfg.TriggerCooldown = y.TriggerCooldown
	}
	if y.GuardExpiry != 0 {
		cfg.GuardExpiry = y.GuardExpiry
	}
	if len(y.Tokens) > 0 {
		if len(y.Tokens) != 2 {
			return fmt.Errorf("exactly two tokens expected in yaml config, got %d", len(y.Tokens))
		}
		cfg.Pair = domain.Pair{
			Base:  domain.Token{Address: y.Tokens[0].Address, Symbol: y.Tokens[0].Symbol, Decimals: y.Tokens[0].Decimals},
			Quote: domain.Token{Address: y.Tokens[1].Address, Symbol: y.Tokens[1].Symbol, Decimals: y.Tokens[1].Decimals},
		}
	}
	return nil
}
