package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the validated monitor configuration.
type Config struct {
	RPCURL       string
	ChainID      uint64
	BridgeAdmin  common.Address
	DeployBlock  uint64
	LogBatchSize uint64
	RPCTimeout   time.Duration

	// PollingDelay of zero selects serverless mode.
	PollingDelay    time.Duration
	ErrorRetries    int
	ErrorRetryDelay time.Duration

	// StartingBlock and EndingBlock are serverless overrides; nil means head.
	StartingBlock *uint64
	EndingBlock   *uint64

	UtilizationThreshold   uint64
	WhitelistedAddresses   []common.Address
	UtilizationEnabled     bool
	UnknownRelayersEnabled bool

	AlertsOut   string
	PGDSN       string
	MetricsAddr string
	LogLevel    string
}

// Serverless reports whether the monitor runs a single iteration and exits.
func (c Config) Serverless() bool {
	return c.PollingDelay == 0
}

// Load merges config file, environment variables, and flags into Config and
// validates it.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BRIDGEMON")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", uint64(1))
	v.SetDefault("deploy-block", uint64(0))
	v.SetDefault("log-batch-size", uint64(2000))
	v.SetDefault("rpc-timeout", 30*time.Second)
	v.SetDefault("polling-delay", 60)
	v.SetDefault("error-retries", 3)
	v.SetDefault("error-retries-timeout", 1)
	v.SetDefault("utilization-threshold", 90)
	v.SetDefault("utilization-enabled", true)
	v.SetDefault("unknown-relayers-enabled", true)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	r := &reader{v: v}

	pollingDelay := r.getInt("polling-delay")
	retries := r.getInt("error-retries")
	retryDelay := r.getInt("error-retries-timeout")
	threshold := r.getInt("utilization-threshold")

	cfg := Config{
		RPCURL:                 v.GetString("rpc"),
		ChainID:                r.getUint64("chain-id"),
		DeployBlock:            r.getUint64("deploy-block"),
		LogBatchSize:           r.getUint64("log-batch-size"),
		RPCTimeout:             r.getDuration("rpc-timeout"),
		PollingDelay:           time.Duration(pollingDelay) * time.Second,
		ErrorRetries:           retries,
		ErrorRetryDelay:        time.Duration(retryDelay) * time.Second,
		StartingBlock:          r.getOptionalUint64("starting-block"),
		EndingBlock:            r.getOptionalUint64("ending-block"),
		WhitelistedAddresses:   r.getAddresses("whitelisted-addresses"),
		UtilizationEnabled:     r.getBool("utilization-enabled"),
		UnknownRelayersEnabled: r.getBool("unknown-relayers-enabled"),
		AlertsOut:              v.GetString("alerts-out"),
		PGDSN:                  v.GetString("pg-dsn"),
		MetricsAddr:            v.GetString("metrics-addr"),
		LogLevel:               v.GetString("log-level"),
	}
	if r.err != nil {
		return Config{}, r.err
	}

	if pollingDelay < 0 {
		return Config{}, fmt.Errorf("polling-delay must be >= 0, got %d", pollingDelay)
	}
	if retries < 0 {
		return Config{}, fmt.Errorf("error-retries must be >= 0, got %d", retries)
	}
	if retryDelay < 0 {
		return Config{}, fmt.Errorf("error-retries-timeout must be >= 0, got %d", retryDelay)
	}
	if threshold < 0 || threshold > 100 {
		return Config{}, fmt.Errorf("utilization-threshold must be within [0,100], got %d", threshold)
	}
	cfg.UtilizationThreshold = uint64(threshold)

	if err := cfg.setBridgeAdmin(v.GetString("bridge-admin")); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// reader converts raw viper values strictly. Env and file values arrive as
// strings, so a malformed value must fail instead of reading as zero. The
// first error wins.
type reader struct {
	v   *viper.Viper
	err error
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (r *reader) getInt(key string) int {
	val, err := cast.ToIntE(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return val
}

func (r *reader) getUint64(key string) uint64 {
	val, err := cast.ToUint64E(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return val
}

func (r *reader) getOptionalUint64(key string) *uint64 {
	if !r.v.IsSet(key) {
		return nil
	}
	val := r.getUint64(key)
	return &val
}

func (r *reader) getDuration(key string) time.Duration {
	val, err := cast.ToDurationE(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return val
}

func (r *reader) getBool(key string) bool {
	val, err := cast.ToBoolE(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return val
}

// getAddresses accepts a list from a flag or file, or a comma-separated string
// from env.
func (r *reader) getAddresses(key string) []common.Address {
	var items []string
	switch raw := r.v.Get(key).(type) {
	case nil:
	case string:
		items = strings.Split(raw, ",")
	default:
		var err error
		if items, err = cast.ToStringSliceE(raw); err != nil {
			r.fail(key, err)
			return nil
		}
	}

	addresses, err := ParseAddresses(items)
	if err != nil {
		r.fail(key, err)
	}
	return addresses
}

func (c *Config) setBridgeAdmin(input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	if !common.IsHexAddress(input) {
		return fmt.Errorf("invalid bridge-admin address: %s", input)
	}
	c.BridgeAdmin = common.HexToAddress(input)
	return nil
}

// Validate checks fields that have no safe default.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.BridgeAdmin == (common.Address{}) {
		return fmt.Errorf("bridge-admin address is required")
	}
	if c.ChainID == 0 {
		return fmt.Errorf("chain-id must be greater than zero")
	}
	if c.LogBatchSize == 0 {
		return fmt.Errorf("log-batch-size must be greater than zero")
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("rpc-timeout must be positive")
	}
	if c.UtilizationThreshold > 100 {
		return fmt.Errorf("utilization-threshold must be within [0,100], got %d", c.UtilizationThreshold)
	}
	return nil
}

// ParseAddresses converts string addresses into checksummed common.Address values.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}
