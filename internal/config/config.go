package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ContractConfig is one entry of the contracts list.
type ContractConfig struct {
	Name    string   `mapstructure:"name"`
	Address string   `mapstructure:"address"`
	Events  []string `mapstructure:"events"`
}

// QueueConfig locates the Redis stream shared by listener and worker.
type QueueConfig struct {
	RedisURL string
	Stream   string
}

// ListenerConfig holds configuration for the listen and backfill commands.
type ListenerConfig struct {
	RPCURL            string
	Contracts         []ContractConfig
	Queue             QueueConfig
	WithHistory       bool
	FromBlock         uint64
	ToBlock           uint64
	MaxRange          uint64
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerSecond float64
	Checkpoint        string
	CheckpointName    string
	PGDSN             string
	LogLevel          string
}

// LoadListener merges config file, environment variables, and flags into ListenerConfig.
func LoadListener(cfgFile string, flags *pflag.FlagSet) (ListenerConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetDefault("max-range", uint64(500))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("requests-per-second", 5.0)
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-name", "backfill")

	if err := read(v, cfgFile, flags); err != nil {
		return ListenerConfig{}, err
	}

	contracts, err := loadContracts(v)
	if err != nil {
		return ListenerConfig{}, err
	}

	cfg := ListenerConfig{
		RPCURL:            v.GetString("rpc"),
		Contracts:         contracts,
		Queue:             loadQueue(v),
		WithHistory:       v.GetBool("with-history"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		MaxRange:          v.GetUint64("max-range"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		RequestsPerSecond: v.GetFloat64("requests-per-second"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointName:    v.GetString("checkpoint-name"),
		PGDSN:             v.GetString("pg-dsn"),
		LogLevel:          v.GetString("log-level"),
	}
	return cfg, nil
}

// Validate checks the settings every listener command needs.
func (c ListenerConfig) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if len(c.Contracts) == 0 {
		return fmt.Errorf("at least one contract is required")
	}
	if c.Queue.RedisURL == "" {
		return fmt.Errorf("redis url is required")
	}
	if c.MaxRange == 0 {
		return fmt.Errorf("max range must be greater than zero")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetEnvPrefix("MANAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("redis-url", "redis://localhost:6379/0")
	v.SetDefault("stream", "event-queue")
	v.SetDefault("log-level", "info")
}

func read(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func loadQueue(v *viper.Viper) QueueConfig {
	return QueueConfig{
		RedisURL: v.GetString("redis-url"),
		Stream:   v.GetString("stream"),
	}
}

// loadContracts reads the contracts list from the config file, then appends
// name=address pairs given with --contract or MANAGER_CONTRACT.
func loadContracts(v *viper.Viper) ([]ContractConfig, error) {
	var contracts []ContractConfig
	if v.IsSet("contracts") {
		if err := v.UnmarshalKey("contracts", &contracts); err != nil {
			return nil, fmt.Errorf("parse contracts: %w", err)
		}
	}

	for _, pair := range getStringSlice(v, "contract") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid contract %q, want name=address", pair)
		}
		name := strings.TrimSpace(parts[0])
		address := strings.TrimSpace(parts[1])
		if name == "" || address == "" {
			return nil, fmt.Errorf("invalid contract %q, want name=address", pair)
		}
		contracts = append(contracts, ContractConfig{Name: name, Address: address})
	}
	return contracts, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
