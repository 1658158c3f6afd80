package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AlertConfig selects admin notification channels. Empty credentials disable a channel.
type AlertConfig struct {
	SlackToken   string
	SlackChannel string
	SendgridKey  string
	EmailFrom    string
	EmailTo      []string
}

// StorageConfig selects where journals and operations are kept.
type StorageConfig struct {
	PGDSN           string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	OperationsFile  string
}

// WorkerConfig holds configuration for the worker and status commands.
type WorkerConfig struct {
	Queue           QueueConfig
	Group           string
	Consumer        string
	Concurrency     int
	MaxAttempts     int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	ClaimIdle       time.Duration
	LockTTL         time.Duration
	MetricsAddr     string
	HedgeSymbol     string
	PaperExchange   bool
	RPCURL          string
	StakingContract string
	Storage         StorageConfig
	Alerts          AlertConfig
	LogLevel        string
}

// LoadWorker merges config file, environment variables, and flags into WorkerConfig.
func LoadWorker(cfgFile string, flags *pflag.FlagSet) (WorkerConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetDefault("group", "strategy-workers")
	v.SetDefault("consumer", "worker")
	v.SetDefault("concurrency", 4)
	v.SetDefault("max-attempts", 5)
	v.SetDefault("base-backoff", 2*time.Second)
	v.SetDefault("max-backoff", 5*time.Minute)
	v.SetDefault("claim-idle", 10*time.Minute)
	v.SetDefault("lock-ttl", 30*time.Minute)
	v.SetDefault("metrics-addr", ":9102")
	v.SetDefault("hedge-symbol", "AXSUSDT")
	v.SetDefault("operations-file", "./data/operations.jsonl")
	v.SetDefault("mongo-database", "manager")
	v.SetDefault("mongo-collection", "operations")

	if err := read(v, cfgFile, flags); err != nil {
		return WorkerConfig{}, err
	}

	cfg := WorkerConfig{
		Queue:           loadQueue(v),
		Group:           v.GetString("group"),
		Consumer:        v.GetString("consumer"),
		Concurrency:     v.GetInt("concurrency"),
		MaxAttempts:     v.GetInt("max-attempts"),
		BaseBackoff:     v.GetDuration("base-backoff"),
		MaxBackoff:      v.GetDuration("max-backoff"),
		ClaimIdle:       v.GetDuration("claim-idle"),
		LockTTL:         v.GetDuration("lock-ttl"),
		MetricsAddr:     v.GetString("metrics-addr"),
		HedgeSymbol:     v.GetString("hedge-symbol"),
		PaperExchange:   v.GetBool("paper-exchange"),
		RPCURL:          v.GetString("rpc"),
		StakingContract: v.GetString("staking-contract"),
		Storage: StorageConfig{
			PGDSN:           v.GetString("pg-dsn"),
			MongoURI:        v.GetString("mongo-uri"),
			MongoDatabase:   v.GetString("mongo-database"),
			MongoCollection: v.GetString("mongo-collection"),
			OperationsFile:  v.GetString("operations-file"),
		},
		Alerts:   loadAlerts(v),
		LogLevel: v.GetString("log-level"),
	}
	return cfg, nil
}

// Validate checks the settings the worker needs.
func (c WorkerConfig) Validate() error {
	if c.Queue.RedisURL == "" {
		return fmt.Errorf("redis url is required")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be greater than zero")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be greater than zero")
	}
	if c.StakingContract != "" && c.RPCURL == "" {
		return fmt.Errorf("rpc url is required to read the staking contract")
	}
	if c.PaperExchange && c.HedgeSymbol == "" {
		return fmt.Errorf("hedge symbol is required with an exchange")
	}
	return nil
}

func loadAlerts(v *viper.Viper) AlertConfig {
	return AlertConfig{
		SlackToken:   v.GetString("slack-token"),
		SlackChannel: v.GetString("slack-channel"),
		SendgridKey:  v.GetString("sendgrid-key"),
		EmailFrom:    v.GetString("email-from"),
		EmailTo:      getStringSlice(v, "email-to"),
	}
}
