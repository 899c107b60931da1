package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auction   AuctionConfig   `mapstructure:"auction"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuctionConfig holds the auction engine tunables.
type AuctionConfig struct {
	RoundDuration        time.Duration `mapstructure:"round_duration"`
	AntiSnipingThreshold time.Duration `mapstructure:"anti_sniping_threshold"`
	AntiSnipingExtension time.Duration `mapstructure:"anti_sniping_extension"`
	TopN                 int           `mapstructure:"top_n"`                // leaderboard size
	MinBidStepPercent    int64         `mapstructure:"min_bid_step_percent"` // integer percent
	AdminToken           string        `mapstructure:"admin_token"`          // empty = admin routes open
	BidRateLimit         int64         `mapstructure:"bid_rate_limit"`
	BidRateWindow        time.Duration `mapstructure:"bid_rate_window"`
	LockTTL              time.Duration `mapstructure:"lock_ttl"` // anti-sniping lock TTL
}

// SchedulerConfig holds the round-closure worker settings.
type SchedulerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Workers      int           `mapstructure:"workers"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: AUCTION_.
// Nested keys use underscore: AUCTION_DATABASE_HOST, AUCTION_AUCTION_TOP_N, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "auction_house")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auction.round_duration", "5m")
	v.SetDefault("auction.anti_sniping_threshold", "60s")
	v.SetDefault("auction.anti_sniping_extension", "120s")
	v.SetDefault("auction.top_n", 10)
	v.SetDefault("auction.min_bid_step_percent", 5)
	v.SetDefault("auction.admin_token", "")
	v.SetDefault("auction.bid_rate_limit", 100)
	v.SetDefault("auction.bid_rate_window", "10s")
	v.SetDefault("auction.lock_ttl", "2s")
	v.SetDefault("scheduler.poll_interval", "250ms")
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.retry_delay", "3s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: AUCTION_DATABASE_HOST -> database.host
	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
