package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Vision  VisionConfig  `mapstructure:"vision"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Bus     BusConfig     `mapstructure:"bus"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// VisionConfig controls the verification adapter. When no detector backend
// is configured the randomized fallback strategy is used.
type VisionConfig struct {
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	Timeout             time.Duration `mapstructure:"timeout"`
	FallbackSeed        int64         `mapstructure:"fallback_seed"`
}

// AlertsConfig tunes the signal correlator. DedupWindow zero means every
// evaluation pass emits fresh alert rows (full audit granularity). TheftGap
// is the detected-minus-scanned count at which the cart is escalated to
// alert status.
type AlertsConfig struct {
	DedupWindow time.Duration `mapstructure:"dedup_window"`
	TheftGap    int           `mapstructure:"theft_gap"`
}

type BusConfig struct {
	HistorySize int `mapstructure:"history_size"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("vision.confidence_threshold", 0.5)
	v.SetDefault("vision.timeout", "5s")
	v.SetDefault("alerts.dedup_window", "0s")
	v.SetDefault("alerts.theft_gap", 3)
	v.SetDefault("bus.history_size", 1000)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}
