package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers       []string         `mapstructure:"brokers"`
	ConsumerGroup string           `mapstructure:"consumer_group"`
	Topic         KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	SettleJob    string `mapstructure:"settle_job"`   // 结算任务输入
	Notification string `mapstructure:"notification"` // 中奖/退款/汇总事件输出
}

// BusinessConfig 结算业务参数
type BusinessConfig struct {
	MaxAttempts        int `mapstructure:"max_attempts"`         // 单局最大结算尝试次数
	BackoffBaseSeconds int `mapstructure:"backoff_base_seconds"` // 退避基数（指数退避：base * 2^(attempt-1)）
	BackoffCapSeconds  int `mapstructure:"backoff_cap_seconds"`  // 退避上限
	WorkerCount        int `mapstructure:"worker_count"`         // 结算工作协程数
	JobPollIntervalMS  int `mapstructure:"job_poll_interval_ms"` // 任务扫描间隔
	JobBatchSize       int `mapstructure:"job_batch_size"`       // 每次扫描认领上限
	RoundLockTTLSec    int `mapstructure:"round_lock_ttl_sec"`   // 按局结算锁过期时间
	OutboxMaxRetry     int `mapstructure:"outbox_max_retry"`     // 通知消息最大重发次数
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
