package config

import "time"

// Config 配置主体
type Config struct {
	Server                  ServerConfig            `mapstructure:"server"`
	DB                      DBConfig                `mapstructure:"database"`
	Redis                   RedisConfig             `mapstructure:"redis"`
	Mongo                   MongoConfig             `mapstructure:"mongo"`
	Logstash                LogstashConfig          `mapstructure:"logstash"`
	LogFile                 LogFileConfig           `mapstructure:"log_file"`
	Kafka                   KafkaConfig             `mapstructure:"kafka"`
	KafkaUserDetailConsumer KafkaUserDetailConsumer `mapstructure:"kafka_user_detail_consumer"`
	IM                      IMConfig                `mapstructure:"im"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig 缓存、事件推送与分布式锁共用一个连接池
type RedisConfig struct {
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	PoolSize       int    `mapstructure:"pool_size"`
	MinIdleConns   int    `mapstructure:"min_idle_conns"`
	DialTimeoutMs  int    `mapstructure:"dial_timeout_ms"`
	ReadTimeoutMs  int    `mapstructure:"read_timeout_ms"`
	WriteTimeoutMs int    `mapstructure:"write_timeout_ms"`
}

// MongoConfig MongoDB配置
type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

// LogstashConfig 远程日志
type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
}

// LogFileConfig 本地滚动日志，Path 为空时不写文件
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // 天
	Compress   bool   `mapstructure:"compress"`
}

type KafkaConfig struct {
	Brokers  []string       `mapstructure:"brokers"`
	Sasl     SaslConfig     `mapstructure:"sasl"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
	Producer ProducerConfig `mapstructure:"producer"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ConsumerConfig struct {
	SessionTimeout    int `mapstructure:"session_timeout"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  int `mapstructure:"rebalance_timeout"`
	MaxProcessingTime int `mapstructure:"max_processing_time"`
}

type ProducerConfig struct {
	RequiredAcks int `mapstructure:"required_acks"` // 0-NoResponse, 1-WaitForLocal, -1-WaitForAll
	RetryMax     int `mapstructure:"retry_max"`
	Timeout      int `mapstructure:"timeout"`
}

type KafkaUserDetailConsumer struct {
	Enable  bool   `mapstructure:"enable"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// IMConfig 消息核心配置
type IMConfig struct {
	ReadTimeoutMs       int      `mapstructure:"read_timeout_ms"`
	WriteTimeoutMs      int      `mapstructure:"write_timeout_ms"`
	SideEffectTimeoutMs int      `mapstructure:"side_effect_timeout_ms"`
	DefaultPageSize     int      `mapstructure:"default_page_size"`
	MaxPageSize         int      `mapstructure:"max_page_size"`
	StrictSender        bool     `mapstructure:"strict_sender"`
	EventSinks          []string `mapstructure:"event_sinks"`
	EventTopic          string   `mapstructure:"event_topic"`
	EventQueueSize      int      `mapstructure:"event_queue_size"`
	EventWorkers        int      `mapstructure:"event_workers"`
	CalibrationWorkers  int      `mapstructure:"calibration_workers"`
	OrphanSweepSpec     string   `mapstructure:"orphan_sweep_spec"`
	ProfileCacheTTLSec  int      `mapstructure:"profile_cache_ttl_s"`
}

func (c IMConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

func (c IMConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

func (c IMConfig) SideEffectTimeout() time.Duration {
	return time.Duration(c.SideEffectTimeoutMs) * time.Millisecond
}

func (c IMConfig) ProfileCacheTTL() time.Duration {
	return time.Duration(c.ProfileCacheTTLSec) * time.Second
}

// DefaultIMConfig 未加载配置文件时使用 (测试场景)
func DefaultIMConfig() IMConfig {
	return IMConfig{
		ReadTimeoutMs:       3000,
		WriteTimeoutMs:      3000,
		SideEffectTimeoutMs: 1000,
		DefaultPageSize:     20,
		MaxPageSize:         100,
		StrictSender:        true,
		EventSinks:          []string{"redis"},
		EventTopic:          "im-message-created",
		EventQueueSize:      1024,
		EventWorkers:        4,
		CalibrationWorkers:  2,
		OrphanSweepSpec:     "@hourly",
		ProfileCacheTTLSec:  3600,
	}
}
