package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg
func LoadConfig() error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")

	// 环境变量覆盖，如 COURIER_IM_STRICT_SENDER=false
	v.SetEnvPrefix("COURIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Cfg = &cfg

	return nil
}

func setDefaults(v *viper.Viper) {
	im := DefaultIMConfig()

	v.SetDefault("server.port", 8080)
	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_open", 100)
	v.SetDefault("database.max_lifetime", 60)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 4)
	v.SetDefault("redis.dial_timeout_ms", 2000)
	v.SetDefault("redis.read_timeout_ms", 500)
	v.SetDefault("redis.write_timeout_ms", 500)
	v.SetDefault("mongo.url", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "courier")
	v.SetDefault("logstash.index", "logstash-courier")
	v.SetDefault("log_file.max_size", 100)
	v.SetDefault("log_file.max_backups", 7)
	v.SetDefault("log_file.max_age", 30)
	v.SetDefault("log_file.compress", true)

	v.SetDefault("kafka.consumer.session_timeout", 10)
	v.SetDefault("kafka.consumer.heartbeat_interval", 3)
	v.SetDefault("kafka.consumer.rebalance_timeout", 60)
	v.SetDefault("kafka.consumer.max_processing_time", 5)
	v.SetDefault("kafka.producer.required_acks", 1)
	v.SetDefault("kafka.producer.retry_max", 3)
	v.SetDefault("kafka.producer.timeout", 2)

	v.SetDefault("im.read_timeout_ms", im.ReadTimeoutMs)
	v.SetDefault("im.write_timeout_ms", im.WriteTimeoutMs)
	v.SetDefault("im.side_effect_timeout_ms", im.SideEffectTimeoutMs)
	v.SetDefault("im.default_page_size", im.DefaultPageSize)
	v.SetDefault("im.max_page_size", im.MaxPageSize)
	v.SetDefault("im.strict_sender", im.StrictSender)
	v.SetDefault("im.event_sinks", im.EventSinks)
	v.SetDefault("im.event_topic", im.EventTopic)
	v.SetDefault("im.event_queue_size", im.EventQueueSize)
	v.SetDefault("im.event_workers", im.EventWorkers)
	v.SetDefault("im.calibration_workers", im.CalibrationWorkers)
	v.SetDefault("im.orphan_sweep_spec", im.OrphanSweepSpec)
	v.SetDefault("im.profile_cache_ttl_s", im.ProfileCacheTTLSec)
}
