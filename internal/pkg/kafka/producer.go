package kafka

import (
	"Courier/internal/api/config"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

// NewSyncProducer 事件投递使用的同步生产者
func NewSyncProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newProducerConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	log.Info("Kafka producer connected", "brokers", cfg.Brokers)
	return producer, nil
}
