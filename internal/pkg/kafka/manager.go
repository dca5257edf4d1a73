package kafka

import (
	"Courier/internal/api/config"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理所有 Kafka 消费者
type ConsumerManager struct {
	userDetailConsumer sarama.ConsumerGroup
	userDetailHandler  sarama.ConsumerGroupHandler
	userDetailTopic    string
}

// NewConsumerManager 构造函数
func NewConsumerManager(cfg *config.Config, invalidator ProfileInvalidator) (*ConsumerManager, error) {
	saramaCfg := newSaramaConfig(cfg.Kafka)

	userDetailConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaUserDetailConsumer.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &ConsumerManager{
		userDetailConsumer: userDetailConsumer,
		userDetailHandler:  NewUserDetailHandler(invalidator),
		userDetailTopic:    cfg.KafkaUserDetailConsumer.Topic,
	}, nil
}

// Start 启动所有消费者，阻塞至 ctx 结束
func (m *ConsumerManager) Start(ctx context.Context) error {
	go func() {
		for err := range m.userDetailConsumer.Errors() {
			log.Error("User Detail consumer error", "err", err)
		}
	}()

	go func() {
		log.Info("User Detail consumer started", "topic", m.userDetailTopic)
		for {
			if err := m.userDetailConsumer.Consume(ctx, []string{m.userDetailTopic}, m.userDetailHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.userDetailConsumer.Close(); err != nil {
		log.Error("Failed to close user detail consumer", "err", err)
	}
	return nil
}
