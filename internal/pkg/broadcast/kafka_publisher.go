package broadcast

import (
	"context"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// KafkaPublisher 以会话 ID 作为分区 key，保证同一会话内事件有序
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (s *KafkaPublisher) Publish(ctx context.Context, evt *MessageCreated) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(evt.ConversationID, 10)),
		Value: sarama.ByteEncoder(data),
	}

	// SyncProducer 不接收 ctx，超时由 Producer.Timeout 控制，这里只响应取消
	done := make(chan error, 1)
	go func() {
		_, _, err := s.producer.SendMessage(msg)
		done <- err
	}()
	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *KafkaPublisher) Close() error {
	return s.producer.Close()
}
