package broadcast

import (
	"context"
	"time"
)

const EventMessageCreated = "MESSAGE_CREATED"

// MessageCreated 交给实时推送网关的新消息事件
type MessageCreated struct {
	Type           string    `json:"type"`
	ConversationID uint64    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	SenderID       uint64    `json:"sender_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Publisher 事件投递端，至多一次，不要求确认
type Publisher interface {
	Publish(ctx context.Context, evt *MessageCreated) error
}

// PublisherFunc 便于测试和组合
type PublisherFunc func(ctx context.Context, evt *MessageCreated) error

func (f PublisherFunc) Publish(ctx context.Context, evt *MessageCreated) error {
	return f(ctx, evt)
}
