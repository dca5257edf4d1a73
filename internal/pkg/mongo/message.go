package mongo

import (
	"Courier/internal/model"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Message MongoDB 消息明细模型，创建后不可变
type Message struct {
	ID             string             `bson:"_id" json:"id"`                         // UUIDv7，按创建顺序递增，同时作为分页游标
	ConversationID uint64             `bson:"conversation_id" json:"conversationId"` // 关联 MySQL 的会话 ID
	SenderID       uint64             `bson:"sender_id" json:"senderId"`             // 发送者 UID
	Text           string             `bson:"text,omitempty" json:"text,omitempty"`
	Media          []model.Attachment `bson:"media,omitempty" json:"media,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
}

// NewMessage 生成 ID 并构造消息，CreatedAt 取自 ID 内嵌的毫秒时间戳，两者排序一致
func NewMessage(convID, senderID uint64, content model.Content) (*Message, error) {
	id, createdAt, err := NewMessageID()
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       senderID,
		Text:           content.Text(),
		Media:          content.Media(),
		CreatedAt:      createdAt,
	}, nil
}

// NewMessageID UUIDv7 的字符串形式按字典序即按时间序
func NewMessageID() (string, time.Time, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", time.Time{}, err
	}
	ms := int64(binary.BigEndian.Uint64(id[:8]) >> 16)
	return id.String(), time.UnixMilli(ms), nil
}

// Preview 会话列表预览
func (m *Message) Preview() string {
	return model.PreviewOf(m.Text, m.Media)
}
