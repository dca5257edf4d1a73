package model

import (
	"fmt"
	"time"
)

// Conversation 会话主表
type Conversation struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	IsGroup       bool       `gorm:"not null;default:false" json:"isGroup"`
	PeerKey       *string    `gorm:"uniqueIndex;type:varchar(64)" json:"peerKey"` // 单聊 min_max，群聊为 NULL
	LastMessageID string     `gorm:"type:varchar(36);not null;default:''" json:"lastMessageId"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"index" json:"updatedAt"`

	Members []ConversationMember `gorm:"foreignKey:ConversationID;references:ID" json:"members"`
}

func (Conversation) TableName() string { return "conversations" }

// ConversationMember 会话成员表
type ConversationMember struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"` // 自增，保留加入顺序
	ConversationID uint64    `gorm:"uniqueIndex:idx_conv_user" json:"conversationId"`
	UserID         uint64    `gorm:"uniqueIndex:idx_conv_user;index" json:"userId"`
	JoinedAt       time.Time `json:"joinedAt"`
}

func (ConversationMember) TableName() string { return "conversation_members" }

// PeerKeyOf 单聊的规范化参与者对，与参数顺序无关
func PeerKeyOf(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// ParticipantIDs 按加入顺序返回参与者
func (c *Conversation) ParticipantIDs() []uint64 {
	ids := make([]uint64, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// HasParticipant 判断用户是否为会话成员
func (c *Conversation) HasParticipant(userID uint64) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// OtherParticipant 第一个不是 userID 的成员；群聊下只是近似值
func (c *Conversation) OtherParticipant(userID uint64) (uint64, bool) {
	for _, m := range c.Members {
		if m.UserID != userID {
			return m.UserID, true
		}
	}
	return 0, false
}
