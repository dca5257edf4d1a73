package dto

import (
	"Courier/internal/model"
	"time"
)

// CreateConversationReq 创建 (或获取) 单聊会话请求体
type CreateConversationReq struct {
	CurrentUserID  uint64 `json:"currentUserId" binding:"required"`
	OtherUserID    uint64 `json:"otherUserId" binding:"required"`
	InitialMessage string `json:"initialMessage" binding:"max=4000"`
}

// CreateConversationResp 创建会话响应
type CreateConversationResp struct {
	ConversationID uint64 `json:"conversationId"`
}

// AttachmentDTO 附件描述，由对象存储生成
type AttachmentDTO struct {
	Type     string  `json:"type" binding:"required,max=32"`
	URL      string  `json:"url" binding:"required,max=1024"`
	MimeType string  `json:"mimeType,omitempty"`
	Width    int     `json:"width,omitempty" binding:"min=0"`
	Height   int     `json:"height,omitempty" binding:"min=0"`
	Duration float64 `json:"duration,omitempty" binding:"min=0"`
	CoverURL string  `json:"coverUrl,omitempty"`
}

// SendMessageReq 发送消息请求体，text 与 media 至少其一
type SendMessageReq struct {
	ConversationID uint64          `json:"conversationId" binding:"required"`
	Sender         uint64          `json:"sender" binding:"required"`
	Text           string          `json:"text" binding:"max=4000"`
	Media          []AttachmentDTO `json:"media" binding:"omitempty,max=9,dive"`
}

// SendMessageResp 发送消息响应
type SendMessageResp struct {
	MessageID string `json:"messageId"`
}

// MessageDTO 消息明细响应
type MessageDTO struct {
	ID             string             `json:"id"`
	ConversationID uint64             `json:"conversationId"`
	SenderID       uint64             `json:"sender"`
	Text           string             `json:"text,omitempty"`
	Media          []model.Attachment `json:"media,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// MessagePageDTO 历史分页
type MessagePageDTO struct {
	Messages   []*MessageDTO `json:"messages"`
	NextCursor string        `json:"nextCursor,omitempty"`
	HasMore    bool          `json:"hasMore"`
}

// ConversationSummaryDTO 会话列表项响应
type ConversationSummaryDTO struct {
	ConversationID  uint64     `json:"conversationId"`
	IsGroup         bool       `json:"isGroup"`
	MemberIDs       []uint64   `json:"memberIds"`
	PeerID          uint64     `json:"peerId"` // 对手方ID，群聊为第一个其他成员
	PeerName        string     `json:"peerName"`
	PeerAvatar      string     `json:"peerAvatar"`
	LastMessageID   string     `json:"lastMessageId,omitempty"`
	LastSenderID    uint64     `json:"lastSenderId,omitempty"`
	Preview         string     `json:"preview"`
	LastMessageTime *time.Time `json:"lastMessageTime,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// UserProfileDTO 显示身份，缓存在 Redis
type UserProfileDTO struct {
	UserID            uint64  `json:"user_id"`
	Username          *string `json:"username,omitempty"`
	Nickname          string  `json:"nickname"`
	SocialAvatarURL   *string `json:"social_avatar_url,omitempty"`
	ProfilePictureURL *string `json:"profile_picture_url,omitempty"`
	AvatarURL         *string `json:"avatar_url,omitempty"`
}

// ListConversationsQuery 会话列表查询参数
type ListConversationsQuery struct {
	UserID uint64 `form:"userId" validate:"required"`
}

// MessagePageQuery 分页参数，Limit 为空时取默认值
type MessagePageQuery struct {
	Cursor string `form:"cursor"`
	After  string `form:"after"`
	Limit  *int   `form:"limit"`
}
