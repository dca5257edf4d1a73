package repository

import (
	"Courier/internal/model"
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ErrDuplicatePeerKey 单聊唯一约束冲突，说明并发创建中另一方已成功
var ErrDuplicatePeerKey = errors.New("conversation peer key already exists")

type ConversationRepo interface {
	CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.ConversationMember) error
	GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error)
	GetConversationByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error)
	GetExistingIDs(ctx context.Context, convIDs []uint64) ([]uint64, error)
	GetUserConversations(ctx context.Context, userID uint64) ([]*model.Conversation, error)
	UpdateLastMessage(ctx context.Context, convID uint64, msgID string, msgAt time.Time) (bool, error)
	DeleteConversation(ctx context.Context, convID uint64) error
}

type conversationRepoImpl struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepoImpl{db: db}
}

// CreateConversation 开启事务创建会话及初始成员，peer_key 冲突返回 ErrDuplicatePeerKey
func (s *conversationRepoImpl) CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.ConversationMember) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members").Create(conv).Error; err != nil {
			return err
		}
		for _, m := range members {
			m.ConversationID = conv.ID
			if m.JoinedAt.IsZero() {
				m.JoinedAt = time.Now()
			}
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if isDuplicateError(err) {
		return ErrDuplicatePeerKey
	}
	if err != nil {
		return err
	}
	conv.Members = make([]model.ConversationMember, 0, len(members))
	for _, m := range members {
		conv.Members = append(conv.Members, *m)
	}
	return nil
}

// GetConversation 根据会话 ID 获取会话及成员，不存在返回 nil, nil
func (s *conversationRepoImpl) GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Preload("Members", orderByJoin).
		First(&conv, convID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetConversationByPeerKey 根据单聊标识获取会话，不存在返回 nil, nil
func (s *conversationRepoImpl) GetConversationByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Preload("Members", orderByJoin).
		Where("peer_key = ? AND is_group = ?", peerKey, false).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetExistingIDs 过滤出仍然存在的会话 ID
func (s *conversationRepoImpl) GetExistingIDs(ctx context.Context, convIDs []uint64) ([]uint64, error) {
	ids := make([]uint64, 0, len(convIDs))
	if len(convIDs) == 0 {
		return ids, nil
	}
	err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id IN ?", convIDs).
		Pluck("id", &ids).Error
	return ids, err
}

// GetUserConversations 用户参与的全部会话，按 updated_at 倒序
func (s *conversationRepoImpl) GetUserConversations(ctx context.Context, userID uint64) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	sub := s.db.Model(&model.ConversationMember{}).
		Select("conversation_id").
		Where("user_id = ?", userID)
	err := s.db.WithContext(ctx).
		Preload("Members", orderByJoin).
		Where("id IN (?)", sub).
		Order("updated_at DESC, id DESC").
		Find(&convs).Error
	return convs, err
}

// UpdateLastMessage 只允许指针向更新的消息移动，并发发送或重试不会使预览回退
func (s *conversationRepoImpl) UpdateLastMessage(ctx context.Context, convID uint64, msgID string, msgAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND last_message_id < ?", convID, msgID).
		Updates(map[string]interface{}{
			"last_message_id": msgID,
			"last_message_at": msgAt,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteConversation 删除会话及成员；调用方须先删除消息
func (s *conversationRepoImpl) DeleteConversation(ctx context.Context, convID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", convID).Delete(&model.ConversationMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Conversation{}, convID).Error
	})
}

func orderByJoin(db *gorm.DB) *gorm.DB {
	return db.Order("conversation_members.id ASC")
}

func isDuplicateError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
