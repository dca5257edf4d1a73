package service

import (
	"Courier/internal/api/config"
	"Courier/internal/api/dto"
	"Courier/internal/model"
	"Courier/internal/pkg/broadcast"
	"Courier/internal/pkg/logger"
	"Courier/internal/pkg/mongo"
	"Courier/internal/pkg/util"
	"Courier/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"golang.org/x/sync/singleflight"
)

// IMService 即时通讯服务接口定义
type IMService interface {
	GetOrCreateConversation(ctx context.Context, userID, targetUserID uint64, initialText string) (*model.Conversation, error)
	SendMessage(ctx context.Context, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	GetChatHistory(ctx context.Context, convID uint64, cursor string, limit int) (*dto.MessagePageDTO, error)
	SyncMessages(ctx context.Context, convID uint64, after string, limit int) (*dto.MessagePageDTO, error)
	GetConversationList(ctx context.Context, userID uint64) ([]*dto.ConversationSummaryDTO, error)
	DeleteConversation(ctx context.Context, convID uint64) error
	Close()
}

// lastMessageUpdate 待校准的会话预览指针
type lastMessageUpdate struct {
	convID  uint64
	msgID   string
	msgAt   time.Time
	traceID string
}

type imServiceImpl struct {
	cfg         config.IMConfig
	convRepo    repository.ConversationRepo
	messageRepo mongo.MessageRepo
	identity    IdentityProvider
	publisher   broadcast.Publisher

	createGroup singleflight.Group
	retryChan   chan *lastMessageUpdate
	wg          sync.WaitGroup
	stopChan    chan struct{}
	closeOnce   sync.Once
}

// NewIMService 构造函数：初始化服务并启动异步校准工作池
func NewIMService(
	cfg config.IMConfig,
	convRepo repository.ConversationRepo,
	messageRepo mongo.MessageRepo,
	identity IdentityProvider,
	publisher broadcast.Publisher,
) IMService {
	s := &imServiceImpl{
		cfg:         cfg,
		convRepo:    convRepo,
		messageRepo: messageRepo,
		identity:    identity,
		publisher:   publisher,
		retryChan:   make(chan *lastMessageUpdate, 2048),
		stopChan:    make(chan struct{}),
	}

	workerCount := cfg.CalibrationWorkers
	if workerCount <= 0 {
		workerCount = 1
	}
	s.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go s.calibrationWorker()
	}

	return s
}

// GetOrCreateConversation 单聊：获取或创建会话，可选附带首条消息 (由 userID 发送)
func (s *imServiceImpl) GetOrCreateConversation(ctx context.Context, userID, targetUserID uint64, initialText string) (*model.Conversation, error) {
	if userID == 0 || targetUserID == 0 {
		return nil, ErrParamInvalid
	}
	if userID == targetUserID {
		return nil, ErrSameParticipant
	}
	if err := s.checkUsersExist(ctx, userID, targetUserID); err != nil {
		return nil, err
	}

	// 同进程内的并发请求合并为一次，跨进程的竞争由 peer_key 唯一索引兜底
	peerKey := model.PeerKeyOf(userID, targetUserID)
	v, err, _ := s.createGroup.Do(peerKey, func() (interface{}, error) {
		return s.findOrCreate(context.WithoutCancel(ctx), userID, targetUserID, peerKey)
	})
	if err != nil {
		return nil, err
	}
	conv := v.(*model.Conversation)

	if strings.TrimSpace(initialText) != "" {
		content, err := model.NewContent(initialText, nil)
		if err != nil {
			return nil, ErrMessageEmpty
		}
		if _, err = s.deliver(ctx, conv.ID, userID, content); err != nil {
			return nil, err
		}
	}
	return conv, nil
}

// SendMessage 发送消息：先落库消息，再尽力更新预览指针并投递事件
func (s *imServiceImpl) SendMessage(ctx context.Context, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	if req == nil || req.ConversationID == 0 || req.Sender == 0 {
		return nil, ErrParamInvalid
	}

	var media []model.Attachment
	if len(req.Media) > 0 {
		if err := copier.Copy(&media, &req.Media); err != nil {
			return nil, ErrParamInvalid
		}
	}
	content, err := model.NewContent(req.Text, media)
	if err != nil {
		return nil, ErrMessageEmpty
	}

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout())
	conv, err := s.convRepo.GetConversation(readCtx, req.ConversationID)
	cancel()
	if err != nil {
		return nil, storageError(ctx, "get conversation", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(req.Sender) {
		if s.cfg.StrictSender {
			return nil, ErrNotParticipant
		}
		log.WarnContext(ctx, "sender is not a participant, accepted by permissive policy",
			"conversation_id", conv.ID, "sender_id", req.Sender)
	}

	msg, err := s.deliver(ctx, conv.ID, req.Sender, content)
	if err != nil {
		return nil, err
	}
	return toMessageDTO(msg), nil
}

// GetChatHistory 从 cursor 向前翻页，返回结果按时间正序
func (s *imServiceImpl) GetChatHistory(ctx context.Context, convID uint64, cursor string, limit int) (*dto.MessagePageDTO, error) {
	limit, cursor, err := s.pageArgs(limit, cursor)
	if err != nil {
		return nil, err
	}

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout())
	defer cancel()

	// 多取一条用于判断 hasMore；会话不存在时自然得到空页
	models, err := s.messageRepo.GetHistory(readCtx, convID, cursor, limit+1)
	if err != nil {
		return nil, storageError(ctx, "get history", err)
	}

	page := &dto.MessagePageDTO{}
	if len(models) > limit {
		models = models[:limit]
		page.HasMore = true
		page.NextCursor = models[limit-1].ID
	}

	// 反转消息列表，保证消息从旧到新排列
	for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
		models[i], models[j] = models[j], models[i]
	}
	page.Messages = toMessageDTOs(models)
	return page, nil
}

// SyncMessages 断线重连：拉取 after 之后的新消息，按时间正序
func (s *imServiceImpl) SyncMessages(ctx context.Context, convID uint64, after string, limit int) (*dto.MessagePageDTO, error) {
	limit, after, err := s.pageArgs(limit, after)
	if err != nil {
		return nil, err
	}

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout())
	defer cancel()

	models, err := s.messageRepo.GetAfter(readCtx, convID, after, limit+1)
	if err != nil {
		return nil, storageError(ctx, "sync messages", err)
	}

	page := &dto.MessagePageDTO{}
	if len(models) > limit {
		models = models[:limit]
		page.HasMore = true
	}
	if len(models) > 0 {
		page.NextCursor = models[len(models)-1].ID
	}
	page.Messages = toMessageDTOs(models)
	return page, nil
}

// DeleteConversation 级联删除：先删消息再删会话，中途失败最多留下孤儿消息
func (s *imServiceImpl) DeleteConversation(ctx context.Context, convID uint64) error {
	if convID == 0 {
		return ErrParamInvalid
	}

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout())
	conv, err := s.convRepo.GetConversation(readCtx, convID)
	cancel()
	if err != nil {
		return storageError(ctx, "get conversation", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout())
	defer cancel()

	deleted, err := s.messageRepo.DeleteByConversation(writeCtx, convID)
	if err != nil {
		return storageError(ctx, "delete messages", err)
	}
	if conv == nil {
		if deleted > 0 {
			log.InfoContext(ctx, "removed stray messages of missing conversation", "conversation_id", convID, "count", deleted)
		}
		return ErrConversationNotFound
	}

	if err = s.convRepo.DeleteConversation(writeCtx, convID); err != nil {
		return storageError(ctx, "delete conversation", err)
	}
	log.InfoContext(ctx, "conversation deleted", "conversation_id", convID, "messages", deleted)
	return nil
}

func (s *imServiceImpl) Close() {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		log.Info("IMService shut down gracefully")
	})
}

// findOrCreate 先查后建，唯一约束冲突时回读胜出方
func (s *imServiceImpl) findOrCreate(ctx context.Context, userID, targetUserID uint64, peerKey string) (*model.Conversation, error) {
	conv, err := s.findByPeerKey(ctx, peerKey)
	if err != nil || conv != nil {
		return conv, err
	}

	newConv := &model.Conversation{
		IsGroup: false,
		PeerKey: &peerKey,
	}
	members := []*model.ConversationMember{
		{UserID: userID, JoinedAt: time.Now()},
		{UserID: targetUserID, JoinedAt: time.Now()},
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout())
	err = s.convRepo.CreateConversation(writeCtx, newConv, members)
	cancel()
	if err == nil {
		log.InfoContext(ctx, "conversation created", "conversation_id", newConv.ID, "peer_key", peerKey)
		return newConv, nil
	}
	if !errors.Is(err, repository.ErrDuplicatePeerKey) {
		return nil, storageError(ctx, "create conversation", err)
	}

	// 并发创建落败：对方已提交，回读即可；读库可能短暂滞后，稍作重试
	backoff := 20 * time.Millisecond
	for i := 0; i < 3; i++ {
		conv, err = s.findByPeerKey(ctx, peerKey)
		if err != nil {
			return nil, err
		}
		if conv != nil {
			return conv, nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, fmt.Errorf("peer key %s: %w", peerKey, ErrConversationConflict)
}

func (s *imServiceImpl) findByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout())
	defer cancel()
	conv, err := s.convRepo.GetConversationByPeerKey(readCtx, peerKey)
	if err != nil {
		return nil, storageError(ctx, "get conversation by peer key", err)
	}
	return conv, nil
}

func (s *imServiceImpl) checkUsersExist(ctx context.Context, ids ...uint64) error {
	readCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout())
	defer cancel()
	for _, id := range ids {
		ok, err := s.identity.Exists(readCtx, id)
		if err != nil {
			return storageError(ctx, "check user", err)
		}
		if !ok {
			return ErrUserNotFound
		}
	}
	return nil
}

// deliver 主写入失败直接返回，不做任何后续写；之后的步骤只记录日志
func (s *imServiceImpl) deliver(ctx context.Context, convID, senderID uint64, content model.Content) (*mongo.Message, error) {
	msg, err := mongo.NewMessage(convID, senderID, content)
	if err != nil {
		log.ErrorContext(ctx, "failed to generate message id", "err", err)
		return nil, UnExpectedError
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout())
	err = s.messageRepo.SaveMessage(writeCtx, msg)
	cancel()
	if err != nil {
		return nil, storageError(ctx, "save message", err)
	}

	s.advanceLastMessage(ctx, msg)
	s.emitMessageCreated(ctx, msg)
	return msg, nil
}

// advanceLastMessage 预览指针是尽力而为的二级索引，失败交给校准协程
func (s *imServiceImpl) advanceLastMessage(ctx context.Context, msg *mongo.Message) {
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SideEffectTimeout())
	defer cancel()

	_, err := s.convRepo.UpdateLastMessage(sideCtx, msg.ConversationID, msg.ID, msg.CreatedAt)
	if err == nil {
		return
	}
	log.WarnContext(ctx, "update last message failed, queued for calibration",
		"conversation_id", msg.ConversationID, "message_id", msg.ID, "err", err)
	select {
	case s.retryChan <- &lastMessageUpdate{
		convID:  msg.ConversationID,
		msgID:   msg.ID,
		msgAt:   msg.CreatedAt,
		traceID: logger.TraceIDFrom(ctx),
	}:
	default:
		log.WarnContext(ctx, "calibration queue full, preview stays stale until next message",
			"conversation_id", msg.ConversationID)
	}
}

func (s *imServiceImpl) emitMessageCreated(ctx context.Context, msg *mongo.Message) {
	if s.publisher == nil {
		return
	}
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SideEffectTimeout())
	defer cancel()

	evt := &broadcast.MessageCreated{
		Type:           broadcast.EventMessageCreated,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		CreatedAt:      msg.CreatedAt,
	}
	if err := s.publisher.Publish(sideCtx, evt); err != nil {
		log.WarnContext(ctx, "publish message created failed",
			"conversation_id", msg.ConversationID, "message_id", msg.ID, "err", err)
	}
}

func (s *imServiceImpl) calibrationWorker() {
	defer s.wg.Done()
	for {
		select {
		case upd := <-s.retryChan:
			traceCtx := logger.WithTraceID(context.Background(), upd.traceID)
			backoff := 200 * time.Millisecond
			for i := 0; i < 3; i++ {
				ctx, cancel := context.WithTimeout(traceCtx, 5*time.Second)
				_, err := s.convRepo.UpdateLastMessage(ctx, upd.convID, upd.msgID, upd.msgAt)
				cancel()
				if err == nil {
					break
				}
				log.WarnContext(traceCtx, "calibrate last message failed", "conversation_id", upd.convID, "attempt", i+1, "err", err)
				select {
				case <-time.After(backoff):
				case <-s.stopChan:
					return
				}
				backoff *= 2
			}
		case <-s.stopChan:
			return
		}
	}
}

// pageArgs 校验分页参数，超过上限的 limit 被截断
func (s *imServiceImpl) pageArgs(limit int, cursor string) (int, string, error) {
	if limit <= 0 {
		return 0, "", ErrPageSizeInvalid
	}
	if s.cfg.MaxPageSize > 0 && limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	cursor, err := util.ParseCursor(cursor)
	if err != nil {
		return 0, "", ErrParamInvalid
	}
	return limit, cursor, nil
}

func toMessageDTO(m *mongo.Message) *dto.MessageDTO {
	return &dto.MessageDTO{
		ID: m.ID, ConversationID: m.ConversationID, SenderID: m.SenderID,
		Text: m.Text, Media: m.Media, CreatedAt: m.CreatedAt,
	}
}

func toMessageDTOs(models []*mongo.Message) []*dto.MessageDTO {
	res := make([]*dto.MessageDTO, 0, len(models))
	for _, m := range models {
		res = append(res, toMessageDTO(m))
	}
	return res
}
