package service

import (
	"Courier/internal/api/dto"
	"Courier/internal/model"
	"Courier/internal/pkg/mongo"
	"context"
	log "log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

// GetConversationList 会话列表：按 updatedAt 倒序，附带对方身份与最后一条消息预览
func (s *imServiceImpl) GetConversationList(ctx context.Context, userID uint64) ([]*dto.ConversationSummaryDTO, error) {
	if userID == 0 {
		return nil, ErrParamInvalid
	}

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout())
	defer cancel()

	convs, err := s.convRepo.GetUserConversations(readCtx, userID)
	if err != nil {
		return nil, storageError(ctx, "get user conversations", err)
	}
	res := make([]*dto.ConversationSummaryDTO, 0, len(convs))
	if len(convs) == 0 {
		return res, nil
	}

	lastMessages, err := s.loadLastMessages(readCtx, convs)
	if err != nil {
		return nil, storageError(ctx, "load last messages", err)
	}

	// 身份信息只影响展示，失败时降级为默认昵称与头像
	profiles, err := s.identity.GetProfiles(readCtx, peerIDsOf(convs, userID))
	if err != nil {
		log.WarnContext(ctx, "load peer profiles failed, using defaults", "user_id", userID, "err", err)
		profiles = map[uint64]*dto.UserProfileDTO{}
	}

	for i, conv := range convs {
		d := &dto.ConversationSummaryDTO{
			ConversationID: conv.ID,
			IsGroup:        conv.IsGroup,
			MemberIDs:      conv.ParticipantIDs(),
			UpdatedAt:      conv.UpdatedAt,
		}
		if peerID, ok := conv.OtherParticipant(userID); ok {
			profile := profiles[peerID]
			d.PeerID = peerID
			d.PeerName = DisplayName(profile, peerID)
			d.PeerAvatar = ResolveAvatar(profile)
		}
		if msg := lastMessages[i]; msg != nil {
			createdAt := msg.CreatedAt
			d.LastMessageID = msg.ID
			d.LastSenderID = msg.SenderID
			d.Preview = msg.Preview()
			d.LastMessageTime = &createdAt
		}
		if d.LastMessageTime != nil && d.LastMessageTime.After(d.UpdatedAt) {
			d.UpdatedAt = *d.LastMessageTime
		}
		res = append(res, d)
	}

	// 指针落后的会话按实际最新消息时间重新排位
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res, nil
}

// loadLastMessages 读取预览指针与各会话实际最新一条，指针缺失、失效或落后时以后者为准 (只读，不回写)
func (s *imServiceImpl) loadLastMessages(ctx context.Context, convs []*model.Conversation) ([]*mongo.Message, error) {
	ids := make([]string, 0, len(convs))
	convIDs := make([]uint64, 0, len(convs))
	for _, conv := range convs {
		if conv.LastMessageID != "" {
			ids = append(ids, conv.LastMessageID)
		}
		convIDs = append(convIDs, conv.ID)
	}

	var (
		pointed []*mongo.Message
		latest  map[uint64]*mongo.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pointed, err = s.messageRepo.GetByIDs(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		latest, err = s.messageRepo.GetLatestByConversations(gctx, convIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]*mongo.Message, len(pointed))
	for _, m := range pointed {
		byID[m.ID] = m
	}

	result := make([]*mongo.Message, len(convs))
	for i, conv := range convs {
		m, ok := byID[conv.LastMessageID]
		if !ok || m.ConversationID != conv.ID {
			m = nil
		}
		if newest := latest[conv.ID]; newest != nil && (m == nil || newest.ID > m.ID) {
			if conv.LastMessageID != "" {
				log.DebugContext(ctx, "stale last message pointer, served by latest read",
					"conversation_id", conv.ID, "pointer", conv.LastMessageID, "latest", newest.ID)
			}
			m = newest
		}
		result[i] = m
	}
	return result, nil
}

func peerIDsOf(convs []*model.Conversation, userID uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(convs))
	ids := make([]uint64, 0, len(convs))
	for _, conv := range convs {
		peerID, ok := conv.OtherParticipant(userID)
		if !ok {
			continue
		}
		if _, dup := seen[peerID]; dup {
			continue
		}
		seen[peerID] = struct{}{}
		ids = append(ids, peerID)
	}
	return ids
}
