package service

import (
	"Courier/internal/api/dto"
	"Courier/internal/model"
	"Courier/internal/pkg/broadcast"
	"Courier/internal/pkg/mongo"
	"Courier/internal/repository"
	"context"
	"sort"
	"sync"
	"time"
)

// callLog 记录跨仓储的调用顺序
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeConvRepo struct {
	mu     sync.Mutex
	nextID uint64
	convs  map[uint64]*model.Conversation
	byPeer map[string]uint64
	log    *callLog

	createDelay    time.Duration
	createCalls    int
	updateFailures int
	updateErr      error
	deleteErr      error
}

func newFakeConvRepo(log *callLog) *fakeConvRepo {
	return &fakeConvRepo{
		convs:  make(map[uint64]*model.Conversation),
		byPeer: make(map[string]uint64),
		log:    log,
	}
}

func cloneConv(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.Members = append([]model.ConversationMember(nil), c.Members...)
	return &cp
}

func (r *fakeConvRepo) CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.ConversationMember) error {
	if r.createDelay > 0 {
		time.Sleep(r.createDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if conv.PeerKey != nil {
		if _, ok := r.byPeer[*conv.PeerKey]; ok {
			return repository.ErrDuplicatePeerKey
		}
	}
	r.nextID++
	now := time.Now()
	conv.ID = r.nextID
	conv.CreatedAt = now
	conv.UpdatedAt = now
	conv.Members = conv.Members[:0]
	for i, m := range members {
		m.ID = uint64(i + 1)
		m.ConversationID = conv.ID
		conv.Members = append(conv.Members, *m)
	}
	r.convs[conv.ID] = cloneConv(conv)
	if conv.PeerKey != nil {
		r.byPeer[*conv.PeerKey] = conv.ID
	}
	return nil
}

func (r *fakeConvRepo) GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[convID]
	if !ok {
		return nil, nil
	}
	return cloneConv(c), nil
}

func (r *fakeConvRepo) GetConversationByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPeer[peerKey]
	if !ok {
		return nil, nil
	}
	return cloneConv(r.convs[id]), nil
}

func (r *fakeConvRepo) GetExistingIDs(ctx context.Context, convIDs []uint64) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint64, 0, len(convIDs))
	for _, id := range convIDs {
		if _, ok := r.convs[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeConvRepo) GetUserConversations(ctx context.Context, userID uint64) ([]*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*model.Conversation, 0)
	for _, c := range r.convs {
		if c.HasParticipant(userID) {
			res = append(res, cloneConv(c))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].UpdatedAt.Equal(res[j].UpdatedAt) {
			return res[i].UpdatedAt.After(res[j].UpdatedAt)
		}
		return res[i].ID > res[j].ID
	})
	return res, nil
}

func (r *fakeConvRepo) UpdateLastMessage(ctx context.Context, convID uint64, msgID string, msgAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateFailures > 0 {
		r.updateFailures--
		return false, r.updateErr
	}
	c, ok := r.convs[convID]
	if !ok || msgID <= c.LastMessageID {
		return false, nil
	}
	c.LastMessageID = msgID
	c.LastMessageAt = &msgAt
	c.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeConvRepo) DeleteConversation(ctx context.Context, convID uint64) error {
	r.log.add("conversation.delete")
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if c, ok := r.convs[convID]; ok {
		if c.PeerKey != nil {
			delete(r.byPeer, *c.PeerKey)
		}
		delete(r.convs, convID)
	}
	return nil
}

func (r *fakeConvRepo) lastMessageID(convID uint64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.convs[convID]; ok {
		return c.LastMessageID
	}
	return ""
}

func (r *fakeConvRepo) setLastMessageID(convID uint64, msgID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[convID].LastMessageID = msgID
}

// rewindPointer 模拟两次写入之间崩溃：指针与 updated_at 停留在旧消息
func (r *fakeConvRepo) rewindPointer(convID uint64, msgID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.convs[convID]
	c.LastMessageID = msgID
	c.LastMessageAt = &at
	c.UpdatedAt = at
}

func (r *fakeConvRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.convs)
}

type fakeMessageRepo struct {
	mu   sync.Mutex
	msgs []*mongo.Message
	log  *callLog

	saveErr   error
	deleteErr error
}

func newFakeMessageRepo(log *callLog) *fakeMessageRepo {
	return &fakeMessageRepo{log: log}
}

func (r *fakeMessageRepo) SaveMessage(ctx context.Context, msg *mongo.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *msg
	r.msgs = append(r.msgs, &cp)
	return nil
}

func (r *fakeMessageRepo) sorted(convID uint64, desc bool) []*mongo.Message {
	res := make([]*mongo.Message, 0)
	for _, m := range r.msgs {
		if m.ConversationID == convID {
			cp := *m
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if desc {
			return res[i].ID > res[j].ID
		}
		return res[i].ID < res[j].ID
	})
	return res
}

func (r *fakeMessageRepo) GetHistory(ctx context.Context, convID uint64, beforeID string, limit int) ([]*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*mongo.Message, 0, limit)
	for _, m := range r.sorted(convID, true) {
		if beforeID != "" && m.ID >= beforeID {
			continue
		}
		if len(res) == limit {
			break
		}
		res = append(res, m)
	}
	return res, nil
}

func (r *fakeMessageRepo) GetAfter(ctx context.Context, convID uint64, afterID string, limit int) ([]*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*mongo.Message, 0, limit)
	for _, m := range r.sorted(convID, false) {
		if afterID != "" && m.ID <= afterID {
			continue
		}
		if len(res) == limit {
			break
		}
		res = append(res, m)
	}
	return res, nil
}

func (r *fakeMessageRepo) GetLatestByConversations(ctx context.Context, convIDs []uint64) (map[uint64]*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make(map[uint64]*mongo.Message, len(convIDs))
	for _, id := range convIDs {
		if msgs := r.sorted(id, true); len(msgs) > 0 {
			res[id] = msgs[0]
		}
	}
	return res, nil
}

// blockingMessageRepo 读操作一直挂起到 ctx 结束，模拟无响应的存储
type blockingMessageRepo struct {
	*fakeMessageRepo
}

func (r *blockingMessageRepo) GetHistory(ctx context.Context, convID uint64, beforeID string, limit int) ([]*mongo.Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (r *blockingMessageRepo) GetLatestByConversations(ctx context.Context, convIDs []uint64) (map[uint64]*mongo.Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (r *fakeMessageRepo) GetByIDs(ctx context.Context, ids []string) ([]*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	res := make([]*mongo.Message, 0, len(ids))
	for _, m := range r.msgs {
		if _, ok := want[m.ID]; ok {
			cp := *m
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (r *fakeMessageRepo) DeleteByConversation(ctx context.Context, convID uint64) (int64, error) {
	r.log.add("messages.delete")
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	kept := r.msgs[:0]
	var deleted int64
	for _, m := range r.msgs {
		if m.ConversationID == convID {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	r.msgs = kept
	return deleted, nil
}

func (r *fakeMessageRepo) DistinctConversationIDs(ctx context.Context) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uint64]struct{})
	ids := make([]uint64, 0)
	for _, m := range r.msgs {
		if _, ok := seen[m.ConversationID]; !ok {
			seen[m.ConversationID] = struct{}{}
			ids = append(ids, m.ConversationID)
		}
	}
	return ids, nil
}

func (r *fakeMessageRepo) count(convID uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.ConversationID == convID {
			n++
		}
	}
	return n
}

type fakeIdentity struct {
	profiles map[uint64]*dto.UserProfileDTO
	err      error
}

func newFakeIdentity(ids ...uint64) *fakeIdentity {
	f := &fakeIdentity{profiles: make(map[uint64]*dto.UserProfileDTO)}
	for _, id := range ids {
		f.profiles[id] = &dto.UserProfileDTO{UserID: id}
	}
	return f
}

func (f *fakeIdentity) Exists(ctx context.Context, userID uint64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.profiles[userID]
	return ok, nil
}

func (f *fakeIdentity) GetProfiles(ctx context.Context, ids []uint64) (map[uint64]*dto.UserProfileDTO, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := make(map[uint64]*dto.UserProfileDTO, len(ids))
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			res[id] = p
		}
	}
	return res, nil
}

func (f *fakeIdentity) Invalidate(ctx context.Context, ids ...uint64) error {
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*broadcast.MessageCreated
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, evt *broadcast.MessageCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) list() []*broadcast.MessageCreated {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*broadcast.MessageCreated(nil), p.events...)
}
