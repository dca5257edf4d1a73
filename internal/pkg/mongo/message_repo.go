package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageCollection = "message"

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetHistory(ctx context.Context, convID uint64, beforeID string, limit int) ([]*Message, error)
	GetAfter(ctx context.Context, convID uint64, afterID string, limit int) ([]*Message, error)
	GetLatestByConversations(ctx context.Context, convIDs []uint64) (map[uint64]*Message, error)
	GetByIDs(ctx context.Context, ids []string) ([]*Message, error)
	DeleteByConversation(ctx context.Context, convID uint64) (int64, error)
	DistinctConversationIDs(ctx context.Context) ([]uint64, error)
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection(messageCollection),
	}
}

// EnsureMessageIndexes 分页依赖 (conversation_id, _id desc) 复合索引
func EnsureMessageIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(messageCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "_id", Value: -1}},
		Options: options.Index().SetName("idx_conv_id_desc"),
	})
	return err
}

// SaveMessage 将消息存入 MongoDB
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	_, err := s.col.InsertOne(ctx, msg)
	return err
}

// GetHistory 历史消息查询逻辑，按 _id 降序 (最新的在前)
// beforeID 为当前页面最旧一条消息的 ID，第一页传空串
func (s *messageRepoImpl) GetHistory(ctx context.Context, convID uint64, beforeID string, limit int) ([]*Message, error) {
	filter := bson.M{"conversation_id": convID}
	if beforeID != "" {
		filter["_id"] = bson.M{"$lt": beforeID}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	return s.find(ctx, filter, findOptions)
}

// GetAfter 断线重连补拉，按 _id 升序
func (s *messageRepoImpl) GetAfter(ctx context.Context, convID uint64, afterID string, limit int) ([]*Message, error) {
	filter := bson.M{"conversation_id": convID}
	if afterID != "" {
		filter["_id"] = bson.M{"$gt": afterID}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	return s.find(ctx, filter, findOptions)
}

// GetLatestByConversations 批量取各会话最新一条消息，没有消息的会话不出现在结果中
func (s *messageRepoImpl) GetLatestByConversations(ctx context.Context, convIDs []uint64) (map[uint64]*Message, error) {
	res := make(map[uint64]*Message, len(convIDs))
	if len(convIDs) == 0 {
		return res, nil
	}

	// $sort 紧跟 $match，走 idx_conv_id_desc
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"conversation_id": bson.M{"$in": convIDs}}}},
		{{Key: "$sort", Value: bson.D{{Key: "conversation_id", Value: 1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{"_id": "$conversation_id", "msg": bson.M{"$first": "$$ROOT"}}}},
	}
	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var rows []struct {
		ConversationID uint64  `bson:"_id"`
		Msg            Message `bson:"msg"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	for i := range rows {
		res[rows[i].ConversationID] = &rows[i].Msg
	}
	return res, nil
}

// GetByIDs 批量查询，缺失的 ID 直接忽略
func (s *messageRepoImpl) GetByIDs(ctx context.Context, ids []string) ([]*Message, error) {
	if len(ids) == 0 {
		return []*Message{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

// DeleteByConversation 删除会话下全部消息
func (s *messageRepoImpl) DeleteByConversation(ctx context.Context, convID uint64) (int64, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{"conversation_id": convID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DistinctConversationIDs 消息集合中出现过的会话 ID，供孤儿消息清理使用
func (s *messageRepoImpl) DistinctConversationIDs(ctx context.Context) ([]uint64, error) {
	values, err := s.col.Distinct(ctx, "conversation_id", bson.M{})
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(values))
	for _, v := range values {
		switch n := v.(type) {
		case int64:
			ids = append(ids, uint64(n))
		case int32:
			ids = append(ids, uint64(n))
		case float64:
			ids = append(ids, uint64(n))
		default:
			return nil, fmt.Errorf("unexpected conversation_id type %T", v)
		}
	}
	return ids, nil
}

func (s *messageRepoImpl) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*Message, error) {
	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	messages := make([]*Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
