package broadcast

import (
	"Courier/internal/pkg/consts"
	"context"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher 发布到会话频道 im:conversation:{id}，网关按会话订阅
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (s *RedisPublisher) Publish(ctx context.Context, evt *MessageCreated) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, ChannelOf(evt.ConversationID), data).Err()
}

// ChannelOf 会话对应的 Redis 频道
func ChannelOf(convID uint64) string {
	return consts.IMConversationKey + strconv.FormatUint(convID, 10)
}
