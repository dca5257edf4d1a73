package kafka

import (
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

// ProfileInvalidator 用户资料缓存失效
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, ids ...uint64) error
}

// profileTables 监听的表及其用户 ID 列
var profileTables = map[string]string{
	"user_detail": "user_id",
	"users":       "id",
}

type UserDetailHandler struct {
	invalidator ProfileInvalidator
}

func NewUserDetailHandler(invalidator ProfileInvalidator) *UserDetailHandler {
	return &UserDetailHandler{invalidator: invalidator}
}

func (s *UserDetailHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("user detail consumer setup")
	return nil
}

func (s *UserDetailHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("user detail consumer cleanup")
	return nil
}

func (s *UserDetailHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("topic-user-detail consume claim")
	err := pullMessageBatch(session, claim, s.logic)
	if err != nil {
		log.Error("topic-user-detail process batch error", "err", err)
		return err
	}
	log.Info("topic-user-detail consume claim end")
	return nil
}

// logic 资料变更或用户删除后删除缓存，下次读取时回源
func (s *UserDetailHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	canalMsg, err := s.toCanalMessage(msg)
	if err != nil {
		return err
	}
	if canalMsg.Type != UPDATE && canalMsg.Type != DELETE {
		return nil
	}

	ids := userIDsOf(canalMsg)
	if len(ids) == 0 {
		return nil
	}
	if err = s.invalidator.Invalidate(ctx, ids...); err != nil {
		return errors.Wrapf(err, "invalidate profiles of %s", canalMsg.Table)
	}
	log.DebugContext(ctx, "profile cache invalidated", "table", canalMsg.Table, "ids", ids)
	return nil
}

func (s *UserDetailHandler) toCanalMessage(msg *sarama.ConsumerMessage) (*CanalMessage, error) {
	var lastErr error
	for table := range profileTables {
		canalMsg, err := ToCanalMessage(msg, table)
		if err == nil {
			return canalMsg, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func userIDsOf(message *CanalMessage) []uint64 {
	column := profileTables[message.Table]
	ids := make([]uint64, 0, len(message.Data))
	for _, row := range message.Data {
		if id := StrToUint64(row[column]); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
