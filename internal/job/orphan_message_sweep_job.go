package job

import (
	"Courier/internal/pkg/consts"
	"Courier/internal/pkg/logger"
	"Courier/internal/pkg/mongo"
	"Courier/internal/pkg/redis"
	"Courier/internal/repository"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	orphanSweepTimeout = 10 * time.Minute
	orphanSweepBatch   = 500
)

// OrphanMessageSweepJob 清理会话已被删除但消息仍残留的孤儿消息
type OrphanMessageSweepJob struct {
	convRepo    repository.ConversationRepo
	messageRepo mongo.MessageRepo
}

func NewOrphanMessageSweepJob(convRepo repository.ConversationRepo, messageRepo mongo.MessageRepo) *OrphanMessageSweepJob {
	return &OrphanMessageSweepJob{convRepo: convRepo, messageRepo: messageRepo}
}

func (s *OrphanMessageSweepJob) Run() {
	ctx, cancel := context.WithTimeout(logger.WithTraceID(context.Background(), ""), orphanSweepTimeout)
	defer cancel()

	// 多实例部署时只允许一个实例执行
	if redis.Rdb != nil {
		lockValue := uuid.NewString()
		ok, err := redis.TryLock(ctx, consts.OrphanSweepLock, lockValue, orphanSweepTimeout, 0)
		if err != nil {
			log.ErrorContext(ctx, "orphan sweep lock failed", "err", err)
			return
		}
		if !ok {
			return
		}
		defer redis.UnLock(ctx, consts.OrphanSweepLock, lockValue)
	}

	if _, err := s.Sweep(ctx); err != nil {
		log.ErrorContext(ctx, "orphan message sweep failed", "err", err)
	}
}

// Sweep 返回删除的消息数
func (s *OrphanMessageSweepJob) Sweep(ctx context.Context) (int64, error) {
	log.InfoContext(ctx, "start orphan message sweep job")

	convIDs, err := s.messageRepo.DistinctConversationIDs(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for start := 0; start < len(convIDs); start += orphanSweepBatch {
		end := min(start+orphanSweepBatch, len(convIDs))
		batch := convIDs[start:end]

		existing, err := s.convRepo.GetExistingIDs(ctx, batch)
		if err != nil {
			return total, err
		}
		alive := make(map[uint64]struct{}, len(existing))
		for _, id := range existing {
			alive[id] = struct{}{}
		}

		for _, convID := range batch {
			if _, ok := alive[convID]; ok {
				continue
			}
			deleted, err := s.messageRepo.DeleteByConversation(ctx, convID)
			if err != nil {
				log.ErrorContext(ctx, "failed to delete orphan messages", "conversation_id", convID, "err", err)
				continue
			}
			total += deleted
			log.InfoContext(ctx, "cleanup orphan messages", "conversation_id", convID, "count", deleted)
		}
	}

	if total > 0 {
		log.InfoContext(ctx, "orphan message sweep job finished", "cleaned_count", total)
	}
	return total, nil
}
