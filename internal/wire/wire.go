package wire

import (
	"Courier/internal/api"
	"Courier/internal/api/config"
	"Courier/internal/api/handler"
	"Courier/internal/job"
	"Courier/internal/pkg/broadcast"
	"Courier/internal/pkg/cron"
	"Courier/internal/pkg/kafka"
	"Courier/internal/pkg/mongo"
	"Courier/internal/pkg/redis"
	"Courier/internal/repository"
	"Courier/internal/service"
	"fmt"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	mongo2 "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router       *gin.Engine
	DB           *gorm.DB
	IMService    service.IMService
	Dispatcher   *broadcast.Dispatcher
	Producer     sarama.SyncProducer
	KafkaManager *kafka.ConsumerManager
	CronMgr      *cron.Manager
}

func BuildApplication(db *gorm.DB, mongoDB *mongo2.Database, cfg *config.Config) (*ApplicationContainer, error) {
	userRepo := repository.NewUserRepo(db)
	conversationRepo := repository.NewConversationRepo(db)
	messageRepo := mongo.NewMessageRepo(mongoDB)

	identity := service.NewIdentityProvider(userRepo, cfg.IM.ProfileCacheTTL())

	sinks, producer, err := buildSinks(cfg)
	if err != nil {
		return nil, err
	}
	dispatcher := broadcast.NewDispatcher(sinks, cfg.IM.EventQueueSize, cfg.IM.EventWorkers, cfg.IM.SideEffectTimeout())

	imService := service.NewIMService(cfg.IM, conversationRepo, messageRepo, identity, dispatcher)

	handlers := &api.HandlersGroup{
		IMHandler: handler.NewIMHandler(imService, cfg.IM),
	}
	router := api.SetupRouter(handlers)

	orphanJob := job.NewOrphanMessageSweepJob(conversationRepo, messageRepo)
	cronMgr := cron.NewCronManager(cfg.IM.OrphanSweepSpec, orphanJob)

	var kafkaMgr *kafka.ConsumerManager
	if cfg.KafkaUserDetailConsumer.Enable {
		kafkaMgr, err = kafka.NewConsumerManager(cfg, identity)
		if err != nil {
			return nil, err
		}
	}

	return &ApplicationContainer{
		Router:       router,
		DB:           db,
		IMService:    imService,
		Dispatcher:   dispatcher,
		Producer:     producer,
		KafkaManager: kafkaMgr,
		CronMgr:      cronMgr,
	}, nil
}

// buildSinks 按配置组装事件下游，未知类型直接报错
func buildSinks(cfg *config.Config) ([]broadcast.Publisher, sarama.SyncProducer, error) {
	sinks := make([]broadcast.Publisher, 0, len(cfg.IM.EventSinks))
	var producer sarama.SyncProducer
	for _, name := range cfg.IM.EventSinks {
		switch name {
		case "redis":
			sinks = append(sinks, broadcast.NewRedisPublisher(redis.GetRdbClient()))
		case "kafka":
			if producer == nil {
				p, err := kafka.NewSyncProducer(cfg.Kafka)
				if err != nil {
					return nil, nil, err
				}
				producer = p
			}
			sinks = append(sinks, broadcast.NewKafkaPublisher(producer, cfg.IM.EventTopic))
		default:
			return nil, nil, fmt.Errorf("unknown event sink %q", name)
		}
	}
	if len(sinks) == 0 {
		log.Warn("no event sinks configured, message events are discarded")
	}
	return sinks, producer, nil
}

// Close 按依赖顺序释放：先停止产生事件的服务，再关闭投递链路
func (s *ApplicationContainer) Close() {
	s.IMService.Close()
	s.Dispatcher.Close()
	if s.Producer != nil {
		if err := s.Producer.Close(); err != nil {
			log.Error("Failed to close kafka producer", "err", err)
		}
	}
}
