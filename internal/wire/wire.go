package wire

import (
	log "log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/config"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/handler"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/hub"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/job"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/booking"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/cron"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/kafka"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/service"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/store"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/store/mongostore"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/store/sqlstore"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router       *gin.Engine
	DB           *gorm.DB
	Stores       *store.Stores
	CronMgr      *cron.Manager
	KafkaManager *kafka.ConsumerManager
}

// SelectStores 按探活结果选择存储后端：文档库可达走主后端，
// 不可达降级到关系库镜像，进程内只选一次
func SelectStores(db *gorm.DB, mongoDB *mongo.Database) (*store.Stores, error) {
	if mongoDB != nil {
		return &store.Stores{
			Conversations: mongostore.NewConversationStore(mongoDB),
			Messages:      mongostore.NewMessageStore(mongoDB),
			Backend:       "mongo",
		}, nil
	}

	log.Warn("文档库不可达，降级到 MySQL 存储后端")
	if err := sqlstore.AutoMigrate(db); err != nil {
		return nil, err
	}
	return &store.Stores{
		Conversations: sqlstore.NewConversationStore(db),
		Messages:      sqlstore.NewMessageStore(db),
		Backend:       "mysql",
	}, nil
}

func BuildApplication(db *gorm.DB, mongoDB *mongo.Database, cfg *config.Config) (*ApplicationContainer, error) {
	stores, err := SelectStores(db, mongoDB)
	if err != nil {
		return nil, err
	}
	log.Info("存储后端已选定", "backend", stores.Backend)

	chatService := service.NewChatService(stores)

	registry := hub.NewRegistry()
	idleTimeout := time.Duration(cfg.Chat.IdleTimeoutSec) * time.Second
	tracker := hub.NewPresenceTracker(registry, idleTimeout)
	dispatcher := hub.NewHub(registry, tracker, chatService)

	handlers := &api.HandlersGroup{
		ChatHandler: handler.NewChatHandler(chatService, dispatcher),
		WSHandler:   handler.NewWsHandler(dispatcher),
	}

	router := api.SetupRouter(handlers)

	cronMgr := cron.NewCronManager(cfg.Chat.SweepSpec, job.NewPresenceSweepJob(tracker))

	bookingCli := booking.NewClient(cfg.Booking)
	kafkaMgr, err := kafka.NewConsumerManager(cfg, chatService, bookingCli)
	if err != nil {
		return nil, err
	}

	return &ApplicationContainer{
		Router:       router,
		DB:           db,
		Stores:       stores,
		CronMgr:      cronMgr,
		KafkaManager: kafkaMgr,
	}, nil
}
