package mongostore

import (
	"context"
	log "log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/config"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/logger"
)

// InitMongo 建立连接并探活。探活失败即返回错误，由调用方决定是否降级到 MySQL 镜像
func InitMongo(cfg config.MongoConfig) (*mongo.Database, error) {
	timeout := time.Duration(cfg.ProbeTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URL).
		SetMonitor(logger.NewMongoMonitor()),
	)
	if err != nil {
		return nil, err
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(cfg.Database)
	if err = ensureIndexes(ctx, db); err != nil {
		return nil, err
	}

	log.Info("MongoDB initialized successfully", "db", cfg.Database)
	return db, nil
}

// ensureIndexes 唯一索引是单聊幂等创建的基石，启动时确保存在
func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(colConversations).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "peer_key", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"peer_key": bson.M{"$gt": ""}}),
		},
		{Keys: bson.D{{Key: "members.user_id", Value: 1}, {Key: "last_message.at", Value: -1}}},
		{Keys: bson.D{{Key: "booking_id", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(colMessages).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "sender.user_id", Value: 1}}},
		{Keys: bson.D{{Key: "recipient.user_id", Value: 1}}},
	})
	return err
}
