package kafka

import (
	"context"
	log "log/slog"

	"github.com/IBM/sarama"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/config"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/booking"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/service"
)

// ConsumerManager 管理所有 Kafka 消费者
type ConsumerManager struct {
	bookingConsumer sarama.ConsumerGroup
	bookingHandler  sarama.ConsumerGroupHandler
}

// NewConsumerManager 构造函数
func NewConsumerManager(
	cfg *config.Config,
	chatSvc service.ChatService,
	bookingCli *booking.Client,
) (*ConsumerManager, error) {
	saramaCfg := newSaramaConfig(cfg.Kafka)

	bookingConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaBookingConsumer.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}
	bookingHandler := NewBookingHandler(chatSvc, bookingCli)

	return &ConsumerManager{
		bookingConsumer: bookingConsumer,
		bookingHandler:  bookingHandler,
	}, nil
}

// Start 启动所有消费者，阻塞到 ctx 取消
func (m *ConsumerManager) Start(ctx context.Context, cfg *config.Config) error {
	go func() {
		topic := cfg.KafkaBookingConsumer.Topic
		log.Info("Booking consumer started", "topic", topic)
		for {
			if err := m.bookingConsumer.Consume(ctx, []string{topic}, m.bookingHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.bookingConsumer.Close(); err != nil {
		log.Error("Failed to close booking consumer", "err", err)
	}

	return nil
}
