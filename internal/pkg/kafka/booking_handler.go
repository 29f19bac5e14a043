package kafka

import (
	"context"
	"fmt"
	log "log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/booking"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/consts"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/redis"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/service"
)

// BookingEvent 订单服务发布的状态事件
type BookingEvent struct {
	EventID      string `json:"event_id"`
	BookingID    uint64 `json:"booking_id"`
	Status       string `json:"status"`
	CustomerID   uint64 `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	VendorID     uint64 `json:"vendor_id"`
	VendorName   string `json:"vendor_name"`
	Note         string `json:"note"`
}

// BookingHandler 消费订单事件并落为客服会话里的系统消息
type BookingHandler struct {
	chatSvc    service.ChatService
	bookingCli *booking.Client
}

func NewBookingHandler(chatSvc service.ChatService, bookingCli *booking.Client) *BookingHandler {
	return &BookingHandler{
		chatSvc:    chatSvc,
		bookingCli: bookingCli,
	}
}

func (s *BookingHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("booking consumer setup")
	return nil
}

func (s *BookingHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("booking consumer cleanup")
	return nil
}

func (s *BookingHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("topic-booking consume claim")
	err := pullMessageBatch(session, claim, s.logic)
	if err != nil {
		log.Error("process batch error", "err", err)
		return err
	}
	log.Info("topic-booking consume claim end")
	return nil
}

func (s *BookingHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt BookingEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		log.ErrorContext(ctx, "unmarshal booking event error", "err", err)
		// 报文不可解析，重试也无济于事，直接丢弃
		return nil
	}
	if evt.BookingID == 0 || evt.CustomerID == 0 || evt.VendorID == 0 {
		log.WarnContext(ctx, "booking event missing ids, skipped", "event", evt.EventID)
		return nil
	}

	// 同一事件可能因再均衡被重复投递，用锁保证只落一条系统消息
	lockKey := consts.BookingEventLock + s.eventKey(&evt)
	ok, err := redis.TryLock(ctx, lockKey, evt.EventID, 10*time.Minute, 1)
	if err != nil {
		return err
	}
	if !ok {
		log.InfoContext(ctx, "booking event already processed", "booking", evt.BookingID, "status", evt.Status)
		return nil
	}

	customer := domain.Participant{UserID: evt.CustomerID, Role: domain.RoleCustomer, Name: evt.CustomerName}
	vendor := domain.Participant{UserID: evt.VendorID, Role: domain.RoleVendor, Name: evt.VendorName}

	if _, err := s.chatSvc.PostBookingMessage(ctx, evt.BookingID, customer, vendor, s.content(ctx, &evt)); err != nil {
		redis.UnLock(ctx, lockKey, evt.EventID)
		return err
	}
	return nil
}

// content 系统消息文案。能查到订单摘要就带上服务名，查不到只用事件字段
func (s *BookingHandler) content(ctx context.Context, evt *BookingEvent) string {
	title := ""
	if s.bookingCli != nil {
		if sum, err := s.bookingCli.FetchSummary(ctx, evt.BookingID); err == nil && sum.ServiceTitle != "" {
			title = "「" + sum.ServiceTitle + "」"
		} else if err != nil {
			log.WarnContext(ctx, "fetch booking summary failed", "booking", evt.BookingID, "err", err)
		}
	}

	text := fmt.Sprintf("订单 #%d%s 状态更新：%s", evt.BookingID, title, statusText(evt.Status))
	if evt.Note != "" {
		text += "。" + evt.Note
	}
	return text
}

func (s *BookingHandler) eventKey(evt *BookingEvent) string {
	if evt.EventID != "" {
		return evt.EventID
	}
	return strconv.FormatUint(evt.BookingID, 10) + ":" + evt.Status
}

func statusText(status string) string {
	switch status {
	case consts.BookingStatusPending:
		return "待确认"
	case consts.BookingStatusConfirmed:
		return "已确认"
	case consts.BookingStatusCompleted:
		return "已完成"
	case consts.BookingStatusCancelled:
		return "已取消"
	default:
		return status
	}
}

var _ sarama.ConsumerGroupHandler = (*BookingHandler)(nil)
