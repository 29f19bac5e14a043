package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/config"
)

// Summary 订单服务返回的摘要，只取消息文案需要的字段
type Summary struct {
	BookingID    uint64 `json:"booking_id"`
	ServiceTitle string `json:"service_title"`
	Status       string `json:"status"`
}

// Client 订单服务的旁路只读客户端。拿不到摘要不算错误，
// 调用方降级为只用事件自带的字段
type Client struct {
	http *resty.Client
}

func NewClient(cfg config.BookingConfig) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.APIURL).
			SetTimeout(3 * time.Second).
			SetRetryCount(1),
	}
}

// FetchSummary 查询订单摘要
func (s *Client) FetchSummary(ctx context.Context, bookingID uint64) (*Summary, error) {
	var out Summary
	resp, err := s.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/api/bookings/%d/summary", bookingID))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("booking api status %d", resp.StatusCode())
	}
	return &out, nil
}
