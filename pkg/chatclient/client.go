// Package chatclient 是消息服务的 Go 客户端。
// 请求优先发给主入口，仅在传输层失败（连接拒绝、超时）时切换备用入口；
// 业务错误原样返回，换一个入口重试不会改变结果。
package chatclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

const defaultTimeout = 5 * time.Second

// APIError 服务端返回的业务错误
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api error %d: %s", e.Code, e.Message)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	endpoints []*resty.Client
	token     string
}

// Option 客户端可选配置
type Option func(*Client)

// WithToken 设置 Bearer Token
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New 构造客户端。fallbackURL 为空时只有主入口
func New(primaryURL, fallbackURL string, opts ...Option) *Client {
	c := &Client{}
	c.endpoints = append(c.endpoints, newEndpoint(primaryURL))
	if fallbackURL != "" {
		c.endpoints = append(c.endpoints, newEndpoint(fallbackURL))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newEndpoint(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout)
}

// Send 发送一条消息
func (c *Client) Send(ctx context.Context, req *SendMessageReq) (*MessageDTO, error) {
	var out MessageDTO
	if err := c.do(ctx, "POST", "/api/chat/send", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead 批量标记已读
func (c *Client) MarkRead(ctx context.Context, req *MarkAsReadReq) (*ReadResultDTO, error) {
	var out ReadResultDTO
	if err := c.do(ctx, "POST", "/api/chat/read", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Conversations 拉取会话列表
func (c *Client) Conversations(ctx context.Context, userID uint64, page, pageSize int) ([]*ConversationDTO, error) {
	var out []*ConversationDTO
	path := fmt.Sprintf("/api/chat/conversations/%d?page=%d&pageSize=%d", userID, page, pageSize)
	if err := c.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History 按会话拉取历史消息
func (c *Client) History(ctx context.Context, convID uint64, page, pageSize int) ([]*MessageDTO, error) {
	var out []*MessageDTO
	path := fmt.Sprintf("/api/chat/history/%d?page=%d&pageSize=%d", convID, page, pageSize)
	if err := c.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCount 全局未读数
func (c *Client) UnreadCount(ctx context.Context, userID uint64) (uint64, error) {
	var out UnreadCountDTO
	if err := c.do(ctx, "GET", "/api/chat/unread-count/"+strconv.FormatUint(userID, 10), nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

// do 依次尝试各入口。传输层失败切换下一入口，业务错误立即返回
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var lastErr error
	for _, endpoint := range c.endpoints {
		r := endpoint.R().SetContext(ctx)
		if c.token != "" {
			r.SetAuthToken(c.token)
		}
		if body != nil {
			r.SetBody(body)
		}

		resp, err := r.Execute(method, path)
		if err != nil {
			lastErr = err
			continue
		}
		return decode(resp.Body(), out)
	}
	if lastErr == nil {
		lastErr = errors.New("no endpoints configured")
	}
	return fmt.Errorf("all chat endpoints unreachable: %w", lastErr)
}

func decode(raw []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != 200 {
		return &APIError{Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
