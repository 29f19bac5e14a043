package chatclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
)

func okHandler(t *testing.T, hits *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		msg := MessageDTO{ID: 1, ConversationID: 9, SenderID: 1, RecipientID: 2, Content: "hi"}
		raw, _ := json.Marshal(msg)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    200,
			"message": "success",
			"data":    json.RawMessage(raw),
		})
	}
}

func TestSendUsesPrimary(t *testing.T) {
	var primaryHits, fallbackHits atomic.Int32
	primary := httptest.NewServer(okHandler(t, &primaryHits))
	defer primary.Close()
	fallback := httptest.NewServer(okHandler(t, &fallbackHits))
	defer fallback.Close()

	c := New(primary.URL, fallback.URL)
	msg, err := c.Send(context.Background(), &SendMessageReq{SenderID: 1, RecipientID: 2, Content: "hi"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.ID != 1 || msg.ConversationID != 9 {
		t.Errorf("unexpected message: %+v", msg)
	}
	if primaryHits.Load() != 1 || fallbackHits.Load() != 0 {
		t.Errorf("primary should serve when healthy: primary=%d fallback=%d", primaryHits.Load(), fallbackHits.Load())
	}
}

func TestSendFailsOverOnTransportError(t *testing.T) {
	var fallbackHits atomic.Int32
	fallback := httptest.NewServer(okHandler(t, &fallbackHits))
	defer fallback.Close()

	// 主入口先启动再关停，得到一个必然连接失败的地址
	primary := httptest.NewServer(http.NotFoundHandler())
	primaryURL := primary.URL
	primary.Close()

	c := New(primaryURL, fallback.URL)
	msg, err := c.Send(context.Background(), &SendMessageReq{SenderID: 1, RecipientID: 2, Content: "hi"})
	if err != nil {
		t.Fatalf("failover send failed: %v", err)
	}
	if msg.ID != 1 {
		t.Errorf("unexpected message: %+v", msg)
	}
	if fallbackHits.Load() != 1 {
		t.Errorf("fallback should serve exactly once, got %d", fallbackHits.Load())
	}
}

func TestSendDoesNotFailOverOnAppError(t *testing.T) {
	var fallbackHits atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    400,
			"message": "参数错误",
		})
	}))
	defer primary.Close()
	fallback := httptest.NewServer(okHandler(t, &fallbackHits))
	defer fallback.Close()

	c := New(primary.URL, fallback.URL)
	_, err := c.Send(context.Background(), &SendMessageReq{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 400 {
		t.Errorf("expected code 400, got %d", apiErr.Code)
	}
	// 业务错误换入口重试不会改变结果，不允许切换
	if fallbackHits.Load() != 0 {
		t.Errorf("fallback must not be tried on app error, got %d hits", fallbackHits.Load())
	}
}

func TestAllEndpointsDown(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	c := New(deadURL, "")
	_, err := c.UnreadCount(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error when every endpoint is unreachable")
	}
}

func TestUnreadCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/unread-count/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    200,
			"message": "success",
			"data":    map[string]interface{}{"unreadCount": 7},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	total, err := c.UnreadCount(context.Background(), 42)
	if err != nil {
		t.Fatalf("unread count failed: %v", err)
	}
	if total != 7 {
		t.Errorf("expected 7, got %d", total)
	}
}
