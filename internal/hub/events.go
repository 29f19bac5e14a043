package hub

import (
	"github.com/goccy/go-json"
)

// 客户端上行事件
const (
	EvtJoin              = "join"
	EvtUserActivity      = "user_activity"
	EvtSendMessage       = "send_message"
	EvtMarkAsRead        = "mark_as_read"
	EvtTypingStart       = "typing_start"
	EvtTypingStop        = "typing_stop"
	EvtJoinConversation  = "join_conversation"
	EvtLeaveConversation = "leave_conversation"
)

// 服务端下行事件
const (
	EvtOnlineUsers       = "online_users"
	EvtUserOnline        = "user_online"
	EvtUserOffline       = "user_offline"
	EvtNewMessage        = "new_message"
	EvtMessageSent       = "message_sent"
	EvtMessageError      = "message_error"
	EvtMessagesRead      = "messages_read"
	EvtUnreadCountUpdate = "unread_count_update"
)

// Event 双向事件信封
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload 入场登记，身份信息由外部会话提供，此处只作转录
type JoinPayload struct {
	UserID   uint64 `json:"userId"`
	UserType string `json:"userType"`
	UserName string `json:"userName"`
}

// ActivityPayload 心跳活跃上报
type ActivityPayload struct {
	UserID    uint64 `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

// TypingPayload 输入中指示，只做房间内转发，不落库
type TypingPayload struct {
	ConversationID uint64 `json:"conversationId"`
	UserID         uint64 `json:"userId"`
	UserName       string `json:"userName,omitempty"`
}

// RoomPayload 订阅/退订会话房间
type RoomPayload struct {
	ConversationID uint64 `json:"conversationId"`
	UserID         uint64 `json:"userId"`
}

// PresencePayload 上下线广播
type PresencePayload struct {
	UserID   uint64 `json:"userId"`
	UserType string `json:"userType"`
	UserName string `json:"userName"`
}

// MessagesReadPayload 已读回执推送
type MessagesReadPayload struct {
	MessageIDs []uint64 `json:"messageIds"`
	ReadBy     uint64   `json:"readBy"`
}

// ErrorPayload 仅发给事件来源连接的错误
type ErrorPayload struct {
	Error string `json:"error"`
}

// encodeEvent 编码下行信封
func encodeEvent(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Event: event, Data: raw})
}
