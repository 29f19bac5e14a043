package chatclient

import "time"

// SendMessageReq 发送消息请求体，WS 与降级 REST 通道共用
type SendMessageReq struct {
	SenderID      uint64 `json:"sender_id" binding:"required"`
	SenderName    string `json:"sender_name" binding:"required"`
	SenderType    string `json:"sender_type"`
	SenderAvatar  string `json:"sender_avatar"`
	RecipientID   uint64 `json:"recipient_id" binding:"required"`
	RecipientName string `json:"recipient_name" binding:"required"`
	RecipientType string `json:"recipient_type"`
	Content       string `json:"content" binding:"required"`
	MessageType   int    `json:"message_type"` // 为空时按文本处理
	ReplyToID     uint64 `json:"reply_to_id"`
}

// MarkAsReadReq 批量标记已读
type MarkAsReadReq struct {
	MessageIDs []uint64 `json:"messageIds" binding:"required,min=1"`
	UserID     uint64   `json:"userId" binding:"required"`
}

// ReadReceiptDTO 单条已读回执
type ReadReceiptDTO struct {
	ReaderID uint64    `json:"reader_id"`
	ReadAt   time.Time `json:"read_at"`
}

// MessageDTO 消息的规范形态：WS 推送、发送回执与 REST 查询返回同一结构，
// 发送方与接收方看到的内容和时间戳永远一致
type MessageDTO struct {
	ID             uint64           `json:"id"`
	ConversationID uint64           `json:"conversation_id"`
	SenderID       uint64           `json:"sender_id"`
	SenderName     string           `json:"sender_name"`
	SenderType     string           `json:"sender_type"`
	SenderAvatar   string           `json:"sender_avatar,omitempty"`
	RecipientID    uint64           `json:"recipient_id,omitempty"`
	RecipientName  string           `json:"recipient_name,omitempty"`
	RecipientType  string           `json:"recipient_type,omitempty"`
	Content        string           `json:"content"`
	MessageType    int              `json:"message_type"`
	Status         int8             `json:"status"`
	ReadBy         []ReadReceiptDTO `json:"read_by,omitempty"`
	ReplyToID      uint64           `json:"reply_to_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// LastMessageDTO 会话列表上的最后消息摘要
type LastMessageDTO struct {
	Content  string    `json:"content"`
	Kind     int       `json:"kind"`
	SenderID uint64    `json:"sender_id"`
	At       time.Time `json:"at"`
}

// ParticipantDTO 参与者快照
type ParticipantDTO struct {
	UserID uint64 `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// ConversationDTO 会话列表项
type ConversationDTO struct {
	ConversationID uint64           `json:"conversation_id"`
	Kind           int8             `json:"kind"`
	Title          string           `json:"title,omitempty"`
	BookingID      uint64           `json:"booking_id,omitempty"`
	Peer           *ParticipantDTO  `json:"peer,omitempty"` // 单聊对手方
	Participants   []ParticipantDTO `json:"participants"`
	LastMessage    LastMessageDTO   `json:"last_message"`
	UnreadCount    uint64           `json:"unread_count"`
	IsActive       bool             `json:"is_active"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ReadResultDTO 标记已读的结果，调度器据此向原发送者回执
type ReadResultDTO struct {
	MessageIDs      []uint64 `json:"messageIds"`
	ReadBy          uint64   `json:"readBy"`
	SenderIDs       []uint64 `json:"sender_ids"`
	ConversationIDs []uint64 `json:"conversation_ids"`
}

// UnreadCountDTO 全局未读数
type UnreadCountDTO struct {
	UnreadCount uint64 `json:"unreadCount"`
}
