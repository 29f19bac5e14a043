package domain

import (
	"fmt"
	"time"
)

// ConversationKind 会话类型
type ConversationKind int8

const (
	KindDirect  ConversationKind = 1 // 单聊，成员数恒为 2
	KindGroup   ConversationKind = 2 // 群聊
	KindSupport ConversationKind = 3 // 订单客服会话，关联 BookingID
)

// LastMessage 会话上的最后一条消息摘要，时间戳只增不减
type LastMessage struct {
	Content  string      `json:"content"`
	Kind     MessageKind `json:"kind"`
	SenderID uint64      `json:"sender_id"`
	At       time.Time   `json:"at"`
}

// Conversation 会话主体
type Conversation struct {
	ID          uint64           `json:"id"`
	Kind        ConversationKind `json:"kind"`
	PeerKey     string           `json:"peer_key,omitempty"` // 单聊唯一键 uid1_uid2，小号在前
	Title       string           `json:"title,omitempty"`
	BookingID   uint64           `json:"booking_id,omitempty"` // 外部业务实体的弱关联，不做强校验
	Members     []Member         `json:"members"`
	LastMessage LastMessage      `json:"last_message"`
	IsActive    bool             `json:"is_active"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Member 按用户 ID 查找成员
func (c *Conversation) Member(userID uint64) (*Member, bool) {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i], true
		}
	}
	return nil, false
}

// Peer 单聊中取对手方
func (c *Conversation) Peer(userID uint64) (*Member, bool) {
	if c.Kind == KindGroup {
		return nil, false
	}
	for i := range c.Members {
		if c.Members[i].UserID != userID {
			return &c.Members[i], true
		}
	}
	return nil, false
}

// PeerKey 生成单聊唯一键，与参与者顺序无关
func PeerKey(a, b uint64) string {
	if a < b {
		return fmt.Sprintf("%d_%d", a, b)
	}
	return fmt.Sprintf("%d_%d", b, a)
}
