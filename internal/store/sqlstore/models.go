package sqlstore

import (
	"time"

	"gorm.io/gorm"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
)

// Conversation 会话主表
type Conversation struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind           int8      `gorm:"not null;default:1" json:"kind"`
	PeerKey        *string   `gorm:"uniqueIndex;type:varchar(64)" json:"peerKey,omitempty"` // uid1_uid2，仅单聊；非单聊存 NULL，空串会撞唯一索引
	Title          string    `gorm:"type:varchar(128)" json:"title"`
	BookingID      uint64    `gorm:"index;default:0" json:"bookingId"`
	LastMsgContent string    `gorm:"type:varchar(255)" json:"lastMsgContent"`
	LastMsgKind    int       `gorm:"not null;default:1" json:"lastMsgKind"`
	LastSenderID   uint64    `gorm:"not null;default:0" json:"lastSenderId"`
	LastMessageAt  time.Time `gorm:"index" json:"lastMessageAt"`
	IsActive       int8      `gorm:"not null;default:1" json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (Conversation) TableName() string { return "conversations" }

// ConversationParticipant 会话成员表，未读数落在成员行上
type ConversationParticipant struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"uniqueIndex:idx_conv_user" json:"conversationId"`
	UserID         uint64    `gorm:"uniqueIndex:idx_conv_user;index" json:"userId"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	DisplayName    string    `gorm:"type:varchar(64)" json:"displayName"`
	Avatar         string    `gorm:"type:varchar(255)" json:"avatar"`
	UnreadCount    uint64    `gorm:"not null;default:0" json:"unreadCount"`
	LastSeenAt     time.Time `json:"lastSeenAt"`
	JoinedAt       time.Time `json:"joinedAt"`
}

func (ConversationParticipant) TableName() string { return "conversation_participants" }

// Message 消息表。正文不做原地修改，回执走 message_reads
type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"index:idx_conv_created" json:"conversationId"`
	SenderID       uint64    `gorm:"index" json:"senderId"`
	SenderRole     string    `gorm:"type:varchar(16)" json:"senderRole"`
	SenderName     string    `gorm:"type:varchar(64)" json:"senderName"`
	SenderAvatar   string    `gorm:"type:varchar(255)" json:"senderAvatar"`
	RecipientID    uint64    `gorm:"index;default:0" json:"recipientId"` // 群聊为 0
	RecipientRole  string    `gorm:"type:varchar(16)" json:"recipientRole"`
	RecipientName  string    `gorm:"type:varchar(64)" json:"recipientName"`
	Content        string    `gorm:"type:varchar(1000);not null" json:"content"`
	Kind           int       `gorm:"not null;default:1" json:"kind"`
	Status         int8      `gorm:"not null;default:1" json:"status"`
	ReplyToID      uint64    `gorm:"default:0" json:"replyToId"`
	IsDeleted      int8      `gorm:"not null;default:0" json:"isDeleted"`
	CreatedAt      time.Time `gorm:"index:idx_conv_created" json:"createdAt"`
}

func (Message) TableName() string { return "messages" }

// MessageRead 已读回执表
type MessageRead struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID uint64    `gorm:"uniqueIndex:idx_msg_reader" json:"messageId"`
	ReaderID  uint64    `gorm:"uniqueIndex:idx_msg_reader;index" json:"readerId"`
	ReadAt    time.Time `json:"readAt"`
}

func (MessageRead) TableName() string { return "message_reads" }

// newConversationRow 组装会话行，peerKey 为空时存 NULL，
// 唯一索引只约束真正的单聊键
func newConversationRow(kind domain.ConversationKind, title string, bookingID uint64, peerKey string, now time.Time) *Conversation {
	row := &Conversation{
		Kind:          int8(kind),
		Title:         title,
		BookingID:     bookingID,
		LastMessageAt: now,
		IsActive:      1,
	}
	if peerKey != "" {
		row.PeerKey = &peerKey
	}
	return row
}

func (c *Conversation) toDomain(parts []ConversationParticipant) *domain.Conversation {
	conv := &domain.Conversation{
		ID:        c.ID,
		Kind:      domain.ConversationKind(c.Kind),
		Title:     c.Title,
		BookingID: c.BookingID,
		LastMessage: domain.LastMessage{
			Content:  c.LastMsgContent,
			Kind:     domain.MessageKind(c.LastMsgKind),
			SenderID: c.LastSenderID,
			At:       c.LastMessageAt,
		},
		IsActive:  c.IsActive == 1,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.PeerKey != nil {
		conv.PeerKey = *c.PeerKey
	}
	for _, p := range parts {
		conv.Members = append(conv.Members, domain.Member{
			Participant: domain.Participant{
				UserID: p.UserID,
				Role:   domain.Role(p.Role),
				Name:   p.DisplayName,
				Avatar: p.Avatar,
			},
			UnreadCount: p.UnreadCount,
			LastSeenAt:  p.LastSeenAt,
		})
	}
	return conv
}

func (m *Message) toDomain(reads []MessageRead) *domain.Message {
	msg := &domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender: domain.Participant{
			UserID: m.SenderID,
			Role:   domain.Role(m.SenderRole),
			Name:   m.SenderName,
			Avatar: m.SenderAvatar,
		},
		Content:   m.Content,
		Kind:      domain.MessageKind(m.Kind),
		Status:    domain.MessageStatus(m.Status),
		ReplyToID: m.ReplyToID,
		Deleted:   m.IsDeleted == 1,
		CreatedAt: m.CreatedAt,
	}
	if m.RecipientID != 0 {
		msg.Recipient = &domain.Participant{
			UserID: m.RecipientID,
			Role:   domain.Role(m.RecipientRole),
			Name:   m.RecipientName,
		}
	}
	for _, r := range reads {
		msg.ReadBy = append(msg.ReadBy, domain.ReadReceipt{ReaderID: r.ReaderID, ReadAt: r.ReadAt})
	}
	return msg
}

func fromDomainMessage(msg *domain.Message) *Message {
	row := &Message{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.Sender.UserID,
		SenderRole:     string(msg.Sender.Role),
		SenderName:     msg.Sender.Name,
		SenderAvatar:   msg.Sender.Avatar,
		Content:        msg.Content,
		Kind:           int(msg.Kind),
		Status:         int8(msg.Status),
		ReplyToID:      msg.ReplyToID,
		CreatedAt:      msg.CreatedAt,
	}
	if msg.Recipient != nil {
		row.RecipientID = msg.Recipient.UserID
		row.RecipientRole = string(msg.Recipient.Role)
		row.RecipientName = msg.Recipient.Name
	}
	return row
}

// AutoMigrate 建表，降级镜像与主存储共用同一逻辑 Schema
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Conversation{}, &ConversationParticipant{}, &Message{}, &MessageRead{})
}
