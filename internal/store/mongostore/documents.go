package mongostore

import (
	"time"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
)

// participantDoc 参与者快照
type participantDoc struct {
	UserID uint64 `bson:"user_id"`
	Role   string `bson:"role"`
	Name   string `bson:"name"`
	Avatar string `bson:"avatar,omitempty"`
}

// memberDoc 会话内嵌成员，未读数挂在成员上
type memberDoc struct {
	participantDoc `bson:",inline"`
	UnreadCount    uint64    `bson:"unread_count"`
	LastSeenAt     time.Time `bson:"last_seen_at"`
}

type lastMessageDoc struct {
	Content  string    `bson:"content"`
	Kind     int       `bson:"kind"`
	SenderID uint64    `bson:"sender_id"`
	At       time.Time `bson:"at"`
}

type conversationDoc struct {
	ID          uint64          `bson:"_id"`
	Kind        int8            `bson:"kind"`
	PeerKey     string          `bson:"peer_key,omitempty"`
	Title       string          `bson:"title,omitempty"`
	BookingID   uint64          `bson:"booking_id,omitempty"`
	Members     []memberDoc     `bson:"members"`
	LastMessage *lastMessageDoc `bson:"last_message,omitempty"`
	IsActive    bool            `bson:"is_active"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

type readReceiptDoc struct {
	ReaderID uint64    `bson:"reader_id"`
	ReadAt   time.Time `bson:"read_at"`
}

type messageDoc struct {
	ID             uint64           `bson:"_id"`
	ConversationID uint64           `bson:"conversation_id"`
	Sender         participantDoc   `bson:"sender"`
	Recipient      *participantDoc  `bson:"recipient,omitempty"`
	Content        string           `bson:"content"`
	Kind           int              `bson:"kind"`
	Status         int8             `bson:"status"`
	ReadBy         []readReceiptDoc `bson:"read_by,omitempty"`
	ReplyTo        uint64           `bson:"reply_to,omitempty"`
	IsDeleted      bool             `bson:"is_deleted"`
	CreatedAt      time.Time        `bson:"created_at"`
}

func toParticipantDoc(p domain.Participant) participantDoc {
	return participantDoc{UserID: p.UserID, Role: string(p.Role), Name: p.Name, Avatar: p.Avatar}
}

func (d participantDoc) toDomain() domain.Participant {
	return domain.Participant{UserID: d.UserID, Role: domain.Role(d.Role), Name: d.Name, Avatar: d.Avatar}
}

func (d *conversationDoc) toDomain() *domain.Conversation {
	conv := &domain.Conversation{
		ID:        d.ID,
		Kind:      domain.ConversationKind(d.Kind),
		PeerKey:   d.PeerKey,
		Title:     d.Title,
		BookingID: d.BookingID,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.LastMessage != nil {
		conv.LastMessage = domain.LastMessage{
			Content:  d.LastMessage.Content,
			Kind:     domain.MessageKind(d.LastMessage.Kind),
			SenderID: d.LastMessage.SenderID,
			At:       d.LastMessage.At,
		}
	}
	for _, m := range d.Members {
		conv.Members = append(conv.Members, domain.Member{
			Participant: m.participantDoc.toDomain(),
			UnreadCount: m.UnreadCount,
			LastSeenAt:  m.LastSeenAt,
		})
	}
	return conv
}

func (d *messageDoc) toDomain() *domain.Message {
	msg := &domain.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		Sender:         d.Sender.toDomain(),
		Content:        d.Content,
		Kind:           domain.MessageKind(d.Kind),
		Status:         domain.MessageStatus(d.Status),
		ReplyToID:      d.ReplyTo,
		Deleted:        d.IsDeleted,
		CreatedAt:      d.CreatedAt,
	}
	if d.Recipient != nil {
		r := d.Recipient.toDomain()
		msg.Recipient = &r
	}
	for _, rr := range d.ReadBy {
		msg.ReadBy = append(msg.ReadBy, domain.ReadReceipt{ReaderID: rr.ReaderID, ReadAt: rr.ReadAt})
	}
	return msg
}
