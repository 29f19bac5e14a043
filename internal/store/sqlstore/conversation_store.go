package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/store"
)

type conversationStore struct {
	db *gorm.DB
}

// NewConversationStore MySQL 会话存储，作为 Mongo 不可达时的降级镜像
func NewConversationStore(db *gorm.DB) store.ConversationStore {
	return &conversationStore{db: db}
}

// FindOrCreateDirect 单聊幂等创建。并发撞 peer_key 唯一索引时回读胜者行
func (s *conversationStore) FindOrCreateDirect(ctx context.Context, a, b domain.Participant) (*domain.Conversation, bool, error) {
	peerKey := domain.PeerKey(a.UserID, b.UserID)

	conv, err := s.findByPeerKey(ctx, peerKey)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	created, err := s.create(ctx, []domain.Participant{a, b}, domain.KindDirect, "", 0, peerKey)
	if err != nil {
		// 输掉创建竞争，对方的会话已经落库
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			conv, rerr := s.findByPeerKey(ctx, peerKey)
			return conv, false, rerr
		}
		return nil, false, err
	}
	return created, true, nil
}

func (s *conversationStore) Create(ctx context.Context, members []domain.Participant, kind domain.ConversationKind, title string, bookingID uint64) (*domain.Conversation, error) {
	peerKey := ""
	if kind == domain.KindDirect && len(members) == 2 {
		peerKey = domain.PeerKey(members[0].UserID, members[1].UserID)
	}
	return s.create(ctx, members, kind, title, bookingID, peerKey)
}

func (s *conversationStore) create(ctx context.Context, members []domain.Participant, kind domain.ConversationKind, title string, bookingID uint64, peerKey string) (*domain.Conversation, error) {
	now := time.Now()
	row := newConversationRow(kind, title, bookingID, peerKey, now)

	parts := make([]ConversationParticipant, 0, len(members))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		for _, m := range members {
			p := ConversationParticipant{
				ConversationID: row.ID,
				UserID:         m.UserID,
				Role:           string(m.Role),
				DisplayName:    m.Name,
				Avatar:         m.Avatar,
				LastSeenAt:     now,
				JoinedAt:       now,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			parts = append(parts, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(parts), nil
}

func (s *conversationStore) Get(ctx context.Context, convID uint64) (*domain.Conversation, error) {
	var row Conversation
	if err := s.db.WithContext(ctx).First(&row, convID).Error; err != nil {
		return nil, translate(err)
	}
	return s.attach(ctx, &row)
}

func (s *conversationStore) FindByBookingID(ctx context.Context, bookingID uint64) (*domain.Conversation, error) {
	var row Conversation
	err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return s.attach(ctx, &row)
}

func (s *conversationStore) findByPeerKey(ctx context.Context, peerKey string) (*domain.Conversation, error) {
	var row Conversation
	err := s.db.WithContext(ctx).Where("peer_key = ?", peerKey).First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return s.attach(ctx, &row)
}

func (s *conversationStore) attach(ctx context.Context, row *Conversation) (*domain.Conversation, error) {
	var parts []ConversationParticipant
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", row.ID).
		Order("id ASC").
		Find(&parts).Error
	if err != nil {
		return nil, err
	}
	return row.toDomain(parts), nil
}

// AppendLastMessage 摘要时间戳单调不减，旧摘要不覆盖新摘要
func (s *conversationStore) AppendLastMessage(ctx context.Context, convID uint64, lm domain.LastMessage) error {
	return s.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ? AND last_message_at <= ?", convID, lm.At).
		Updates(map[string]interface{}{
			"last_msg_content": lm.Content,
			"last_msg_kind":    int(lm.Kind),
			"last_sender_id":   lm.SenderID,
			"last_message_at":  lm.At,
		}).Error
}

// IncrementUnread 原子自增，避免应用层读改写造成丢失更新
func (s *conversationStore) IncrementUnread(ctx context.Context, convID uint64, exceptUserID uint64) error {
	return s.db.WithContext(ctx).Model(&ConversationParticipant{}).
		Where("conversation_id = ? AND user_id <> ?", convID, exceptUserID).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error
}

func (s *conversationStore) ResetUnread(ctx context.Context, convID uint64, userID uint64) error {
	return s.db.WithContext(ctx).Model(&ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Updates(map[string]interface{}{
			"unread_count": 0,
			"last_seen_at": time.Now(),
		}).Error
}

func (s *conversationStore) ListForParticipant(ctx context.Context, userID uint64, page, pageSize int) ([]*domain.Conversation, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	var rows []Conversation
	err := s.db.WithContext(ctx).Table("conversations c").
		Select("c.*").
		Joins("JOIN conversation_participants p ON p.conversation_id = c.id").
		Where("p.user_id = ? AND c.is_active = 1", userID).
		Order("c.last_message_at DESC, c.id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	res := make([]*domain.Conversation, 0, len(rows))
	for i := range rows {
		conv, err := s.attach(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		res = append(res, conv)
	}
	return res, nil
}

func (s *conversationStore) TotalUnread(ctx context.Context, userID uint64) (uint64, error) {
	var total uint64
	err := s.db.WithContext(ctx).Table("conversation_participants p").
		Joins("JOIN conversations c ON p.conversation_id = c.id").
		Where("p.user_id = ? AND c.is_active = 1", userID).
		Select("COALESCE(SUM(p.unread_count), 0)").
		Scan(&total).Error
	return total, err
}

func (s *conversationStore) Deactivate(ctx context.Context, convID uint64) error {
	return s.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", convID).
		Update("is_active", 0).Error
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}
