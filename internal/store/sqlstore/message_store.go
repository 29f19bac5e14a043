package sqlstore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/store"
)

type messageStore struct {
	db *gorm.DB
}

// NewMessageStore MySQL 消息存储
func NewMessageStore(db *gorm.DB) store.MessageStore {
	return &messageStore{db: db}
}

func (s *messageStore) Append(ctx context.Context, msg *domain.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Status == 0 {
		msg.Status = domain.StatusSent
	}
	row := fromDomainMessage(msg)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	// 自增主键保证同会话内的全序，回填给调用方
	msg.ID = row.ID
	return nil
}

func (s *messageStore) Get(ctx context.Context, messageID uint64) (*domain.Message, error) {
	var row Message
	if err := s.db.WithContext(ctx).First(&row, messageID).Error; err != nil {
		return nil, translate(err)
	}
	msgs, err := s.hydrate(ctx, []Message{row})
	if err != nil {
		return nil, err
	}
	return msgs[0], nil
}

// ListForConversation 页间从新到旧取，页内翻转为从旧到新
func (s *messageStore) ListForConversation(ctx context.Context, convID uint64, page, pageSize int) ([]*domain.Message, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	var rows []Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = 0", convID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	msgs, err := s.hydrate(ctx, rows)
	if err != nil {
		return nil, err
	}
	store.OldestFirst(msgs)
	return msgs, nil
}

func (s *messageStore) ListBetween(ctx context.Context, userA, userB uint64) ([]*domain.Message, error) {
	var rows []Message
	err := s.db.WithContext(ctx).
		Where("is_deleted = 0 AND ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))",
			userA, userB, userB, userA).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, rows)
}

func (s *messageStore) ListForUser(ctx context.Context, userID uint64, page, pageSize int) ([]*domain.Message, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	var rows []Message
	err := s.db.WithContext(ctx).
		Where("is_deleted = 0 AND (sender_id = ? OR recipient_id = ?)", userID, userID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, rows)
}

// MarkRead 只标记读者自己收到且未读的消息：单聊要求读者是接收方，
// 群聊/客服消息要求读者是会话成员，其余 ID 一律跳过
func (s *messageStore) MarkRead(ctx context.Context, readerID uint64, messageIDs []uint64, at time.Time) ([]*domain.Message, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	memberConvs := s.db.Model(&ConversationParticipant{}).
		Select("conversation_id").
		Where("user_id = ?", readerID)

	var candidates []Message
	err := s.db.WithContext(ctx).
		Where("id IN ? AND sender_id <> ? AND is_deleted = 0", messageIDs, readerID).
		Where("recipient_id = ? OR (recipient_id = 0 AND conversation_id IN (?))", readerID, memberConvs).
		Where("id NOT IN (?)", s.db.Model(&MessageRead{}).Select("message_id").Where("reader_id = ?", readerID)).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	marked := make([]uint64, 0, len(candidates))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range candidates {
			// 并发重复标记由唯一索引兜底，冲突按已处理跳过
			r := MessageRead{MessageID: c.ID, ReaderID: readerID, ReadAt: at}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&r).Error; err != nil {
				return err
			}
			marked = append(marked, c.ID)
		}
		return tx.Model(&Message{}).
			Where("id IN ?", marked).
			Update("status", int8(domain.StatusRead)).Error
	})
	if err != nil {
		return nil, err
	}

	res := make([]*domain.Message, 0, len(candidates))
	for i := range candidates {
		candidates[i].Status = int8(domain.StatusRead)
		msg := candidates[i].toDomain(nil)
		msg.ReadBy = []domain.ReadReceipt{{ReaderID: readerID, ReadAt: at}}
		res = append(res, msg)
	}
	return res, nil
}

func (s *messageStore) MarkDelivered(ctx context.Context, messageID uint64) error {
	// 已读状态不回退为已送达
	return s.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND status < ?", messageID, int8(domain.StatusDelivered)).
		Update("status", int8(domain.StatusDelivered)).Error
}

func (s *messageStore) SoftDelete(ctx context.Context, messageID uint64) error {
	return s.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", messageID).
		Update("is_deleted", 1).Error
}

func (s *messageStore) hydrate(ctx context.Context, rows []Message) ([]*domain.Message, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]uint64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	var reads []MessageRead
	if err := s.db.WithContext(ctx).Where("message_id IN ?", ids).Find(&reads).Error; err != nil {
		return nil, err
	}
	byMsg := make(map[uint64][]MessageRead, len(reads))
	for _, r := range reads {
		byMsg[r.MessageID] = append(byMsg[r.MessageID], r)
	}

	res := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		res = append(res, rows[i].toDomain(byMsg[rows[i].ID]))
	}
	return res, nil
}
