package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/store"
)

type messageStore struct {
	db  *mongo.Database
	col *mongo.Collection
}

// NewMessageStore Mongo 消息存储，主后端
func NewMessageStore(db *mongo.Database) store.MessageStore {
	return &messageStore{db: db, col: db.Collection(colMessages)}
}

func (s *messageStore) Append(ctx context.Context, msg *domain.Message) error {
	id, err := nextSeq(ctx, s.db, colMessages)
	if err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Status == 0 {
		msg.Status = domain.StatusSent
	}

	doc := messageDoc{
		ID:             id,
		ConversationID: msg.ConversationID,
		Sender:         toParticipantDoc(msg.Sender),
		Content:        msg.Content,
		Kind:           int(msg.Kind),
		Status:         int8(msg.Status),
		ReplyTo:        msg.ReplyToID,
		CreatedAt:      msg.CreatedAt,
	}
	if msg.Recipient != nil {
		r := toParticipantDoc(*msg.Recipient)
		doc.Recipient = &r
	}

	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return err
	}
	msg.ID = id
	return nil
}

func (s *messageStore) Get(ctx context.Context, messageID uint64) (*domain.Message, error) {
	var doc messageDoc
	err := s.col.FindOne(ctx, bson.M{"_id": messageID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *messageStore) ListForConversation(ctx context.Context, convID uint64, page, pageSize int) ([]*domain.Message, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	msgs, err := s.find(ctx, bson.M{"conversation_id": convID, "is_deleted": false}, findOpts)
	if err != nil {
		return nil, err
	}
	store.OldestFirst(msgs)
	return msgs, nil
}

func (s *messageStore) ListBetween(ctx context.Context, userA, userB uint64) ([]*domain.Message, error) {
	filter := bson.M{
		"is_deleted": false,
		"$or": bson.A{
			bson.M{"sender.user_id": userA, "recipient.user_id": userB},
			bson.M{"sender.user_id": userB, "recipient.user_id": userA},
		},
	}
	return s.find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
}

func (s *messageStore) ListForUser(ctx context.Context, userID uint64, page, pageSize int) ([]*domain.Message, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	filter := bson.M{
		"is_deleted": false,
		"$or": bson.A{
			bson.M{"sender.user_id": userID},
			bson.M{"recipient.user_id": userID},
		},
	}
	return s.find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page-1)*pageSize)).
		SetLimit(int64(pageSize)))
}

func (s *messageStore) MarkRead(ctx context.Context, readerID uint64, messageIDs []uint64, at time.Time) ([]*domain.Message, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	// 限定为读者自己收到的、尚未由其读过的消息，再整体打回执。
	// 无接收方的群聊/系统消息先放行，下一步按会话成员身份过滤
	filter := bson.M{
		"_id":               bson.M{"$in": messageIDs},
		"sender.user_id":    bson.M{"$ne": readerID},
		"read_by.reader_id": bson.M{"$ne": readerID},
		"is_deleted":        false,
		"$or": bson.A{
			bson.M{"recipient.user_id": readerID},
			bson.M{"recipient": bson.M{"$exists": false}},
		},
	}

	candidates, err := s.find(ctx, filter, options.Find())
	if err != nil {
		return nil, err
	}
	candidates, err = s.keepMemberMessages(ctx, readerID, candidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]uint64, 0, len(candidates))
	for _, m := range candidates {
		ids = append(ids, m.ID)
	}

	_, err = s.col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "read_by.reader_id": bson.M{"$ne": readerID}},
		bson.M{
			"$push": bson.M{"read_by": readReceiptDoc{ReaderID: readerID, ReadAt: at}},
			"$set":  bson.M{"status": int8(domain.StatusRead)},
		},
	)
	if err != nil {
		return nil, err
	}

	for _, m := range candidates {
		m.Status = domain.StatusRead
		m.ReadBy = append(m.ReadBy, domain.ReadReceipt{ReaderID: readerID, ReadAt: at})
	}
	return candidates, nil
}

// keepMemberMessages 过滤无接收方字段的消息：读者必须是所在会话的成员
func (s *messageStore) keepMemberMessages(ctx context.Context, readerID uint64, msgs []*domain.Message) ([]*domain.Message, error) {
	convIDs := make([]uint64, 0)
	for _, m := range msgs {
		if m.Recipient == nil {
			convIDs = append(convIDs, m.ConversationID)
		}
	}
	if len(convIDs) == 0 {
		return msgs, nil
	}

	cursor, err := s.db.Collection(colConversations).Find(ctx,
		bson.M{"_id": bson.M{"$in": convIDs}, "members.user_id": readerID},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var rows []struct {
		ID uint64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	member := make(map[uint64]bool, len(rows))
	for _, r := range rows {
		member[r.ID] = true
	}

	kept := msgs[:0]
	for _, m := range msgs {
		if m.Recipient != nil || member[m.ConversationID] {
			kept = append(kept, m)
		}
	}
	return kept, nil
}

func (s *messageStore) MarkDelivered(ctx context.Context, messageID uint64) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": messageID, "status": bson.M{"$lt": int8(domain.StatusDelivered)}},
		bson.M{"$set": bson.M{"status": int8(domain.StatusDelivered)}},
	)
	return err
}

func (s *messageStore) SoftDelete(ctx context.Context, messageID uint64) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{"$set": bson.M{"is_deleted": true}},
	)
	return err
}

func (s *messageStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Message, error) {
	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	res := make([]*domain.Message, 0, len(docs))
	for i := range docs {
		res = append(res, docs[i].toDomain())
	}
	return res, nil
}
