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

type conversationStore struct {
	db  *mongo.Database
	col *mongo.Collection
}

// NewConversationStore Mongo 会话存储，主后端
func NewConversationStore(db *mongo.Database) store.ConversationStore {
	return &conversationStore{db: db, col: db.Collection(colConversations)}
}

func (s *conversationStore) FindOrCreateDirect(ctx context.Context, a, b domain.Participant) (*domain.Conversation, bool, error) {
	peerKey := domain.PeerKey(a.UserID, b.UserID)

	conv, err := s.findByPeerKey(ctx, peerKey)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	created, err := s.insert(ctx, []domain.Participant{a, b}, domain.KindDirect, "", 0, peerKey)
	if err != nil {
		// 唯一索引兜底：并发创建时输家回读赢家文档
		if mongo.IsDuplicateKeyError(err) {
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
	return s.insert(ctx, members, kind, title, bookingID, peerKey)
}

func (s *conversationStore) insert(ctx context.Context, members []domain.Participant, kind domain.ConversationKind, title string, bookingID uint64, peerKey string) (*domain.Conversation, error) {
	id, err := nextSeq(ctx, s.db, colConversations)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	doc := conversationDoc{
		ID:        id,
		Kind:      int8(kind),
		PeerKey:   peerKey,
		Title:     title,
		BookingID: bookingID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range members {
		doc.Members = append(doc.Members, memberDoc{
			participantDoc: toParticipantDoc(m),
			LastSeenAt:     now,
		})
	}

	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *conversationStore) Get(ctx context.Context, convID uint64) (*domain.Conversation, error) {
	return s.findOne(ctx, bson.M{"_id": convID})
}

func (s *conversationStore) FindByBookingID(ctx context.Context, bookingID uint64) (*domain.Conversation, error) {
	return s.findOne(ctx, bson.M{"booking_id": bookingID})
}

func (s *conversationStore) findByPeerKey(ctx context.Context, peerKey string) (*domain.Conversation, error) {
	return s.findOne(ctx, bson.M{"peer_key": peerKey})
}

func (s *conversationStore) findOne(ctx context.Context, filter bson.M) (*domain.Conversation, error) {
	var doc conversationDoc
	err := s.col.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *conversationStore) AppendLastMessage(ctx context.Context, convID uint64, lm domain.LastMessage) error {
	// 过滤条件保证摘要时间戳单调不减
	filter := bson.M{
		"_id": convID,
		"$or": bson.A{
			bson.M{"last_message": bson.M{"$exists": false}},
			bson.M{"last_message.at": bson.M{"$lte": lm.At}},
		},
	}
	update := bson.M{"$set": bson.M{
		"last_message": lastMessageDoc{
			Content:  lm.Content,
			Kind:     int(lm.Kind),
			SenderID: lm.SenderID,
			At:       lm.At,
		},
		"updated_at": time.Now(),
	}}
	_, err := s.col.UpdateOne(ctx, filter, update)
	return err
}

func (s *conversationStore) IncrementUnread(ctx context.Context, convID uint64, exceptUserID uint64) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": convID},
		bson.M{"$inc": bson.M{"members.$[m].unread_count": 1}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"m.user_id": bson.M{"$ne": exceptUserID}}},
		}),
	)
	return err
}

func (s *conversationStore) ResetUnread(ctx context.Context, convID uint64, userID uint64) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": convID},
		bson.M{"$set": bson.M{
			"members.$[m].unread_count": 0,
			"members.$[m].last_seen_at": time.Now(),
		}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"m.user_id": userID}},
		}),
	)
	return err
}

func (s *conversationStore) ListForParticipant(ctx context.Context, userID uint64, page, pageSize int) ([]*domain.Conversation, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "last_message.at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := s.col.Find(ctx, bson.M{"members.user_id": userID, "is_active": true}, findOpts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	res := make([]*domain.Conversation, 0, len(docs))
	for i := range docs {
		res = append(res, docs[i].toDomain())
	}
	return res, nil
}

func (s *conversationStore) TotalUnread(ctx context.Context, userID uint64) (uint64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"members.user_id": userID, "is_active": true}}},
		{{Key: "$unwind", Value: "$members"}},
		{{Key: "$match", Value: bson.M{"members.user_id": userID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$members.unread_count"}}}},
	}
	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var results []struct {
		Total uint64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (s *conversationStore) Deactivate(ctx context.Context, convID uint64) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": convID},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now()}},
	)
	return err
}
