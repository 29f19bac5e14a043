package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colConversations = "conversations"
	colMessages      = "messages"
	colCounters      = "counters"
)

// nextSeq 基于 counters 集合的原子自增序列。消息与会话共用同一套
// 单调 ID 生成，排序平局时直接比较 ID 即可，无需额外序列字段
func nextSeq(ctx context.Context, db *mongo.Database, name string) (uint64, error) {
	var doc struct {
		Seq uint64 `bson:"seq"`
	}
	err := db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}
