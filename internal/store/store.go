package store

import (
	"context"
	"errors"
	"time"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
)

// DefaultPageSize 分页默认条数
const DefaultPageSize = 20

var (
	ErrNotFound  = errors.New("record not found")
	ErrNotMember = errors.New("not a member of this conversation")
)

// ConversationStore 会话持久层抽象。Mongo 为主存储，MySQL 为降级镜像，
// 调度器与降级接口只依赖本接口，不触碰任一后端的原生客户端。
type ConversationStore interface {
	// FindOrCreateDirect 获取或创建单聊。并发下依赖排序后 PeerKey 的唯一约束保证幂等，
	// 撞唯一键的一方回读胜者记录。返回值第二项表示本次是否新建。
	FindOrCreateDirect(ctx context.Context, a, b domain.Participant) (*domain.Conversation, bool, error)
	Create(ctx context.Context, members []domain.Participant, kind domain.ConversationKind, title string, bookingID uint64) (*domain.Conversation, error)
	Get(ctx context.Context, convID uint64) (*domain.Conversation, error)
	FindByBookingID(ctx context.Context, bookingID uint64) (*domain.Conversation, error)

	// AppendLastMessage 更新最后消息摘要，摘要时间戳单调不减
	AppendLastMessage(ctx context.Context, convID uint64, lm domain.LastMessage) error
	// IncrementUnread 除发送者外所有成员未读数 +1，必须是存储层原子操作
	IncrementUnread(ctx context.Context, convID uint64, exceptUserID uint64) error
	// ResetUnread 读者未读数清零并刷新最后活跃时间
	ResetUnread(ctx context.Context, convID uint64, userID uint64) error

	// ListForParticipant 按最后消息时间倒序分页，同刻按会话 ID 倒序
	ListForParticipant(ctx context.Context, userID uint64, page, pageSize int) ([]*domain.Conversation, error)
	TotalUnread(ctx context.Context, userID uint64) (uint64, error)
	// Deactivate 软停用，不做物理删除
	Deactivate(ctx context.Context, convID uint64) error
}

// MessageStore 消息持久层抽象
type MessageStore interface {
	// Append 写入消息并回填 ID 与 CreatedAt，ID 由单调序列生成
	Append(ctx context.Context, msg *domain.Message) error
	// Get 按 ID 取单条消息，软删的消息照常返回，由调用方判定
	Get(ctx context.Context, messageID uint64) (*domain.Message, error)
	// ListForConversation 按页拉取，页间从新到旧请求，页内翻转为从旧到新返回，软删消息不出现
	ListForConversation(ctx context.Context, convID uint64, page, pageSize int) ([]*domain.Message, error)
	// ListBetween 两个用户单聊的全量消息，从旧到新
	ListBetween(ctx context.Context, userA, userB uint64) ([]*domain.Message, error)
	// ListForUser 用户收发的消息，从新到旧分页
	ListForUser(ctx context.Context, userID uint64, page, pageSize int) ([]*domain.Message, error)
	// MarkRead 批量追加已读回执。只作用于读者自己收到的、尚未读过的消息：
	// 单聊要求读者是接收方，群聊要求读者是会话成员，发送者不能读自己的消息。
	// 越权 ID 静默跳过，返回实际被标记的消息。
	MarkRead(ctx context.Context, readerID uint64, messageIDs []uint64, at time.Time) ([]*domain.Message, error)
	// MarkDelivered 实时推送成功后更新投递状态
	MarkDelivered(ctx context.Context, messageID uint64) error
	SoftDelete(ctx context.Context, messageID uint64) error
}

// Stores 已选定后端的一组存储
type Stores struct {
	Conversations ConversationStore
	Messages      MessageStore
	Backend       string // "mongo" 或 "mysql"
}
