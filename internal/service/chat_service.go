package service

import (
	"context"
	"errors"
	log "log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/copier"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/dto"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/consts"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/minio"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/redis"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/store"
)

// ChatService 消息服务接口定义。调度器与降级 REST 通道都走这一层，
// 两条通道看到的消息形态完全一致
type ChatService interface {
	SendMessage(ctx context.Context, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	PostBookingMessage(ctx context.Context, bookingID uint64, customer, vendor domain.Participant, content string) (*dto.MessageDTO, error)
	MarkAsRead(ctx context.Context, readerID uint64, messageIDs []uint64) (*dto.ReadResultDTO, error)
	GetConversationList(ctx context.Context, userID uint64, page, pageSize int) ([]*dto.ConversationDTO, error)
	GetChatHistory(ctx context.Context, convID uint64, page, pageSize int) ([]*dto.MessageDTO, error)
	GetDirectHistory(ctx context.Context, userA, userB uint64) ([]*dto.MessageDTO, error)
	GetUserMessages(ctx context.Context, userID uint64, page, pageSize int) ([]*dto.MessageDTO, error)
	GetUnreadCount(ctx context.Context, userID uint64) (uint64, error)
	DeactivateConversation(ctx context.Context, convID, userID uint64) error
	DeleteMessage(ctx context.Context, userID, messageID uint64) error
	MarkDelivered(ctx context.Context, messageID uint64)
}

type chatServiceImpl struct {
	convStore store.ConversationStore
	msgStore  store.MessageStore
}

// NewChatService 构造函数，存储后端由启动探活决定
func NewChatService(stores *store.Stores) ChatService {
	return &chatServiceImpl{
		convStore: stores.Conversations,
		msgStore:  stores.Messages,
	}
}

// SendMessage 发送消息。先落库，后更新摘要与未读数；
// 落库失败整体失败，绝不出现“已广播但未持久化”的窗口
func (s *chatServiceImpl) SendMessage(ctx context.Context, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	sender, recipient, kind, err := s.validateSend(req)
	if err != nil {
		return nil, err
	}

	conv, _, err := s.convStore.FindOrCreateDirect(ctx, sender, recipient)
	if err != nil {
		log.ErrorContext(ctx, "获取或创建会话失败", "sender", sender.UserID, "recipient", recipient.UserID, "err", err)
		return nil, ErrPersistence
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		Sender:         sender,
		Recipient:      &recipient,
		Content:        strings.TrimSpace(req.Content),
		Kind:           kind,
		Status:         domain.StatusSent,
		ReplyToID:      req.ReplyToID,
		CreatedAt:      time.Now(),
	}

	if err := s.msgStore.Append(ctx, msg); err != nil {
		log.ErrorContext(ctx, "消息落库失败", "conversation", conv.ID, "err", err)
		return nil, ErrPersistence
	}

	s.afterAppend(ctx, conv.ID, msg)
	return s.toMessageDTO(msg), nil
}

// PostBookingMessage 订单事件驱动的系统消息：按 BookingID 复用或创建客服会话
func (s *chatServiceImpl) PostBookingMessage(ctx context.Context, bookingID uint64, customer, vendor domain.Participant, content string) (*dto.MessageDTO, error) {
	conv, err := s.convStore.FindByBookingID(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		conv, err = s.convStore.Create(ctx,
			[]domain.Participant{customer, vendor},
			domain.KindSupport,
			"订单 #"+strconv.FormatUint(bookingID, 10),
			bookingID,
		)
	}
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		Sender:         domain.Participant{UserID: 0, Role: domain.RoleAdmin, Name: "系统"},
		Content:        content,
		Kind:           domain.MsgSystem,
		Status:         domain.StatusSent,
		CreatedAt:      time.Now(),
	}
	if err := s.msgStore.Append(ctx, msg); err != nil {
		return nil, err
	}

	s.afterAppend(ctx, conv.ID, msg)
	return s.toMessageDTO(msg), nil
}

// afterAppend 落库成功后的摘要与未读维护。此处失败不回滚消息本体，
// 消息已持久化即视为发送成功，只记录告警；未读数可能短暂偏低，
// 下一次成功发送或标记已读会重新对齐
func (s *chatServiceImpl) afterAppend(ctx context.Context, convID uint64, msg *domain.Message) {
	summary := domain.LastMessage{
		Content:  snippet(msg.Content),
		Kind:     msg.Kind,
		SenderID: msg.Sender.UserID,
		At:       msg.CreatedAt,
	}
	if err := s.convStore.AppendLastMessage(ctx, convID, summary); err != nil {
		log.WarnContext(ctx, "更新会话摘要失败", "conversation", convID, "err", err)
	}
	if err := s.convStore.IncrementUnread(ctx, convID, msg.Sender.UserID); err != nil {
		log.WarnContext(ctx, "更新未读数失败", "conversation", convID, "err", err)
	}
	if msg.Recipient != nil {
		s.invalidateUnreadCache(ctx, msg.Recipient.UserID)
	}
}

// MarkAsRead 批量标记已读，仅作用于读者收到的消息，重复标记幂等
func (s *chatServiceImpl) MarkAsRead(ctx context.Context, readerID uint64, messageIDs []uint64) (*dto.ReadResultDTO, error) {
	if readerID == 0 || len(messageIDs) == 0 {
		return nil, ErrParamInvalid
	}

	marked, err := s.msgStore.MarkRead(ctx, readerID, messageIDs, time.Now())
	if err != nil {
		log.ErrorContext(ctx, "标记已读失败", "reader", readerID, "err", err)
		return nil, ErrPersistence
	}

	res := &dto.ReadResultDTO{ReadBy: readerID}
	convSeen := make(map[uint64]bool)
	senderSeen := make(map[uint64]bool)
	for _, m := range marked {
		res.MessageIDs = append(res.MessageIDs, m.ID)
		if !convSeen[m.ConversationID] {
			convSeen[m.ConversationID] = true
			res.ConversationIDs = append(res.ConversationIDs, m.ConversationID)
		}
		if !senderSeen[m.Sender.UserID] {
			senderSeen[m.Sender.UserID] = true
			res.SenderIDs = append(res.SenderIDs, m.Sender.UserID)
		}
	}

	for _, convID := range res.ConversationIDs {
		if err := s.convStore.ResetUnread(ctx, convID, readerID); err != nil {
			log.WarnContext(ctx, "清零未读数失败", "conversation", convID, "reader", readerID, "err", err)
		}
	}
	if len(res.ConversationIDs) > 0 {
		s.invalidateUnreadCache(ctx, readerID)
	}
	return res, nil
}

func (s *chatServiceImpl) GetConversationList(ctx context.Context, userID uint64, page, pageSize int) ([]*dto.ConversationDTO, error) {
	convs, err := s.convStore.ListForParticipant(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ConversationDTO, 0, len(convs))
	for _, c := range convs {
		res = append(res, s.toConversationDTO(c, userID))
	}
	return res, nil
}

func (s *chatServiceImpl) GetChatHistory(ctx context.Context, convID uint64, page, pageSize int) ([]*dto.MessageDTO, error) {
	msgs, err := s.msgStore.ListForConversation(ctx, convID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return s.toMessageDTOs(msgs), nil
}

func (s *chatServiceImpl) GetDirectHistory(ctx context.Context, userA, userB uint64) ([]*dto.MessageDTO, error) {
	msgs, err := s.msgStore.ListBetween(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	return s.toMessageDTOs(msgs), nil
}

func (s *chatServiceImpl) GetUserMessages(ctx context.Context, userID uint64, page, pageSize int) ([]*dto.MessageDTO, error) {
	msgs, err := s.msgStore.ListForUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return s.toMessageDTOs(msgs), nil
}

// GetUnreadCount 全局未读数，带短期缓存
func (s *chatServiceImpl) GetUnreadCount(ctx context.Context, userID uint64) (uint64, error) {
	key := consts.ChatUnreadCountKey + strconv.FormatUint(userID, 10)
	if cached, err := redis.GetValue(ctx, key); err == nil && cached != "" {
		if n, err := strconv.ParseUint(cached, 10, 64); err == nil {
			return n, nil
		}
	}

	total, err := s.convStore.TotalUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := redis.SetWithExpiration(ctx, key, strconv.FormatUint(total, 10), time.Minute); err != nil {
		log.WarnContext(ctx, "未读数缓存写入失败", "user", userID, "err", err)
	}
	return total, nil
}

// DeactivateConversation 软停用会话（拉黑/归档），仅限成员操作
func (s *chatServiceImpl) DeactivateConversation(ctx context.Context, convID, userID uint64) error {
	conv, err := s.convStore.Get(ctx, convID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrConversationGone
		}
		return err
	}
	if _, ok := conv.Member(userID); !ok {
		return ErrNotMember
	}
	return s.convStore.Deactivate(ctx, convID)
}

// DeleteMessage 软删除一条消息，仅限发送者本人。
// 正文保留在存储里，各读取路径不再返回
func (s *chatServiceImpl) DeleteMessage(ctx context.Context, userID, messageID uint64) error {
	msg, err := s.msgStore.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMessageGone
		}
		return err
	}
	if msg.Deleted {
		return ErrMessageGone
	}
	if msg.Sender.UserID != userID {
		return UnauthorizedError
	}
	return s.msgStore.SoftDelete(ctx, messageID)
}

// MarkDelivered 实时送达后的状态修正，尽力而为
func (s *chatServiceImpl) MarkDelivered(ctx context.Context, messageID uint64) {
	if err := s.msgStore.MarkDelivered(ctx, messageID); err != nil {
		log.WarnContext(ctx, "更新送达状态失败", "message", messageID, "err", err)
	}
}

func (s *chatServiceImpl) validateSend(req *dto.SendMessageReq) (domain.Participant, domain.Participant, domain.MessageKind, error) {
	var zero domain.Participant

	if req.SenderID == 0 || req.RecipientID == 0 || req.SenderName == "" || req.RecipientName == "" {
		return zero, zero, 0, ErrParamInvalid
	}
	if req.SenderID == req.RecipientID {
		return zero, zero, 0, ErrSelfMessage
	}

	content := strings.TrimSpace(req.Content)
	kind := domain.MessageKind(req.MessageType)
	if kind == 0 {
		kind = domain.MsgText
	}
	if !kind.Valid() {
		return zero, zero, 0, ErrParamInvalid
	}
	if kind == domain.MsgText && content == "" {
		return zero, zero, 0, ErrContentEmpty
	}
	if len([]rune(content)) > domain.MaxContentLen {
		return zero, zero, 0, ErrContentTooLong
	}

	senderRole, err := normalizeRole(req.SenderType)
	if err != nil {
		return zero, zero, 0, err
	}
	recipientRole, err := normalizeRole(req.RecipientType)
	if err != nil {
		return zero, zero, 0, err
	}

	sender := domain.Participant{
		UserID: req.SenderID,
		Role:   senderRole,
		Name:   req.SenderName,
		Avatar: req.SenderAvatar,
	}
	recipient := domain.Participant{
		UserID: req.RecipientID,
		Role:   recipientRole,
		Name:   req.RecipientName,
	}
	return sender, recipient, kind, nil
}

// normalizeRole 降级 REST 通道不携带角色字段，缺省按顾客处理
func normalizeRole(raw string) (domain.Role, error) {
	if raw == "" {
		return domain.RoleCustomer, nil
	}
	role := domain.Role(raw)
	if !role.Valid() {
		return "", ErrRoleInvalid
	}
	return role, nil
}

func (s *chatServiceImpl) invalidateUnreadCache(ctx context.Context, userID uint64) {
	key := consts.ChatUnreadCountKey + strconv.FormatUint(userID, 10)
	if err := redis.DeleteKey(ctx, key); err != nil {
		log.WarnContext(ctx, "未读数缓存失效失败", "user", userID, "err", err)
	}
}

func (s *chatServiceImpl) toMessageDTO(m *domain.Message) *dto.MessageDTO {
	d := &dto.MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.Sender.UserID,
		SenderName:     m.Sender.Name,
		SenderType:     string(m.Sender.Role),
		SenderAvatar:   minio.AvatarURL(m.Sender.Avatar),
		Content:        m.Content,
		MessageType:    int(m.Kind),
		Status:         int8(m.Status),
		ReplyToID:      m.ReplyToID,
		CreatedAt:      m.CreatedAt,
	}
	if m.Recipient != nil {
		d.RecipientID = m.Recipient.UserID
		d.RecipientName = m.Recipient.Name
		d.RecipientType = string(m.Recipient.Role)
	}
	_ = copier.Copy(&d.ReadBy, &m.ReadBy)
	return d
}

func (s *chatServiceImpl) toMessageDTOs(msgs []*domain.Message) []*dto.MessageDTO {
	res := make([]*dto.MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, s.toMessageDTO(m))
	}
	return res
}

func (s *chatServiceImpl) toConversationDTO(c *domain.Conversation, viewerID uint64) *dto.ConversationDTO {
	d := &dto.ConversationDTO{
		ConversationID: c.ID,
		Kind:           int8(c.Kind),
		Title:          c.Title,
		BookingID:      c.BookingID,
		LastMessage: dto.LastMessageDTO{
			Content:  c.LastMessage.Content,
			Kind:     int(c.LastMessage.Kind),
			SenderID: c.LastMessage.SenderID,
			At:       c.LastMessage.At,
		},
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
	}
	for _, m := range c.Members {
		p := dto.ParticipantDTO{
			UserID: m.UserID,
			Role:   string(m.Role),
			Name:   m.Name,
			Avatar: minio.AvatarURL(m.Avatar),
		}
		d.Participants = append(d.Participants, p)
		if m.UserID == viewerID {
			d.UnreadCount = m.UnreadCount
		}
	}
	if peer, ok := c.Peer(viewerID); ok {
		d.Peer = &dto.ParticipantDTO{
			UserID: peer.UserID,
			Role:   string(peer.Role),
			Name:   peer.Name,
			Avatar: minio.AvatarURL(peer.Avatar),
		}
	}
	return d
}

// snippet 会话摘要截断到 255 字符
func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= 255 {
		return content
	}
	return string(runes[:255])
}
