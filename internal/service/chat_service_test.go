package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/dto"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/redis"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/store"
)

func TestMain(m *testing.M) {
	// 指向不可达地址：缓存读写全部失败，服务必须照常工作
	redis.Rdb = goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	os.Exit(m.Run())
}

type fakeConvStore struct {
	seq       uint64
	convs     map[uint64]*domain.Conversation
	byPeer    map[string]uint64
	byBooking map[uint64]uint64
}

func newFakeConvStore() *fakeConvStore {
	return &fakeConvStore{
		convs:     make(map[uint64]*domain.Conversation),
		byPeer:    make(map[string]uint64),
		byBooking: make(map[uint64]uint64),
	}
}

func (s *fakeConvStore) FindOrCreateDirect(_ context.Context, a, b domain.Participant) (*domain.Conversation, bool, error) {
	key := domain.PeerKey(a.UserID, b.UserID)
	if id, ok := s.byPeer[key]; ok {
		return s.convs[id], false, nil
	}
	conv := s.newConv([]domain.Participant{a, b}, domain.KindDirect, "", 0)
	conv.PeerKey = key
	s.byPeer[key] = conv.ID
	return conv, true, nil
}

func (s *fakeConvStore) Create(_ context.Context, members []domain.Participant, kind domain.ConversationKind, title string, bookingID uint64) (*domain.Conversation, error) {
	conv := s.newConv(members, kind, title, bookingID)
	if bookingID != 0 {
		s.byBooking[bookingID] = conv.ID
	}
	return conv, nil
}

func (s *fakeConvStore) newConv(members []domain.Participant, kind domain.ConversationKind, title string, bookingID uint64) *domain.Conversation {
	s.seq++
	conv := &domain.Conversation{
		ID:        s.seq,
		Kind:      kind,
		Title:     title,
		BookingID: bookingID,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	for _, p := range members {
		conv.Members = append(conv.Members, domain.Member{Participant: p})
	}
	s.convs[conv.ID] = conv
	return conv
}

func (s *fakeConvStore) Get(_ context.Context, convID uint64) (*domain.Conversation, error) {
	conv, ok := s.convs[convID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return conv, nil
}

func (s *fakeConvStore) FindByBookingID(_ context.Context, bookingID uint64) (*domain.Conversation, error) {
	id, ok := s.byBooking[bookingID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.convs[id], nil
}

func (s *fakeConvStore) AppendLastMessage(_ context.Context, convID uint64, lm domain.LastMessage) error {
	conv, ok := s.convs[convID]
	if !ok {
		return store.ErrNotFound
	}
	if lm.At.Before(conv.LastMessage.At) {
		return nil
	}
	conv.LastMessage = lm
	return nil
}

func (s *fakeConvStore) IncrementUnread(_ context.Context, convID uint64, exceptUserID uint64) error {
	conv, ok := s.convs[convID]
	if !ok {
		return store.ErrNotFound
	}
	for i := range conv.Members {
		if conv.Members[i].UserID != exceptUserID {
			conv.Members[i].UnreadCount++
		}
	}
	return nil
}

func (s *fakeConvStore) ResetUnread(_ context.Context, convID uint64, userID uint64) error {
	conv, ok := s.convs[convID]
	if !ok {
		return store.ErrNotFound
	}
	for i := range conv.Members {
		if conv.Members[i].UserID == userID {
			conv.Members[i].UnreadCount = 0
		}
	}
	return nil
}

func (s *fakeConvStore) ListForParticipant(_ context.Context, userID uint64, _, _ int) ([]*domain.Conversation, error) {
	var res []*domain.Conversation
	for _, conv := range s.convs {
		if _, ok := conv.Member(userID); ok {
			res = append(res, conv)
		}
	}
	return res, nil
}

func (s *fakeConvStore) TotalUnread(_ context.Context, userID uint64) (uint64, error) {
	var total uint64
	for _, conv := range s.convs {
		if m, ok := conv.Member(userID); ok {
			total += m.UnreadCount
		}
	}
	return total, nil
}

func (s *fakeConvStore) Deactivate(_ context.Context, convID uint64) error {
	conv, ok := s.convs[convID]
	if !ok {
		return store.ErrNotFound
	}
	conv.IsActive = false
	return nil
}

type fakeMsgStore struct {
	seq   uint64
	msgs  map[uint64]*domain.Message
	convs *fakeConvStore
}

func newFakeMsgStore(convs *fakeConvStore) *fakeMsgStore {
	return &fakeMsgStore{msgs: make(map[uint64]*domain.Message), convs: convs}
}

func (s *fakeMsgStore) Append(_ context.Context, msg *domain.Message) error {
	s.seq++
	msg.ID = s.seq
	s.msgs[msg.ID] = msg
	return nil
}

func (s *fakeMsgStore) Get(_ context.Context, messageID uint64) (*domain.Message, error) {
	m, ok := s.msgs[messageID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func (s *fakeMsgStore) ListForConversation(_ context.Context, convID uint64, page, pageSize int) ([]*domain.Message, error) {
	// 与真实后端同契约：页间从新到旧取，页内翻转为从旧到新
	var newestFirst []*domain.Message
	for id := s.seq; id >= 1; id-- {
		if m, ok := s.msgs[id]; ok && m.ConversationID == convID && !m.Deleted {
			newestFirst = append(newestFirst, m)
		}
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}
	lo := (page - 1) * pageSize
	if lo >= len(newestFirst) {
		return nil, nil
	}
	hi := lo + pageSize
	if hi > len(newestFirst) {
		hi = len(newestFirst)
	}
	pageMsgs := newestFirst[lo:hi]
	store.OldestFirst(pageMsgs)
	return pageMsgs, nil
}

func (s *fakeMsgStore) ListBetween(_ context.Context, userA, userB uint64) ([]*domain.Message, error) {
	var res []*domain.Message
	for id := uint64(1); id <= s.seq; id++ {
		m, ok := s.msgs[id]
		if !ok || m.Deleted || m.Recipient == nil {
			continue
		}
		if (m.Sender.UserID == userA && m.Recipient.UserID == userB) ||
			(m.Sender.UserID == userB && m.Recipient.UserID == userA) {
			res = append(res, m)
		}
	}
	return res, nil
}

func (s *fakeMsgStore) ListForUser(_ context.Context, userID uint64, _, _ int) ([]*domain.Message, error) {
	var res []*domain.Message
	for id := uint64(1); id <= s.seq; id++ {
		m, ok := s.msgs[id]
		if !ok || m.Deleted {
			continue
		}
		if m.Sender.UserID == userID || (m.Recipient != nil && m.Recipient.UserID == userID) {
			res = append(res, m)
		}
	}
	return res, nil
}

func (s *fakeMsgStore) MarkRead(_ context.Context, readerID uint64, messageIDs []uint64, at time.Time) ([]*domain.Message, error) {
	var marked []*domain.Message
	for _, id := range messageIDs {
		m, ok := s.msgs[id]
		if !ok || m.Deleted || m.Sender.UserID == readerID || m.ReadBySomeone(readerID) {
			continue
		}
		// 读者必须是接收方；无接收方的消息要求读者是会话成员
		if m.Recipient != nil {
			if m.Recipient.UserID != readerID {
				continue
			}
		} else if !s.isMember(m.ConversationID, readerID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, domain.ReadReceipt{ReaderID: readerID, ReadAt: at})
		m.Status = domain.StatusRead
		marked = append(marked, m)
	}
	return marked, nil
}

func (s *fakeMsgStore) isMember(convID, userID uint64) bool {
	conv, ok := s.convs.convs[convID]
	if !ok {
		return false
	}
	_, ok = conv.Member(userID)
	return ok
}

func (s *fakeMsgStore) MarkDelivered(_ context.Context, messageID uint64) error {
	if m, ok := s.msgs[messageID]; ok && m.Status < domain.StatusDelivered {
		m.Status = domain.StatusDelivered
	}
	return nil
}

func (s *fakeMsgStore) SoftDelete(_ context.Context, messageID uint64) error {
	m, ok := s.msgs[messageID]
	if !ok {
		return store.ErrNotFound
	}
	m.Deleted = true
	return nil
}

func newTestService() (ChatService, *fakeConvStore, *fakeMsgStore) {
	convs := newFakeConvStore()
	msgs := newFakeMsgStore(convs)
	svc := NewChatService(&store.Stores{Conversations: convs, Messages: msgs, Backend: "fake"})
	return svc, convs, msgs
}

func sendReq(sender, recipient uint64) *dto.SendMessageReq {
	return &dto.SendMessageReq{
		SenderID:      sender,
		SenderName:    "sender",
		SenderType:    "customer",
		RecipientID:   recipient,
		RecipientName: "recipient",
		RecipientType: "vendor",
		Content:       "hello",
	}
}

func TestSendMessageCreatesConversationOnce(t *testing.T) {
	svc, convs, _ := newTestService()
	ctx := context.Background()

	m1, err := svc.SendMessage(ctx, sendReq(1, 2))
	if err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	// 反方向发送仍命中同一会话
	m2, err := svc.SendMessage(ctx, sendReq(2, 1))
	if err != nil {
		t.Fatalf("second send failed: %v", err)
	}

	if m1.ConversationID != m2.ConversationID {
		t.Errorf("direct conversation should be shared: %d vs %d", m1.ConversationID, m2.ConversationID)
	}
	if len(convs.convs) != 1 {
		t.Errorf("expected one conversation, got %d", len(convs.convs))
	}
}

func TestSendMessageValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*dto.SendMessageReq)
		wantErr error
	}{
		{"self message", func(r *dto.SendMessageReq) { r.RecipientID = r.SenderID }, ErrSelfMessage},
		{"empty content", func(r *dto.SendMessageReq) { r.Content = "   " }, ErrContentEmpty},
		{"content too long", func(r *dto.SendMessageReq) { r.Content = strings.Repeat("字", domain.MaxContentLen+1) }, ErrContentTooLong},
		{"invalid role", func(r *dto.SendMessageReq) { r.SenderType = "ghost" }, ErrRoleInvalid},
		{"missing recipient", func(r *dto.SendMessageReq) { r.RecipientID = 0 }, ErrParamInvalid},
		{"invalid kind", func(r *dto.SendMessageReq) { r.MessageType = 99 }, ErrParamInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := sendReq(1, 2)
			tc.mutate(req)
			if _, err := svc.SendMessage(ctx, req); err != tc.wantErr {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestSendMessageDefaultsRoleToCustomer(t *testing.T) {
	svc, _, _ := newTestService()

	req := sendReq(1, 2)
	req.SenderType = ""
	req.RecipientType = ""

	msg, err := svc.SendMessage(context.Background(), req)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.SenderType != string(domain.RoleCustomer) {
		t.Errorf("empty sender role should default to customer, got %q", msg.SenderType)
	}
}

func TestSendMessageIncrementsRecipientUnreadOnly(t *testing.T) {
	svc, convs, _ := newTestService()
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, sendReq(1, 2))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	conv := convs.convs[msg.ConversationID]
	sender, _ := conv.Member(1)
	recipient, _ := conv.Member(2)
	if sender.UnreadCount != 0 {
		t.Errorf("sender unread should stay 0, got %d", sender.UnreadCount)
	}
	if recipient.UnreadCount != 1 {
		t.Errorf("recipient unread should be 1, got %d", recipient.UnreadCount)
	}

	total, err := svc.GetUnreadCount(ctx, 2)
	if err != nil {
		t.Fatalf("unread count failed: %v", err)
	}
	if total != 1 {
		t.Errorf("expected total unread 1, got %d", total)
	}
}

func TestSendMessageUpdatesSummary(t *testing.T) {
	svc, convs, _ := newTestService()
	ctx := context.Background()

	req := sendReq(1, 2)
	req.Content = strings.Repeat("长", 300)
	msg, err := svc.SendMessage(ctx, req)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	conv := convs.convs[msg.ConversationID]
	if conv.LastMessage.SenderID != 1 {
		t.Errorf("summary sender mismatch: %d", conv.LastMessage.SenderID)
	}
	if got := len([]rune(conv.LastMessage.Content)); got != 255 {
		t.Errorf("summary should truncate to 255 runes, got %d", got)
	}
}

func TestMarkAsReadResetsUnreadAndGroupsSenders(t *testing.T) {
	svc, convs, _ := newTestService()
	ctx := context.Background()

	m1, _ := svc.SendMessage(ctx, sendReq(1, 2))
	m2, _ := svc.SendMessage(ctx, sendReq(1, 2))
	m3, _ := svc.SendMessage(ctx, sendReq(3, 2))

	res, err := svc.MarkAsRead(ctx, 2, []uint64{m1.ID, m2.ID, m3.ID})
	if err != nil {
		t.Fatalf("mark as read failed: %v", err)
	}
	if len(res.MessageIDs) != 3 {
		t.Errorf("expected 3 marked, got %d", len(res.MessageIDs))
	}
	if len(res.SenderIDs) != 2 {
		t.Errorf("expected 2 distinct senders, got %v", res.SenderIDs)
	}
	if len(res.ConversationIDs) != 2 {
		t.Errorf("expected 2 conversations, got %v", res.ConversationIDs)
	}

	for _, convID := range res.ConversationIDs {
		member, _ := convs.convs[convID].Member(2)
		if member.UnreadCount != 0 {
			t.Errorf("unread not reset in conversation %d", convID)
		}
	}

	// 重复标记幂等：第二次没有新增
	again, err := svc.MarkAsRead(ctx, 2, []uint64{m1.ID, m2.ID, m3.ID})
	if err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
	if len(again.MessageIDs) != 0 {
		t.Errorf("idempotent re-mark produced %v", again.MessageIDs)
	}
}

func TestMarkAsReadSkipsOwnMessages(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	msg, _ := svc.SendMessage(ctx, sendReq(1, 2))

	// 发送者不能给自己的消息打已读
	res, err := svc.MarkAsRead(ctx, 1, []uint64{msg.ID})
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if len(res.MessageIDs) != 0 {
		t.Errorf("sender must not read-receipt own message: %v", res.MessageIDs)
	}
}

func TestMarkAsReadRequiresRecipient(t *testing.T) {
	svc, _, msgs := newTestService()
	ctx := context.Background()

	msg, _ := svc.SendMessage(ctx, sendReq(1, 2))

	// 第三方不能替接收方打回执
	res, err := svc.MarkAsRead(ctx, 3, []uint64{msg.ID})
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if len(res.MessageIDs) != 0 {
		t.Errorf("non-recipient must not mark messages read: %v", res.MessageIDs)
	}
	if msgs.msgs[msg.ID].ReadBySomeone(3) {
		t.Error("no receipt may be recorded for a non-recipient")
	}
	if msgs.msgs[msg.ID].Status == domain.StatusRead {
		t.Error("status must not flip to read for a non-recipient")
	}

	// 真正的接收方照常标记
	res, err = svc.MarkAsRead(ctx, 2, []uint64{msg.ID})
	if err != nil {
		t.Fatalf("recipient mark failed: %v", err)
	}
	if len(res.MessageIDs) != 1 {
		t.Errorf("recipient should mark exactly one message, got %v", res.MessageIDs)
	}
}

func TestMarkAsReadSystemMessageMembersOnly(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	customer := domain.Participant{UserID: 10, Role: domain.RoleCustomer, Name: "c"}
	vendor := domain.Participant{UserID: 20, Role: domain.RoleVendor, Name: "v"}
	msg, err := svc.PostBookingMessage(ctx, 777, customer, vendor, "pending")
	if err != nil {
		t.Fatalf("booking message failed: %v", err)
	}

	// 系统消息没有点对点接收方，按会话成员身份过滤
	res, err := svc.MarkAsRead(ctx, 99, []uint64{msg.ID})
	if err != nil {
		t.Fatalf("outsider mark failed: %v", err)
	}
	if len(res.MessageIDs) != 0 {
		t.Errorf("outsider must not mark a support conversation message: %v", res.MessageIDs)
	}

	res, err = svc.MarkAsRead(ctx, 10, []uint64{msg.ID})
	if err != nil {
		t.Fatalf("member mark failed: %v", err)
	}
	if len(res.MessageIDs) != 1 {
		t.Errorf("member should mark the system message, got %v", res.MessageIDs)
	}
}

func TestDeleteMessageOnlySender(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	msg, _ := svc.SendMessage(ctx, sendReq(1, 2))

	if err := svc.DeleteMessage(ctx, 2, msg.ID); err != UnauthorizedError {
		t.Errorf("expected UnauthorizedError for non-sender, got %v", err)
	}
	if err := svc.DeleteMessage(ctx, 1, msg.ID); err != nil {
		t.Fatalf("sender delete failed: %v", err)
	}

	// 软删后历史不再返回
	history, err := svc.GetChatHistory(ctx, msg.ConversationID, 1, 50)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	for _, m := range history {
		if m.ID == msg.ID {
			t.Error("deleted message must not appear in history")
		}
	}

	if err := svc.DeleteMessage(ctx, 1, msg.ID); err != ErrMessageGone {
		t.Errorf("re-delete should report gone, got %v", err)
	}
	if err := svc.DeleteMessage(ctx, 1, 9999); err != ErrMessageGone {
		t.Errorf("unknown id should report gone, got %v", err)
	}
}

func TestGetChatHistoryPagesOldestFirst(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	var convID uint64
	var ids []uint64
	for i := 0; i < 5; i++ {
		msg, err := svc.SendMessage(ctx, sendReq(1, 2))
		if err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
		convID = msg.ConversationID
		ids = append(ids, msg.ID)
	}

	// 先发的排前面
	all, err := svc.GetChatHistory(ctx, convID, 1, 50)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(all))
	}
	for i := range all {
		if all[i].ID != ids[i] {
			t.Fatalf("position %d: expected id %d, got %d", i, ids[i], all[i].ID)
		}
	}

	// 第一页是最新的两条，页内仍从旧到新
	page1, _ := svc.GetChatHistory(ctx, convID, 1, 2)
	if len(page1) != 2 || page1[0].ID != ids[3] || page1[1].ID != ids[4] {
		t.Errorf("unexpected first page: %+v", pageIDs(page1))
	}
	page2, _ := svc.GetChatHistory(ctx, convID, 2, 2)
	if len(page2) != 2 || page2[0].ID != ids[1] || page2[1].ID != ids[2] {
		t.Errorf("unexpected second page: %+v", pageIDs(page2))
	}
	if page1[0].ID <= page2[1].ID {
		t.Error("earlier pages must hold newer messages")
	}
}

func pageIDs(msgs []*dto.MessageDTO) []uint64 {
	ids := make([]uint64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestPostBookingMessageReusesConversation(t *testing.T) {
	svc, convs, _ := newTestService()
	ctx := context.Background()

	customer := domain.Participant{UserID: 10, Role: domain.RoleCustomer, Name: "c"}
	vendor := domain.Participant{UserID: 20, Role: domain.RoleVendor, Name: "v"}

	m1, err := svc.PostBookingMessage(ctx, 555, customer, vendor, "confirmed")
	if err != nil {
		t.Fatalf("first booking message failed: %v", err)
	}
	m2, err := svc.PostBookingMessage(ctx, 555, customer, vendor, "completed")
	if err != nil {
		t.Fatalf("second booking message failed: %v", err)
	}

	if m1.ConversationID != m2.ConversationID {
		t.Errorf("same booking should reuse conversation: %d vs %d", m1.ConversationID, m2.ConversationID)
	}
	conv := convs.convs[m1.ConversationID]
	if conv.Kind != domain.KindSupport {
		t.Errorf("booking conversation should be support kind, got %d", conv.Kind)
	}
	if m1.MessageType != int(domain.MsgSystem) {
		t.Errorf("booking message should be system kind, got %d", m1.MessageType)
	}
}

func TestDeactivateConversationRequiresMembership(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	msg, _ := svc.SendMessage(ctx, sendReq(1, 2))

	if err := svc.DeactivateConversation(ctx, msg.ConversationID, 99); err != ErrNotMember {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
	if err := svc.DeactivateConversation(ctx, msg.ConversationID, 1); err != nil {
		t.Errorf("member deactivate failed: %v", err)
	}
	if err := svc.DeactivateConversation(ctx, 9999, 1); err != ErrConversationGone {
		t.Errorf("expected ErrConversationGone, got %v", err)
	}
}

func TestGetDirectHistory(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, _ = svc.SendMessage(ctx, sendReq(1, 2))
	_, _ = svc.SendMessage(ctx, sendReq(2, 1))
	_, _ = svc.SendMessage(ctx, sendReq(1, 3))

	msgs, err := svc.GetDirectHistory(ctx, 1, 2)
	if err != nil {
		t.Fatalf("direct history failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages between 1 and 2, got %d", len(msgs))
	}
}
