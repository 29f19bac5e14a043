package hub

import (
	"context"
	log "log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/dto"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/service"
)

const opTimeout = 10 * time.Second

// Hub 实时调度器。进程内单实例，持有连接注册表与会话房间，
// 负责把上行事件路由到服务层并将结果扇出给在线接收方。
// 两套寻址互不混用：单聊推送按注册表点对点投递，
// 输入中指示按会话房间广播。
type Hub struct {
	registry *Registry
	tracker  *PresenceTracker
	svc      service.ChatService

	mu    sync.RWMutex
	rooms map[uint64]map[*Client]bool
}

func NewHub(registry *Registry, tracker *PresenceTracker, svc service.ChatService) *Hub {
	h := &Hub{
		registry: registry,
		tracker:  tracker,
		svc:      svc,
		rooms:    make(map[uint64]map[*Client]bool),
	}
	tracker.bind(h)
	return h
}

// ServeConn 接管一条升级完成的连接，阻塞到连接关闭
func (h *Hub) ServeConn(conn *websocket.Conn) {
	newClient(h, conn).Serve()
}

// HandleEvent 上行事件入口。任一事件都会刷新活跃时间；
// 单个连接上的事件错误只回给该连接，不影响其他连接
func (h *Hub) HandleEvent(c *Client, raw []byte) {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		c.sendEvent(EvtMessageError, ErrorPayload{Error: service.ErrParamInvalid.Error()})
		return
	}

	if c.userID != 0 {
		h.registry.Touch(c.userID, time.Now())
	}

	switch evt.Event {
	case EvtJoin:
		h.handleJoin(c, evt.Data)
	case EvtUserActivity:
		// Touch 已经完成，无持久化也无广播
	case EvtSendMessage:
		h.handleSendMessage(c, evt.Data)
	case EvtMarkAsRead:
		h.handleMarkAsRead(c, evt.Data)
	case EvtJoinConversation:
		h.handleJoinRoom(c, evt.Data)
	case EvtLeaveConversation:
		h.handleLeaveRoom(c, evt.Data)
	case EvtTypingStart, EvtTypingStop:
		h.handleTyping(c, evt.Event, evt.Data)
	default:
		log.Warn("未知上行事件", "event", evt.Event, "userID", c.userID)
	}
}

// handleJoin 入场：登记连接、回发在线列表、向其他人广播上线
func (h *Hub) handleJoin(c *Client, data json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == 0 {
		c.sendEvent(EvtMessageError, ErrorPayload{Error: service.ErrParamInvalid.Error()})
		return
	}
	role := domain.Role(p.UserType)
	if !role.Valid() {
		c.sendEvent(EvtMessageError, ErrorPayload{Error: service.ErrRoleInvalid.Error()})
		return
	}

	c.userID = p.UserID
	h.registry.Register(p.UserID, role, p.UserName, c)

	c.sendEvent(EvtOnlineUsers, h.registry.OnlineIDs())
	h.tracker.MarkOnline(p.UserID, role, p.UserName)
	log.Info("用户加入调度器", "userID", p.UserID, "role", role)
}

// handleSendMessage 先落库后扇出。持久化失败只向发送者回 message_error，
// 不会出现半投递
func (h *Hub) handleSendMessage(c *Client, data json.RawMessage) {
	var req dto.SendMessageReq
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendEvent(EvtMessageError, ErrorPayload{Error: service.ErrParamInvalid.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	msg, err := h.svc.SendMessage(ctx, &req)
	if err != nil {
		c.sendEvent(EvtMessageError, ErrorPayload{Error: err.Error()})
		return
	}

	h.NotifyNewMessage(ctx, msg)

	// 回执给发送者的是同一条已持久化记录，两端的内容与时间戳必然一致
	c.sendEvent(EvtMessageSent, msg)
}

// NotifyNewMessage 向在线接收方点对点投递。降级 REST 通道发出的消息
// 也从这里推送，不在线不算错误，下次拉取自然可见
func (h *Hub) NotifyNewMessage(ctx context.Context, msg *dto.MessageDTO) {
	rc, ok := h.registry.Client(msg.RecipientID)
	if !ok {
		return
	}
	if rc.sendEvent(EvtNewMessage, msg) {
		h.svc.MarkDelivered(ctx, msg.ID)
	}
	h.pushUnreadCount(ctx, rc, msg.RecipientID)
}

// handleMarkAsRead 批量已读：落回执、清未读，再尽力通知各原发送者
func (h *Hub) handleMarkAsRead(c *Client, data json.RawMessage) {
	var req dto.MarkAsReadReq
	if err := json.Unmarshal(data, &req); err != nil || req.UserID == 0 || len(req.MessageIDs) == 0 {
		c.sendEvent(EvtMessageError, ErrorPayload{Error: service.ErrParamInvalid.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := h.svc.MarkAsRead(ctx, req.UserID, req.MessageIDs)
	if err != nil {
		c.sendEvent(EvtMessageError, ErrorPayload{Error: err.Error()})
		return
	}
	if len(res.MessageIDs) == 0 {
		return
	}

	// 发送者不在线时回执已持久化，下次拉取可见
	for _, senderID := range res.SenderIDs {
		if sc, ok := h.registry.Client(senderID); ok {
			sc.sendEvent(EvtMessagesRead, MessagesReadPayload{
				MessageIDs: res.MessageIDs,
				ReadBy:     res.ReadBy,
			})
		}
	}
	h.pushUnreadCount(ctx, c, req.UserID)
}

func (h *Hub) handleJoinRoom(c *Client, data json.RawMessage) {
	var p RoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[p.ConversationID] == nil {
		h.rooms[p.ConversationID] = make(map[*Client]bool)
	}
	h.rooms[p.ConversationID][c] = true
}

func (h *Hub) handleLeaveRoom(c *Client, data json.RawMessage) {
	var p RoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[p.ConversationID], c)
}

// handleTyping 纯瞬时转发：房间内除来源外全员，不持久化
func (h *Hub) handleTyping(c *Client, event string, data json.RawMessage) {
	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == 0 {
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[p.ConversationID]))
	for member := range h.rooms[p.ConversationID] {
		if member != c {
			members = append(members, member)
		}
	}
	h.mu.RUnlock()

	for _, member := range members {
		member.sendEvent(event, p)
	}
}

// disconnect 传输层断开：注销登记并广播离线。
// 注销只针对当前连接，已被新连接顶替的登记项保持不动
func (h *Hub) disconnect(c *Client) {
	h.mu.Lock()
	for convID, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, convID)
		}
	}
	h.mu.Unlock()

	if c.userID == 0 {
		return
	}
	if sess, ok := h.registry.RemoveIfClient(c.userID, c); ok {
		h.tracker.MarkOffline(sess.UserID, sess.Role, sess.Name)
		log.Info("用户离开调度器", "userID", sess.UserID)
	}
}

// broadcastAll 全员广播，except 为 0 时不排除任何人
func (h *Hub) broadcastAll(event string, data interface{}, except uint64) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.Error("广播事件编码失败", "event", event, "err", err)
		return
	}
	for _, client := range h.registry.Clients() {
		if except != 0 && client.userID == except {
			continue
		}
		client.enqueue(payload)
	}
}

func (h *Hub) pushUnreadCount(ctx context.Context, c *Client, userID uint64) {
	total, err := h.svc.GetUnreadCount(ctx, userID)
	if err != nil {
		log.WarnContext(ctx, "查询未读数失败", "userID", userID, "err", err)
		return
	}
	c.sendEvent(EvtUnreadCountUpdate, dto.UnreadCountDTO{UnreadCount: total})
}
