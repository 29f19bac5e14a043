package hub

import (
	"sync"
	"time"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
)

// Session 一条活跃连接的登记信息。进程内状态，重启即清空，
// 客户端断线重连后重新登记
type Session struct {
	UserID       uint64
	Role         domain.Role
	Name         string
	Online       bool
	LastActivity time.Time
	client       *Client
}

// Registry 连接注册表。调度器是唯一写入方，所有变更都在锁内完成，
// 单键操作原子
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint64]*Session)}
}

// Register 登记连接。同一用户重复登记时新连接顶掉旧连接
func (r *Registry) Register(userID uint64, role domain.Role, name string, c *Client) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := &Session{
		UserID:       userID,
		Role:         role,
		Name:         name,
		Online:       true,
		LastActivity: time.Now(),
		client:       c,
	}
	r.sessions[userID] = sess
	return sess
}

// Lookup 返回会话快照，避免调用方读到写入中的字段
func (r *Registry) Lookup(userID uint64) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Client 取出在线用户的连接，空闲但未断开的连接同样可达
func (r *Registry) Client(userID uint64) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[userID]
	if !ok || sess.client == nil {
		return nil, false
	}
	return sess.client, true
}

// Touch 刷新活跃时间。被闲置判定的会话借此静默恢复在线，不再广播
func (r *Registry) Touch(userID uint64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[userID]; ok {
		sess.LastActivity = at
		sess.Online = true
	}
}

// Remove 注销连接，返回最后已知的身份信息用于离线广播
func (r *Registry) Remove(userID uint64) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[userID]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, userID)
	return *sess, true
}

// RemoveIfClient 仅当登记项仍指向该连接时注销。刷新页面时新连接先登记、
// 旧连接后关闭，旧连接的断开不能把新连接顶掉
func (r *Registry) RemoveIfClient(userID uint64, c *Client) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[userID]
	if !ok || sess.client != c {
		return Session{}, false
	}
	delete(r.sessions, userID)
	return *sess, true
}

// OnlineIDs 当前在线用户列表
func (r *Registry) OnlineIDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint64, 0, len(r.sessions))
	for id, sess := range r.sessions {
		if sess.Online {
			ids = append(ids, id)
		}
	}
	return ids
}

// FlipIdle 扫描并翻转超时会话为离线，返回被翻转的会话快照。
// 翻转不删除登记项，连接仍然可达；扫描中途被移除的会话视为输掉竞争，直接跳过
func (r *Registry) FlipIdle(idleTimeout time.Duration, now time.Time) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var flipped []Session
	for _, sess := range r.sessions {
		if sess.Online && now.Sub(sess.LastActivity) > idleTimeout {
			sess.Online = false
			flipped = append(flipped, *sess)
		}
	}
	return flipped
}

// Clients 全部登记连接的快照，用于全员广播
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if sess.client != nil {
			clients = append(clients, sess.client)
		}
	}
	return clients
}

// Len 当前登记数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
