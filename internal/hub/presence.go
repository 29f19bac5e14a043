package hub

import (
	log "log/slog"
	"time"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"
)

// DefaultIdleTimeout 无活跃事件超过该时长即判定为空闲离线
const DefaultIdleTimeout = 5 * time.Minute

// broadcaster 上下线事件的出口，由调度器实现
type broadcaster interface {
	broadcastAll(event string, data interface{}, except uint64)
}

// PresenceTracker 在线状态跟踪。状态完全由注册表推导，
// 周期扫描是本进程唯一的定时任务
type PresenceTracker struct {
	registry    *Registry
	out         broadcaster
	idleTimeout time.Duration
}

func NewPresenceTracker(registry *Registry, idleTimeout time.Duration) *PresenceTracker {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &PresenceTracker{registry: registry, idleTimeout: idleTimeout}
}

func (t *PresenceTracker) bind(out broadcaster) {
	t.out = out
}

// MarkOnline 上线广播，不发给本人
func (t *PresenceTracker) MarkOnline(userID uint64, role domain.Role, name string) {
	t.emit(EvtUserOnline, userID, role, name)
}

// MarkOffline 离线广播。断开连接时无条件触发，与空闲判定无关
func (t *PresenceTracker) MarkOffline(userID uint64, role domain.Role, name string) {
	t.emit(EvtUserOffline, userID, role, name)
}

// Sweep 扫描一轮注册表，把超时会话翻转为离线并广播。
// 只标记不断连，区分“连接着但空闲”与“已断开”；
// 单次扫描 O(会话数)，任何单个会话的异常都不能中断扫描
func (t *PresenceTracker) Sweep() {
	now := time.Now()
	flipped := t.registry.FlipIdle(t.idleTimeout, now)
	for _, sess := range flipped {
		log.Info("会话空闲转离线", "userID", sess.UserID, "lastActivity", sess.LastActivity)
		t.emit(EvtUserOffline, sess.UserID, sess.Role, sess.Name)
	}
}

func (t *PresenceTracker) emit(event string, userID uint64, role domain.Role, name string) {
	if t.out == nil {
		return
	}
	t.out.broadcastAll(event, PresencePayload{
		UserID:   userID,
		UserType: string(role),
		UserName: name,
	}, userID)
}
