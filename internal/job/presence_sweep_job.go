package job

import (
	"context"
	log "log/slog"

	"github.com/google/uuid"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/hub"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/logger"
)

// PresenceSweepJob 周期扫描连接注册表，把超时空闲的会话翻转为离线。
// 本进程唯一的定时任务
type PresenceSweepJob struct {
	tracker *hub.PresenceTracker
}

func NewPresenceSweepJob(tracker *hub.PresenceTracker) *PresenceSweepJob {
	return &PresenceSweepJob{tracker: tracker}
}

func (s *PresenceSweepJob) Run() {
	traceID := "job-" + uuid.NewString()
	ctx := context.WithValue(context.Background(), logger.TraceIDKey, traceID)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "presence sweep panic", "err", r)
		}
	}()

	s.tracker.Sweep()
}
