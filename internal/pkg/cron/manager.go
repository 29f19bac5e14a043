package cron

import (
	log "log/slog"

	"github.com/robfig/cron/v3"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/job"
)

type Manager struct {
	engine           *cron.Cron
	sweepSpec        string
	presenceSweepJob *job.PresenceSweepJob
}

func NewCronManager(sweepSpec string, presenceSweepJob *job.PresenceSweepJob) *Manager {
	if sweepSpec == "" {
		sweepSpec = "@every 30s"
	}
	return &Manager{
		engine:           cron.New(cron.WithSeconds()),
		sweepSpec:        sweepSpec,
		presenceSweepJob: presenceSweepJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob(s.sweepSpec, s.presenceSweepJob); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	s.engine.Stop()
}
