package cron

import (
	"Courier/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

const defaultOrphanSweepSpec = "@hourly"

type Manager struct {
	engine           *cron.Cron
	orphanSweepSpec  string
	orphanMessageJob *job.OrphanMessageSweepJob
}

func NewCronManager(orphanSweepSpec string, orphanMessageJob *job.OrphanMessageSweepJob) *Manager {
	if orphanSweepSpec == "" {
		orphanSweepSpec = defaultOrphanSweepSpec
	}
	return &Manager{
		engine:           cron.New(cron.WithSeconds()),
		orphanSweepSpec:  orphanSweepSpec,
		orphanMessageJob: orphanMessageJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob(s.orphanSweepSpec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(s.orphanMessageJob)); err != nil {
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
	<-s.engine.Stop().Done()
}
