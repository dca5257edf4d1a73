package cron

import log "log/slog"

// InitCron 注册并启动定时任务，调度表达式为空时不启动
func InitCron(mgr *Manager) error {
	if mgr == nil {
		return nil
	}
	if err := mgr.RegisterJobs(); err != nil {
		return err
	}
	mgr.Start()
	log.Info("cron jobs started", "orphan_sweep", mgr.orphanSweepSpec)
	return nil
}
