package task

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// ==================== TaskManager 同步任务管理器 ====================

// TaskManager 统一管理后台任务
type TaskManager struct {
	syncTask *SyncTask
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	SyncEnabled      bool
	SyncCron         string
	SyncInitialDelay time.Duration
	SyncTimeout      time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		SyncEnabled:      true,
		SyncCron:         "0 */30 * * * *",
		SyncInitialDelay: 3 * time.Second,
		SyncTimeout:      10 * time.Minute,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(syncService Refresher, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{}

	if cfg.SyncEnabled && syncService != nil {
		tm.syncTask = NewSyncTask(syncService, cfg.SyncCron)
		tm.syncTask.SetSchedule(cfg.SyncInitialDelay, cfg.SyncTimeout)
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() error {
	log.Info("[TaskManager] 正在启动后台任务...")

	if tm.syncTask != nil {
		if err := tm.syncTask.Start(); err != nil {
			return err
		}
	}

	log.Info("[TaskManager] 后台任务已全部启动")
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	log.Info("[TaskManager] 正在停止后台任务...")

	if tm.syncTask != nil {
		tm.syncTask.Stop()
	}

	log.Info("[TaskManager] 后台任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerRefresh 异步触发一次全量刷新
func (tm *TaskManager) TriggerRefresh() error {
	if tm.syncTask == nil {
		return ErrTaskDisabled
	}
	go tm.syncTask.RunNow()
	return nil
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"sync": tm.syncTask != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
