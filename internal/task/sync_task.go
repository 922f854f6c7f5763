package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"catalog_mirror_v1/internal/service"
)

// Refresher 由 service.SyncService 实现
type Refresher interface {
	Refresh(ctx context.Context) (*service.SyncReport, error)
}

// ==================== SyncTask 目录同步任务 ====================

// SyncTask 定时全量刷新商品缓存
// 同步策略：
//   - 启动后延迟一次首轮加载
//   - 之后按 cron 表达式周期刷新（带秒字段）
type SyncTask struct {
	syncService Refresher
	cron        *cron.Cron
	spec        string

	initialDelay time.Duration
	timeout      time.Duration

	running  int32
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewSyncTask 创建同步任务
func NewSyncTask(syncService Refresher, spec string) *SyncTask {
	return &SyncTask{
		syncService:  syncService,
		cron:         cron.New(cron.WithSeconds()),
		spec:         spec,
		initialDelay: 3 * time.Second,
		timeout:      10 * time.Minute,
		stopCh:       make(chan struct{}),
	}
}

// SetSchedule 设置首轮延迟与单次超时
func (t *SyncTask) SetSchedule(initialDelay, timeout time.Duration) {
	t.initialDelay = initialDelay
	if timeout > 0 {
		t.timeout = timeout
	}
}

// Start 启动定时任务，cron 表达式无效时返回错误
func (t *SyncTask) Start() error {
	if _, err := t.cron.AddFunc(t.spec, t.RunNow); err != nil {
		return err
	}

	// 首次执行
	go func() {
		timer := time.NewTimer(t.initialDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
			log.Info("[SyncTask] 执行首次商品加载...")
			t.RunNow()
		case <-t.stopCh:
		}
	}()

	t.cron.Start()
	log.WithField("cron", t.spec).Info("[SyncTask] 已启动")
	return nil
}

// Stop 停止任务，等待正在执行的 cron 回调结束
func (t *SyncTask) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Info("[SyncTask] 已停止")
}

// RunNow 立即执行一次刷新；上一次尚未结束时跳过
func (t *SyncTask) RunNow() {
	if !atomic.CompareAndSwapInt32(&t.running, 0, 1) {
		log.Info("[SyncTask] 上一次刷新仍在执行，跳过")
		return
	}
	defer atomic.StoreInt32(&t.running, 0)

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	start := time.Now()
	report, err := t.syncService.Refresh(ctx)
	if err != nil {
		log.WithError(err).Error("[SyncTask] 商品刷新失败")
		return
	}

	fields := log.Fields{"duration": time.Since(start).Round(time.Millisecond)}
	if report != nil {
		fields["pages"] = report.Pages
		fields["inserted"] = report.Inserted
		fields["invalid"] = report.Invalid
		fields["skipped"] = report.Skipped
	}
	log.WithFields(fields).Info("[SyncTask] 商品刷新完成")
}
