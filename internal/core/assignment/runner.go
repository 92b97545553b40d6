package assignment

import (
	"context"
	"fmt"
	"time"

	"school-meal-engine/internal/core/selection"
	"school-meal-engine/internal/pkg/common"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner 於截止時間觸發自動指派
type Runner struct {
	policy selection.Policy
	queue  *Queue
	gate   Gate
	clock  selection.Clock
	cron   *cron.Cron
	entry  cron.EntryID
}

// NewRunner 創建排程器；gate 可為 nil
func NewRunner(policy selection.Policy, queue *Queue, gate Gate, clock selection.Clock) *Runner {
	if clock == nil {
		clock = selection.SystemClock{}
	}
	loc := policy.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{
		policy: policy,
		queue:  queue,
		gate:   gate,
		clock:  clock,
		cron:   cron.New(cron.WithLocation(loc)),
	}
}

// Spec 截止時間的 cron 表達式
func (r *Runner) Spec() string {
	return fmt.Sprintf("0 %d * * %d", r.policy.CutoffHour, int(r.policy.Weekday))
}

// Start 註冊排程並啟動
func (r *Runner) Start() error {
	id, err := r.cron.AddFunc(r.Spec(), r.fire)
	if err != nil {
		return fmt.Errorf("failed to schedule auto-assignment: %w", err)
	}
	r.entry = id
	r.queue.Start()
	r.cron.Start()

	common.LogInfo("自動指派排程已啟動",
		zap.String("spec", r.Spec()),
		zap.Time("next", r.Next()),
	)
	return nil
}

// Next 下次觸發時間
func (r *Runner) Next() time.Time {
	if r.entry == 0 {
		return time.Time{}
	}
	entry := r.cron.Entry(r.entry)
	if entry.Schedule == nil {
		return time.Time{}
	}
	return entry.Schedule.Next(r.clock.Now().In(r.cronLocation()))
}

func (r *Runner) fire() {
	if _, err := r.Trigger(context.Background()); err != nil {
		common.LogError("Auto-assignment run failed", zap.Error(err))
	}
}

// Trigger 排程觸發：先取得跨實例鎖，取不到則略過
func (r *Runner) Trigger(ctx context.Context) (*RunReport, error) {
	now := r.clock.Now()

	if r.gate != nil {
		key := "auto-assign:" + now.In(r.cronLocation()).Format("2006-01-02T15")
		ok, err := r.gate.Acquire(ctx, key)
		switch {
		case err != nil:
			common.LogWarn("Scheduler lock unavailable, relying on choice uniqueness", zap.Error(err))
		case !ok:
			common.LogInfo("Auto-assignment already running on another instance", zap.String("lock", key))
			return nil, nil
		}
	}

	return r.queue.Submit(ctx, now)
}

// RunNow 手動觸發，不經過跨實例鎖
func (r *Runner) RunNow(ctx context.Context) (*RunReport, error) {
	return r.queue.Submit(ctx, r.clock.Now())
}

// Status 隊列狀態
func (r *Runner) Status() Status {
	return r.queue.GetStatus()
}

// Stop 停止排程並等待執行中的工作
func (r *Runner) Stop(ctx context.Context) {
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	r.queue.Close()
}

func (r *Runner) cronLocation() *time.Location {
	return r.cron.Location()
}
