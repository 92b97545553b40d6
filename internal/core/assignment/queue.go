package assignment

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"school-meal-engine/internal/pkg/common"

	"go.uber.org/zap"
)

// RunFunc 執行一次自動指派
type RunFunc func(ctx context.Context, now time.Time) (*RunReport, error)

type job struct {
	ctx    context.Context
	now    time.Time
	result chan Result
}

// Result 排隊執行的結果
type Result struct {
	Report *RunReport
	Error  error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int   `json:"queue_length"`
	ProcessedCount int64 `json:"processed_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Running        bool  `json:"running"`
}

// Queue 以單一 worker 依序執行，排程觸發與手動觸發不會同時進行
type Queue struct {
	run       RunFunc
	size      int
	jobs      chan *job
	done      chan struct{}
	processed int64
	running   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewQueue 創建隊列，需呼叫 Start 啟動 worker
func NewQueue(run RunFunc, size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		run:  run,
		size: size,
		jobs: make(chan *job, size),
		done: make(chan struct{}),
	}
}

// Start 啟動 worker
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.wg.Add(1)
		go q.worker()
	})
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case j := <-q.jobs:
			q.running.Store(true)
			// 執行中不因呼叫端取消而中斷
			report, err := q.run(context.WithoutCancel(j.ctx), j.now)
			q.running.Store(false)
			atomic.AddInt64(&q.processed, 1)
			j.result <- Result{Report: report, Error: err}
		}
	}
}

// Enqueue 將一次執行加入隊列
func (q *Queue) Enqueue(ctx context.Context, now time.Time) (<-chan Result, error) {
	select {
	case <-q.done:
		return nil, common.ErrSchedulerStopped
	default:
	}

	j := &job{ctx: ctx, now: now, result: make(chan Result, 1)}
	select {
	case q.jobs <- j:
		common.LogDebug("Auto-assignment enqueued",
			zap.Int("queue_length", len(q.jobs)),
			zap.Int("max_queue_size", q.size),
		)
		return j.result, nil
	case <-q.done:
		return nil, common.ErrSchedulerStopped
	default:
		return nil, common.ErrSchedulerBusy
	}
}

// Submit 加入隊列並等待結果
func (q *Queue) Submit(ctx context.Context, now time.Time) (*RunReport, error) {
	ch, err := q.Enqueue(ctx, now)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		return res.Report, res.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, common.ErrSchedulerStopped
	}
}

// GetStatus 隊列狀態
func (q *Queue) GetStatus() Status {
	return Status{
		QueueLength:    len(q.jobs),
		ProcessedCount: atomic.LoadInt64(&q.processed),
		MaxQueueSize:   q.size,
		Running:        q.running.Load(),
	}
}

// Close 停止 worker，等待執行中的工作結束
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
	q.wg.Wait()
}
