package assignment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"school-meal-engine/internal/core/allergy"
	"school-meal-engine/internal/core/selection"
	"school-meal-engine/internal/pkg/common"
	"school-meal-engine/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (g *fakeGate) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func TestQueue_RunsSerially(t *testing.T) {
	var active, maxActive int32
	q := NewQueue(func(ctx context.Context, now time.Time) (*RunReport, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return &RunReport{StartedAt: now}, nil
	}, 4)
	q.Start()
	defer q.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Submit(context.Background(), time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
	assert.Equal(t, int64(4), q.GetStatus().ProcessedCount)
}

func TestQueue_FullAndStopped(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue(func(ctx context.Context, now time.Time) (*RunReport, error) {
		<-release
		return &RunReport{}, nil
	}, 1)

	// worker not started, so the buffer fills up
	_, err := q.Enqueue(context.Background(), time.Now())
	require.NoError(t, err)
	_, err = q.Enqueue(context.Background(), time.Now())
	assert.ErrorIs(t, err, common.ErrSchedulerBusy)

	close(release)
	q.Close()
	_, err = q.Enqueue(context.Background(), time.Now())
	assert.ErrorIs(t, err, common.ErrSchedulerStopped)
}

func TestQueue_PropagatesRunError(t *testing.T) {
	q := NewQueue(func(ctx context.Context, now time.Time) (*RunReport, error) {
		return nil, errors.New("boom")
	}, 1)
	q.Start()
	defer q.Close()

	_, err := q.Submit(context.Background(), time.Now())
	assert.EqualError(t, err, "boom")
}

func newRunnerHarness(t *testing.T, gate Gate) (*Runner, *harness) {
	t.Helper()
	h := newHarness(allergy.StudentProfile{StudentID: uuid.New()})
	q := NewQueue(h.scheduler.RunAutoAssignment, 2)
	q.Start()
	r := NewRunner(selection.DefaultPolicy(testutil.Jakarta), q, gate, testutil.NewClock(cutoff()))
	t.Cleanup(q.Close)
	return r, h
}

func TestRunner_Spec(t *testing.T) {
	r, _ := newRunnerHarness(t, nil)
	assert.Equal(t, "0 17 * * 5", r.Spec())
}

func TestRunner_NextFiring(t *testing.T) {
	r, _ := newRunnerHarness(t, nil)
	require.NoError(t, r.Start())
	defer r.Stop(context.Background())

	// at exactly 17:00 the next firing is the following Friday
	want := time.Date(2025, 3, 14, 17, 0, 0, 0, testutil.Jakarta)
	assert.True(t, want.Equal(r.Next()), "next %s", r.Next())
}

func TestRunner_TriggerHonoursGate(t *testing.T) {
	gate := &fakeGate{held: map[string]bool{}}
	r, h := newRunnerHarness(t, gate)
	ctx := context.Background()

	report, err := r.Trigger(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 5, report.Created)

	again, err := r.Trigger(ctx)
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Equal(t, 5, h.choices.Len())
}

func TestRunner_GateErrorStillRuns(t *testing.T) {
	r, _ := newRunnerHarness(t, &fakeGate{err: errors.New("redis down")})

	report, err := r.Trigger(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 5, report.Created)
}

func TestRunner_RunNowBypassesGate(t *testing.T) {
	gate := &fakeGate{held: map[string]bool{"auto-assign:2025-03-07T17": true}}
	r, _ := newRunnerHarness(t, gate)

	skipped, err := r.Trigger(context.Background())
	require.NoError(t, err)
	assert.Nil(t, skipped)

	report, err := r.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Created)
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "school-meal:lock:auto-assign:2025-03-07T17", LockKey("auto-assign:2025-03-07T17"))
}
