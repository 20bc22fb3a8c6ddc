package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firedLog struct {
	mu  sync.Mutex
	ids []string
}

func (f *firedLog) record(_ context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
}

func (f *firedLog) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

func runScheduler(t *testing.T, s *DeadlineScheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestSchedulerFiresInDeadlineOrder(t *testing.T) {
	log := &firedLog{}
	s := NewDeadlineScheduler(nil, 1, log.record)
	runScheduler(t, s)

	now := time.Now()
	s.Schedule("late", now.Add(80*time.Millisecond))
	s.Schedule("early", now.Add(20*time.Millisecond))
	assert.Equal(t, 2, s.Len())

	require.Eventually(t, func() bool { return len(log.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"early", "late"}, log.snapshot())
	assert.Equal(t, 0, s.Len())
}

func TestSchedulerFiresPastDeadlinesImmediately(t *testing.T) {
	log := &firedLog{}
	s := NewDeadlineScheduler(nil, 2, log.record)
	s.Schedule("overdue", time.Now().Add(-time.Minute))
	runScheduler(t, s)

	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerCancelAndReschedule(t *testing.T) {
	log := &firedLog{}
	s := NewDeadlineScheduler(nil, 2, log.record)
	runScheduler(t, s)

	now := time.Now()
	s.Schedule("cancelled", now.Add(30*time.Millisecond))
	s.Schedule("moved", now.Add(time.Hour))
	s.Schedule("kept", now.Add(60*time.Millisecond))
	s.Cancel("cancelled")
	s.Schedule("moved", now.Add(40*time.Millisecond))

	require.Eventually(t, func() bool { return len(log.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.ElementsMatch(t, []string{"moved", "kept"}, log.snapshot())
}

func TestSchedulerSurvivesPanickingHandler(t *testing.T) {
	log := &firedLog{}
	s := NewDeadlineScheduler(nil, 1, func(ctx context.Context, id string) {
		if id == "boom" {
			panic("handler failure")
		}
		log.record(ctx, id)
	})
	runScheduler(t, s)

	now := time.Now()
	s.Schedule("boom", now.Add(10*time.Millisecond))
	s.Schedule("after", now.Add(30*time.Millisecond))

	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"after"}, log.snapshot())
}
