package service

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"assessment_engine_backend/pkg/logger"
	"assessment_engine_backend/pkg/monitoring"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DeadlineFunc 截止时间到达时调用
type DeadlineFunc func(ctx context.Context, submissionID string)

type deadlineItem struct {
	id    string
	at    time.Time
	index int
}

type deadlineHeap []*deadlineItem

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x interface{}) {
	item := x.(*deadlineItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *deadlineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// DeadlineScheduler 所有作答的截止时间放在一个最小堆里，由单个 goroutine 等待最近的一个，
// 到期后在有限并发下回调 fire。
type DeadlineScheduler struct {
	mu    sync.Mutex
	items deadlineHeap
	index map[string]*deadlineItem
	wake  chan struct{}

	clock Clock
	fire  DeadlineFunc
	sem   *semaphore.Weighted
	wg    sync.WaitGroup
}

func NewDeadlineScheduler(clock Clock, maxConcurrent int, fire DeadlineFunc) *DeadlineScheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &DeadlineScheduler{
		index: make(map[string]*deadlineItem),
		wake:  make(chan struct{}, 1),
		clock: clock,
		fire:  fire,
		sem:   semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// SetHandler 替换到期回调，需在 Run 之前调用
func (s *DeadlineScheduler) SetHandler(fire DeadlineFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fire = fire
}

// Schedule 登记或更新一个截止时间
func (s *DeadlineScheduler) Schedule(submissionID string, at time.Time) {
	s.mu.Lock()
	if item, ok := s.index[submissionID]; ok {
		item.at = at
		heap.Fix(&s.items, item.index)
	} else {
		item := &deadlineItem{id: submissionID, at: at}
		heap.Push(&s.items, item)
		s.index[submissionID] = item
	}
	monitoring.ActiveDeadlines.Set(float64(len(s.items)))
	s.mu.Unlock()
	s.notify()
}

// Cancel 移除截止时间，作答已关闭时调用
func (s *DeadlineScheduler) Cancel(submissionID string) {
	s.mu.Lock()
	if item, ok := s.index[submissionID]; ok {
		heap.Remove(&s.items, item.index)
		delete(s.index, submissionID)
	}
	monitoring.ActiveDeadlines.Set(float64(len(s.items)))
	s.mu.Unlock()
	s.notify()
}

func (s *DeadlineScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *DeadlineScheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// popDue 取出所有已到期的条目，并返回距离下一个截止时间的等待时长（无条目时为 -1）
func (s *DeadlineScheduler) popDue(now time.Time) ([]string, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []string
	for len(s.items) > 0 && !s.items[0].at.After(now) {
		item := heap.Pop(&s.items).(*deadlineItem)
		delete(s.index, item.id)
		due = append(due, item.id)
	}
	monitoring.ActiveDeadlines.Set(float64(len(s.items)))
	if len(s.items) == 0 {
		return due, -1
	}
	return due, s.items[0].at.Sub(now)
}

// Run 阻塞直到 ctx 取消，退出前等待正在执行的回调完成
func (s *DeadlineScheduler) Run(ctx context.Context) {
	defer s.wg.Wait()

	for {
		due, wait := s.popDue(s.clock.Now())
		for _, id := range due {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return
			}
			s.wg.Add(1)
			go func(id string) {
				defer s.wg.Done()
				defer s.sem.Release(1)
				defer func() {
					if r := recover(); r != nil {
						logger.ForSubmission(id).Error("Deadline handler panicked", zap.Any("panic", r))
					}
				}()
				s.mu.Lock()
				fire := s.fire
				s.mu.Unlock()
				if fire != nil {
					fire(ctx, id)
				}
			}(id)
		}

		if wait < 0 {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}
