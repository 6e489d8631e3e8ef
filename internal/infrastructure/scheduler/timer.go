package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/service"
	"helpdesk/pkg/logger"
)

var ErrStopped = errors.New("scheduler: stopped")

// TimerScheduler runs auto-reply jobs on in-process timers. Pending jobs are
// lost on restart; use the asynq scheduler when that matters.
type TimerScheduler struct {
	mu      sync.Mutex
	handler service.AutoReplyHandler
	timers  map[*time.Timer]struct{}
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewTimerScheduler() *TimerScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerScheduler{
		timers: make(map[*time.Timer]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *TimerScheduler) Start(handler service.AutoReplyHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	s.handler = handler
	return nil
}

func (s *TimerScheduler) ScheduleAutoReply(ctx context.Context, id entity.ConversationID, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.handler == nil {
		return errors.New("scheduler: not started")
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		handler := s.handler
		stopped := s.stopped
		s.mu.Unlock()

		if stopped {
			return
		}
		if err := handler(s.ctx, id); err != nil {
			logger.Error("Auto-reply for conversation %s failed: %v", id, err)
		}
	})
	s.timers[timer] = struct{}{}
	return nil
}

// Pending reports the number of jobs that have not fired yet.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending job. Jobs already running see a cancelled context.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.cancel()
	for timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
}
